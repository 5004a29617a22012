package proctor

import "errors"

var (
	ErrNotFound         = errors.New("student not found")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidRiskScore = errors.New("risk score must be non-negative")
	ErrMissingField     = errors.New("missing required field")
)
