package proctor

import "time"

// Status is the coarse state of a student's exam session.
type Status string

const (
	StatusActive   Status = "active"
	StatusOffline  Status = "offline"
	StatusFlagged  Status = "flagged"
	StatusHighRisk Status = "high-risk"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusOffline, StatusFlagged, StatusHighRisk:
		return true
	}
	return false
}

// Elevated reports whether s marks the student as suspicious.
func (s Status) Elevated() bool {
	return s == StatusFlagged || s == StatusHighRisk
}

// DefaultTimeElapsed is the clock value of a student that has not started yet.
const DefaultTimeElapsed = "00:00:00"

// Student is a registered exam taker.
type Student struct {
	StudentID    string    `json:"id" bson:"studentId"`
	Name         string    `json:"name" bson:"name"`
	Exam         string    `json:"exam" bson:"exam"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Status       Status    `json:"status" bson:"status"`
	TimeElapsed  string    `json:"timeElapsed" bson:"timeElapsed"`
	RiskScore    int       `json:"riskScore" bson:"riskScore"`
	CreatedAt    time.Time `json:"-" bson:"createdAt"`
	UpdatedAt    time.Time `json:"-" bson:"updatedAt"`
}

// StudentUpdate carries a partial update. Nil fields are left untouched.
type StudentUpdate struct {
	Status      *Status
	RiskScore   *int
	TimeElapsed *string
}

// apply mutates s in place; used by the in-memory backend.
func (u StudentUpdate) apply(s *Student) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.RiskScore != nil {
		s.RiskScore = *u.RiskScore
	}
	if u.TimeElapsed != nil {
		s.TimeElapsed = *u.TimeElapsed
	}
}

// ActivityEvent is a single suspicious (or informational) signal reported by a
// student's client.
type ActivityEvent struct {
	ID        string    `json:"id" bson:"eventId"`
	StudentID string    `json:"studentId" bson:"studentId"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	Type      string    `json:"type" bson:"type"`
	Details   string    `json:"details,omitempty" bson:"details,omitempty"`
	RiskScore int       `json:"riskScore" bson:"riskScore"`
	CreatedAt time.Time `json:"-" bson:"createdAt"`
}

// EnrichedEvent is an event joined with the owning student's display fields.
type EnrichedEvent struct {
	ActivityEvent
	StudentName string `json:"studentName"`
	Exam        string `json:"exam"`
}
