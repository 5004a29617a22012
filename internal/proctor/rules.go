package proctor

// Risk score thresholds for automatic escalation.
const (
	FlaggedThreshold  = 50
	HighRiskThreshold = 80
)

// ReconcileStatus decides what status to store when a client asks for
// requested while current is persisted. A request for active never clears a
// flagged or high-risk student; suppressed is true when that happens.
func ReconcileStatus(current, requested Status) (next Status, suppressed bool) {
	if requested == StatusActive && current.Elevated() {
		return current, true
	}
	return requested, false
}

// EscalateStatus maps a freshly reported risk score onto a status. Scores
// only ever push a student upward: below FlaggedThreshold the status is kept,
// and a high-risk student is not moved back to flagged.
func EscalateStatus(current Status, riskScore int) Status {
	switch {
	case riskScore >= HighRiskThreshold:
		return StatusHighRisk
	case riskScore >= FlaggedThreshold:
		if current == StatusHighRisk {
			return current
		}
		return StatusFlagged
	default:
		return current
	}
}
