package models

import "time"

// Result statuses carried on the wire envelope.
const (
	StatusSuccess         = "success"
	StatusError           = "error"
	StatusPaymentRequired = "payment_required"
)

// SkillResult is the wire envelope returned for every tools/call.
// The gateway never inspects Data beyond this shape.
type SkillResult struct {
	Status    string         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// PaymentRequiredResult returns the fixed premium stub response.
// Identical shape regardless of which premium skill was called; it carries
// no implementation details of the skill behind the paywall.
func PaymentRequiredResult() *SkillResult {
	return &SkillResult{
		Status:    StatusPaymentRequired,
		Error:     "a valid premium credential is required for this skill",
		Timestamp: time.Now().UTC(),
	}
}
