package audit

import "time"

// Actions recorded by the biometric workflows.
const (
	ActionEnroll       = "biometric.enroll"
	ActionAuthenticate = "biometric.authenticate"
	ActionDelete       = "biometric.delete"
	ActionCleanup      = "biometric.cleanup"
)

// Decisions attached to events.
const (
	DecisionAllowed = "allowed"
	DecisionDenied  = "denied"
	DecisionError   = "error"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	ActorID   string    `json:"actor_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Modality  string    `json:"modality,omitempty"`
	Action    string    `json:"action"`
	Decision  string    `json:"decision"`
	Reason    string    `json:"reason,omitempty"`
}
