// internal/models/lifecycle.go
package models

import "time"

// Phase is the lifecycle state of a form session. Exactly one is active.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// Snapshot is an immutable copy of a form session's state, handed to
// renderers and subscribers.
//
// Script is the last successfully generated script; it survives later
// Pending and Failed phases.
type Snapshot struct {
	SessionID string           `json:"session_id"`
	Phase     Phase            `json:"phase"`
	Form      FormInput        `json:"form"`
	Attempt   uint64           `json:"attempt"`
	Error     string           `json:"error,omitempty"`
	ErrorKind string           `json:"error_kind,omitempty"`
	Script    *GeneratedScript `json:"script,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Pending reports whether a request is in flight.
func (s Snapshot) Pending() bool { return s.Phase == PhasePending }
