package state

import (
	"fmt"

	"github.com/caucehq/cauce/engine/lane"
)

// ValidationError describes why a session failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Validator enforces the structural invariants required before a turn may be
// processed. It is deliberately minimal; agent-specific invariants belong to
// the agents.
type Validator struct {
	lanes Lanes
}

// NewValidator builds a validator over the configured lane set.
func NewValidator(lanes Lanes) *Validator {
	return &Validator{lanes: lanes}
}

// Validate returns a ValidationError when the session must not be processed.
func (v *Validator) Validate(s *Session) error {
	if s == nil {
		return &ValidationError{Field: "session", Reason: "missing"}
	}
	if s.TenantID == "" {
		return &ValidationError{Field: "tenant_id", Reason: "required"}
	}
	if s.WaID == "" {
		return &ValidationError{Field: "wa_id", Reason: "required"}
	}
	if !v.lanes.Has(lane.Lane(s.CurrentLane)) {
		return &ValidationError{
			Field:  "current_lane",
			Reason: fmt.Sprintf("%q is not a configured lane", s.CurrentLane),
		}
	}
	return nil
}
