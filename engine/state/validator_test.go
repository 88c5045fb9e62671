package state

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	lanes := testLanes(t)
	b := NewBuilder(lanes)
	v := NewValidator(lanes)

	tests := []struct {
		name      string
		mutate    func(*Session)
		wantField string
	}{
		{
			name:   "fresh session is valid",
			mutate: func(*Session) {},
		},
		{
			name:      "missing tenant",
			mutate:    func(s *Session) { s.TenantID = "" },
			wantField: "tenant_id",
		},
		{
			name:      "missing wa id",
			mutate:    func(s *Session) { s.WaID = "" },
			wantField: "wa_id",
		},
		{
			name:      "unconfigured lane",
			mutate:    func(s *Session) { s.CurrentLane = "BOGUS" },
			wantField: "current_lane",
		},
		{
			name:      "empty lane",
			mutate:    func(s *Session) { s.CurrentLane = "" },
			wantField: "current_lane",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := b.NewSession("T1", "U1", "", "")
			tt.mutate(s)
			err := v.Validate(s)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if verr.Field != tt.wantField {
				t.Fatalf("Validate() field = %q, want %q", verr.Field, tt.wantField)
			}
			if !strings.Contains(verr.Error(), tt.wantField) {
				t.Fatalf("error text %q does not name the field", verr.Error())
			}
		})
	}
}

func TestValidateNilSession(t *testing.T) {
	v := NewValidator(testLanes(t))
	if err := v.Validate(nil); err == nil {
		t.Fatal("Validate(nil) = nil, want error")
	}
}

// A new session must survive a serialize/hydrate cycle and still validate.
func TestValidatorFixpoint(t *testing.T) {
	lanes := testLanes(t)
	b := NewBuilder(lanes)
	v := NewValidator(lanes)

	raw, err := json.Marshal(b.NewSession("T1", "U1", "", ""))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := v.Validate(b.FromJSON(raw)); err != nil {
		t.Fatalf("Validate(FromJSON(Marshal(NewSession))) = %v, want nil", err)
	}
}
