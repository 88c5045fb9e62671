// Package state defines the per-conversation session contract: the document
// persisted between turns, the builder that creates and hydrates it, and the
// validator that gates turn processing.
//
// The session is a flat JSON document. Known keys map to typed fields;
// agent-specific top-level keys round-trip through Extras untouched.
package state

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/provider"
)

// Dialogue entry roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Entry is one element of the session dialogue log. User entries carry
// message_id/text/payload; assistant entries carry lane/messages.
type Entry struct {
	Role      string              `json:"role"`
	MessageID string              `json:"message_id,omitempty"`
	Text      string              `json:"text,omitempty"`
	Payload   map[string]any      `json:"payload,omitempty"`
	Lane      string              `json:"lane,omitempty"`
	Messages  []provider.Outbound `json:"messages,omitempty"`
	Timestamp string              `json:"timestamp"`
}

// Cart is the commerce slice of the session.
type Cart struct {
	Items         []map[string]any `json:"items"`
	SubtotalCents int64            `json:"subtotal_cents"`
	Currency      string           `json:"currency"`
}

// Order tracks order verification and lookups.
type Order struct {
	Verified      bool             `json:"verified"`
	VerifiedAt    string           `json:"verified_at,omitempty"`
	LastLookup    map[string]any   `json:"last_lookup,omitempty"`
	LookupHistory []map[string]any `json:"lookup_history"`
}

// Support tracks the active support case.
type Support struct {
	ActiveCaseID    string           `json:"active_case_id,omitempty"`
	CaseStatus      string           `json:"case_status,omitempty"`
	EscalationLevel int              `json:"escalation_level"`
	CaseHistory     []map[string]any `json:"case_history"`
}

// Session is the per-(tenant, user) conversational state. It is mutated only
// by the turn controller and persisted as a single JSON document.
type Session struct {
	TenantID       string          `json:"tenant_id"`
	WaID           string          `json:"wa_id"`
	Locale         string          `json:"locale"`
	Timezone       string          `json:"timezone"`
	CurrentLane    string          `json:"current_lane"`
	CustomerID     string          `json:"customer_id,omitempty"`
	PhoneVerified  bool            `json:"phone_verified"`
	LanguageLocked bool            `json:"language_locked"`
	Flags          map[string]bool `json:"flags"`
	Turns          []Entry         `json:"turns"`
	LastUserMsgID  string          `json:"last_user_msg_id,omitempty"`
	Cart           Cart            `json:"cart"`
	CommerceState  string          `json:"commerce_state,omitempty"`
	LastQuote      map[string]any  `json:"last_quote,omitempty"`
	Order          Order           `json:"order"`
	Support        Support         `json:"support"`
	LastTool       map[string]any  `json:"last_tool,omitempty"`
	UpdatedAt      string          `json:"updated_at"`

	// Extras holds agent-specific top-level keys outside the known layout.
	Extras map[string]any `json:"-"`
}

// knownSessionKeys lists every JSON key owned by a typed Session field.
// Keys outside this set live in Extras.
var knownSessionKeys = map[string]bool{
	"tenant_id":        true,
	"wa_id":            true,
	"locale":           true,
	"timezone":         true,
	"current_lane":     true,
	"customer_id":      true,
	"phone_verified":   true,
	"language_locked":  true,
	"flags":            true,
	"turns":            true,
	"last_user_msg_id": true,
	"cart":             true,
	"commerce_state":   true,
	"last_quote":       true,
	"order":            true,
	"support":          true,
	"last_tool":        true,
	"updated_at":       true,
}

// sessionAlias strips Session's methods so the codec can recurse safely.
type sessionAlias Session

// MarshalJSON emits the flat document, folding Extras back into the top
// level. Known keys always win over a colliding extra.
func (s *Session) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal((*sessionAlias)(s))
	if err != nil {
		return nil, err
	}
	if len(s.Extras) == 0 {
		return base, nil
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(base, &doc); err != nil {
		return nil, err
	}
	for k, v := range s.Extras {
		if knownSessionKeys[k] {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("extra %q: %w", k, err)
		}
		doc[k] = raw
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the known fields in place and collects unknown top
// level keys into Extras. Decoding into a pre-populated session merges:
// absent keys keep their current values, nested objects merge per field,
// arrays and scalars are replaced wholesale.
func (s *Session) UnmarshalJSON(b []byte) error {
	if err := json.Unmarshal(b, (*sessionAlias)(s)); err != nil {
		return err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	for k, raw := range doc {
		if knownSessionKeys[k] {
			continue
		}
		var val any
		if err := json.Unmarshal(raw, &val); err != nil {
			return fmt.Errorf("extra %q: %w", k, err)
		}
		if s.Extras == nil {
			s.Extras = make(map[string]any)
		}
		s.Extras[k] = val
	}
	return nil
}

// ApplyPatch shallow-merges a flat patch into the session: each top-level key
// replaces the current value wholesale. Known keys decode into their typed
// fields; unknown keys land in Extras. An empty patch is a no-op.
func (s *Session) ApplyPatch(patch map[string]any) error {
	for k, v := range patch {
		if err := s.setField(k, v); err != nil {
			return fmt.Errorf("patch %q: %w", k, err)
		}
	}
	return nil
}

func (s *Session) setField(key string, v any) error {
	switch key {
	case "tenant_id":
		return assign(&s.TenantID, v)
	case "wa_id":
		return assign(&s.WaID, v)
	case "locale":
		return assign(&s.Locale, v)
	case "timezone":
		return assign(&s.Timezone, v)
	case "current_lane":
		return assign(&s.CurrentLane, v)
	case "customer_id":
		return assign(&s.CustomerID, v)
	case "phone_verified":
		return assign(&s.PhoneVerified, v)
	case "language_locked":
		return assign(&s.LanguageLocked, v)
	case "flags":
		return assign(&s.Flags, v)
	case "turns":
		return assign(&s.Turns, v)
	case "last_user_msg_id":
		return assign(&s.LastUserMsgID, v)
	case "cart":
		return assign(&s.Cart, v)
	case "commerce_state":
		return assign(&s.CommerceState, v)
	case "last_quote":
		return assign(&s.LastQuote, v)
	case "order":
		return assign(&s.Order, v)
	case "support":
		return assign(&s.Support, v)
	case "last_tool":
		return assign(&s.LastTool, v)
	case "updated_at":
		return assign(&s.UpdatedAt, v)
	default:
		if s.Extras == nil {
			s.Extras = make(map[string]any)
		}
		s.Extras[key] = v
		return nil
	}
}

// assign replaces *dst with v decoded through JSON, so patches written as
// generic maps land in the typed fields exactly as they would from storage.
func assign[T any](dst *T, v any) error {
	if direct, ok := v.(T); ok {
		*dst = direct
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fresh T
	if err := json.Unmarshal(raw, &fresh); err != nil {
		return err
	}
	*dst = fresh
	return nil
}

// AppendUser appends the inbound user entry for the current turn.
func (s *Session) AppendUser(messageID, text string, payload map[string]any, timestamp string) {
	s.Turns = append(s.Turns, Entry{
		Role:      RoleUser,
		MessageID: messageID,
		Text:      text,
		Payload:   payload,
		Timestamp: timestamp,
	})
}

// AppendAssistant appends the assistant entry produced by one agent hop.
func (s *Session) AppendAssistant(l string, messages []provider.Outbound, timestamp string) {
	s.Turns = append(s.Turns, Entry{
		Role:      RoleAssistant,
		Lane:      l,
		Messages:  messages,
		Timestamp: timestamp,
	})
}

// Touch refreshes the persistence timestamp.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC().Format(time.RFC3339)
}

// Lanes is the slice of the lane configuration the state layer needs.
type Lanes interface {
	Has(l lane.Lane) bool
	Default() lane.Lane
}
