package state

import (
	"bytes"
	"encoding/json"
	"log/slog"
)

// Localization defaults for new sessions.
const (
	DefaultLocale   = "es-CO"
	DefaultTimezone = "America/Bogota"
	DefaultCurrency = "COP"
)

// Builder creates and hydrates sessions, filling defaults so every consumer
// sees a complete document.
type Builder struct {
	lanes Lanes
}

// NewBuilder builds a session builder over the configured lane set.
func NewBuilder(lanes Lanes) *Builder {
	return &Builder{lanes: lanes}
}

// defaults returns a complete session with no identity. Every call allocates
// fresh nested values; callers own the result.
func (b *Builder) defaults() *Session {
	return &Session{
		Locale:      DefaultLocale,
		Timezone:    DefaultTimezone,
		CurrentLane: string(b.lanes.Default()),
		Flags:       map[string]bool{},
		Turns:       []Entry{},
		Cart: Cart{
			Items:    []map[string]any{},
			Currency: DefaultCurrency,
		},
		Order: Order{
			LookupHistory: []map[string]any{},
		},
		Support: Support{
			CaseHistory: []map[string]any{},
		},
	}
}

// NewSession creates a fresh session for a conversation. Empty locale or
// timezone keep the defaults.
func (b *Builder) NewSession(tenantID, waID, locale, timezone string) *Session {
	s := b.defaults()
	s.TenantID = tenantID
	s.WaID = waID
	if locale != "" {
		s.Locale = locale
	}
	if timezone != "" {
		s.Timezone = timezone
	}
	return s
}

// FromJSON hydrates a stored session document over the defaults: keys present
// in the document win, missing keys keep their defaults, nested objects merge
// per field. Empty or malformed input yields a fresh default session rather
// than an error; the validator decides what happens next.
func (b *Builder) FromJSON(raw []byte) *Session {
	s := b.defaults()
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return s
	}
	if err := json.Unmarshal(trimmed, s); err != nil {
		slog.Warn("session: discarding malformed document", "error", err)
		return b.defaults()
	}
	return s
}
