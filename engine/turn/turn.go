// Package turn normalizes stored provider message records into the turn
// value consumed by the orchestration engine.
package turn

// Turn is one inbound user message normalized for processing. Text always
// holds a human-readable rendering, with placeholders synthesized for
// non-text message types.
type Turn struct {
	TenantID  string         `json:"tenant_id"`
	WaID      string         `json:"wa_id"`
	MessageID string         `json:"message_id"`
	Text      string         `json:"text"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp string         `json:"timestamp"`
}
