package provider

import (
	"context"
	"log/slog"
)

// Outbound is a single reply handed to the Sender for delivery. Values must
// survive a JSON round-trip; agents render richer provider objects into
// Params before returning them.
type Outbound struct {
	Type   string         `json:"type"`
	Body   string         `json:"body,omitempty"`
	Params map[string]any `json:"params,omitempty"`
}

// Text builds a plain text outbound message.
func Text(body string) Outbound {
	return Outbound{Type: "text", Body: body}
}

// Sender delivers outbound messages to the provider API. Delivery is out of
// the orchestration core's hands: implementations own retries, template
// mapping and provider session rules.
type Sender interface {
	Send(ctx context.Context, tenantID, waID string, messages []Outbound) error
}

// NopSender accepts every delivery and drops it. It stands in for the real
// delivery service in development and tests.
type NopSender struct{}

var _ Sender = NopSender{}

func (NopSender) Send(_ context.Context, tenantID, waID string, messages []Outbound) error {
	slog.Debug("sender: delivery handed off", "tenant_id", tenantID, "wa_id", waID, "count", len(messages))
	return nil
}
