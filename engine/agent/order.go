package agent

import (
	"context"
	"time"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
	"github.com/caucehq/cauce/provider"
)

// OrderAgent serves the order lane: lookups and identity verification.
// Every lookup is recorded in the order slice of the session.
type OrderAgent struct {
	lane lane.Lane
}

var _ Agent = (*OrderAgent)(nil)

func (a *OrderAgent) Handle(_ context.Context, t *turn.Turn, sess *state.Session, intent string) (*Response, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	if intent == "verify_identity" {
		order := sess.Order
		order.Verified = true
		order.VerifiedAt = now
		return &Response{
			Messages: []provider.Outbound{
				provider.Text("¡Listo! Verificamos tu identidad. Ya puedo darte los detalles de tus pedidos."),
			},
			StatePatch: map[string]any{
				"order":          order,
				"phone_verified": true,
			},
		}, nil
	}

	if !sess.Order.Verified {
		return &Response{
			Messages: []provider.Outbound{
				provider.Text("Para consultar tu pedido primero necesito verificar tu identidad. ¿Me confirmas el número de teléfono de la compra?"),
			},
		}, nil
	}

	lookup := map[string]any{
		"message_id": t.MessageID,
		"query":      t.Text,
		"at":         now,
	}
	order := sess.Order
	order.LastLookup = lookup
	order.LookupHistory = append(append([]map[string]any{}, sess.Order.LookupHistory...), lookup)
	return &Response{
		Messages: []provider.Outbound{
			provider.Text("Tu pedido está en camino. Te avisaremos cuando salga a reparto."),
		},
		StatePatch: map[string]any{
			"order":     order,
			"last_tool": map[string]any{"name": "order_lookup", "at": now},
		},
	}, nil
}
