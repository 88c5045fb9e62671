package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
	"github.com/caucehq/cauce/provider"
)

// Commerce conversation phases tracked in commerce_state.
const (
	CommerceBrowsing   = "browsing"
	CommerceCheckout   = "checkout"
	CommerceQuoteGiven = "quote_given"
)

// CommerceAgent serves the sales lane: catalog, cart and quotes. Order
// status questions are handed off to the order lane.
type CommerceAgent struct {
	lane lane.Lane
}

var _ Agent = (*CommerceAgent)(nil)

func (a *CommerceAgent) Handle(_ context.Context, t *turn.Turn, sess *state.Session, intent string) (*Response, error) {
	switch intent {
	case "order_status", "track_order":
		return &Response{
			Messages: []provider.Outbound{provider.Text("Déjame consultar el estado de tu pedido.")},
			Baton: &Baton{
				Target:  lane.Order,
				Payload: map[string]any{PayloadIntent: "order_lookup"},
			},
		}, nil

	case "add_to_cart":
		cart := sess.Cart
		item := map[string]any{"source_message_id": t.MessageID}
		if t.Payload != nil {
			if sku, ok := t.Payload["payload"].(string); ok {
				item["sku"] = sku
			}
		}
		cart.Items = append(append([]map[string]any{}, sess.Cart.Items...), item)
		return &Response{
			Messages: []provider.Outbound{
				provider.Text(fmt.Sprintf("Agregado al carrito. Llevas %d producto(s).", len(cart.Items))),
			},
			StatePatch: map[string]any{
				"cart":           cart,
				"commerce_state": CommerceBrowsing,
			},
		}, nil

	case "request_quote":
		quote := map[string]any{
			"items":          len(sess.Cart.Items),
			"subtotal_cents": sess.Cart.SubtotalCents,
			"currency":       sess.Cart.Currency,
			"quoted_at":      time.Now().UTC().Format(time.RFC3339),
		}
		return &Response{
			Messages: []provider.Outbound{provider.Text("Aquí tienes tu cotización. ¿Confirmamos el pedido?")},
			StatePatch: map[string]any{
				"last_quote":     quote,
				"commerce_state": CommerceQuoteGiven,
			},
		}, nil

	default:
		// start_order and everything else opens the browsing phase.
		return &Response{
			Messages: []provider.Outbound{
				provider.Text("¡Perfecto! Este es nuestro catálogo. Escríbeme el producto que te interesa."),
			},
			StatePatch: map[string]any{"commerce_state": CommerceBrowsing},
		}, nil
	}
}
