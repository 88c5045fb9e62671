package agent

import (
	"context"
	"strings"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
	"github.com/caucehq/cauce/provider"
)

// InfoAgent serves the default lane: greetings, business information and
// triage. When the conversation clearly crosses into another domain it hands
// the turn off instead of answering.
type InfoAgent struct {
	lane lane.Lane
}

var _ Agent = (*InfoAgent)(nil)

func (a *InfoAgent) Handle(_ context.Context, t *turn.Turn, _ *state.Session, intent string) (*Response, error) {
	switch {
	case intent == "start_order" || containsAny(t.Text, "ordenar", "comprar", "pedir"):
		return &Response{
			Messages: []provider.Outbound{provider.Text("¡Con gusto! Te paso con el equipo de ventas.")},
			Baton: &Baton{
				Target:  lane.Commerce,
				Payload: map[string]any{PayloadIntent: "start_order"},
			},
		}, nil
	case intent == "support_request" || containsAny(t.Text, "problema", "reclamo", "queja"):
		return &Response{
			Messages: []provider.Outbound{provider.Text("Lamento el inconveniente, te comunico con soporte.")},
			Baton: &Baton{
				Target:  lane.Support,
				Payload: map[string]any{PayloadIntent: "open_case"},
			},
		}, nil
	case intent == "greeting":
		return &Response{
			Messages: []provider.Outbound{provider.Text("¡Hola! Soy el asistente de la tienda. ¿En qué puedo ayudarte hoy?")},
		}, nil
	default:
		return &Response{
			Messages: []provider.Outbound{provider.Text("Con gusto te ayudo. Cuéntame qué necesitas: hacer un pedido, consultar un envío o hablar con soporte.")},
		}, nil
	}
}

func containsAny(text string, words ...string) bool {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
