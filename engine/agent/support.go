package agent

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
	"github.com/caucehq/cauce/provider"
)

// Support case statuses.
const (
	CaseOpen      = "open"
	CaseEscalated = "escalated"
)

// SupportAgent serves the support lane: it opens one case per conversation
// and escalates to a human when asked.
type SupportAgent struct {
	lane lane.Lane
}

var _ Agent = (*SupportAgent)(nil)

func (a *SupportAgent) Handle(_ context.Context, t *turn.Turn, sess *state.Session, intent string) (*Response, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	if intent == "human_handoff" || containsAny(t.Text, "humano", "asesor", "persona") {
		support := sess.Support
		support.CaseStatus = CaseEscalated
		support.EscalationLevel = sess.Support.EscalationLevel + 1
		flags := make(map[string]bool, len(sess.Flags)+1)
		for k, v := range sess.Flags {
			flags[k] = v
		}
		flags["human_handoff"] = true
		return &Response{
			Messages: []provider.Outbound{
				provider.Text("Entendido, un asesor humano continuará esta conversación en breve."),
			},
			StatePatch: map[string]any{
				"support": support,
				"flags":   flags,
			},
		}, nil
	}

	if sess.Support.ActiveCaseID != "" {
		return &Response{
			Messages: []provider.Outbound{
				provider.Text("Tu caso " + sess.Support.ActiveCaseID + " sigue abierto. Hemos agregado tu mensaje al historial."),
			},
			StatePatch: map[string]any{
				"last_tool": map[string]any{"name": "case_update", "case_id": sess.Support.ActiveCaseID, "at": now},
			},
		}, nil
	}

	caseID := "case_" + shortuuid.New()
	support := sess.Support
	support.ActiveCaseID = caseID
	support.CaseStatus = CaseOpen
	support.CaseHistory = append(append([]map[string]any{}, sess.Support.CaseHistory...), map[string]any{
		"case_id":   caseID,
		"opened_at": now,
		"summary":   t.Text,
	})
	return &Response{
		Messages: []provider.Outbound{
			provider.Text("He abierto el caso " + caseID + ". Cuéntame más detalles para ayudarte mejor."),
		},
		StatePatch: map[string]any{"support": support},
	}, nil
}
