package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
)

func newSession(t *testing.T) *state.Session {
	t.Helper()
	lanes, err := lane.Load("")
	require.NoError(t, err)
	return state.NewBuilder(lanes).NewSession("T1", "U1", "", "")
}

func userTurn(text string) *turn.Turn {
	return &turn.Turn{TenantID: "T1", WaID: "U1", MessageID: "m1", Text: text, Timestamp: "2025-01-01T00:00:00Z"}
}

func TestInfoAgentGreeting(t *testing.T) {
	a := &InfoAgent{lane: lane.Info}
	resp, err := a.Handle(context.Background(), userTurn("Hola"), newSession(t), "greeting")
	require.NoError(t, err)
	require.Len(t, resp.Messages, 1)
	assert.Nil(t, resp.Baton)
	assert.Empty(t, resp.StatePatch)
}

func TestInfoAgentHandsOffToCommerce(t *testing.T) {
	a := &InfoAgent{lane: lane.Info}
	resp, err := a.Handle(context.Background(), userTurn("Quiero ordenar dos pizzas"), newSession(t), "start_order")
	require.NoError(t, err)
	require.NotNil(t, resp.Baton)
	assert.Equal(t, lane.Commerce, resp.Baton.Target)
	assert.Equal(t, "start_order", resp.Baton.Payload[PayloadIntent])
}

func TestInfoAgentHandsOffToSupport(t *testing.T) {
	a := &InfoAgent{lane: lane.Info}
	resp, err := a.Handle(context.Background(), userTurn("Tengo un problema con mi compra"), newSession(t), "general_info")
	require.NoError(t, err)
	require.NotNil(t, resp.Baton)
	assert.Equal(t, lane.Support, resp.Baton.Target)
}

func TestCommerceAgentStartOrder(t *testing.T) {
	a := &CommerceAgent{lane: lane.Commerce}
	resp, err := a.Handle(context.Background(), userTurn("Quiero ordenar"), newSession(t), "start_order")
	require.NoError(t, err)
	assert.Equal(t, CommerceBrowsing, resp.StatePatch["commerce_state"])
	assert.Nil(t, resp.Baton)
}

func TestCommerceAgentAddToCart(t *testing.T) {
	a := &CommerceAgent{lane: lane.Commerce}
	sess := newSession(t)
	tn := userTurn("ese")
	tn.Payload = map[string]any{"type": "button", "payload": "SKU-42"}

	resp, err := a.Handle(context.Background(), tn, sess, "add_to_cart")
	require.NoError(t, err)

	cart, ok := resp.StatePatch["cart"].(state.Cart)
	require.True(t, ok)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "SKU-42", cart.Items[0]["sku"])
	assert.Empty(t, sess.Cart.Items, "agent must not mutate the session")
}

func TestCommerceAgentHandsOffOrderStatus(t *testing.T) {
	a := &CommerceAgent{lane: lane.Commerce}
	resp, err := a.Handle(context.Background(), userTurn("¿Dónde está mi pedido?"), newSession(t), "order_status")
	require.NoError(t, err)
	require.NotNil(t, resp.Baton)
	assert.Equal(t, lane.Order, resp.Baton.Target)
	assert.Equal(t, "order_lookup", resp.Baton.Payload[PayloadIntent])
}

func TestSupportAgentOpensCase(t *testing.T) {
	a := &SupportAgent{lane: lane.Support}
	resp, err := a.Handle(context.Background(), userTurn("Llegó roto"), newSession(t), "open_case")
	require.NoError(t, err)

	support, ok := resp.StatePatch["support"].(state.Support)
	require.True(t, ok)
	assert.NotEmpty(t, support.ActiveCaseID)
	assert.Equal(t, CaseOpen, support.CaseStatus)
	require.Len(t, support.CaseHistory, 1)
}

func TestSupportAgentReusesOpenCase(t *testing.T) {
	a := &SupportAgent{lane: lane.Support}
	sess := newSession(t)
	sess.Support.ActiveCaseID = "case_abc"
	sess.Support.CaseStatus = CaseOpen

	resp, err := a.Handle(context.Background(), userTurn("Sigue sin llegar"), sess, "case_update")
	require.NoError(t, err)
	assert.NotContains(t, resp.StatePatch, "support", "no second case opened")
	require.Len(t, resp.Messages, 1)
	assert.Contains(t, resp.Messages[0].Body, "case_abc")
}

func TestSupportAgentEscalatesToHuman(t *testing.T) {
	a := &SupportAgent{lane: lane.Support}
	resp, err := a.Handle(context.Background(), userTurn("Quiero hablar con un humano"), newSession(t), "human_handoff")
	require.NoError(t, err)

	flags, ok := resp.StatePatch["flags"].(map[string]bool)
	require.True(t, ok)
	assert.True(t, flags["human_handoff"])
	support := resp.StatePatch["support"].(state.Support)
	assert.Equal(t, CaseEscalated, support.CaseStatus)
	assert.Equal(t, 1, support.EscalationLevel)
}

func TestOrderAgentRequiresVerification(t *testing.T) {
	a := &OrderAgent{lane: lane.Order}
	resp, err := a.Handle(context.Background(), userTurn("¿Dónde va mi pedido?"), newSession(t), "order_lookup")
	require.NoError(t, err)
	assert.Empty(t, resp.StatePatch)
	require.Len(t, resp.Messages, 1)
}

func TestOrderAgentVerifiesAndLooksUp(t *testing.T) {
	a := &OrderAgent{lane: lane.Order}
	sess := newSession(t)

	resp, err := a.Handle(context.Background(), userTurn("300-555"), sess, "verify_identity")
	require.NoError(t, err)
	order := resp.StatePatch["order"].(state.Order)
	assert.True(t, order.Verified)
	assert.Equal(t, true, resp.StatePatch["phone_verified"])

	sess.Order = order
	resp, err = a.Handle(context.Background(), userTurn("¿Dónde va?"), sess, "order_lookup")
	require.NoError(t, err)
	order = resp.StatePatch["order"].(state.Order)
	require.Len(t, order.LookupHistory, 1)
	assert.Equal(t, "m1", order.LastLookup["message_id"])
}
