// Package router classifies each turn into a lane and intent. Route is total:
// every failure path converges on a fallback decision for the default lane,
// so the controller never observes a router error.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/llm"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
)

// Classifier is the structured-output LLM call the router depends on.
// *llm.Client satisfies it.
type Classifier interface {
	CompleteJSON(ctx context.Context, system, user, schemaName string, schema *llm.JSONSchema) (string, error)
}

// Service is the intent router. A nil classifier leaves the service in
// fallback-only mode; it still produces valid decisions.
type Service struct {
	classifier Classifier
	lanes      *lane.Config
	limiter    *rate.Limiter
}

// Config tunes the router service.
type Config struct {
	// Classifier may be nil when no LLM is configured.
	Classifier Classifier
	// RPS bounds classification calls per second (default: 8).
	RPS int
}

// NewService builds a router over the configured lane set.
func NewService(lanes *lane.Config, cfg Config) *Service {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 8
	}
	return &Service{
		classifier: cfg.Classifier,
		lanes:      lanes,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
	}
}

// Route returns the decision for one turn. It never fails.
func (s *Service) Route(ctx context.Context, t *turn.Turn, sess *state.Session) Decision {
	if s.classifier == nil {
		return s.fallback("config_error:classifier not configured")
	}
	if !s.limiter.Allow() {
		return s.fallback("router_error:RateLimited")
	}

	raw, err := s.classifier.CompleteJSON(ctx, s.systemPrompt(), s.userMessage(t, sess), "route_decision", decisionSchema(s.lanes))
	if err != nil {
		// Log the error class only; payloads and credentials stay out of
		// the log stream.
		kind := errKind(err)
		slog.Warn("router: classification failed, using fallback",
			"tenant_id", t.TenantID, "message_id", t.MessageID, "error_kind", kind)
		return s.fallback("router_error:" + kind)
	}

	var decoded struct {
		Lane       string  `json:"lane"`
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
		Reasoning  []any   `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		slog.Warn("router: undecodable classification, using fallback",
			"tenant_id", t.TenantID, "message_id", t.MessageID, "error_kind", errKind(err))
		return s.fallback("router_error:" + errKind(err))
	}

	return s.sanitize(decoded.Lane, decoded.Intent, decoded.Confidence, decoded.Reasoning)
}

// sanitize normalizes a classification into a valid decision: the lane snaps
// to the default when unknown, confidence clamps into [0,1], reasons truncate
// to five string-coerced entries.
func (s *Service) sanitize(laneID, intent string, confidence float64, reasoning []any) Decision {
	l := lane.Lane(laneID)
	if !s.lanes.Has(l) {
		slog.Debug("router: unknown lane from classifier, snapping to default", "lane", laneID)
		l = s.lanes.Default()
	}
	if intent == "" {
		intent = FallbackIntent
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	if len(reasoning) > maxReasons {
		reasoning = reasoning[:maxReasons]
	}
	reasons := make([]string, 0, len(reasoning))
	for _, r := range reasoning {
		if str, ok := r.(string); ok {
			reasons = append(reasons, str)
		} else {
			reasons = append(reasons, fmt.Sprint(r))
		}
	}
	return Decision{Lane: l, Intent: intent, Confidence: confidence, Reasons: reasons}
}

// fallback is the safe decision for the default lane. reason is either
// "router_error:<ErrorKind>" or "config_error:<msg>".
func (s *Service) fallback(reason string) Decision {
	return Decision{
		Lane:       s.lanes.Default(),
		Intent:     FallbackIntent,
		Confidence: 0.2,
		Reasons:    []string{reason},
	}
}

func (s *Service) systemPrompt() string {
	var b strings.Builder
	b.WriteString("You route inbound WhatsApp messages for a business assistant to exactly one lane.\n")
	b.WriteString("Lanes:\n")
	for _, l := range s.lanes.Lanes() {
		def, _ := s.lanes.Get(l)
		fmt.Fprintf(&b, "- %s: %s\n", l, def.Description)
	}
	b.WriteString("Pick the lane, name the user's intent with a short snake_case label, ")
	b.WriteString("report your confidence in [0,1], and give up to five short reasons.")
	return b.String()
}

// userMessage combines the compact state summary with the user's message.
func (s *Service) userMessage(t *turn.Turn, sess *state.Session) string {
	summary := map[string]any{
		"tenant_id":        sess.TenantID,
		"wa_id":            sess.WaID,
		"locale":           sess.Locale,
		"current_lane":     sess.CurrentLane,
		"phone_verified":   sess.PhoneVerified,
		"address_present":  addressPresent(sess),
		"cart_items_count": len(sess.Cart.Items),
		"commerce_state":   sess.CommerceState,
		"order_verified":   sess.Order.Verified,
		"active_case_id":   sess.Support.ActiveCaseID,
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		raw = []byte("{}")
	}
	var b strings.Builder
	b.WriteString("Session summary:\n")
	b.Write(raw)
	b.WriteString("\n\nUser message:\n")
	b.WriteString(t.Text)
	return b.String()
}

func addressPresent(sess *state.Session) bool {
	if sess.Extras == nil {
		return false
	}
	_, ok := sess.Extras["address"]
	return ok
}

// decisionSchema constrains the classifier output to the decision shape.
func decisionSchema(lanes *lane.Config) *llm.JSONSchema {
	ids := make([]string, 0)
	for _, l := range lanes.Lanes() {
		ids = append(ids, string(l))
	}
	return &llm.JSONSchema{
		Type: "object",
		Properties: map[string]*llm.JSONSchema{
			"lane": {
				Type:        "string",
				Enum:        ids,
				Description: "Target lane id.",
			},
			"intent": {
				Type:        "string",
				Description: "Short snake_case intent label.",
			},
			"confidence": {
				Type:        "number",
				Description: "Classification confidence in [0,1].",
			},
			"reasoning": {
				Type:     "array",
				Items:    &llm.JSONSchema{Type: "string"},
				MaxItems: maxReasons,
			},
		},
		Required: []string{"lane", "intent", "confidence"},
	}
}

// errKind reduces an error to its type name for logging and fallback reasons.
func errKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "Timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "Canceled"
	}
	kind := fmt.Sprintf("%T", err)
	kind = strings.TrimLeft(kind, "*")
	if i := strings.LastIndex(kind, "."); i >= 0 {
		kind = kind[i+1:]
	}
	if kind == "errorString" || kind == "wrapError" {
		return "Error"
	}
	return kind
}
