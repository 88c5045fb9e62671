// Package controller implements the turn orchestration core: idempotent turn
// processing, the baton-bounded agent loop, and session persistence.
package controller

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/caucehq/cauce/engine/agent"
	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/metrics"
	"github.com/caucehq/cauce/engine/router"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
	"github.com/caucehq/cauce/provider"
	"github.com/caucehq/cauce/store"
)

// Engine defaults.
const (
	// DefaultSessionTTL bounds session lifetime; refreshed on every persist.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultIdempotencyTTL bounds the processed-turn markers. Provider
	// redeliveries arrive well inside this window.
	DefaultIdempotencyTTL = time.Hour
	// MaxBatonHops bounds handoffs after the initial agent invocation, so a
	// turn runs at most 1+MaxBatonHops agents.
	MaxBatonHops = 2
)

// Baton stop reasons, logged as baton_stop events.
const (
	StopHopLimit        = "hop_limit"
	StopInvalidLane     = "invalid_lane"
	StopSameLaneHandoff = "same_lane_handoff"
)

// ErrDuplicateTurn is the Result.Error value for replayed messages.
const ErrDuplicateTurn = "duplicate_turn"

// SessionKey is the store key of a conversation's session document.
func SessionKey(tenantID, waID string) string {
	return "session:" + tenantID + ":" + waID
}

// IdempotencyKey is the store key marking a message as processed.
func IdempotencyKey(messageID string) string {
	return "turn:processed:" + messageID
}

// Router produces the initial decision for a turn. It is total; failures are
// absorbed into fallback decisions before the controller sees them.
type Router interface {
	Route(ctx context.Context, t *turn.Turn, sess *state.Session) router.Decision
}

// Result is the outcome of one HandleTurn call.
type Result struct {
	Success  bool                `json:"success"`
	Error    string              `json:"error,omitempty"`
	Messages []provider.Outbound `json:"messages"`
	Lane     lane.Lane           `json:"lane,omitempty"`
}

// Deps are the collaborators injected at construction.
type Deps struct {
	Store     store.KV
	Router    Router
	Registry  *agent.Registry
	Builder   *state.Builder
	Validator *state.Validator
	Lanes     *lane.Config

	// Metrics may be nil.
	Metrics *metrics.Exporter
}

// Controller orchestrates one turn end to end. Safe for concurrent use.
type Controller struct {
	deps Deps

	sessionTTL     time.Duration
	idempotencyTTL time.Duration
	maxHops        int

	now func() time.Time
}

// New builds a controller with the engine defaults.
func New(deps Deps) *Controller {
	return &Controller{
		deps:           deps,
		sessionTTL:     DefaultSessionTTL,
		idempotencyTTL: DefaultIdempotencyTTL,
		maxHops:        MaxBatonHops,
		now:            time.Now,
	}
}

// HandleTurn processes one turn: idempotency gate, session load/create,
// validation, user append, the baton-bounded agent loop, and the processed
// marker. A non-nil error means a retryable infrastructure fault; every
// domain outcome lands in the Result.
func (c *Controller) HandleTurn(ctx context.Context, t *turn.Turn) (*Result, error) {
	start := c.now()
	log := slog.With(
		"turn_id", shortuuid.New(),
		"tenant_id", t.TenantID,
		"wa_id", t.WaID,
		"message_id", t.MessageID,
	)

	// 1. Idempotency gate. Inbound delivery is at-least-once.
	processed, err := c.exists(ctx, IdempotencyKey(t.MessageID))
	if err != nil {
		return nil, err
	}
	if processed {
		log.Info("turn already processed, skipping")
		return &Result{Success: true, Error: ErrDuplicateTurn, Messages: []provider.Outbound{}}, nil
	}

	// 2. Session load/create.
	sess, err := c.loadOrCreate(ctx, t)
	if err != nil {
		return nil, err
	}

	// 3. Validate. A corrupt session is recovered locally, never retried.
	if verr := c.deps.Validator.Validate(sess); verr != nil {
		log.Error("session validation failed, resetting session", "error", verr)
		fresh := c.deps.Builder.NewSession(t.TenantID, t.WaID, "", "")
		fresh.Touch(c.now())
		if err := c.persist(ctx, fresh); err != nil {
			return nil, err
		}
		if err := c.markProcessed(ctx, t.MessageID); err != nil {
			return nil, err
		}
		c.recordTurn(fresh.CurrentLane, start, false)
		return &Result{
			Success:  false,
			Error:    "Session validation failed: " + verr.Error(),
			Messages: []provider.Outbound{},
		}, nil
	}

	// 4. Append the user turn and persist before any agent runs, so the
	// inbound message survives downstream failures.
	sess.AppendUser(t.MessageID, t.Text, t.Payload, t.Timestamp)
	sess.LastUserMsgID = t.MessageID
	sess.Touch(c.now())
	if err := c.persist(ctx, sess); err != nil {
		return nil, err
	}

	// 5. Baton-bounded agent loop.
	hop := 0
	var baton *agent.Baton
	var decision router.Decision
	accumulated := []provider.Outbound{}

	for {
		if hop == 0 {
			decision = c.deps.Router.Route(ctx, t, sess)
			c.recordDecision(decision)
		} else {
			decision = synthesizeDecision(baton, decision)
		}
		log.Info("lane selected",
			"hop", hop,
			"lane", decision.Lane,
			"intent", decision.Intent,
			"confidence", decision.Confidence,
		)
		sess.CurrentLane = string(decision.Lane)

		ag, err := c.deps.Registry.ForLane(decision.Lane)
		if err != nil {
			return c.failTurn(ctx, log, t, start, decision.Lane, accumulated, err)
		}
		resp, err := ag.Handle(ctx, t, sess, decision.Intent)
		if err != nil {
			log.Error("agent failed", "lane", decision.Lane, "error", err)
			return c.failTurn(ctx, log, t, start, decision.Lane, accumulated, err)
		}
		if resp == nil {
			resp = &agent.Response{}
		}
		accumulated = append(accumulated, resp.Messages...)

		sess.AppendAssistant(string(decision.Lane), resp.Messages, c.now().UTC().Format(time.RFC3339))
		if err := sess.ApplyPatch(resp.StatePatch); err != nil {
			log.Error("agent patch rejected", "lane", decision.Lane, "error", err)
			return c.failTurn(ctx, log, t, start, decision.Lane, accumulated, err)
		}
		if resp.Baton != nil {
			if carry, ok := resp.Baton.Payload[agent.PayloadCarryState].(map[string]any); ok {
				if err := sess.ApplyPatch(carry); err != nil {
					log.Error("baton carry_state rejected", "lane", decision.Lane, "error", err)
					return c.failTurn(ctx, log, t, start, decision.Lane, accumulated, err)
				}
			}
		}

		sess.Touch(c.now())
		if err := c.persist(ctx, sess); err != nil {
			return nil, err
		}

		if resp.Baton == nil {
			break
		}
		if stop := c.batonStop(resp.Baton, hop, sess); stop != "" {
			log.Info("baton_stop",
				"reason", stop,
				"hop", hop,
				"from", decision.Lane,
				"target", resp.Baton.Target,
			)
			if c.deps.Metrics != nil {
				c.deps.Metrics.RecordBatonStop(stop)
			}
			break
		}
		baton = resp.Baton
		hop++
		if c.deps.Metrics != nil {
			c.deps.Metrics.RecordBatonHop()
		}
	}

	// 6. Mark processed only after the full loop, so a crash mid-turn lets
	// the scheduler retry.
	if err := c.markProcessed(ctx, t.MessageID); err != nil {
		return nil, err
	}

	// 7. Done.
	c.recordTurn(string(decision.Lane), start, true)
	return &Result{Success: true, Messages: accumulated, Lane: decision.Lane}, nil
}

// batonStop decides whether a baton may be followed. Empty means continue.
func (c *Controller) batonStop(b *agent.Baton, hop int, sess *state.Session) string {
	switch {
	case hop >= c.maxHops:
		return StopHopLimit
	case !c.deps.Lanes.Has(b.Target):
		return StopInvalidLane
	case string(b.Target) == sess.CurrentLane:
		return StopSameLaneHandoff
	default:
		return ""
	}
}

// synthesizeDecision derives the decision for a baton hop from the baton
// payload, falling back to the previous decision's values.
func synthesizeDecision(b *agent.Baton, previous router.Decision) router.Decision {
	d := router.Decision{
		Lane:       b.Target,
		Intent:     "follow_up",
		Confidence: 1.0,
		Reasons:    []string{"baton_handoff"},
	}
	if previous.Intent != "" {
		d.Intent = previous.Intent
	}
	if previous.Confidence > 0 {
		d.Confidence = previous.Confidence
	}
	if intent, ok := b.Payload[agent.PayloadIntent].(string); ok && intent != "" {
		d.Intent = intent
	}
	if confidence, ok := b.Payload[agent.PayloadConfidence].(float64); ok {
		d.Confidence = confidence
	}
	if reasons := coerceReasons(b.Payload[agent.PayloadReasons]); len(reasons) > 0 {
		d.Reasons = reasons
	}
	return d
}

func coerceReasons(v any) []string {
	switch raw := v.(type) {
	case []string:
		return raw
	case []any:
		reasons := make([]string, 0, len(raw))
		for _, r := range raw {
			if s, ok := r.(string); ok {
				reasons = append(reasons, s)
			}
		}
		return reasons
	default:
		return nil
	}
}

// failTurn finishes a turn after an agent-level failure: the inbound message
// is already persisted, the marker prevents an automatic replay of the same
// failure.
func (c *Controller) failTurn(ctx context.Context, log *slog.Logger, t *turn.Turn, start time.Time, l lane.Lane, messages []provider.Outbound, cause error) (*Result, error) {
	if err := c.markProcessed(ctx, t.MessageID); err != nil {
		return nil, err
	}
	log.Warn("turn failed", "lane", l, "error", cause)
	c.recordTurn(string(l), start, false)
	return &Result{Success: false, Error: cause.Error(), Messages: messages, Lane: l}, nil
}

func (c *Controller) loadOrCreate(ctx context.Context, t *turn.Turn) (*state.Session, error) {
	raw, ok, err := c.deps.Store.Get(ctx, SessionKey(t.TenantID, t.WaID))
	c.recordStoreOp("get", err)
	if err != nil {
		return nil, err
	}
	if ok {
		return c.deps.Builder.FromJSON([]byte(raw)), nil
	}
	sess := c.deps.Builder.NewSession(t.TenantID, t.WaID, "", "")
	sess.Touch(c.now())
	if err := c.persist(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (c *Controller) persist(ctx context.Context, sess *state.Session) error {
	raw, err := sess.MarshalJSON()
	if err != nil {
		return err
	}
	err = c.deps.Store.SetEx(ctx, SessionKey(sess.TenantID, sess.WaID), string(raw), c.sessionTTL)
	c.recordStoreOp("setex", err)
	return err
}

func (c *Controller) markProcessed(ctx context.Context, messageID string) error {
	err := c.deps.Store.SetEx(ctx, IdempotencyKey(messageID), "1", c.idempotencyTTL)
	c.recordStoreOp("setex", err)
	return err
}

func (c *Controller) exists(ctx context.Context, key string) (bool, error) {
	ok, err := c.deps.Store.Exists(ctx, key)
	c.recordStoreOp("exists", err)
	return ok, err
}

func (c *Controller) recordStoreOp(op string, err error) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordStoreOp(op, err == nil)
	}
}

func (c *Controller) recordTurn(lane string, start time.Time, success bool) {
	if c.deps.Metrics != nil {
		c.deps.Metrics.RecordTurn(lane, c.now().Sub(start), success)
	}
}

func (c *Controller) recordDecision(d router.Decision) {
	if c.deps.Metrics == nil {
		return
	}
	source := "llm"
	if len(d.Reasons) > 0 {
		if strings.HasPrefix(d.Reasons[0], "router_error:") || strings.HasPrefix(d.Reasons[0], "config_error:") {
			source = "fallback"
		}
	}
	c.deps.Metrics.RecordDecision(string(d.Lane), source)
}
