// Package job schedules turn orchestration: one job per stored inbound
// message, executed by a bounded pool of parallel workers with retries.
package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/caucehq/cauce/engine/controller"
	"github.com/caucehq/cauce/engine/turn"
	"github.com/caucehq/cauce/provider"
	"github.com/caucehq/cauce/store"
)

// OrchestratedTTL bounds the job-scope idempotency markers. This is a second,
// coarser layer above the controller's turn markers.
const OrchestratedTTL = time.Hour

// OrchestratedKey is the store key marking a message as orchestrated at job
// scope.
func OrchestratedKey(messageID string) string {
	return "orchestrated:" + messageID
}

// TurnHandler is the controller surface the job drives.
type TurnHandler interface {
	HandleTurn(ctx context.Context, t *turn.Turn) (*controller.Result, error)
}

// Orchestrator turns one stored inbound message into a processed turn.
// Delivery of the produced messages is handed to the Sender; the job itself
// never talks to the provider API.
type Orchestrator struct {
	store   store.KV
	handler TurnHandler
	sender  provider.Sender
}

// NewOrchestrator wires the job unit of work. A nil sender drops replies.
func NewOrchestrator(kv store.KV, handler TurnHandler, sender provider.Sender) *Orchestrator {
	if sender == nil {
		sender = provider.NopSender{}
	}
	return &Orchestrator{store: kv, handler: handler, sender: sender}
}

// Process drives one message through the controller. A nil return means the
// message is settled (processed, skipped, or failed terminally); a non-nil
// error is retryable and re-raised to the dispatcher.
func (o *Orchestrator) Process(ctx context.Context, tenantID string, msg *provider.Message) error {
	if msg == nil {
		return nil
	}
	log := slog.With("tenant_id", tenantID, "message_id", msg.ID)

	if msg.IsOutbound() {
		log.Debug("job: skipping outbound message")
		return nil
	}

	done, err := o.store.Exists(ctx, OrchestratedKey(msg.ID))
	if err != nil {
		return err
	}
	if done {
		log.Debug("job: message already orchestrated")
		return nil
	}

	t, err := turn.Build(tenantID, msg)
	if err != nil {
		if errors.Is(err, turn.ErrNotOrchestrable) {
			log.Info("job: skipping non-orchestrable message", "type", msg.Type, "reason", err)
			return nil
		}
		return err
	}

	res, err := o.handler.HandleTurn(ctx, t)
	if err != nil {
		return err
	}

	if res.Success && res.Error == "" && len(res.Messages) > 0 {
		// Delivery failures are the Sender's problem; the turn itself is
		// already committed.
		if err := o.sender.Send(ctx, t.TenantID, t.WaID, res.Messages); err != nil {
			log.Error("job: sender rejected delivery", "error", err)
		}
	}

	if err := o.store.SetEx(ctx, OrchestratedKey(msg.ID), "1", OrchestratedTTL); err != nil {
		return err
	}

	log.Info("job: message orchestrated",
		"lane", res.Lane,
		"success", res.Success,
		"messages", len(res.Messages),
	)
	return nil
}
