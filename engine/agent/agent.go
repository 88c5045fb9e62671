// Package agent defines the contract between the turn controller and the
// lane agents, the registry resolving lanes to agents, and the built-in
// skeleton agents for the shipped lanes.
package agent

import (
	"context"

	"github.com/caucehq/cauce/engine/lane"
	"github.com/caucehq/cauce/engine/state"
	"github.com/caucehq/cauce/engine/turn"
	"github.com/caucehq/cauce/provider"
)

// Baton payload keys understood by the controller.
const (
	PayloadIntent     = "intent"
	PayloadConfidence = "confidence"
	PayloadReasons    = "reasons"
	PayloadCarryState = "carry_state"
)

// Baton is an in-band request to hand the current turn off to another lane.
// The controller drives the chain; agents never invoke each other directly.
type Baton struct {
	Target  lane.Lane      `json:"target"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Response is the outcome of one agent invocation. StatePatch is a flat
// mapping shallow-merged into the session by the controller; agents never
// write to the store themselves.
type Response struct {
	Messages   []provider.Outbound `json:"messages"`
	StatePatch map[string]any      `json:"state_patch,omitempty"`
	Baton      *Baton              `json:"baton,omitempty"`
}

// Agent handles one turn for its lane. The session is read-only from the
// agent's point of view; mutations travel back through StatePatch.
type Agent interface {
	Handle(ctx context.Context, t *turn.Turn, sess *state.Session, intent string) (*Response, error)
}
