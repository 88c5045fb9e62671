package agent

import (
	"github.com/pkg/errors"

	"github.com/caucehq/cauce/engine/lane"
)

// Factory constructs the agent serving one lane from its configuration
// entry.
type Factory func(l lane.Lane, def lane.AgentDef) Agent

// Registry maps configured lanes to agent instances. It is built once at
// startup; a class name without a registered factory is a configuration
// error and fatal.
type Registry struct {
	agents map[lane.Lane]Agent
}

// NewRegistry instantiates one agent per configured lane.
func NewRegistry(cfg *lane.Config, factories map[string]Factory) (*Registry, error) {
	agents := make(map[lane.Lane]Agent, len(cfg.Agents))
	for _, l := range cfg.Lanes() {
		def, _ := cfg.Get(l)
		factory, ok := factories[def.ClassName]
		if !ok {
			return nil, errors.Errorf("agent registry: lane %q references unknown class %q", l, def.ClassName)
		}
		agents[l] = factory(l, def)
	}
	return &Registry{agents: agents}, nil
}

// ForLane resolves the agent for a lane.
func (r *Registry) ForLane(l lane.Lane) (Agent, error) {
	a, ok := r.agents[l]
	if !ok {
		return nil, errors.Errorf("agent registry: no agent for lane %q", l)
	}
	return a, nil
}

// BuiltinFactories returns the factories for the shipped agent classes.
func BuiltinFactories() map[string]Factory {
	return map[string]Factory{
		"InfoAgent":     func(l lane.Lane, _ lane.AgentDef) Agent { return &InfoAgent{lane: l} },
		"CommerceAgent": func(l lane.Lane, _ lane.AgentDef) Agent { return &CommerceAgent{lane: l} },
		"SupportAgent":  func(l lane.Lane, _ lane.AgentDef) Agent { return &SupportAgent{lane: l} },
		"OrderAgent":    func(l lane.Lane, _ lane.AgentDef) Agent { return &OrderAgent{lane: l} },
	}
}
