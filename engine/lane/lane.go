// Package lane defines the closed set of agent lanes and the configuration
// resource that declares them. A lane is a named agent domain; every session
// is always parked on exactly one configured lane.
package lane

import (
	_ "embed"
	"os"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Lane identifies an agent domain.
type Lane string

func (l Lane) String() string {
	return string(l)
}

// Lanes shipped with the embedded default configuration.
const (
	Info     Lane = "info"
	Commerce Lane = "commerce"
	Support  Lane = "support"
	Order    Lane = "order"
)

//go:embed lanes.yaml
var defaultLanesYAML []byte

// AgentDef declares the agent serving one lane.
type AgentDef struct {
	ClassName   string `yaml:"class_name"`
	Description string `yaml:"description"`
	IsDefault   bool   `yaml:"is_default,omitempty"`
	Model       string `yaml:"model,omitempty"`
}

// Config is the lane configuration resource. Exactly one lane must be marked
// default; it is where new sessions start and where the router falls back.
type Config struct {
	Agents map[string]AgentDef `yaml:"agents"`
}

// Load reads a lane configuration from path, or the embedded default when
// path is empty. The returned configuration is validated.
func Load(path string) (*Config, error) {
	raw := defaultLanesYAML
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read lane config %s", path)
		}
		raw = data
	}
	return Parse(raw)
}

// Parse decodes and validates a lane configuration document.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse lane config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the structural rules of the resource: at least one lane,
// a class name per lane, and exactly one default.
func (c *Config) Validate() error {
	if len(c.Agents) == 0 {
		return errors.New("lane config: no agents declared")
	}
	defaults := 0
	for id, def := range c.Agents {
		if id == "" {
			return errors.New("lane config: empty lane id")
		}
		if def.ClassName == "" {
			return errors.Errorf("lane config: lane %q has no class_name", id)
		}
		if def.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		return errors.Errorf("lane config: exactly one default lane required, found %d", defaults)
	}
	return nil
}

// Has reports whether l is a configured lane.
func (c *Config) Has(l Lane) bool {
	_, ok := c.Agents[string(l)]
	return ok
}

// Get returns the agent definition for a lane.
func (c *Config) Get(l Lane) (AgentDef, bool) {
	def, ok := c.Agents[string(l)]
	return def, ok
}

// Default returns the default lane. The zero Lane is returned only for a
// configuration that never passed Validate.
func (c *Config) Default() Lane {
	for id, def := range c.Agents {
		if def.IsDefault {
			return Lane(id)
		}
	}
	return ""
}

// Lanes returns the configured lane ids in stable order.
func (c *Config) Lanes() []Lane {
	ids := make([]string, 0, len(c.Agents))
	for id := range c.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	lanes := make([]Lane, len(ids))
	for i, id := range ids {
		lanes[i] = Lane(id)
	}
	return lanes
}
