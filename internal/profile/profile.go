// Package profile holds the environment-driven configuration of the cauce
// orchestrator process.
package profile

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start the orchestrator.
type Profile struct {
	Mode    string // dev, demo, prod
	Addr    string
	Port    int
	Version string

	// Session store configuration.
	Driver        string // memory, redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Lane configuration resource. Empty means the embedded default.
	LanesConfig string

	// Dispatcher sizing.
	Workers   int
	QueueSize int

	// Intent router LLM (OpenAI-compatible protocol). An empty API key
	// leaves the router in fallback-only mode.
	RouterProvider string // openai, deepseek, siliconflow, dashscope, openrouter, zai, ollama
	RouterModel    string
	RouterAPIKey   string
	RouterBaseURL  string // optional, has default per provider
	RouterTimeout  int    // LLM request timeout in seconds
	RouterRPS      int    // classification requests per second
}

// Provider default configurations for the router LLM.
// Used when CAUCE_ROUTER_BASE_URL is not explicitly set.
var routerProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-7B-Instruct",
	},
	"dashscope": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-max-latest",
	},
	"openrouter": {
		BaseURL: "https://openrouter.ai/api/v1",
		Model:   "deepseek/deepseek-chat",
	},
	"zai": {
		BaseURL: "https://open.bigmodel.cn/api/paas/v4",
		Model:   "glm-4.7",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsRouterEnabled returns true if the LLM-backed router is configured.
// Without it every turn routes through the deterministic fallback.
func (p *Profile) IsRouterEnabled() bool {
	return p.RouterAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.Driver = getEnvOrDefault("CAUCE_STORE_DRIVER", p.Driver)
	p.RedisAddr = getEnvOrDefault("CAUCE_REDIS_ADDR", "localhost:6379")
	p.RedisPassword = getEnvOrDefault("CAUCE_REDIS_PASSWORD", "")
	p.RedisDB = getEnvOrDefaultInt("CAUCE_REDIS_DB", 0)

	p.LanesConfig = getEnvOrDefault("CAUCE_LANES_CONFIG", p.LanesConfig)

	p.Workers = getEnvOrDefaultInt("CAUCE_WORKERS", 4)
	p.QueueSize = getEnvOrDefaultInt("CAUCE_QUEUE_SIZE", 256)

	p.RouterProvider = getEnvOrDefault("CAUCE_ROUTER_PROVIDER", "openai")
	p.RouterAPIKey = getEnvOrDefault("CAUCE_ROUTER_API_KEY", "")
	p.RouterBaseURL = getEnvOrDefault("CAUCE_ROUTER_BASE_URL", "")
	p.RouterModel = getEnvOrDefault("CAUCE_ROUTER_MODEL", "")
	p.RouterTimeout = getEnvOrDefaultInt("CAUCE_ROUTER_TIMEOUT_SECONDS", 1)
	p.RouterRPS = getEnvOrDefaultInt("CAUCE_ROUTER_RPS", 8)

	// Apply provider defaults if not explicitly set.
	if p.RouterProvider != "" {
		if _, ok := routerProviderDefaults[p.RouterProvider]; !ok {
			slog.Warn("unknown router provider, using default: openai", "provider", p.RouterProvider)
			p.RouterProvider = "openai"
		}
	}
	if p.RouterBaseURL == "" || p.RouterModel == "" {
		if defaults, ok := routerProviderDefaults[p.RouterProvider]; ok {
			if p.RouterBaseURL == "" {
				p.RouterBaseURL = defaults.BaseURL
			}
			if p.RouterModel == "" {
				p.RouterModel = defaults.Model
			}
		}
	}
}

// Validate normalizes and checks the profile. Configuration problems here are
// fatal; the process must not accept work with a mis-wired profile.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Driver == "" {
		if p.Mode == "prod" {
			p.Driver = "redis"
		} else {
			p.Driver = "memory"
		}
	}
	if p.Driver != "memory" && p.Driver != "redis" {
		return errors.Errorf("unknown store driver %q", p.Driver)
	}
	if p.Mode == "prod" && p.Driver != "redis" {
		return errors.New("prod mode requires the redis store driver")
	}
	if p.Driver == "redis" && p.RedisAddr == "" {
		return errors.New("redis driver requires CAUCE_REDIS_ADDR")
	}

	if p.Workers <= 0 {
		p.Workers = 4
	}
	if p.QueueSize <= 0 {
		p.QueueSize = 256
	}
	if p.RouterTimeout <= 0 {
		p.RouterTimeout = 1
	}
	if p.RouterRPS <= 0 {
		p.RouterRPS = 8
	}

	if p.LanesConfig != "" {
		if _, err := os.Stat(p.LanesConfig); err != nil {
			return errors.Wrapf(err, "unable to access lane config %s", p.LanesConfig)
		}
	}

	return nil
}
