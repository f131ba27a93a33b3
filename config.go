package agentflow

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the service configuration, read from the environment.
type Config struct {
	HTTPPort int    `env:"AGENTFLOW_HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// AgentsFile points to the YAML agent endpoint table.
	AgentsFile string `env:"AGENTFLOW_AGENTS_FILE" envDefault:"agents.yaml"`

	// DispatchTimeout is the per-target fan-out deadline.
	DispatchTimeout time.Duration `env:"AGENTFLOW_DISPATCH_TIMEOUT" envDefault:"90s"`

	// CheckpointBackend selects the checkpoint store: memory, file,
	// redis or postgres.
	CheckpointBackend string `env:"AGENTFLOW_CHECKPOINT_BACKEND" envDefault:"memory"`
	CheckpointDir     string `env:"AGENTFLOW_CHECKPOINT_DIR"`

	Redis       RedisConfig
	PostgresDSN string `env:"AGENTFLOW_POSTGRES_DSN"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASS"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL      time.Duration `env:"AGENTFLOW_CHECKPOINT_TTL" envDefault:"24h"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	switch c.CheckpointBackend {
	case "memory", "file":
	case "redis":
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address is required for the redis backend")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown checkpoint backend %q", c.CheckpointBackend)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.DispatchTimeout <= 0 {
		return fmt.Errorf("dispatch timeout must be positive")
	}
	return nil
}

// AgentsFileSpec is the on-disk shape of the agent endpoint table.
type AgentsFileSpec struct {
	Agents map[string]string `yaml:"agents"`
}

// LoadAgentEndpoints loads the agent identifier to endpoint mapping from a
// YAML file.
func LoadAgentEndpoints(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}
	var spec AgentsFileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal agents file: %w", err)
	}
	if len(spec.Agents) == 0 {
		return nil, fmt.Errorf("agents file %s defines no agents", path)
	}
	return spec.Agents, nil
}
