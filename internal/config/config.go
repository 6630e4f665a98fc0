package config

import (
	"fmt"
	"time"
)

const (
	DefaultModel       = "grok-4-1-fast-reasoning"
	DefaultBaseURL     = "https://api.x.ai/v1"
	DefaultUserAddress = "explorer"
	DefaultGatewayPort = 18790
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	cfg := Config{}
	applyDefaults(&cfg)
	return cfg
}

// CallTimeout is the deadline applied to every individual agent call.
func (c Config) CallTimeout() time.Duration {
	return time.Duration(c.Agents.CallTimeoutSeconds) * time.Second
}

// DemoDelay is the artificial latency of the offline demo client.
func (c Config) DemoDelay() time.Duration {
	return time.Duration(c.Agents.DemoDelayMs) * time.Millisecond
}
