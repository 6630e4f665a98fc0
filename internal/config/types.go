package config

import (
	"os"
	"strings"
)

// Config is the root configuration for Luna Sherpa.
type Config struct {
	APIKey      string          `yaml:"apiKey,omitempty"`      // xAI API key; may be ${ENV_VAR}
	Model       string          `yaml:"model,omitempty"`       // model identifier sent with every call
	BaseURL     string          `yaml:"baseUrl,omitempty"`     // API root, e.g. https://api.x.ai/v1
	UserAddress string          `yaml:"userAddress,omitempty"` // how Luna greets the user
	Features    FeaturesConfig  `yaml:"features,omitempty"`
	Agents      AgentsConfig    `yaml:"agents,omitempty"`
	Telemetry   TelemetryConfig `yaml:"telemetry,omitempty"`
	Gateway     GatewayConfig   `yaml:"gateway,omitempty"`
	Workspace   WorkspaceConfig `yaml:"workspace,omitempty"`
	Logging     LoggingConfig   `yaml:"logging,omitempty"`
}

// FeaturesConfig gates the media and build capabilities.
type FeaturesConfig struct {
	VideoEnabled   bool   `yaml:"videoEnabled,omitempty"`
	VoiceEnabled   bool   `yaml:"voiceEnabled,omitempty"`
	BuildEnabled   bool   `yaml:"buildEnabled,omitempty"`
	Grok420Enabled *bool  `yaml:"grok420Enabled,omitempty"` // extended client; defaults to true
	PreferredVoice string `yaml:"preferredVoice,omitempty"`
	VideoQuality   string `yaml:"videoQuality,omitempty"` // "low" | "medium" | "high"
}

// ExtendedEnabled reports whether the extended (media/build) client should be used.
func (f FeaturesConfig) ExtendedEnabled() bool {
	return f.Grok420Enabled == nil || *f.Grok420Enabled
}

// AgentsConfig tunes the multi-agent round.
type AgentsConfig struct {
	CallTimeoutSeconds int `yaml:"callTimeoutSeconds,omitempty"`
	DemoDelayMs        int `yaml:"demoDelayMs,omitempty"`
}

// TelemetryConfig controls local event tracking.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	DBPath  string `yaml:"dbPath,omitempty"` // defaults to <data>/telemetry.db
}

// GatewayConfig controls the local panel server.
type GatewayConfig struct {
	Port           int      `yaml:"port,omitempty"`
	Bind           string   `yaml:"bind,omitempty"` // "loopback" | "lan"
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty"`
	Token          string   `yaml:"token,omitempty"` // optional bearer token; may be ${ENV_VAR}
}

// ResolvedToken returns the configured token, falling back to
// LUNA_GATEWAY_TOKEN when the value is empty or an unexpanded ${VAR}.
func (g GatewayConfig) ResolvedToken() string {
	token := strings.TrimSpace(g.Token)
	if token == "" || strings.HasPrefix(token, "${") {
		token = strings.TrimSpace(os.Getenv("LUNA_GATEWAY_TOKEN"))
	}
	return token
}

// Exposed reports whether the gateway listens beyond the loopback interface.
func (g GatewayConfig) Exposed() bool { return g.Bind == "lan" }

// WorkspaceConfig controls the workspace setup command.
type WorkspaceConfig struct {
	Source  string   `yaml:"source,omitempty"` // directory holding the bundled .github tree
	Exclude []string `yaml:"exclude,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
