package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if strings.TrimSpace(cfg.Model) == "" {
		issues = append(issues, ValidationIssue{
			Path:    "model",
			Message: "model is required",
		})
	}

	if cfg.BaseURL != "" && !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		issues = append(issues, ValidationIssue{
			Path:    "baseUrl",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.BaseURL),
		})
	}

	validQualities := []string{"low", "medium", "high"}
	if cfg.Features.VideoQuality != "" && !slices.Contains(validQualities, cfg.Features.VideoQuality) {
		issues = append(issues, ValidationIssue{
			Path:    "features.videoQuality",
			Message: fmt.Sprintf("must be one of %v, got %q", validQualities, cfg.Features.VideoQuality),
		})
	}

	if (cfg.Features.VideoEnabled || cfg.Features.VoiceEnabled || cfg.Features.BuildEnabled) && !cfg.Features.ExtendedEnabled() {
		issues = append(issues, ValidationIssue{
			Path:    "features.grok420Enabled",
			Message: "media and build features require the extended client",
		})
	}

	if cfg.Agents.CallTimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agents.callTimeoutSeconds",
			Message: fmt.Sprintf("must be positive, got %d", cfg.Agents.CallTimeoutSeconds),
		})
	}
	if cfg.Agents.DemoDelayMs < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "agents.demoDelayMs",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.Agents.DemoDelayMs),
		})
	}

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.port",
			Message: fmt.Sprintf("port must be 0-65535, got %d", cfg.Gateway.Port),
		})
	}

	validBinds := []string{"loopback", "lan"}
	if cfg.Gateway.Bind != "" && !slices.Contains(validBinds, cfg.Gateway.Bind) {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.bind",
			Message: fmt.Sprintf("must be one of %v, got %q", validBinds, cfg.Gateway.Bind),
		})
	}

	if cfg.Gateway.Exposed() && cfg.Gateway.ResolvedToken() == "" {
		issues = append(issues, ValidationIssue{
			Path:    "gateway.token",
			Message: "a token is required when gateway.bind is lan (set gateway.token or LUNA_GATEWAY_TOKEN)",
		})
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}

	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}
