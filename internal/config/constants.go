// Package config provides configuration constants and runtime configuration
// management for the gateway.
package config

import (
	"os"
	"strings"
)

// Version information
const Version = "1.0.0"

// Internal generation API endpoints, in failover order (prod → daily).
const (
	EndpointProd  = "https://cloudcode-pa.googleapis.com/v1internal"
	EndpointDaily = "https://daily-cloudcode-pa.googleapis.com/v1internal"
)

// DefaultEndpoints is the default endpoint failover order.
var DefaultEndpoints = []string{EndpointProd, EndpointDaily}

// DefaultUserAgent is sent on every upstream request unless overridden.
const DefaultUserAgent = "antigravity/1.11.9 windows/amd64"

// AnthropicBetaHeader is attached when the requested model is a Claude
// family model.
const AnthropicBetaHeader = "claude-code-20250219,interleaved-thinking-2025-05-14,fine-grained-tool-streaming-2025-05-14"

// Timing constants
const (
	// DefaultPort is the default server port.
	DefaultPort = 8045
	// DefaultRequestTimeoutSec is the default per-request upstream timeout.
	DefaultRequestTimeoutSec = 120
	// MinRequestTimeoutSec is the floor applied to configured timeouts.
	MinRequestTimeoutSec = 1
	// MaxAttempts is the number of attempts in the orchestrator retry loop.
	MaxAttempts = 3
	// TokenRefreshWindowSec triggers a refresh when a token expires sooner
	// than this many seconds from now.
	TokenRefreshWindowSec = 300
	// RateLimitCooldownMs is the cooldown applied on 429/quota errors.
	RateLimitCooldownMs = 5 * 60 * 1000
	// ForbiddenCooldownMs is the cooldown applied on 401/403 errors.
	ForbiddenCooldownMs = 30 * 60 * 1000
	// SessionBindingTTLMs is how long a session key stays pinned to an
	// account after its last successful selection.
	SessionBindingTTLMs = 10 * 60 * 1000
)

// Env var names honored for upstream overrides.
const (
	EnvInternalBaseURLs            = "PROXY_INTERNAL_BASE_URLS"
	EnvInternalBaseURLsAntigravity = "ANTIGRAVITY_INTERNAL_BASE_URLS"
	EnvRequestUserAgent            = "PROXY_REQUEST_USER_AGENT"
)

// EndpointsFromEnv returns the configured endpoint list, honoring the env
// overrides and trimming trailing slashes. Returns DefaultEndpoints when no
// override is set.
func EndpointsFromEnv() []string {
	raw := os.Getenv(EnvInternalBaseURLs)
	if raw == "" {
		raw = os.Getenv(EnvInternalBaseURLsAntigravity)
	}
	return ParseEndpointList(raw)
}

// ParseEndpointList splits a comma-separated endpoint list, trimming spaces
// and trailing slashes. Empty input yields DefaultEndpoints.
func ParseEndpointList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		out := make([]string, len(DefaultEndpoints))
		copy(out, DefaultEndpoints)
		return out
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = append(out, DefaultEndpoints...)
	}
	return out
}

// UserAgentFromEnv returns the configured User-Agent, or the default.
func UserAgentFromEnv() string {
	if ua := os.Getenv(EnvRequestUserAgent); ua != "" {
		return ua
	}
	return DefaultUserAgent
}
