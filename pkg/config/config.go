package config

import "time"

// Config is the root configuration structure for the gateway.
// It contains all configuration sections for the HTTP server, client
// authentication, backend accounts, usage tracking, and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Auth contains client-facing authentication configuration.
	Auth AuthConfig `yaml:"auth"`

	// Upstream contains settings applied to every outbound backend call.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Accounts lists the backend accounts requests can be routed to.
	Accounts []AccountConfig `yaml:"accounts"`

	// Usage contains configuration for the token-usage ledger.
	Usage UsageConfig `yaml:"usage"`

	// Telemetry contains observability configuration: logging and metrics.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero or negative value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Streaming responses run until the upstream timeout, so this
	// must comfortably exceed upstream.timeout.
	// Default: 0 (no timeout; streaming)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled. If IdleTimeout is zero, ReadTimeout is used.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// RequestTimeout is the deadline placed on each request's context,
	// covering routing, token exchange, and the whole upstream call. It
	// must comfortably exceed upstream.timeout.
	// Default: 6m
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// CORS configures cross-origin resource sharing for browser clients.
	CORS CORSConfig `yaml:"cors"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	// Enabled controls whether CORS headers are emitted and preflight
	// requests answered. Default: false.
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins lists origins allowed to call the gateway.
	// ["*"] allows any origin. Default when enabled: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedHeaders lists request headers allowed in preflight.
	// Default when enabled: the auth and content-type headers.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache lifetime in seconds.
	// Default when enabled: 3600
	MaxAge int `yaml:"max_age"`
}

// AuthConfig contains client-facing authentication configuration.
type AuthConfig struct {
	// APIKeys is the allow-list of client keys accepted as a bearer token
	// or API-key header. An empty list disables client authentication.
	APIKeys []string `yaml:"api_keys"`
}

// UpstreamConfig contains settings for outbound backend calls.
type UpstreamConfig struct {
	// Timeout bounds one whole upstream call, streaming or not.
	// Default: 5m
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConnsPerHost controls connection pooling per backend host.
	// Default: 10
	MaxIdleConnsPerHost int `yaml:"max_idle_conns_per_host"`
}

// AccountConfig describes one backend account: its credential and the
// model deployments it serves.
type AccountConfig struct {
	// Name is the unique account identifier.
	Name string `yaml:"name"`

	// ResourceGroup is sent to the backend as the resource-group header.
	ResourceGroup string `yaml:"resource_group"`

	// Credential holds the client-credentials grant used to obtain
	// short-lived bearer tokens for this account.
	Credential CredentialConfig `yaml:"credential"`

	// Deployments maps a model name to the list of base URLs serving it.
	Deployments map[string][]string `yaml:"deployments"`
}

// CredentialConfig holds one account's client-credentials grant.
type CredentialConfig struct {
	// ClientID is the OAuth2 client identifier.
	ClientID string `yaml:"client_id"`

	// ClientSecret is the OAuth2 client secret. Prefer supplying it via
	// the MODELMUX_ACCOUNTS_<NAME>_CLIENT_SECRET environment variable.
	ClientSecret string `yaml:"client_secret"`

	// TokenEndpoint is the token exchange URL.
	TokenEndpoint string `yaml:"token_endpoint"`

	// TenantID is sent to the backend as the tenant header.
	TenantID string `yaml:"tenant_id"`
}

// UsageConfig contains configuration for the token-usage ledger.
type UsageConfig struct {
	// Enabled controls whether per-call token usage is recorded.
	// Unset means enabled.
	Enabled *bool `yaml:"enabled"`

	// SQLitePath is the path of the SQLite database file.
	// Default: "modelmux-usage.db"
	SQLitePath string `yaml:"sqlite_path"`

	// RetentionDays is how long usage rows are kept before pruning.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression for the retention pruner.
	// Default: "0 3 * * *" (daily at 03:00)
	PruneSchedule string `yaml:"prune_schedule"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the log output format: "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Unset means enabled.
	Enabled *bool `yaml:"enabled"`

	// Path is the HTTP path of the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// IsEnabled reports whether usage recording is on (unset counts as on).
func (c UsageConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// IsEnabled reports whether the metrics endpoint is on (unset counts as on).
func (c MetricsConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
