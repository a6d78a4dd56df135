package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/modelmux/modelmux/pkg/routing"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention MODELMUX_SECTION_FIELD (e.g., MODELMUX_SERVER_LISTEN_ADDRESS)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format MODELMUX_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("MODELMUX_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("MODELMUX_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("MODELMUX_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("MODELMUX_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Auth overrides: comma-separated allow-list
	if val := os.Getenv("MODELMUX_AUTH_API_KEYS"); val != "" {
		keys := strings.Split(val, ",")
		cfg.Auth.APIKeys = cfg.Auth.APIKeys[:0]
		for _, key := range keys {
			if key = strings.TrimSpace(key); key != "" {
				cfg.Auth.APIKeys = append(cfg.Auth.APIKeys, key)
			}
		}
	}

	// Upstream overrides
	if val := os.Getenv("MODELMUX_UPSTREAM_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Upstream.Timeout = d
		}
	}

	// Usage overrides
	if val := os.Getenv("MODELMUX_USAGE_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Usage.Enabled = &b
		}
	}
	if val := os.Getenv("MODELMUX_USAGE_SQLITE_PATH"); val != "" {
		cfg.Usage.SQLitePath = val
	}
	if val := os.Getenv("MODELMUX_USAGE_RETENTION_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Usage.RetentionDays = i
		}
	}

	// Telemetry overrides
	if val := os.Getenv("MODELMUX_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("MODELMUX_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("MODELMUX_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}

	// Per-account credential overrides, so secrets can stay out of the
	// file. MODELMUX_ACCOUNTS_<NAME>_CLIENT_SECRET with the account name
	// uppercased and dashes replaced by underscores.
	for i := range cfg.Accounts {
		applyAccountEnvOverrides(&cfg.Accounts[i])
	}
}

// applyAccountEnvOverrides applies credential overrides for one account.
func applyAccountEnvOverrides(account *AccountConfig) {
	name := strings.ToUpper(strings.ReplaceAll(account.Name, "-", "_"))
	prefix := fmt.Sprintf("MODELMUX_ACCOUNTS_%s_", name)

	if val := os.Getenv(prefix + "CLIENT_ID"); val != "" {
		account.Credential.ClientID = val
	}
	if val := os.Getenv(prefix + "CLIENT_SECRET"); val != "" {
		account.Credential.ClientSecret = val
	}
	if val := os.Getenv(prefix + "TOKEN_ENDPOINT"); val != "" {
		account.Credential.TokenEndpoint = val
	}
	if val := os.Getenv(prefix + "TENANT_ID"); val != "" {
		account.Credential.TenantID = val
	}
}

// BuildTable converts the validated account section into an immutable
// routing table.
func BuildTable(cfg *Config) (*routing.Table, error) {
	accounts := make([]*routing.Account, 0, len(cfg.Accounts))
	for _, ac := range cfg.Accounts {
		deployments := make(map[string][]string, len(ac.Deployments))
		for model, urls := range ac.Deployments {
			deployments[model] = append([]string(nil), urls...)
		}
		accounts = append(accounts, &routing.Account{
			Name:          ac.Name,
			ResourceGroup: ac.ResourceGroup,
			Credential: routing.Credential{
				ClientID:      ac.Credential.ClientID,
				ClientSecret:  ac.Credential.ClientSecret,
				TokenEndpoint: ac.Credential.TokenEndpoint,
				TenantID:      ac.Credential.TenantID,
			},
			Deployments: deployments,
		})
	}
	return routing.NewTable(accounts)
}
