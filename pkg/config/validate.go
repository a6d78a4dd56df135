package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateAccounts(cfg.Accounts)...)
	errs = append(errs, validateUsage(&cfg.Usage)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(server *ServerConfig) []FieldError {
	var errs []FieldError

	if server.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "must not be empty",
		})
	}
	if server.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "must not be negative",
		})
	}
	if server.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "must not be negative",
		})
	}
	if server.RequestTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.request_timeout",
			Message: "must not be negative",
		})
	}
	if server.CORS.Enabled && server.CORS.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "server.cors.max_age",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateUpstream(upstream *UpstreamConfig) []FieldError {
	var errs []FieldError

	if upstream.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "upstream.timeout",
			Message: "must not be negative",
		})
	}

	return errs
}

func validateAccounts(accounts []AccountConfig) []FieldError {
	var errs []FieldError

	if len(accounts) == 0 {
		errs = append(errs, FieldError{
			Field:   "accounts",
			Message: "at least one backend account is required",
		})
		return errs
	}

	seen := make(map[string]bool, len(accounts))
	for i, account := range accounts {
		field := func(name string) string {
			return fmt.Sprintf("accounts[%d].%s", i, name)
		}

		if account.Name == "" {
			errs = append(errs, FieldError{
				Field:   field("name"),
				Message: "must not be empty",
			})
		} else if seen[account.Name] {
			errs = append(errs, FieldError{
				Field:   field("name"),
				Message: fmt.Sprintf("duplicate account name %q", account.Name),
			})
		}
		seen[account.Name] = true

		if account.Credential.ClientID == "" {
			errs = append(errs, FieldError{
				Field:   field("credential.client_id"),
				Message: "must not be empty",
			})
		}
		if account.Credential.ClientSecret == "" {
			errs = append(errs, FieldError{
				Field:   field("credential.client_secret"),
				Message: "must not be empty (set it in the file or via environment)",
			})
		}
		if err := validateURL(account.Credential.TokenEndpoint); err != nil {
			errs = append(errs, FieldError{
				Field:   field("credential.token_endpoint"),
				Message: err.Error(),
			})
		}

		if len(account.Deployments) == 0 {
			errs = append(errs, FieldError{
				Field:   field("deployments"),
				Message: "at least one model deployment is required",
			})
		}
		for model, urls := range account.Deployments {
			if len(urls) == 0 {
				errs = append(errs, FieldError{
					Field:   field("deployments." + model),
					Message: "must list at least one deployment URL",
				})
			}
			for _, u := range urls {
				if err := validateURL(u); err != nil {
					errs = append(errs, FieldError{
						Field:   field("deployments." + model),
						Message: err.Error(),
					})
				}
			}
		}
	}

	return errs
}

func validateUsage(usage *UsageConfig) []FieldError {
	var errs []FieldError

	if !usage.IsEnabled() {
		return errs
	}
	if usage.SQLitePath == "" {
		errs = append(errs, FieldError{
			Field:   "usage.sqlite_path",
			Message: "must not be empty when usage recording is enabled",
		})
	}
	if usage.RetentionDays < 0 {
		errs = append(errs, FieldError{
			Field:   "usage.retention_days",
			Message: "must not be negative",
		})
	}
	if usage.PruneSchedule != "" {
		if _, err := cron.ParseStandard(usage.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "usage.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
	}

	return errs
}

func validateTelemetry(telemetry *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error (got %q)", telemetry.Logging.Level),
		})
	}

	switch telemetry.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text (got %q)", telemetry.Logging.Format),
		})
	}

	if telemetry.Metrics.IsEnabled() && !strings.HasPrefix(telemetry.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "must start with /",
		})
	}

	return errs
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https (got %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL host must not be empty")
	}
	return nil
}
