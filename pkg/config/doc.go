// Package config loads, validates, and watches the gateway configuration.
//
// Configuration is a single YAML file describing the HTTP server, client
// authentication, backend accounts with their credentials and model
// deployments, the usage ledger, and telemetry. Loading applies defaults,
// then environment variable overrides (MODELMUX_SECTION_FIELD), then
// validates the result.
//
// The account section is the source of the immutable routing table: a
// successful load is converted with BuildTable and handed to a fresh
// router. The file watcher reloads the whole file on change, so a running
// gateway picks up new accounts or deployments without a restart.
package config
