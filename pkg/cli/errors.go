package cli

import "fmt"

// ConfigError reports a problem found while loading or validating the
// gateway configuration. Field is the dotted path of the offending setting
// ("server.listen_address", "usage.enabled"); it is empty when the problem
// spans the whole file.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Message
	}
	return fmt.Sprintf("invalid configuration at %s: %s", e.Field, e.Message)
}

// CommandError wraps a failure from one subcommand so the entry point has a
// single exit path that names the command that failed.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("modelmux %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError builds a ConfigError for the given setting path.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// NewCommandError wraps err as a failure of the named subcommand.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}
