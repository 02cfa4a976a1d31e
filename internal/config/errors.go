package config

import "errors"

// ErrConfig is the sentinel every ConfigError wraps, so callers can test
// with errors.Is(err, config.ErrConfig) without depending on the
// concrete type.
var ErrConfig = errors.New("config: invalid configuration")

// ConfigError is the single typed error every config-loading path
// returns on failure. CLI commands must catch it and render a clean
// single-line diagnostic; no command may propagate a raw parse
// exception to the user (spec.md §4.2, §7).
type ConfigError struct {
	// Path is the dotted path of the offending key, e.g. "council.timout".
	// Empty when the error is not key-specific (e.g. malformed JSON).
	Path string
	Msg  string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return "config: " + e.Msg
	}
	return "config: " + e.Path + ": " + e.Msg
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// ConfigErrors aggregates multiple ConfigError values so validation can
// surface every violation at once (spec.md §4.2: "all validation errors
// are surfaced together when feasible").
type ConfigErrors struct {
	Errors []*ConfigError
}

func (e *ConfigErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "config: multiple validation errors:"
	for _, sub := range e.Errors {
		msg += "\n  - " + sub.Error()
	}
	return msg
}

func (e *ConfigErrors) Unwrap() error {
	return ErrConfig
}

func newConfigError(path, msg string) *ConfigError {
	return &ConfigError{Path: path, Msg: msg}
}
