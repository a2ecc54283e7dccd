package iw

import "errors"

// ErrRuntimeNotFound is returned when the `iw` binary is not on PATH
var ErrRuntimeNotFound = errors.New("iw: runtime not found")

// ConfigError is returned for invalid scanner configuration
type ConfigError struct {
	msg string
}

func NewConfigError(msg string) *ConfigError {
	return &ConfigError{msg}
}

func (e *ConfigError) Error() string {
	return e.msg
}
