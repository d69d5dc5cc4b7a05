package risk

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every configuration error returned from
// a constructor in this package.
var ErrInvalidConfig = errors.New("invalid risk configuration")

// ConfigError describes one rejected configuration field.
type ConfigError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s (%g) %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func newConfigError(field string, value float64, reason string) error {
	return &ConfigError{Field: field, Value: value, Reason: reason}
}
