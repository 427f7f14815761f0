package utils

import (
	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError[ExpectedT any](actual interface{}) error {
	return errors.Errorf("expected %T but got %T", *new(ExpectedT), actual)
}

// NewUnknownModelError is used when a configuration names a sensor model with no registered driver.
func NewUnknownModelError(model string) error {
	return errors.Errorf("no driver registered for sensor model %q", model)
}
