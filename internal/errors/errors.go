package errors

import (
	"errors"
	"fmt"
)

// ErrMisconfigured is returned when the environment does not describe a usable broker.
var ErrMisconfigured = errors.New("invalid configuration")

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
