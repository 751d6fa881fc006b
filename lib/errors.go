package spanninglib

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyPool means no candidate image exists after expanding every input.
	ErrEmptyPool = errors.New("No usable image files found")

	// ErrOverwriteProtected means the output exists and NoClobber is set.
	ErrOverwriteProtected = errors.New("Output file exists and NoClobber is set")
)

// ConfigError is fatal in every mode.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErrorf(format string, a ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, a...)}
}

// ToleranceError is returned when no image could be placed on a display
// without leaving more than the allowed percentage uncovered.
type ToleranceError struct {
	Display   int
	Tolerance float64
	Attempts  int
}

func (e *ToleranceError) Error() string {
	return fmt.Sprintf(
		"No suitable image found for display %d within %g%% error after %d attempts",
		e.Display, e.Tolerance, e.Attempts)
}

// UnreadableImageError marks a candidate that could not be decoded.
// The pool skips these and draws another.
type UnreadableImageError struct {
	Path string
	Err  error
}

func (e *UnreadableImageError) Error() string {
	return fmt.Sprintf("Cannot read [%s] as an image: %s", e.Path, e.Err)
}

func (e *UnreadableImageError) Unwrap() error { return e.Err }

// OutputError means the composite or the image log could not be written.
type OutputError struct {
	Path string
	Err  error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("Could not write [%s]: %s", e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// IsFatal reports whether err must stop a timed loop.
func IsFatal(err error) bool {
	var ce *ConfigError
	var oe *OutputError
	return errors.As(err, &ce) ||
		errors.As(err, &oe) ||
		errors.Is(err, ErrOverwriteProtected)
}
