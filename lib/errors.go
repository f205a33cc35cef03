package mcquad

import (
	"errors"
	"fmt"
)

var (
	// ErrNormalization is returned when a block finishes with a
	// non-positive normalization accumulator, which makes every
	// integrand estimate of that block meaningless.
	ErrNormalization = errors.New("mcquad: non-positive normalization")

	// ErrNonFiniteWeight is returned when the integrand produces a NaN
	// or infinite weight. The block aborts so the bad sample cannot
	// poison the adaptive maps.
	ErrNonFiniteWeight = errors.New("mcquad: non-finite integrand weight")
)

// ConfigError reports an invalid construction parameter. It is always
// produced before any sampling starts.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "mcquad: " + e.Reason }

func errConfig(format string, args ...interface{}) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}
