package engine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates invalid engine configuration.
var ErrInvalidConfig = errors.New("invalid engine configuration")

// Config contains configuration for the rules engine.
type Config struct {
	// EvaluationTimeout bounds a single Evaluate call. Zero means no timeout;
	// callers may still cancel through their context.
	// Default: 0.
	EvaluationTimeout time.Duration

	// MaxRules caps the number of rules evaluated in one call. Zero means no cap.
	// Default: 0.
	MaxRules int

	// Clock returns the current time used for activity windows.
	// Default: time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		EvaluationTimeout: 0,
		MaxRules:          0,
		Clock:             time.Now,
	}
}

// Validate validates the engine configuration.
func (c *Config) Validate() error {
	if c.EvaluationTimeout < 0 {
		return fmt.Errorf("%w: evaluation timeout cannot be negative", ErrInvalidConfig)
	}
	if c.MaxRules < 0 {
		return fmt.Errorf("%w: max rules cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// WithEvaluationTimeout sets the evaluation timeout.
func (c *Config) WithEvaluationTimeout(timeout time.Duration) *Config {
	c.EvaluationTimeout = timeout
	return c
}

// WithMaxRules sets the maximum number of rules per evaluation.
func (c *Config) WithMaxRules(max int) *Config {
	c.MaxRules = max
	return c
}

// WithClock sets the clock used for activity windows.
func (c *Config) WithClock(clock func() time.Time) *Config {
	c.Clock = clock
	return c
}
