package domain

import (
	"fmt"
	"time"
)

// PatternConfig holds the static fraud-pattern tunables. A snapshot is
// immutable after construction and shared read-only across evaluations;
// reconfiguration swaps in a whole new validated snapshot.
type PatternConfig struct {
	HighAmountThreshold      float64   `json:"highAmountThreshold"`
	VelocityWindowMinutes    int       `json:"velocityWindowMinutes"`
	MaxTransactionsPerWindow int       `json:"maxTransactionsPerWindow"`
	UnusualHours             []int     `json:"unusualHours"`
	SuspiciousAmounts        []float64 `json:"suspiciousAmounts"`
}

// DefaultPatternConfig returns the built-in fraud pattern tunables.
func DefaultPatternConfig() *PatternConfig {
	return &PatternConfig{
		HighAmountThreshold:      10000.0,
		VelocityWindowMinutes:    10,
		MaxTransactionsPerWindow: 5,
		UnusualHours:             []int{0, 1, 2, 3, 4, 5},
		SuspiciousAmounts:        []float64{100.00, 200.00, 500.00, 1000.00},
	}
}

// Validate checks a pattern config before it is applied.
func (c *PatternConfig) Validate() error {
	if c.HighAmountThreshold <= 0 {
		return fmt.Errorf("highAmountThreshold must be positive, got %f", c.HighAmountThreshold)
	}
	if c.VelocityWindowMinutes <= 0 {
		return fmt.Errorf("velocityWindowMinutes must be positive, got %d", c.VelocityWindowMinutes)
	}
	if c.MaxTransactionsPerWindow <= 0 {
		return fmt.Errorf("maxTransactionsPerWindow must be positive, got %d", c.MaxTransactionsPerWindow)
	}
	for _, h := range c.UnusualHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("unusual hour out of range: %d", h)
		}
	}
	for _, a := range c.SuspiciousAmounts {
		if a < 0 {
			return fmt.Errorf("suspicious amount must be non-negative, got %f", a)
		}
	}
	return nil
}

// Clone returns a deep copy, so callers cannot mutate an applied snapshot.
func (c *PatternConfig) Clone() *PatternConfig {
	cp := *c
	cp.UnusualHours = append([]int(nil), c.UnusualHours...)
	cp.SuspiciousAmounts = append([]float64(nil), c.SuspiciousAmounts...)
	return &cp
}

// IsUnusualHour reports whether the given hour-of-day is configured as
// unusual.
func (c *PatternConfig) IsUnusualHour(hour int) bool {
	for _, h := range c.UnusualHours {
		if h == hour {
			return true
		}
	}
	return false
}

// IsSuspiciousAmount reports whether the amount exactly matches one of
// the configured suspicious round values.
func (c *PatternConfig) IsSuspiciousAmount(amount float64) bool {
	for _, a := range c.SuspiciousAmounts {
		if a == amount {
			return true
		}
	}
	return false
}

// PatternSnapshot is a persisted, versioned pattern configuration.
type PatternSnapshot struct {
	ID        string        `json:"id"`
	Config    PatternConfig `json:"config"`
	CreatedAt time.Time     `json:"createdAt"`
}
