package reconciler

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds configuration options for the reconciliation engine
type Config struct {
	// WarningThreshold is the absolute stock delta percentage at which a
	// location becomes WARNING.
	WarningThreshold decimal.Decimal

	// CriticalThreshold is the absolute stock delta percentage at which a
	// location becomes CRITICAL.
	CriticalThreshold decimal.Decimal

	DefaultLimit int
	MaxLimit     int

	// FetchTimeout bounds each source fetch independently.
	FetchTimeout time.Duration
}

// DefaultConfig returns a default configuration for the reconciliation engine
func DefaultConfig() *Config {
	return &Config{
		WarningThreshold:  decimal.NewFromInt(10),
		CriticalThreshold: decimal.NewFromInt(30),
		DefaultLimit:      50,
		MaxLimit:          500,
		FetchTimeout:      15 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.WarningThreshold.IsNegative() {
		return fmt.Errorf("warning threshold must not be negative, got %s", c.WarningThreshold)
	}
	if c.CriticalThreshold.LessThan(c.WarningThreshold) {
		return fmt.Errorf("critical threshold %s must not be below warning threshold %s",
			c.CriticalThreshold, c.WarningThreshold)
	}
	if c.MaxLimit <= 0 {
		return fmt.Errorf("max limit must be positive, got %d", c.MaxLimit)
	}
	if c.DefaultLimit <= 0 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("default limit must be between 1 and %d, got %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout)
	}
	return nil
}
