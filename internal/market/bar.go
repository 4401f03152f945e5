// Package market defines the validated OHLCV series consumed by the
// simulation engine. A Series is immutable after construction, so one
// instance can be shared read-only across concurrent simulation runs.
package market

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV observation at a fixed timestamp.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Validate checks the single-bar price invariants: positive prices,
// non-negative volume, high/low enclosing open and close.
func (b Bar) Validate() error {
	if b.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is zero")
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return fmt.Errorf("prices must be positive, got o=%g h=%g l=%g c=%g", b.Open, b.High, b.Low, b.Close)
	}
	if b.Volume < 0 {
		return fmt.Errorf("volume must be non-negative, got %g", b.Volume)
	}
	if b.High < b.Open || b.High < b.Close {
		return fmt.Errorf("high %g below open %g or close %g", b.High, b.Open, b.Close)
	}
	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("low %g above open %g or close %g", b.Low, b.Open, b.Close)
	}
	return nil
}
