// Package strategy defines the signal rules that turn a market series into
// per-bar position intents, and the parameter sets that tune them.
package strategy

import (
	"errors"
	"fmt"

	"github.com/yourusername/quant-grid/internal/market"
)

// Side is the desired position for one bar.
type Side string

// Position sides.
const (
	Flat  Side = "flat"
	Long  Side = "long"
	Short Side = "short"
)

// IsValid reports whether the side is one of the three known values.
// The zero value of Side is not valid; intent slices must be built with
// explicit sides.
func (s Side) IsValid() bool {
	switch s {
	case Flat, Long, Short:
		return true
	}
	return false
}

// Direction returns +1 for long, -1 for short, 0 for flat.
func (s Side) Direction() float64 {
	switch s {
	case Long:
		return 1
	case Short:
		return -1
	}
	return 0
}

func (s Side) String() string {
	return string(s)
}

// Sentinel errors surfaced by rules.
var (
	// ErrInsufficientData reports a series shorter than the rule's
	// declared minimum for the given parameters.
	ErrInsufficientData = errors.New("insufficient data for rule lookback")
	// ErrInvalidParameter reports a missing, mistyped, or out-of-range
	// rule parameter.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Rule converts a market series into one position intent per bar.
// Implementations must be pure: identical inputs produce identical
// intents, and the intent at bar i may depend only on bars [0..i].
type Rule interface {
	// Name identifies the rule in config, logs, and persisted results.
	Name() string
	// MinBars returns the shortest series the rule can produce a
	// non-degenerate intent sequence for, given the parameters.
	MinBars(params Params) (int, error)
	// Intents returns exactly series.Len() intents. It fails with
	// ErrInsufficientData when the series is shorter than MinBars and
	// with ErrInvalidParameter when the parameters are unusable.
	Intents(series *market.Series, params Params) ([]Side, error)
}

// RuleByName returns the rule registered under name.
func RuleByName(name string) (Rule, error) {
	switch name {
	case RuleNameBoxBreakout:
		return BoxBreakout{}, nil
	case RuleNameMACrossover:
		return MACrossover{}, nil
	default:
		return nil, fmt.Errorf("unknown rule: %s", name)
	}
}

// RuleNames lists the registered rule names, for config validation and CLI
// help text.
func RuleNames() []string {
	return []string{RuleNameBoxBreakout, RuleNameMACrossover}
}

func checkLength(series *market.Series, minBars int, ruleName string) error {
	if series.Len() < minBars {
		return fmt.Errorf("%s needs %d bars, series has %d: %w", ruleName, minBars, series.Len(), ErrInsufficientData)
	}
	return nil
}
