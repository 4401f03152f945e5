package strategy

import (
	"fmt"

	"github.com/yourusername/quant-grid/internal/market"
)

// RuleNameMACrossover is the registry name of the moving-average crossover
// rule.
const RuleNameMACrossover = "ma_crossover"

// MACrossover signals long while the fast simple moving average of closes
// sits above the slow one, short while below, and flat until the slow
// window has filled. Both averages end at the current bar.
type MACrossover struct{}

// Name returns the registry name.
func (MACrossover) Name() string {
	return RuleNameMACrossover
}

// MinBars requires a full slow window.
func (MACrossover) MinBars(params Params) (int, error) {
	_, slow, err := crossoverWindows(params)
	if err != nil {
		return 0, err
	}
	return slow, nil
}

// Intents computes one side per bar.
func (r MACrossover) Intents(series *market.Series, params Params) ([]Side, error) {
	fast, slow, err := crossoverWindows(params)
	if err != nil {
		return nil, err
	}
	if err := checkLength(series, slow, r.Name()); err != nil {
		return nil, err
	}

	closes := series.Closes()
	intents := make([]Side, len(closes))
	for i := range intents {
		intents[i] = Flat
	}

	var fastSum, slowSum float64
	for i, c := range closes {
		fastSum += c
		if i >= fast {
			fastSum -= closes[i-fast]
		}
		slowSum += c
		if i >= slow {
			slowSum -= closes[i-slow]
		}
		if i < slow-1 {
			continue
		}

		fastMA := fastSum / float64(fast)
		slowMA := slowSum / float64(slow)
		switch {
		case fastMA > slowMA:
			intents[i] = Long
		case fastMA < slowMA:
			intents[i] = Short
		}
	}

	return intents, nil
}

func crossoverWindows(params Params) (fast, slow int, err error) {
	fast, err = params.Int(ParamFastWindow)
	if err != nil {
		return 0, 0, err
	}
	slow, err = params.Int(ParamSlowWindow)
	if err != nil {
		return 0, 0, err
	}
	if fast < 1 {
		return 0, 0, fmt.Errorf("%s: must be >= 1, got %d: %w", ParamFastWindow, fast, ErrInvalidParameter)
	}
	if slow <= fast {
		return 0, 0, fmt.Errorf("%s: must exceed %s (%d), got %d: %w", ParamSlowWindow, ParamFastWindow, fast, slow, ErrInvalidParameter)
	}
	return fast, slow, nil
}
