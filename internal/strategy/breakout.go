package strategy

import (
	"fmt"

	"github.com/yourusername/quant-grid/internal/market"
)

// RuleNameBoxBreakout is the registry name of the box breakout rule.
const RuleNameBoxBreakout = "box_breakout"

// BoxBreakout signals long when the close escapes above the highest close
// of the previous lookback_window bars, short when it drops below the
// lowest, and flat inside the box. The box covers strictly prior bars, so
// the intent at bar i never reads bar i's own close into the box.
type BoxBreakout struct{}

// Name returns the registry name.
func (BoxBreakout) Name() string {
	return RuleNameBoxBreakout
}

// MinBars requires the lookback window plus one bar that can break out.
func (BoxBreakout) MinBars(params Params) (int, error) {
	window, err := lookbackWindow(params)
	if err != nil {
		return 0, err
	}
	return window + 1, nil
}

// Intents computes one side per bar. Bars inside the warmup window are flat.
func (r BoxBreakout) Intents(series *market.Series, params Params) ([]Side, error) {
	window, err := lookbackWindow(params)
	if err != nil {
		return nil, err
	}
	if err := checkLength(series, window+1, r.Name()); err != nil {
		return nil, err
	}

	closes := series.Closes()
	intents := make([]Side, len(closes))
	for i := range intents {
		intents[i] = Flat
	}

	for i := window; i < len(closes); i++ {
		boxHigh, boxLow := rangeBounds(closes[i-window : i])
		switch {
		case closes[i] > boxHigh:
			intents[i] = Long
		case closes[i] < boxLow:
			intents[i] = Short
		}
	}

	return intents, nil
}

func lookbackWindow(params Params) (int, error) {
	window, err := params.Int(ParamLookbackWindow)
	if err != nil {
		return 0, err
	}
	if window < 1 {
		return 0, fmt.Errorf("%s: must be >= 1, got %d: %w", ParamLookbackWindow, window, ErrInvalidParameter)
	}
	return window, nil
}

func rangeBounds(window []float64) (high, low float64) {
	high, low = window[0], window[0]
	for _, c := range window[1:] {
		if c > high {
			high = c
		}
		if c < low {
			low = c
		}
	}
	return high, low
}
