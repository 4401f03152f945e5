package backtest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/yourusername/quant-grid/internal/strategy"
)

// ExecutionPolicy fixes the price a transition fills at. One policy applies
// uniformly to every entry and exit of a run; this is the engine's
// anti-look-ahead guarantee.
type ExecutionPolicy string

// Execution policies.
const (
	// ExecSignalClose fills at the close of the bar whose intent
	// triggered the transition.
	ExecSignalClose ExecutionPolicy = "signal_close"
	// ExecNextOpen fills at the open of the following bar. A transition
	// signalled on the final bar has nothing left to fill at and is
	// dropped.
	ExecNextOpen ExecutionPolicy = "next_open"
)

// SizingMode fixes how many units each entry takes on.
type SizingMode string

// Sizing modes.
const (
	// SizeFixedUnits opens every position with Config.FixedUnits units.
	SizeFixedUnits SizingMode = "fixed_units"
	// SizeFullCapital reinvests current equity at each entry, compounding
	// returns across trades.
	SizeFullCapital SizingMode = "full_capital"
)

// CostModel prices the frictions applied to each trade. Commission and
// FeeRate are charged on both entry and exit. The stop-loss/take-profit
// percentages, when set, clamp a trade's raw price return at exit,
// emulating a protective order at that distance; zero disables a cap.
type CostModel struct {
	Commission    float64 `json:"commission"`
	FeeRate       float64 `json:"fee_rate"`
	StopLossPct   float64 `json:"stop_loss_pct"`
	TakeProfitPct float64 `json:"take_profit_pct"`
}

func (c CostModel) clampReturn(r float64) float64 {
	if c.TakeProfitPct > 0 && r > c.TakeProfitPct {
		return c.TakeProfitPct
	}
	if c.StopLossPct > 0 && r < -c.StopLossPct {
		return -c.StopLossPct
	}
	return r
}

// Config parameterizes one engine. Engines hold no other state, so a config
// fully determines a simulation given a series and intents.
type Config struct {
	StartingCapital float64         `json:"starting_capital"`
	Execution       ExecutionPolicy `json:"execution"`
	Sizing          SizingMode      `json:"sizing"`
	FixedUnits      float64         `json:"fixed_units"`
	Costs           CostModel       `json:"costs"`
}

// DefaultConfig returns the stock engine setup: signal-close fills, one
// fixed unit per position, no frictions.
func DefaultConfig() Config {
	return Config{
		StartingCapital: 10000,
		Execution:       ExecSignalClose,
		Sizing:          SizeFixedUnits,
		FixedUnits:      1,
	}
}

// Validate checks the config invariants.
func (c Config) Validate() error {
	if c.StartingCapital <= 0 {
		return fmt.Errorf("starting capital must be positive, got %g", c.StartingCapital)
	}
	switch c.Execution {
	case ExecSignalClose, ExecNextOpen:
	default:
		return fmt.Errorf("unknown execution policy %q", c.Execution)
	}
	switch c.Sizing {
	case SizeFixedUnits:
		if c.FixedUnits <= 0 {
			return fmt.Errorf("fixed units must be positive, got %g", c.FixedUnits)
		}
	case SizeFullCapital:
	default:
		return fmt.Errorf("unknown sizing mode %q", c.Sizing)
	}
	if c.Costs.Commission < 0 || c.Costs.FeeRate < 0 {
		return fmt.Errorf("costs cannot be negative")
	}
	if c.Costs.FeeRate >= 1 {
		return fmt.Errorf("fee rate must be below 1, got %g", c.Costs.FeeRate)
	}
	if c.Costs.StopLossPct < 0 || c.Costs.TakeProfitPct < 0 {
		return fmt.Errorf("stop-loss and take-profit caps cannot be negative")
	}
	return nil
}

// WithParams returns a copy of the config with the reserved cost parameters
// applied. Grid axes named stop_loss_pct/take_profit_pct reach the cost
// model through here rather than through the rule.
func (c Config) WithParams(params strategy.Params) (Config, error) {
	out := c
	sl, err := params.FloatOr(strategy.ParamStopLossPct, c.Costs.StopLossPct)
	if err != nil {
		return Config{}, err
	}
	tp, err := params.FloatOr(strategy.ParamTakeProfitPct, c.Costs.TakeProfitPct)
	if err != nil {
		return Config{}, err
	}
	if sl < 0 || tp < 0 {
		return Config{}, fmt.Errorf("%s/%s must be non-negative: %w",
			strategy.ParamStopLossPct, strategy.ParamTakeProfitPct, strategy.ErrInvalidParameter)
	}
	out.Costs.StopLossPct = sl
	out.Costs.TakeProfitPct = tp
	return out, nil
}

// Hash returns a stable content hash of the config, used together with the
// series fingerprint and parameter hash as an evaluation cache key.
func (c Config) Hash() string {
	data, _ := json.Marshal(c)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}
