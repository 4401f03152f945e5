// Package backtest simulates intent sequences against market series and
// reduces the resulting trades into performance reports.
package backtest

import (
	"fmt"

	"github.com/yourusername/quant-grid/internal/market"
	"github.com/yourusername/quant-grid/internal/strategy"
)

// Engine applies intent sequences to market series. It holds only its
// config: every Simulate call is independent and reentrant, so one engine
// may serve many goroutines.
type Engine struct {
	cfg Config
}

// NewEngine validates the config and returns an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Result carries the outputs of one simulation run.
type Result struct {
	Trades      []Trade     `json:"trades"`
	Equity      EquityCurve `json:"equity"`
	FinalEquity float64     `json:"final_equity"`
}

// position is the engine's single open exposure during a run.
type position struct {
	side       strategy.Side
	entryIndex int
	entryPrice float64
	units      float64
}

func (p position) unrealized(markPrice float64) float64 {
	if p.side == strategy.Flat || p.units == 0 {
		return 0
	}
	return (markPrice - p.entryPrice) * p.side.Direction() * p.units
}

// Simulate walks the series once, applying the state machine
// flat -> long/short -> flat. Transitions fill at the configured execution
// price; a position still open after the last bar is force-closed at the
// final close so every run ends flat. The equity curve marks open positions
// to each bar's close.
func (e *Engine) Simulate(series *market.Series, intents []strategy.Side) (*Result, error) {
	if series == nil {
		return nil, fmt.Errorf("%w: series is nil", ErrInputMismatch)
	}
	n := series.Len()
	if len(intents) != n {
		return nil, fmt.Errorf("%w: %d intents for %d bars", ErrInputMismatch, len(intents), n)
	}
	for i, intent := range intents {
		if !intent.IsValid() {
			return nil, fmt.Errorf("%w: bar %d has unknown intent %q", ErrInputMismatch, i, intent)
		}
	}

	cash := e.cfg.StartingCapital
	pos := position{side: strategy.Flat}
	trades := []Trade{}
	values := make([]float64, n)

	for i := 0; i < n; i++ {
		desired, fillPrice, fillable := e.fillAt(series, intents, i)
		if fillable && desired != pos.side {
			if pos.side != strategy.Flat {
				reason := CloseSignal
				if desired != strategy.Flat {
					reason = CloseReversal
				}
				trade := e.closeTrade(&pos, i, fillPrice, reason)
				trades = append(trades, trade)
				cash += trade.PnL
			}
			if desired != strategy.Flat {
				pos = e.openPosition(desired, i, fillPrice, cash)
			}
		}
		values[i] = cash + pos.unrealized(series.At(i).Close)
	}

	if pos.side != strategy.Flat {
		trade := e.closeTrade(&pos, n-1, series.Last().Close, CloseForced)
		trades = append(trades, trade)
		cash += trade.PnL
		values[n-1] = cash
	}

	return &Result{
		Trades:      trades,
		Equity:      newEquityCurve(series, values),
		FinalEquity: cash,
	}, nil
}

// fillAt resolves the desired side and fill price for bar i under the
// configured execution policy.
func (e *Engine) fillAt(series *market.Series, intents []strategy.Side, i int) (strategy.Side, float64, bool) {
	if e.cfg.Execution == ExecNextOpen {
		if i == 0 {
			return strategy.Flat, 0, false
		}
		return intents[i-1], series.At(i).Open, true
	}
	return intents[i], series.At(i).Close, true
}

func (e *Engine) openPosition(side strategy.Side, index int, price float64, equity float64) position {
	units := e.cfg.FixedUnits
	if e.cfg.Sizing == SizeFullCapital {
		units = equity / price
		if units < 0 {
			units = 0
		}
	}
	return position{side: side, entryIndex: index, entryPrice: price, units: units}
}

func (e *Engine) closeTrade(pos *position, exitIndex int, exitPrice float64, reason CloseReason) Trade {
	direction := pos.side.Direction()
	rawReturn := (exitPrice - pos.entryPrice) / pos.entryPrice * direction
	clamped := e.cfg.Costs.clampReturn(rawReturn)

	effectiveExit := exitPrice
	if clamped != rawReturn {
		effectiveExit = pos.entryPrice * (1 + clamped*direction)
	}

	entryNotional := pos.entryPrice * pos.units
	exitNotional := effectiveExit * pos.units
	gross := pos.entryPrice * clamped * pos.units
	fees := 2*e.cfg.Costs.Commission + e.cfg.Costs.FeeRate*(entryNotional+exitNotional)
	pnl := gross - fees

	returnPct := 0.0
	if entryNotional != 0 {
		returnPct = pnl / entryNotional
	}

	trade := Trade{
		Side:       pos.side,
		EntryIndex: pos.entryIndex,
		EntryPrice: pos.entryPrice,
		ExitIndex:  exitIndex,
		ExitPrice:  effectiveExit,
		Units:      pos.units,
		PnL:        pnl,
		ReturnPct:  returnPct,
		Reason:     reason,
	}
	*pos = position{side: strategy.Flat}
	return trade
}

// Evaluate runs the full pipeline for one parameter set: rule intents,
// simulation, report. Reserved cost parameters in params override the
// engine config for this evaluation only.
func Evaluate(series *market.Series, rule strategy.Rule, params strategy.Params, cfg Config) (Report, *Result, error) {
	engCfg, err := cfg.WithParams(params)
	if err != nil {
		return Report{}, nil, err
	}
	engine, err := NewEngine(engCfg)
	if err != nil {
		return Report{}, nil, err
	}
	intents, err := rule.Intents(series, params)
	if err != nil {
		return Report{}, nil, fmt.Errorf("rule %s: %w", rule.Name(), err)
	}
	result, err := engine.Simulate(series, intents)
	if err != nil {
		return Report{}, nil, err
	}
	report := ComputeReport(result.Trades, result.Equity, engCfg.StartingCapital)
	return report, result, nil
}
