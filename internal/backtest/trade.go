package backtest

import "github.com/yourusername/quant-grid/internal/strategy"

// CloseReason records why a position was closed.
type CloseReason string

// Close reasons.
const (
	// CloseSignal is a close triggered by a flat intent.
	CloseSignal CloseReason = "signal"
	// CloseReversal is a close immediately followed by an opposite entry
	// on the same bar.
	CloseReversal CloseReason = "reversal"
	// CloseForced is the end-of-series close that guarantees every run
	// finishes flat.
	CloseForced CloseReason = "force_close"
)

// Trade is one completed round trip. PnL is net of costs in account
// currency; ReturnPct is PnL over the entry notional. ExitPrice is the
// effective exit: when a stop-loss or take-profit cap clamps the trade,
// it reflects the clamped level rather than the raw bar price.
type Trade struct {
	Side       strategy.Side `json:"side"`
	EntryIndex int           `json:"entry_index"`
	EntryPrice float64       `json:"entry_price"`
	ExitIndex  int           `json:"exit_index"`
	ExitPrice  float64       `json:"exit_price"`
	Units      float64       `json:"units"`
	PnL        float64       `json:"pnl"`
	ReturnPct  float64       `json:"return_pct"`
	Reason     CloseReason   `json:"reason"`
}
