package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SweepEvaluation represents one persisted parameter set result
type SweepEvaluation struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	SweepID      uuid.UUID       `db:"sweep_id" json:"sweep_id"`
	Rule         string          `db:"rule" json:"rule"`
	Params       json.RawMessage `db:"params" json:"params"`
	Score        float64         `db:"score" json:"score"`
	Rank         int             `db:"rank" json:"rank"`
	WinRate      float64         `db:"win_rate" json:"win_rate"`
	NetProfit    float64         `db:"net_profit" json:"net_profit"`
	MaxDrawdown  float64         `db:"max_drawdown" json:"max_drawdown"`
	Expectancy   float64         `db:"expectancy" json:"expectancy"`
	ProfitFactor float64         `db:"profit_factor" json:"profit_factor"`
	SharpeRatio  float64         `db:"sharpe_ratio" json:"sharpe_ratio"`
	TradeCount   int             `db:"trade_count" json:"trade_count"`
	DurationMS   int64           `db:"duration_ms" json:"duration_ms"`
	Failure      string          `db:"failure" json:"failure,omitempty"`
	FullReport   json.RawMessage `db:"full_report" json:"full_report"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Succeeded reports whether the evaluation produced a report.
func (e *SweepEvaluation) Succeeded() bool {
	return e.Failure == ""
}

// GetParam retrieves a parameter value from the Params JSON
func (e *SweepEvaluation) GetParam(key string) (interface{}, error) {
	if e.Params == nil {
		return nil, nil
	}

	var params map[string]interface{}
	if err := json.Unmarshal(e.Params, &params); err != nil {
		return nil, err
	}

	return params[key], nil
}
