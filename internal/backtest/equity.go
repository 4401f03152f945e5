package backtest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/yourusername/quant-grid/internal/market"
)

// EquityPoint is the account value at one bar, marked to that bar's close.
// Drawdown is the fractional decline from the running peak.
type EquityPoint struct {
	Time     time.Time `json:"time"`
	Value    float64   `json:"value"`
	Drawdown float64   `json:"drawdown"`
}

// EquityCurve is the per-bar account value of one run. Its length always
// equals the series length and the first value equals starting capital.
type EquityCurve []EquityPoint

func newEquityCurve(series *market.Series, values []float64) EquityCurve {
	curve := make(EquityCurve, len(values))
	peak := 0.0
	for i, v := range values {
		if v > peak {
			peak = v
		}
		drawdown := 0.0
		if peak > 0 && v < peak {
			drawdown = (peak - v) / peak
		}
		curve[i] = EquityPoint{Time: series.At(i).Timestamp, Value: v, Drawdown: drawdown}
	}
	return curve
}

// GetReturns calculates per-bar returns from the curve.
func (e EquityCurve) GetReturns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].Value
		curr := e[i].Value
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, (curr-prev)/prev)
	}
	return returns
}

// Final returns the last equity value, or 0 for an empty curve.
func (e EquityCurve) Final() float64 {
	if len(e) == 0 {
		return 0
	}
	return e[len(e)-1].Value
}

// ToCSV exports the curve as CSV.
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("time,value,drawdown\n")
	for _, point := range e {
		buf.WriteString(point.Time.Format(time.RFC3339))
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(point.Value, 'f', 6, 64))
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(point.Drawdown, 'f', 6, 64))
		buf.WriteString("\n")
	}
	return buf.String()
}

// ToJSON exports the curve as JSON.
func (e EquityCurve) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}
