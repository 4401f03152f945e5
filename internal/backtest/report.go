package backtest

import (
	"encoding/json"
	"math"
	"sort"
)

// profitFactorCap stands in for an infinite profit factor when a run has
// winners but no losers.
const profitFactorCap = 999

// Report is the performance summary of one evaluation. AvgLoss and
// LargestLoss are positive magnitudes. MaxDrawdown is the peak-to-trough
// decline as a positive fraction of the peak; MaxDrawdownAbs is the same
// decline in account currency.
type Report struct {
	WinRate         float64 `json:"win_rate"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	MaxDrawdownAbs  float64 `json:"max_drawdown_abs"`
	Expectancy      float64 `json:"expectancy"`
	NetProfit       float64 `json:"net_profit"`
	NetProfitPct    float64 `json:"net_profit_pct"`
	TradeCount      int     `json:"trade_count"`
	WinCount        int     `json:"win_count"`
	LossCount       int     `json:"loss_count"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	LargestWin      float64 `json:"largest_win"`
	LargestLoss     float64 `json:"largest_loss"`
	ProfitFactor    float64 `json:"profit_factor"`
	SharpeRatio     float64 `json:"sharpe_ratio"`
	SortinoRatio    float64 `json:"sortino_ratio"`
	StartingCapital float64 `json:"starting_capital"`
	FinalEquity     float64 `json:"final_equity"`
}

// ComputeReport reduces a trade log and equity curve into a Report. It is a
// pure function of its inputs: no state survives between calls, so parallel
// optimizer workers can share it freely.
func ComputeReport(trades []Trade, curve EquityCurve, startingCapital float64) Report {
	report := Report{StartingCapital: startingCapital}

	report.TradeCount = len(trades)
	stats := calculateTradeStats(trades)
	report.WinCount = stats.wins
	report.LossCount = stats.losses
	report.AvgWin = stats.avgWin
	report.AvgLoss = stats.avgLoss
	report.LargestWin = stats.largestWin
	report.LargestLoss = stats.largestLoss
	report.WinRate = calculateWinRate(stats.wins, len(trades))
	report.ProfitFactor = calculateProfitFactor(stats.grossProfit, stats.grossLoss)
	report.Expectancy = report.WinRate*stats.avgWin - (1-report.WinRate)*stats.avgLoss

	if len(curve) > 0 {
		final := curve.Final()
		report.FinalEquity = final
		report.NetProfit = final - startingCapital
		if startingCapital != 0 {
			report.NetProfitPct = report.NetProfit / startingCapital
		}
		report.MaxDrawdown, report.MaxDrawdownAbs = calculateMaxDrawdown(curve)
		returns := curve.GetReturns()
		report.SharpeRatio = calculateSharpeRatio(returns, 0)
		report.SortinoRatio = calculateSortinoRatio(returns, 0)
	}

	return report
}

// ToJSON exports the report to JSON.
func (r Report) ToJSON() string {
	data, _ := json.Marshal(r)
	return string(data)
}

type tradeStats struct {
	wins        int
	losses      int
	avgWin      float64
	avgLoss     float64
	largestWin  float64
	largestLoss float64
	grossProfit float64
	grossLoss   float64
}

func calculateTradeStats(trades []Trade) tradeStats {
	var stats tradeStats
	for _, trade := range trades {
		pnl := trade.PnL
		if pnl > 0 {
			stats.wins++
			stats.grossProfit += pnl
			if pnl > stats.largestWin {
				stats.largestWin = pnl
			}
		} else if pnl < 0 {
			stats.losses++
			stats.grossLoss += -pnl
			if -pnl > stats.largestLoss {
				stats.largestLoss = -pnl
			}
		}
	}
	if stats.wins > 0 {
		stats.avgWin = stats.grossProfit / float64(stats.wins)
	}
	if stats.losses > 0 {
		stats.avgLoss = stats.grossLoss / float64(stats.losses)
	}
	return stats
}

func calculateWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func calculateProfitFactor(grossProfit, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossProfit > 0 {
			return profitFactorCap
		}
		return 0
	}
	return grossProfit / grossLoss
}

func calculateMaxDrawdown(curve EquityCurve) (fraction, absolute float64) {
	peak := 0.0
	for _, point := range curve {
		if point.Value > peak {
			peak = point.Value
		}
		if peak == 0 {
			continue
		}
		dd := (peak - point.Value) / peak
		if dd > fraction {
			fraction = dd
		}
		if peak-point.Value > absolute {
			absolute = peak - point.Value
		}
	}
	return fraction, absolute
}

func calculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return (mean - riskFreeRate/252.0) / std * math.Sqrt(252)
}

func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := downsideStddev(returns)
	if std == 0 {
		return 0
	}
	return (mean - riskFreeRate/252.0) / std * math.Sqrt(252)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func downsideStddev(values []float64) float64 {
	negatives := make([]float64, 0)
	for _, v := range values {
		if v < 0 {
			negatives = append(negatives, v)
		}
	}
	return stddev(negatives)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
