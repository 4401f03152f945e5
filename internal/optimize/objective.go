package optimize

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/quant-grid/internal/backtest"
)

// Objective turns a report into the score a sweep ranks by. Higher is
// better.
type Objective struct {
	Name  string
	Score func(backtest.Report) float64
}

// Registered objective names.
const (
	ObjectiveWinRate    = "win_rate"
	ObjectiveNetProfit  = "net_profit"
	ObjectiveExpectancy = "expectancy"
	ObjectiveSharpe     = "sharpe"
	ObjectiveComposite  = "composite"
)

// ObjectiveByName returns the objective registered under name. An empty
// name selects win_rate.
func ObjectiveByName(name string) (Objective, error) {
	switch name {
	case ObjectiveWinRate, "":
		return Objective{Name: ObjectiveWinRate, Score: func(r backtest.Report) float64 { return r.WinRate }}, nil
	case ObjectiveNetProfit:
		return Objective{Name: ObjectiveNetProfit, Score: func(r backtest.Report) float64 { return r.NetProfit }}, nil
	case ObjectiveExpectancy:
		return Objective{Name: ObjectiveExpectancy, Score: func(r backtest.Report) float64 { return r.Expectancy }}, nil
	case ObjectiveSharpe:
		return Objective{Name: ObjectiveSharpe, Score: func(r backtest.Report) float64 { return r.SharpeRatio }}, nil
	case ObjectiveComposite:
		return Objective{Name: ObjectiveComposite, Score: CompositeScore}, nil
	default:
		return Objective{}, fmt.Errorf("unknown objective: %s", name)
	}
}

// ObjectiveNames lists the registered objectives, for config validation and
// CLI help text.
func ObjectiveNames() []string {
	return []string{ObjectiveWinRate, ObjectiveNetProfit, ObjectiveExpectancy, ObjectiveSharpe, ObjectiveComposite}
}

// CompositeScore blends the report into a single [0,1] fitness value
// weighting risk-adjusted return highest and penalizing drawdown.
func CompositeScore(r backtest.Report) float64 {
	sharpeScore := normalize(r.SharpeRatio, -2, 3)
	returnScore := normalize(r.NetProfitPct, -0.5, 1.0)
	profitFactorScore := normalize(r.ProfitFactor, 0, 3)
	drawdownPenalty := 1.0 - normalize(r.MaxDrawdown, 0, 0.5)
	winRateScore := normalize(r.WinRate, 0, 1)

	weighted := 0.0
	weighted += sharpeScore * 0.30
	weighted += returnScore * 0.20
	weighted += profitFactorScore * 0.20
	weighted += drawdownPenalty * 0.15
	weighted += winRateScore * 0.15
	return weighted
}

func normalize(value, min, max float64) float64 {
	if max-min == 0 {
		return 0
	}
	v := (value - min) / (max - min)
	return math.Max(0, math.Min(1, v))
}

// rankEvaluations orders successful evaluations by score, breaking ties by
// net profit and then by parameter hash so the ranking is identical no
// matter how many workers raced to produce it. Failures keep Rank 0 and
// trail the ranked block.
func rankEvaluations(evals []Evaluation) []Evaluation {
	ranked := make([]Evaluation, 0, len(evals))
	failed := make([]Evaluation, 0)
	for _, ev := range evals {
		if ev.Failed() {
			failed = append(failed, ev)
			continue
		}
		ranked = append(ranked, ev)
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Report.NetProfit != b.Report.NetProfit {
			return a.Report.NetProfit > b.Report.NetProfit
		}
		return a.Params.Hash() < b.Params.Hash()
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	sort.Slice(failed, func(i, j int) bool {
		return failed[i].Params.Hash() < failed[j].Params.Hash()
	})
	return append(ranked, failed...)
}

// filterQualified keeps ranked evaluations that clear the trade-count and
// win-rate thresholds.
func filterQualified(evals []Evaluation, minTrades int, minWinRate float64) []Evaluation {
	out := make([]Evaluation, 0, len(evals))
	for _, ev := range evals {
		if ev.Failed() {
			continue
		}
		if ev.Report.TradeCount < minTrades {
			continue
		}
		if ev.Report.WinRate < minWinRate {
			continue
		}
		out = append(out, ev)
	}
	return out
}
