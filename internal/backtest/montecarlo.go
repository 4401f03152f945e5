package backtest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// MonteCarloConfig configures trade resampling.
type MonteCarloConfig struct {
	Iterations      int
	Seed            int64
	StartingCapital float64
	// RuinThreshold is the fraction of starting capital at or below which a
	// path counts as ruined. Zero means ruin at an empty account.
	RuinThreshold float64
}

// MonteCarloResult summarises the distribution of resampled equity paths.
// Returns are expressed as fractions of starting capital.
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	MeanReturn          float64            `json:"mean_return"`
	StdReturn           float64            `json:"std_return"`
	VaR95               float64            `json:"var_95"`
	VaR99               float64            `json:"var_99"`
	ProbabilityOfProfit float64            `json:"probability_of_profit"`
	ProbabilityOfRuin   float64            `json:"probability_of_ruin"`
	EquityPercentiles   map[string]float64 `json:"equity_percentiles"`
	DrawdownPercentiles map[string]float64 `json:"drawdown_percentiles"`
	ConfidenceIntervals map[string]float64 `json:"confidence_intervals"`
	Distribution        []float64          `json:"distribution"`
}

var percentileBands = []float64{0.05, 0.25, 0.50, 0.75, 0.95}

// RunMonteCarlo bootstraps the realized trade log: each iteration replays
// len(trades) PnLs drawn with replacement and records the final equity and
// the worst drawdown along the path. The same seed always produces the same
// result.
func RunMonteCarlo(trades []Trade, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if len(trades) == 0 {
		return MonteCarloResult{}, errors.New("backtest: monte carlo requires at least one trade")
	}
	if cfg.StartingCapital <= 0 {
		return MonteCarloResult{}, errors.New("backtest: monte carlo requires positive starting capital")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	ruinLevel := cfg.StartingCapital * cfg.RuinThreshold

	pnls := make([]float64, len(trades))
	for i, trade := range trades {
		pnls[i] = trade.PnL
	}

	rng := rand.New(rand.NewSource(seed))
	finals := make([]float64, cfg.Iterations)
	drawdowns := make([]float64, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		equity := cfg.StartingCapital
		peak := equity
		worst := 0.0
		for range pnls {
			equity += pnls[rng.Intn(len(pnls))]
			if equity > peak {
				peak = equity
			}
			if peak > 0 {
				if dd := (peak - equity) / peak; dd > worst {
					worst = dd
				}
			}
			if equity <= ruinLevel {
				equity = ruinLevel
				break
			}
		}
		finals[i] = equity
		drawdowns[i] = worst
	}

	mean := average(finals)
	std := stddev(finals)
	var95 := percentile(finals, 0.05)
	var99 := percentile(finals, 0.01)

	result := MonteCarloResult{
		Iterations:          cfg.Iterations,
		MeanReturn:          (mean - cfg.StartingCapital) / cfg.StartingCapital,
		StdReturn:           std / cfg.StartingCapital,
		VaR95:               (var95 - cfg.StartingCapital) / cfg.StartingCapital,
		VaR99:               (var99 - cfg.StartingCapital) / cfg.StartingCapital,
		ProbabilityOfProfit: probabilityAbove(finals, cfg.StartingCapital),
		ProbabilityOfRuin:   probabilityAtOrBelow(finals, ruinLevel),
		EquityPercentiles:   percentileMap(finals, percentileBands),
		DrawdownPercentiles: percentileMap(drawdowns, percentileBands),
		ConfidenceIntervals: calculateConfidenceIntervals(finals, []float64{0.9, 0.95, 0.99}),
		Distribution:        finals,
	}

	return result, nil
}

// ToJSON exports the result to JSON.
func (m MonteCarloResult) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func calculateConfidenceIntervals(distribution []float64, levels []float64) map[string]float64 {
	results := make(map[string]float64)
	for _, level := range levels {
		p := (1.0 - level) / 2.0
		low := percentile(distribution, p)
		high := percentile(distribution, 1.0-p)
		results[formatPercent(level)] = high - low
	}
	return results
}

func percentileMap(values []float64, bands []float64) map[string]float64 {
	results := make(map[string]float64, len(bands))
	for _, band := range bands {
		results[fmt.Sprintf("p%02.0f", band*100)] = percentile(values, band)
	}
	return results
}

func probabilityAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func probabilityAtOrBelow(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func formatPercent(level float64) string {
	return fmt.Sprintf("%.0f%%", level*100)
}
