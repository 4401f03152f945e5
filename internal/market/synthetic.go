package market

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// GBMConfig configures the synthetic data generator. The zero value is not
// usable; start from DefaultGBMConfig and override fields as needed.
type GBMConfig struct {
	Bars       int           // number of bars to generate
	StartPrice float64       // price level the walk starts from
	Drift      float64       // mean of the per-bar simple return
	Volatility float64       // stddev of the per-bar simple return
	WickScale  float64       // stddev of the high/low wick extension
	BaseVolume float64       // volume level each bar fluctuates around
	Seed       int64         // RNG seed; identical seeds reproduce the series
	Start      time.Time     // timestamp of the first bar
	Interval   time.Duration // spacing between bars
}

// DefaultGBMConfig returns generator defaults: a 5-second random walk
// around 100 with intraday-scale volatility.
func DefaultGBMConfig() GBMConfig {
	return GBMConfig{
		Bars:       10000,
		StartPrice: 100,
		Drift:      0.00001,
		Volatility: 0.0005,
		WickScale:  0.0002,
		BaseVolume: 1000,
		Seed:       42,
		Start:      time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:   5 * time.Second,
	}
}

// GenerateGBM produces a synthetic series via a geometric-Brownian-motion
// price path: close[i] = close[i-1] * (1 + r_i) with r_i drawn from
// N(drift, volatility), open[i] = close[i-1], and high/low wicks extended
// beyond the open/close envelope by a small absolute-normal noise. The
// output is deterministic for a fixed config.
func GenerateGBM(cfg GBMConfig) (*Series, error) {
	if cfg.Bars < MinSeriesLength {
		return nil, fmt.Errorf("%w: generator needs at least %d bars, got %d", ErrInvalidSeries, MinSeriesLength, cfg.Bars)
	}
	if cfg.StartPrice <= 0 {
		return nil, fmt.Errorf("%w: start price must be positive, got %g", ErrInvalidSeries, cfg.StartPrice)
	}
	if cfg.Volatility < 0 || cfg.WickScale < 0 {
		return nil, fmt.Errorf("%w: volatility and wick scale must be non-negative", ErrInvalidSeries)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: interval must be positive, got %s", ErrInvalidSeries, cfg.Interval)
	}
	start := cfg.Start
	if start.IsZero() {
		start = DefaultGBMConfig().Start
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	bars := make([]Bar, cfg.Bars)
	prevClose := cfg.StartPrice

	for i := range bars {
		ret := cfg.Drift + cfg.Volatility*rng.NormFloat64()
		closePx := prevClose * (1 + ret)
		if closePx <= 0 {
			closePx = prevClose
		}
		openPx := prevClose
		if i == 0 {
			openPx = closePx
		}

		hi := math.Max(openPx, closePx) * (1 + math.Abs(cfg.WickScale*rng.NormFloat64()))
		lo := math.Min(openPx, closePx) * (1 - math.Abs(cfg.WickScale*rng.NormFloat64()))
		volume := cfg.BaseVolume * (1 + math.Abs(0.3*rng.NormFloat64()))

		bars[i] = Bar{
			Timestamp: start.Add(time.Duration(i) * cfg.Interval),
			Open:      openPx,
			High:      hi,
			Low:       lo,
			Close:     closePx,
			Volume:    volume,
		}
		prevClose = closePx
	}

	return NewSeries(bars)
}
