package datasource

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/yourusername/quant-grid/internal/config"
	"github.com/yourusername/quant-grid/internal/market"
)

// SourceType represents the type of data source
type SourceType string

const (
	// CSV file data source type
	CSVSourceType SourceType = "csv"
	// Candle API data source type
	CandleAPISourceType SourceType = "candle_api"
	// Synthetic generator data source type
	SyntheticSourceType SourceType = "synthetic"
)

// Factory creates Source implementations based on configuration
type Factory struct {
	logger *log.Logger
	config *config.Config
}

// NewFactory creates a new data source factory
func NewFactory(cfg *config.Config, logger *log.Logger) *Factory {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Factory{
		logger: logger,
		config: cfg,
	}
}

// NewSource creates the Source selected by data.source in the configuration
func (f *Factory) NewSource() (Source, error) {
	if f.config == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	return f.Create(SourceType(f.config.Data.Source))
}

// Create creates a new data source based on the type
func (f *Factory) Create(sourceType SourceType) (Source, error) {
	switch sourceType {
	case CSVSourceType:
		return f.createCSVSource()
	case CandleAPISourceType:
		return f.createCandleAPISource()
	case SyntheticSourceType:
		return f.createSyntheticSource()
	default:
		return nil, fmt.Errorf("unknown data source type: %s", sourceType)
	}
}

// createCSVSource creates a CSV file data source
func (f *Factory) createCSVSource() (Source, error) {
	if f.config.Data.CSV.Path == "" {
		return nil, fmt.Errorf("csv source requires data.csv.path")
	}
	return NewCSVSource(f.config.Data.CSV.Path, f.logger), nil
}

// createCandleAPISource creates a candle API data source
func (f *Factory) createCandleAPISource() (Source, error) {
	apiCfg := f.config.Data.API
	if apiCfg.BaseURL == "" {
		return nil, fmt.Errorf("candle_api source requires data.api.base_url")
	}

	httpCfg := DefaultHTTPClientConfig()
	if apiCfg.TimeoutSeconds > 0 {
		httpCfg.Timeout = time.Duration(apiCfg.TimeoutSeconds) * time.Second
	}
	httpClient := NewRateLimitedHTTPClient(httpCfg, f.logger)

	return NewCandleAPIClient(
		httpClient,
		apiCfg.BaseURL,
		apiCfg.APIKey,
		f.config.Data.Symbol,
		f.config.Data.Interval,
		apiCfg.Bars,
		f.logger,
	), nil
}

// createSyntheticSource creates a synthetic data source
func (f *Factory) createSyntheticSource() (Source, error) {
	synthCfg := f.config.Data.Synthetic

	gbm := market.DefaultGBMConfig()
	if synthCfg.Bars > 0 {
		gbm.Bars = synthCfg.Bars
	}
	if synthCfg.StartPrice > 0 {
		gbm.StartPrice = synthCfg.StartPrice
	}
	if synthCfg.Drift != 0 {
		gbm.Drift = synthCfg.Drift
	}
	if synthCfg.Volatility > 0 {
		gbm.Volatility = synthCfg.Volatility
	}
	if synthCfg.Seed != 0 {
		gbm.Seed = synthCfg.Seed
	}
	if interval, err := time.ParseDuration(f.config.Data.Interval); err == nil && interval > 0 {
		gbm.Interval = interval
	}

	return NewSyntheticSource(gbm, f.logger), nil
}

// ListAvailableSources returns a list of available source types
func (f *Factory) ListAvailableSources() []SourceType {
	return []SourceType{CSVSourceType, CandleAPISourceType, SyntheticSourceType}
}
