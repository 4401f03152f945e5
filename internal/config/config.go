// Package config provides configuration management for the Quant Grid application.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Data      DataConfig      `mapstructure:"data" validate:"required"`
	Backtest  BacktestConfig  `mapstructure:"backtest" validate:"required"`
	Optimizer OptimizerConfig `mapstructure:"optimizer" validate:"required"`
	Metrics   MetricsConfig   `mapstructure:"metrics" validate:"required"`
	Health    HealthConfig    `mapstructure:"health" validate:"required"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Features  FeaturesConfig  `mapstructure:"features"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	LogFormat   string `mapstructure:"log_format" validate:"omitempty,oneof=text json"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// DataConfig represents market data acquisition configuration
type DataConfig struct {
	Source    string          `mapstructure:"source" validate:"required,datasource"`
	Symbol    string          `mapstructure:"symbol" validate:"required"`
	Interval  string          `mapstructure:"interval" validate:"required"`
	CSV       CSVConfig       `mapstructure:"csv"`
	API       CandleAPIConfig `mapstructure:"api"`
	Synthetic SyntheticConfig `mapstructure:"synthetic"`
}

// CSVConfig represents the csv data source configuration
type CSVConfig struct {
	Path string `mapstructure:"path"`
}

// CandleAPIConfig represents the candle_api data source configuration
type CandleAPIConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
	Bars           int    `mapstructure:"bars" validate:"omitempty,gt=0"`
}

// SyntheticConfig represents the synthetic data source configuration
type SyntheticConfig struct {
	Bars       int     `mapstructure:"bars" validate:"omitempty,gt=0"`
	StartPrice float64 `mapstructure:"start_price" validate:"omitempty,gt=0"`
	Drift      float64 `mapstructure:"drift"`
	Volatility float64 `mapstructure:"volatility" validate:"gte=0"`
	Seed       int64   `mapstructure:"seed"`
}

// BacktestConfig represents simulation engine configuration
type BacktestConfig struct {
	StartingCapital      float64 `mapstructure:"starting_capital" validate:"required,gt=0"`
	ExecutionPolicy      string  `mapstructure:"execution_policy" validate:"required,execution"`
	SizingMode           string  `mapstructure:"sizing_mode" validate:"required,sizing"`
	FixedUnits           float64 `mapstructure:"fixed_units" validate:"gte=0"`
	Commission           float64 `mapstructure:"commission" validate:"gte=0"`
	FeeRate              float64 `mapstructure:"fee_rate" validate:"gte=0,lt=1"`
	StopLossPct          float64 `mapstructure:"stop_loss_pct" validate:"gte=0,lt=1"`
	TakeProfitPct        float64 `mapstructure:"take_profit_pct" validate:"gte=0"`
	MonteCarloIterations int     `mapstructure:"monte_carlo_iterations" validate:"required,gt=0"`
	MonteCarloSeed       int64   `mapstructure:"monte_carlo_seed"`
	RuinThreshold        float64 `mapstructure:"ruin_threshold" validate:"gte=0,lt=1"`
}

// OptimizerConfig represents grid search configuration
type OptimizerConfig struct {
	Rule            string            `mapstructure:"rule" validate:"required,rulename"`
	Objective       string            `mapstructure:"objective" validate:"required,objective"`
	Workers         int               `mapstructure:"workers" validate:"gte=0"`
	TopN            int               `mapstructure:"top_n" validate:"gte=0"`
	MinTrades       int               `mapstructure:"min_trades" validate:"gte=0"`
	MinWinRate      float64           `mapstructure:"min_win_rate" validate:"gte=0,lte=1"`
	CacheTTLSeconds int               `mapstructure:"cache_ttl_seconds" validate:"required,gt=0"`
	CacheMaxSize    int               `mapstructure:"cache_max_size" validate:"required,gt=0"`
	Grid            []GridAxisConfig  `mapstructure:"grid" validate:"required,min=1,dive"`
	WalkForward     WalkForwardConfig `mapstructure:"walk_forward"`
}

// GridAxisConfig represents a single parameter axis of the search grid.
// An axis carries either an explicit value list or a min/max/step range.
type GridAxisConfig struct {
	Name   string    `mapstructure:"name" validate:"required"`
	Values []float64 `mapstructure:"values"`
	Min    float64   `mapstructure:"min"`
	Max    float64   `mapstructure:"max"`
	Step   float64   `mapstructure:"step"`
}

// WalkForwardConfig represents walk-forward analysis configuration
type WalkForwardConfig struct {
	TrainBars          int `mapstructure:"train_bars" validate:"omitempty,gt=0"`
	TestBars           int `mapstructure:"test_bars" validate:"omitempty,gt=0"`
	StepBars           int `mapstructure:"step_bars" validate:"gte=0"`
	MinTradesPerWindow int `mapstructure:"min_trades_per_window" validate:"gte=0"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Path    string `mapstructure:"path" validate:"required"`
}

// HealthConfig represents health endpoint configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port" validate:"required,min=1,max=65535"`
}

// ScheduleConfig represents periodic sweep scheduling
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sweep   string `mapstructure:"sweep"`
}

// FeaturesConfig represents feature flags
type FeaturesConfig struct {
	MonteCarloEnabled  bool `mapstructure:"monte_carlo_enabled"`
	WalkForwardEnabled bool `mapstructure:"walk_forward_enabled"`
	PersistenceEnabled bool `mapstructure:"persistence_enabled"`
	CacheEnabled       bool `mapstructure:"cache_enabled"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
