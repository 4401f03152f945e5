// Package config provides configuration management for the Quant Grid application.
package config

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Register custom validation functions
	v.RegisterValidation("environment", validateEnvironment)
	v.RegisterValidation("loglevel", validateLogLevel)
	v.RegisterValidation("datasource", validateDataSource)
	v.RegisterValidation("rulename", validateRuleName)
	v.RegisterValidation("objective", validateObjective)
	v.RegisterValidation("execution", validateExecutionPolicy)
	v.RegisterValidation("sizing", validateSizingMode)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	env := fl.Field().String()
	switch env {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateDataSource validates the data source type field
func validateDataSource(fl validator.FieldLevel) bool {
	source := fl.Field().String()
	switch source {
	case "csv", "candle_api", "synthetic":
		return true
	default:
		return false
	}
}

// validateRuleName validates the optimizer rule field
func validateRuleName(fl validator.FieldLevel) bool {
	rule := fl.Field().String()
	switch rule {
	case "box_breakout", "ma_crossover":
		return true
	default:
		return false
	}
}

// validateObjective validates the optimizer objective field
func validateObjective(fl validator.FieldLevel) bool {
	objective := fl.Field().String()
	switch objective {
	case "win_rate", "net_profit", "expectancy", "sharpe", "composite":
		return true
	default:
		return false
	}
}

// validateExecutionPolicy validates the backtest execution policy field
func validateExecutionPolicy(fl validator.FieldLevel) bool {
	policy := fl.Field().String()
	switch policy {
	case "signal_close", "next_open":
		return true
	default:
		return false
	}
}

// validateSizingMode validates the backtest sizing mode field
func validateSizingMode(fl validator.FieldLevel) bool {
	mode := fl.Field().String()
	switch mode {
	case "fixed_units", "full_capital":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	// Validate source-specific requirements
	switch cfg.Data.Source {
	case "csv":
		if cfg.Data.CSV.Path == "" {
			return fmt.Errorf("csv data source requires data.csv.path")
		}
	case "candle_api":
		if cfg.Data.API.BaseURL == "" {
			return fmt.Errorf("candle_api data source requires data.api.base_url")
		}
	}

	// Validate fixed sizing has a unit count
	if cfg.Backtest.SizingMode == "fixed_units" && cfg.Backtest.FixedUnits <= 0 {
		return fmt.Errorf("fixed_units sizing mode requires backtest.fixed_units to be positive")
	}

	// Validate each grid axis carries values or a usable range
	for _, axis := range cfg.Optimizer.Grid {
		if len(axis.Values) == 0 && axis.Step <= 0 {
			return fmt.Errorf("grid axis %q needs explicit values or a positive step", axis.Name)
		}
		if len(axis.Values) == 0 && axis.Max < axis.Min {
			return fmt.Errorf("grid axis %q has max below min", axis.Name)
		}
	}

	// Validate walk-forward window sizes when the feature is on
	if cfg.Features.WalkForwardEnabled {
		if cfg.Optimizer.WalkForward.TrainBars <= 0 || cfg.Optimizer.WalkForward.TestBars <= 0 {
			return fmt.Errorf("walk-forward requires positive train_bars and test_bars")
		}
	}

	// Validate scheduling has a cron expression when enabled
	if cfg.Schedule.Enabled && cfg.Schedule.Sweep == "" {
		return fmt.Errorf("schedule.sweep cron expression is required when scheduling is enabled")
	}

	// Validate production environment requirements
	if cfg.IsProduction() {
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
		}
	}

	// Validate connection pool settings
	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "datasource":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: csv, candle_api, synthetic\n", field)
		case "rulename":
			errMsg += fmt.Sprintf("- Field '%s' must be a registered strategy rule, got '%v'\n", field, value)
		case "objective":
			errMsg += fmt.Sprintf("- Field '%s' must be a registered objective, got '%v'\n", field, value)
		case "execution":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: signal_close, next_open\n", field)
		case "sizing":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: fixed_units, full_capital\n", field)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		// Production must have SSL enabled
		if cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires database SSL mode to be 'require' or 'verify-full'")
		}

		// Production should run against real market data
		if cfg.Data.Source == "synthetic" {
			return fmt.Errorf("production environment should not use the synthetic data source")
		}

		// Production should not have test credentials
		if isTestCredential(cfg.Data.API.APIKey) {
			return fmt.Errorf("production environment should not use a test API key")
		}
	}

	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
