// Package config provides configuration management for the Quant Grid application.
package config

import (
	"os"
	"testing"
)

const (
	validConfigPath              = "testdata/valid_config.yaml"
	expansionConfigPath          = "testdata/expansion_config.yaml"
	expansionConfigMissingPath   = "testdata/expansion_config_missing.yaml"
	nonexistentConfigPath        = "testdata/nonexistent_config.yaml"
	expectedNoErrorLoadingConfig = "expected no error loading config, got %v"
	expectedNoErrorMsg           = "expected no error, got %v"
	expectedNonNilConfig         = "expected non-nil config"
	quantGridName                = "quant-grid"
	developmentEnv               = "development"
	invalidEnv                   = "invalid"
	localhostHost                = "localhost"
	postgresPort                 = 5432
	postgresPrefix               = "postgres://"
	testAppName                  = "test-app"
	testDBPassword               = "TEST_DB_PASSWORD"
	testMissingVar               = "TEST_MISSING_VAR"
	expandedSecretValue          = "expanded_secret_value"
	breakoutRule                 = "box_breakout"
)

// TestLoadConfigSuccess tests loading a valid configuration file
func TestLoadConfigSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg == nil {
		t.Fatal(expectedNonNilConfig)
	}

	if cfg.App.Name != quantGridName {
		t.Errorf("expected app name '%s', got '%s'", quantGridName, cfg.App.Name)
	}

	if cfg.App.Environment != developmentEnv {
		t.Errorf("expected environment '%s', got '%s'", developmentEnv, cfg.App.Environment)
	}

	if cfg.Database.Host != localhostHost {
		t.Errorf("expected database host '%s', got '%s'", localhostHost, cfg.Database.Host)
	}

	if cfg.Database.Port != postgresPort {
		t.Errorf("expected database port %d, got %d", postgresPort, cfg.Database.Port)
	}

	if cfg.Optimizer.Rule != breakoutRule {
		t.Errorf("expected optimizer rule '%s', got '%s'", breakoutRule, cfg.Optimizer.Rule)
	}

	if len(cfg.Optimizer.Grid) != 2 {
		t.Fatalf("expected 2 grid axes, got %d", len(cfg.Optimizer.Grid))
	}

	if cfg.Optimizer.Grid[0].Name != "lookback_window" {
		t.Errorf("expected first grid axis 'lookback_window', got '%s'", cfg.Optimizer.Grid[0].Name)
	}

	if len(cfg.Optimizer.Grid[1].Values) != 3 {
		t.Errorf("expected 3 explicit values on second axis, got %d", len(cfg.Optimizer.Grid[1].Values))
	}
}

// TestLoadConfigFileNotFound tests handling of missing configuration file
func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := Load(nonexistentConfigPath)
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

// TestLoadConfigEnvironmentVariables tests environment variable override
func TestLoadConfigEnvironmentVariables(t *testing.T) {
	// Set an environment variable
	os.Setenv("QUANT_GRID_APP_NAME", testAppName)
	defer os.Unsetenv("QUANT_GRID_APP_NAME")

	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.App.Name != testAppName {
		t.Errorf("expected app name '%s' from environment, got '%s'", testAppName, cfg.App.Name)
	}
}

// TestLoadWithDefaultsMissingFile tests defaults when no config file exists
func TestLoadWithDefaultsMissingFile(t *testing.T) {
	cfg, err := LoadWithDefaults(nonexistentConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorMsg, err)
	}

	if cfg.App.Environment != developmentEnv {
		t.Errorf("expected default environment '%s', got '%s'", developmentEnv, cfg.App.Environment)
	}

	if cfg.App.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got '%s'", cfg.App.LogLevel)
	}

	if cfg.Optimizer.TopN != 10 {
		t.Errorf("expected default top_n 10, got %d", cfg.Optimizer.TopN)
	}
}

// TestValidateSuccess tests validation of a valid configuration
func TestValidateSuccess(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	err = Validate(cfg)
	if err != nil {
		t.Fatalf("expected no validation error, got %v", err)
	}
}

// TestValidateInvalidEnvironment tests validation of invalid environment
func TestValidateInvalidEnvironment(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.App.Environment = invalidEnv
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for invalid environment")
	}
}

// TestValidateInvalidRule tests validation of an unregistered rule name
func TestValidateInvalidRule(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Optimizer.Rule = "momentum_chaser"
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for unknown rule")
	}

	if !containsSubstring(err.Error(), "Rule") {
		t.Errorf("expected rule validation error, got: %v", err)
	}
}

// TestValidateInvalidObjective tests validation of an unregistered objective
func TestValidateInvalidObjective(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Optimizer.Objective = "vibes"
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for unknown objective")
	}
}

// TestValidateInvalidExecutionPolicy tests validation of the execution policy enum
func TestValidateInvalidExecutionPolicy(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Backtest.ExecutionPolicy = "same_bar_open"
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for unknown execution policy")
	}
}

// TestValidateEmptyGrid tests validation of an empty search grid
func TestValidateEmptyGrid(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Optimizer.Grid = nil
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for empty grid")
	}
}

// TestValidateGridAxisWithoutRange tests validation of an axis with no values and no step
func TestValidateGridAxisWithoutRange(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Optimizer.Grid = []GridAxisConfig{{Name: "lookback_window"}}
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for axis without values or step")
	}
}

// TestValidateCSVSourceRequiresPath tests source-specific requirements
func TestValidateCSVSourceRequiresPath(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Data.Source = "csv"
	cfg.Data.CSV.Path = ""
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for csv source without a path")
	}
}

// TestValidateIdleConnectionsBound tests the connection pool cross-field check
func TestValidateIdleConnectionsBound(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.Database.MaxIdleConnections = cfg.Database.MaxConnections + 1
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error when idle connections exceed max connections")
	}
}

// TestValidateProductionRequiresSSL tests production SSL enforcement
func TestValidateProductionRequiresSSL(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.App.Environment = "production"
	cfg.Database.SSLMode = "disable"
	err = Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for production without SSL")
	}
}

// TestValidateEnvironmentSyntheticInProduction tests the environment-specific data source check
func TestValidateEnvironmentSyntheticInProduction(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	cfg.App.Environment = "production"
	cfg.Database.SSLMode = "require"
	err = ValidateEnvironment(cfg)
	if err == nil {
		t.Fatal("expected environment validation error for synthetic data in production")
	}
}

// TestGetDatabaseDSN tests DSN generation
func TestGetDatabaseDSN(t *testing.T) {
	cfg, err := Load(validConfigPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	dsn := cfg.GetDatabaseDSN()
	if dsn == "" {
		t.Fatal("expected non-empty DSN")
	}

	if !containsSubstring(dsn, postgresPrefix) {
		t.Errorf("expected DSN to start with '%s', got '%s'", postgresPrefix, dsn)
	}
}

// TestIsDevelopment tests environment check function
func TestIsDevelopment(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: developmentEnv},
	}

	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return true")
	}

	if cfg.IsProduction() {
		t.Error("expected IsProduction() to return false")
	}
}

// TestIsProduction tests production environment check
func TestIsProduction(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "production"},
	}

	if !cfg.IsProduction() {
		t.Error("expected IsProduction() to return true")
	}

	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return false")
	}
}

// TestIsStaging tests staging environment check
func TestIsStaging(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "staging"},
	}

	if !cfg.IsStaging() {
		t.Error("expected IsStaging() to return true")
	}

	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment() to return false")
	}
}

// TestLoadConfigEnvironmentVariableExpansion tests environment variable expansion in config file
func TestLoadConfigEnvironmentVariableExpansion(t *testing.T) {
	// Set environment variable
	os.Setenv(testDBPassword, expandedSecretValue)
	defer os.Unsetenv(testDBPassword)

	cfg, err := Load(expansionConfigPath)
	if err != nil {
		t.Fatalf("expected no error loading config with expansion, got %v", err)
	}

	if cfg.Database.Password != expandedSecretValue {
		t.Errorf("expected password '%s' from environment expansion, got '%s'", expandedSecretValue, cfg.Database.Password)
	}
}

// TestLoadConfigMissingEnvironmentVariable tests handling of missing environment variables
func TestLoadConfigMissingEnvironmentVariable(t *testing.T) {
	// Ensure environment variable is not set
	os.Unsetenv(testMissingVar)

	cfg, err := Load(expansionConfigMissingPath)
	if err != nil {
		t.Fatalf(expectedNoErrorLoadingConfig, err)
	}

	// os.ExpandEnv replaces unset variables with the empty string
	if cfg.Database.Password != "" {
		t.Errorf("expected empty password for missing env var, got %q", cfg.Database.Password)
	}
}

// Helper function
func containsSubstring(str, substr string) bool {
	for i := 0; i <= len(str)-len(substr); i++ {
		if str[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
