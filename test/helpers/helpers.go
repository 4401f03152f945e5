// Package helpers provides shared utilities for integration and e2e tests.
package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/quant-grid/internal/database"
	"github.com/yourusername/quant-grid/internal/market"
)

// TestSeries generates a deterministic bar series with enough movement to
// produce trades under the bundled rules.
func TestSeries(t *testing.T, bars int) *market.Series {
	t.Helper()

	cfg := market.DefaultGBMConfig()
	cfg.Bars = bars
	cfg.Drift = 0.001
	cfg.Volatility = 0.02
	cfg.Seed = 7
	cfg.Interval = time.Hour

	series, err := market.GenerateGBM(cfg)
	require.NoError(t, err, "failed to generate test series")
	return series
}

// MockCandleServer serves the series in the JSON candle wire format the
// candle_api source consumes. When apiKey is non-empty, requests must
// present it as a bearer token or receive 401.
func MockCandleServer(t *testing.T, series *market.Series, apiKey string) *httptest.Server {
	t.Helper()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/candles" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if apiKey != "" && r.Header.Get("Authorization") != "Bearer "+apiKey {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		limit := series.Len()
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed < limit {
				limit = parsed
			}
		}

		candles := make([]map[string]string, limit)
		for i := 0; i < limit; i++ {
			bar := series.At(i)
			candles[i] = map[string]string{
				"time":   bar.Timestamp.Format(time.RFC3339),
				"open":   formatDecimal(bar.Open),
				"high":   formatDecimal(bar.High),
				"low":    formatDecimal(bar.Low),
				"close":  formatDecimal(bar.Close),
				"volume": formatDecimal(bar.Volume),
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(candles)
	})

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// WriteSeriesCSV writes the series into dir in the csv source's column
// layout and returns the file path.
func WriteSeriesCSV(t *testing.T, dir string, series *market.Series) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("time,open,high,low,close,volume\n")
	for _, bar := range series.Bars() {
		fmt.Fprintf(&buf, "%s,%s,%s,%s,%s,%s\n",
			bar.Timestamp.Format(time.RFC3339),
			formatDecimal(bar.Open),
			formatDecimal(bar.High),
			formatDecimal(bar.Low),
			formatDecimal(bar.Close),
			formatDecimal(bar.Volume),
		)
	}

	path := filepath.Join(dir, "candles.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644), "failed to write series CSV")
	return path
}

func formatDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CleanupSweepTables truncates the sweep tables between test cases.
func CleanupSweepTables(t *testing.T, db *database.DB) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, table := range []string{"sweep_evaluations", "sweep_runs"} {
		if _, err := db.GetPool().Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			t.Logf("Warning: failed to truncate table %s: %v", table, err)
		}
	}
}

// WaitForCondition waits for a condition to become true or times out.
func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	require.Fail(t, "condition not met within timeout", message)
}

// CreateTestContext creates a context with a timeout for testing.
func CreateTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)

	return ctx
}

// GetEnvOrDefault returns environment variable value or a default.
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SkipIfShort skips test if running in short mode.
func SkipIfShort(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode")
	}
}
