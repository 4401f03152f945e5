// Package datasource loads candle series from external providers: local
// CSV files, JSON candle APIs, and the synthetic generator.
package datasource

import (
	"context"

	"github.com/yourusername/quant-grid/internal/market"
)

// Source defines the interface for loading a bar series from a provider
type Source interface {
	// LoadSeries retrieves the configured bar series
	LoadSeries(ctx context.Context) (*market.Series, error)

	// Name returns the name of the data source
	Name() string
}

// SourceError represents errors from data source operations
type SourceError struct {
	Source  string // Data source name
	Code    string // Error code (e.g., "rate_limit_exceeded")
	Message string // Error message
	Err     error  // Underlying error
}

func (e SourceError) Error() string {
	if e.Err != nil {
		return e.Source + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Source + ": " + e.Code + ": " + e.Message
}

// Unwrap returns the underlying error
func (e SourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrCodeAuthenticationFailed = "authentication_failed"
	ErrCodeNotFound             = "not_found"
	ErrCodeInvalidData          = "invalid_data"
	ErrCodeNetworkError         = "network_error"
	ErrCodeServerError          = "server_error"
)

// NewSourceError creates a new data source error
func NewSourceError(source, code, message string, err error) SourceError {
	return SourceError{
		Source:  source,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
