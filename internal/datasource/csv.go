package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/yourusername/quant-grid/internal/market"
)

const csvSourceName = "csv"

// csvHeader is the required column layout of a candle CSV file.
var csvHeader = []string{"time", "open", "high", "low", "close", "volume"}

// CSVSource implements Source for local OHLCV CSV files
type CSVSource struct {
	path   string
	logger *log.Logger
}

// NewCSVSource creates a new CSV file data source
func NewCSVSource(path string, logger *log.Logger) *CSVSource {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &CSVSource{path: path, logger: logger}
}

// LoadSeries reads and parses the configured CSV file. Unlike the API
// sources, a malformed local file fails the load outright rather than
// skipping rows.
func (s *CSVSource) LoadSeries(ctx context.Context) (*market.Series, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewSourceError(csvSourceName, ErrCodeNetworkError, "load cancelled", err)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, NewSourceError(csvSourceName, ErrCodeNotFound, fmt.Sprintf("cannot open %s", s.path), err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, NewSourceError(csvSourceName, ErrCodeInvalidData, "cannot read header", err)
	}
	if err := checkCSVHeader(header); err != nil {
		return nil, NewSourceError(csvSourceName, ErrCodeInvalidData, "unexpected header", err)
	}

	var bars []market.Bar
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, NewSourceError(csvSourceName, ErrCodeInvalidData, fmt.Sprintf("read failed at line %d", line), err)
		}

		bar, err := parseCSVRow(row)
		if err != nil {
			return nil, NewSourceError(csvSourceName, ErrCodeInvalidData, fmt.Sprintf("bad row at line %d", line), err)
		}
		bars = append(bars, bar)
	}

	series, err := market.NewSeries(bars)
	if err != nil {
		return nil, NewSourceError(csvSourceName, ErrCodeInvalidData, fmt.Sprintf("%s did not form a valid series", s.path), err)
	}

	s.logger.Printf("Loaded %d bars from %s", series.Len(), s.path)
	return series, nil
}

// Name returns the data source name
func (s *CSVSource) Name() string {
	return csvSourceName
}

// checkCSVHeader verifies the column layout
func checkCSVHeader(header []string) error {
	if len(header) != len(csvHeader) {
		return fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(header))
	}
	for i, want := range csvHeader {
		if strings.TrimSpace(strings.ToLower(header[i])) != want {
			return fmt.Errorf("column %d should be %q, got %q", i, want, header[i])
		}
	}
	return nil
}

// parseCSVRow converts one CSV row to a market bar
func parseCSVRow(row []string) (market.Bar, error) {
	ts, err := time.Parse(time.RFC3339, row[0])
	if err != nil {
		return market.Bar{}, fmt.Errorf("invalid timestamp %q: %w", row[0], err)
	}

	open, err := parsePrice(row[1])
	if err != nil {
		return market.Bar{}, err
	}
	high, err := parsePrice(row[2])
	if err != nil {
		return market.Bar{}, err
	}
	low, err := parsePrice(row[3])
	if err != nil {
		return market.Bar{}, err
	}
	closePx, err := parsePrice(row[4])
	if err != nil {
		return market.Bar{}, err
	}
	volume, err := parsePrice(row[5])
	if err != nil {
		return market.Bar{}, err
	}

	return market.Bar{
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePx,
		Volume:    volume,
	}, nil
}
