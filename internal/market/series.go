package market

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MinSeriesLength is the smallest series a simulation accepts.
const MinSeriesLength = 2

// ErrInvalidSeries reports bars that violate the series invariants:
// too short, out of order, duplicate timestamps, or malformed OHLC values.
var ErrInvalidSeries = errors.New("invalid market series")

// Series is an ordered sequence of bars with strictly increasing
// timestamps. Construct through NewSeries, which validates every bar;
// the value is read-only afterwards.
type Series struct {
	bars        []Bar
	fingerprint string
}

// NewSeries validates bars and wraps them in a Series. The input slice is
// copied, so later mutation of the caller's slice cannot affect the series.
func NewSeries(bars []Bar) (*Series, error) {
	if len(bars) < MinSeriesLength {
		return nil, fmt.Errorf("%w: need at least %d bars, got %d", ErrInvalidSeries, MinSeriesLength, len(bars))
	}
	owned := make([]Bar, len(bars))
	copy(owned, bars)

	for i, bar := range owned {
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("%w: bar %d: %v", ErrInvalidSeries, i, err)
		}
		if i == 0 {
			continue
		}
		if !bar.Timestamp.After(owned[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: bar %d timestamp %s not after bar %d timestamp %s",
				ErrInvalidSeries, i, bar.Timestamp.Format("2006-01-02T15:04:05Z07:00"), i-1, owned[i-1].Timestamp.Format("2006-01-02T15:04:05Z07:00"))
		}
	}

	return &Series{bars: owned, fingerprint: fingerprintBars(owned)}, nil
}

// Len returns the number of bars.
func (s *Series) Len() int {
	return len(s.bars)
}

// At returns the bar at index i. Panics on out-of-range access, matching
// slice semantics.
func (s *Series) At(i int) Bar {
	return s.bars[i]
}

// First returns the earliest bar.
func (s *Series) First() Bar {
	return s.bars[0]
}

// Last returns the latest bar.
func (s *Series) Last() Bar {
	return s.bars[len(s.bars)-1]
}

// Closes returns a fresh copy of the close prices in bar order.
func (s *Series) Closes() []float64 {
	closes := make([]float64, len(s.bars))
	for i, bar := range s.bars {
		closes[i] = bar.Close
	}
	return closes
}

// Bars returns a fresh copy of all bars.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.bars))
	copy(out, s.bars)
	return out
}

// Slice returns the sub-series covering bars [start, end). The slice must
// still satisfy the minimum-length invariant.
func (s *Series) Slice(start, end int) (*Series, error) {
	if start < 0 || end > len(s.bars) || start >= end {
		return nil, fmt.Errorf("%w: slice [%d,%d) out of range for %d bars", ErrInvalidSeries, start, end, len(s.bars))
	}
	if end-start < MinSeriesLength {
		return nil, fmt.Errorf("%w: slice [%d,%d) shorter than %d bars", ErrInvalidSeries, start, end, MinSeriesLength)
	}
	sub := s.bars[start:end]
	return &Series{bars: sub, fingerprint: fingerprintBars(sub)}, nil
}

// Fingerprint returns a stable content hash of the series, usable as a
// cache key component. Two series with identical bars share a fingerprint.
func (s *Series) Fingerprint() string {
	return s.fingerprint
}

func fingerprintBars(bars []Bar) string {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(bars)))
	h.Write(buf[:])
	for _, bar := range bars {
		binary.BigEndian.PutUint64(buf[:], uint64(bar.Timestamp.UnixNano()))
		h.Write(buf[:])
		for _, v := range [...]float64{bar.Open, bar.High, bar.Low, bar.Close, bar.Volume} {
			binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
			h.Write(buf[:])
		}
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
