package strategy

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
)

// Parameter names shared between rules, the optimizer grid, and the engine.
// The stop-loss/take-profit keys are reserved: rules ignore them and the
// engine's cost model consumes them instead.
const (
	ParamLookbackWindow = "lookback_window"
	ParamFastWindow     = "fast_window"
	ParamSlowWindow     = "slow_window"
	ParamStopLossPct    = "stop_loss_pct"
	ParamTakeProfitPct  = "take_profit_pct"
)

// Params carries a rule's tunable values by name. Treat as immutable once
// built; Clone before modifying a shared set.
type Params map[string]any

// Clone returns an independent shallow copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Hash returns a stable content hash for deduplication and caching.
// JSON marshaling sorts map keys, so insertion order does not matter.
func (p Params) Hash() string {
	data, _ := json.Marshal(p)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// Int reads an integer parameter. Whole-valued floats are accepted since
// grid expansion and JSON decoding both produce float64.
func (p Params) Int(key string) (int, error) {
	raw, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%s: missing: %w", key, ErrInvalidParameter)
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s: %v is not a whole number: %w", key, v, ErrInvalidParameter)
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("%s: %T is not numeric: %w", key, raw, ErrInvalidParameter)
	}
}

// Float reads a numeric parameter.
func (p Params) Float(key string) (float64, error) {
	raw, ok := p[key]
	if !ok {
		return 0, fmt.Errorf("%s: missing: %w", key, ErrInvalidParameter)
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("%s: %T is not numeric: %w", key, raw, ErrInvalidParameter)
	}
}

// FloatOr reads a numeric parameter, falling back to def when the key is
// absent. A present-but-mistyped value still fails.
func (p Params) FloatOr(key string, def float64) (float64, error) {
	if _, ok := p[key]; !ok {
		return def, nil
	}
	return p.Float(key)
}

// String reads a string parameter.
func (p Params) String(key string) (string, error) {
	raw, ok := p[key]
	if !ok {
		return "", fmt.Errorf("%s: missing: %w", key, ErrInvalidParameter)
	}
	v, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s: %T is not a string: %w", key, raw, ErrInvalidParameter)
	}
	return v, nil
}
