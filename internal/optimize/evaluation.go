package optimize

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/quant-grid/internal/backtest"
	"github.com/yourusername/quant-grid/internal/strategy"
)

// Evaluation is the outcome of running one parameter set through the full
// rule -> engine -> report pipeline. Failed evaluations carry the error and
// keep Rank 0; they are reported but never ranked.
type Evaluation struct {
	RunID    uuid.UUID       `json:"run_id"`
	RuleName string          `json:"rule_name"`
	Params   strategy.Params `json:"params"`
	Report   backtest.Report `json:"report"`
	Score    float64         `json:"score"`
	Rank     int             `json:"rank"`
	Duration time.Duration   `json:"duration"`
	Failure  string          `json:"failure,omitempty"`
	Err      error           `json:"-"`
}

// Failed reports whether the evaluation errored instead of producing a
// report.
func (e Evaluation) Failed() bool {
	return e.Err != nil
}

// ParamError attaches a grid-search failure to the parameter set and run
// that produced it, so a sweep report can tell evaluated-and-failed apart
// from never-evaluated.
type ParamError struct {
	RunID  uuid.UUID
	Params strategy.Params
	Err    error
}

func (e *ParamError) Error() string {
	params, _ := json.Marshal(e.Params)
	return fmt.Sprintf("run %s with params %s: %v", e.RunID, params, e.Err)
}

func (e *ParamError) Unwrap() error {
	return e.Err
}
