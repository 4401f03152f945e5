package optimize

import (
	"errors"
	"fmt"

	"github.com/yourusername/quant-grid/internal/strategy"
)

// Axis is one named parameter dimension. Either Values lists the candidates
// explicitly, or Min/Max/Step describe an inclusive numeric range; explicit
// values win when both are set.
type Axis struct {
	Name   string  `json:"name" validate:"required"`
	Values []any   `json:"values,omitempty"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Step   float64 `json:"step,omitempty"`
}

func (a Axis) expand() ([]any, error) {
	if a.Name == "" {
		return nil, errors.New("axis name is required")
	}
	if len(a.Values) > 0 {
		return a.Values, nil
	}
	if a.Step <= 0 {
		return nil, fmt.Errorf("axis %s: step must be positive, got %g", a.Name, a.Step)
	}
	if a.Max < a.Min {
		return nil, fmt.Errorf("axis %s: max %g below min %g", a.Name, a.Max, a.Min)
	}

	// Values derive from the index, not a running sum, so float error
	// cannot drift the range; the tolerance keeps an exactly-landing Max
	// inside it.
	values := []any{}
	for i := 0; ; i++ {
		v := a.Min + float64(i)*a.Step
		if v > a.Max+a.Step*1e-9 {
			break
		}
		values = append(values, v)
	}
	return values, nil
}

// Grid is a cartesian product of axes. Expansion order is deterministic:
// axes vary slowest-first in declaration order.
type Grid struct {
	Axes []Axis `json:"axes" validate:"required,min=1,dive"`
}

// Expand enumerates every parameter set in the grid, deduplicated by
// content hash. The same grid always expands to the same sets in the same
// order.
func (g Grid) Expand() ([]strategy.Params, error) {
	if len(g.Axes) == 0 {
		return nil, errors.New("grid needs at least one axis")
	}

	names := make(map[string]struct{}, len(g.Axes))
	candidates := make([][]any, len(g.Axes))
	for i, axis := range g.Axes {
		if _, dup := names[axis.Name]; dup {
			return nil, fmt.Errorf("duplicate axis %s", axis.Name)
		}
		names[axis.Name] = struct{}{}

		values, err := axis.expand()
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("axis %s expands to no values", axis.Name)
		}
		candidates[i] = values
	}

	sets := make([]strategy.Params, 0, g.Size())
	seen := make(map[string]struct{})
	current := strategy.Params{}

	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(g.Axes) {
			hash := current.Hash()
			if _, dup := seen[hash]; dup {
				return
			}
			seen[hash] = struct{}{}
			sets = append(sets, current.Clone())
			return
		}
		for _, v := range candidates[depth] {
			current[g.Axes[depth].Name] = v
			walk(depth + 1)
		}
		delete(current, g.Axes[depth].Name)
	}
	walk(0)

	return sets, nil
}

// Size returns the raw combination count before deduplication, for
// progress reporting. Invalid axes count as zero.
func (g Grid) Size() int {
	if len(g.Axes) == 0 {
		return 0
	}
	total := 1
	for _, axis := range g.Axes {
		values, err := axis.expand()
		if err != nil {
			return 0
		}
		total *= len(values)
	}
	return total
}
