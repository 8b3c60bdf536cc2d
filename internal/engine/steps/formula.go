package steps

import (
	"fmt"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
)

// drawFormulaOrSpec resolves a FormulaOrSpec field (interarrival_time or
// duration, both drawn in the simulation's base time unit per spec.md
// §6) to a single numeric sample.
func drawFormulaOrSpec(deps *Deps, field schema.FormulaOrSpec) (float64, error) {
	spec, err := field.ToSpec()
	if err != nil {
		return 0, err
	}
	value, err := deps.Dist.Draw(spec)
	if err != nil {
		return 0, err
	}
	f, ok := asFloat(value)
	if !ok {
		return 0, simerrors.SamplingBadParams("formula_or_spec", fmt.Errorf("draw produced non-numeric value %v", value))
	}
	return f, nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
