package resource

import (
	"fmt"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
)

// ResolveRequirements expands a step's declared resource requirements
// into one requirementSpec per resource unit, resampling any formula
// count fresh for this request (spec §4.6: "count may be literal or a
// distribution formula resampled per request").
func (p *Pool) ResolveRequirements(requirements []schema.ResourceRequirement) ([]requirementSpec, error) {
	var out []requirementSpec
	for _, req := range requirements {
		count, err := p.resolveCount(req.Count)
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			out = append(out, requirementSpec{
				ResourceTable: req.ResourceTable,
				Type:          req.Value,
				Queue:         req.Queue,
			})
		}
	}
	return out, nil
}

func (p *Pool) resolveCount(spec schema.CountSpec) (int, error) {
	if spec.IsZero() {
		return 1, nil
	}
	if n, ok := spec.Literal(); ok {
		return n, nil
	}
	formula, ok := spec.Formula()
	if !ok {
		return 0, simerrors.UnparseableFormula("count", fmt.Errorf("neither literal nor formula"))
	}
	value, err := p.dist.DrawFormula(formula)
	if err != nil {
		return 0, err
	}
	n, ok := asInt(value)
	if !ok {
		return 0, simerrors.SamplingBadParams(formula, fmt.Errorf("count formula produced non-numeric value %v", value))
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	default:
		return 0, false
	}
}
