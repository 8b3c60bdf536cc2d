package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/eventsim/internal/engine/distribution"
)

// FormulaOrSpec captures a YAML field that may be written either as a
// bare formula string ("EXPO(5)") or as a nested distribution struct
// (type/min/max/mean/... fields), per spec.md §6's duration and
// interarrival_time fields. The raw node is kept and resolved lazily via
// ToSpec so config loading stays a pure unmarshal with no semantic
// validation.
type FormulaOrSpec struct {
	raw yaml.Node
}

// UnmarshalYAML stores the node verbatim; shape dispatch happens in ToSpec.
func (f *FormulaOrSpec) UnmarshalYAML(node *yaml.Node) error {
	f.raw = *node
	return nil
}

// MarshalYAML round-trips the original node.
func (f FormulaOrSpec) MarshalYAML() (any, error) {
	return f.raw, nil
}

// IsZero reports whether the field was left unset in the source document.
func (f FormulaOrSpec) IsZero() bool {
	return f.raw.Kind == 0
}

// ToSpec resolves the captured node into a distribution.Spec: a scalar
// node is parsed as a formula string, a mapping node is decoded field by
// field into the struct form.
func (f FormulaOrSpec) ToSpec() (distribution.Spec, error) {
	switch f.raw.Kind {
	case yaml.ScalarNode:
		var formula string
		if err := f.raw.Decode(&formula); err != nil {
			return distribution.Spec{}, fmt.Errorf("schema: decode formula scalar: %w", err)
		}
		return distribution.ParseFormula(formula)

	case yaml.MappingNode:
		var fields map[string]any
		if err := f.raw.Decode(&fields); err != nil {
			return distribution.Spec{}, fmt.Errorf("schema: decode distribution mapping: %w", err)
		}
		return specFromMap(fields)

	default:
		return distribution.Spec{}, fmt.Errorf("schema: duration/interarrival_time field must be a formula string or a distribution mapping")
	}
}

func specFromMap(fields map[string]any) (distribution.Spec, error) {
	typ, _ := fields["type"].(string)
	spec := distribution.Spec{Type: distribution.Kind(typ)}

	asFloat := func(key string) (float64, bool) {
		v, ok := fields[key]
		if !ok {
			return 0, false
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		}
		return 0, false
	}

	spec.Min, spec.HasClampMin = asFloat("min")
	spec.Max, spec.HasClampMax = asFloat("max")
	spec.Mode, _ = asFloat("mode")
	spec.Mean, _ = asFloat("mean")
	spec.StdDev, _ = asFloat("stddev")
	spec.Scale, _ = asFloat("scale")
	spec.Lambda, _ = asFloat("lambda")
	spec.Shape1, _ = asFloat("shape1")
	spec.Shape2, _ = asFloat("shape2")
	spec.Alpha, _ = asFloat("alpha")
	spec.Beta, _ = asFloat("beta")
	spec.Sigma, _ = asFloat("sigma")
	if k, ok := asFloat("k"); ok {
		spec.K = int(k)
	}
	if v, ok := fields["value"]; ok {
		spec.Value = v
	}
	if values, ok := fields["values"].([]any); ok {
		spec.Values = values
	}
	if weights, ok := fields["weights"].([]any); ok {
		for _, w := range weights {
			if f, ok := w.(float64); ok {
				spec.Weights = append(spec.Weights, f)
			}
		}
	}
	return spec, nil
}

// MaxEntities bounds how many entities a create step may produce before
// it stops self-rescheduling (§4.4). Zero/unset means unbounded.
type MaxEntities struct {
	Count int `yaml:"count,omitempty"`
}
