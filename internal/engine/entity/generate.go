package entity

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
	"github.com/R3E-Network/eventsim/internal/engine/schema"
)

// generateValue dispatches one attribute generator to its producer.
// rowIndex is only meaningful for template generators, which may embed
// it via "{id}" (1-based, matching the row count at insert time).
func (m *Manager) generateValue(gen schema.GeneratorConfig, rowIndex int) (any, error) {
	switch strings.ToLower(gen.Type) {
	case "template":
		return renderTemplate(gen.Template, rowIndex), nil

	case "faker":
		return fakerValue(gen.Method, m.rng), nil

	case "uuid":
		return uuid.NewString(), nil

	case "distribution":
		if !gen.Distribution.IsZero() {
			spec, err := gen.Distribution.ToSpec()
			if err != nil {
				return nil, err
			}
			return m.dist.Draw(spec)
		}
		if gen.Formula != "" {
			return m.dist.DrawFormula(gen.Formula)
		}
		return nil, simerrors.UnknownGenerator("distribution", "missing formula/distribution")

	case "choice":
		return weightedChoice(m.rng, gen.Values, gen.Weights), nil

	default:
		return nil, simerrors.UnknownGenerator(gen.Type, gen.Type)
	}
}

// renderTemplate substitutes "{id}" with the 1-based row index.
func renderTemplate(template string, rowIndex int) string {
	return strings.ReplaceAll(template, "{id}", strconv.Itoa(rowIndex+1))
}

// weightedChoice picks one of values using weights as relative weight
// (uniform if weights is empty or mismatched in length).
func weightedChoice(rng interface{ Intn(int) int }, values []any, weights []float64) any {
	if len(values) == 0 {
		return nil
	}
	if len(weights) != len(values) {
		return values[rng.Intn(len(values))]
	}
	total := 0.0
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return values[rng.Intn(len(values))]
	}
	// Deterministic float draw via the same integer RNG: sample an
	// integer in [0, 1e6) and scale, avoiding a second RNG type.
	r := float64(rng.Intn(1_000_000)) / 1_000_000 * total
	for i, w := range weights {
		if r < w {
			return values[i]
		}
		r -= w
	}
	return values[len(values)-1]
}

// coerceToType adapts a generated value to an attribute's declared SQL-ish
// type. SQLite's dynamic typing tolerates most mismatches, so this only
// normalizes the common numeric/boolean cases rather than fully
// validating every type.
func coerceToType(value any, declaredType string) any {
	base := declaredType
	if idx := strings.IndexByte(declaredType, '('); idx >= 0 {
		base = declaredType[:idx]
	}
	switch strings.ToLower(base) {
	case "integer", "int", "bigint":
		if f, ok := asNumeric(value); ok {
			return int64(f)
		}
	case "decimal", "float", "real", "double", "numeric":
		if f, ok := asNumeric(value); ok {
			return f
		}
	case "boolean", "bool":
		if b, ok := value.(bool); ok {
			return b
		}
	}
	return value
}
