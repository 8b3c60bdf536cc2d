package schema

import (
	"strconv"

	"gopkg.in/yaml.v3"
)

// CountSpec captures a resource requirement's count field, which spec.md
// §4.6 allows to be written either as a literal integer or as a
// distribution formula string resampled per request. Like FormulaOrSpec,
// the raw node is kept and interpreted lazily so loading stays a pure
// unmarshal.
type CountSpec struct {
	raw yaml.Node
}

func (c *CountSpec) UnmarshalYAML(node *yaml.Node) error {
	c.raw = *node
	return nil
}

func (c CountSpec) MarshalYAML() (any, error) {
	return c.raw, nil
}

// IsZero reports whether the field was left unset in the source document.
func (c CountSpec) IsZero() bool {
	return c.raw.Kind == 0
}

// Literal returns the count as a plain integer when the source wrote a
// bare number (ok=true); otherwise ok is false and the field should be
// read via Formula instead.
func (c CountSpec) Literal() (int, bool) {
	if c.raw.Kind != yaml.ScalarNode || c.raw.Tag != "!!int" {
		return 0, false
	}
	n, err := strconv.Atoi(c.raw.Value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Formula returns the count field's formula string, when it isn't a
// literal integer.
func (c CountSpec) Formula() (string, bool) {
	if _, isLiteral := c.Literal(); isLiteral {
		return "", false
	}
	if c.raw.Kind != yaml.ScalarNode {
		return "", false
	}
	var s string
	if err := c.raw.Decode(&s); err != nil {
		return "", false
	}
	return s, true
}
