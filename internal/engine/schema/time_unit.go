package schema

import "strings"

// MinutesPerUnit reports how many simulation minutes one unit of
// BaseTimeUnit represents, so interarrival_time/duration samples (drawn
// in the configured base unit, per spec.md §6) can be converted to the
// scheduler's virtual minutes. Unrecognised or unset units default to
// minutes (factor 1), matching the original implementation's own
// "minutes" default.
func (c *SimulationConfig) MinutesPerUnit() float64 {
	switch strings.ToLower(c.BaseTimeUnit) {
	case "seconds", "second":
		return 1.0 / 60.0
	case "hours", "hour":
		return 60.0
	case "days", "day":
		return 24.0 * 60.0
	default:
		return 1.0
	}
}
