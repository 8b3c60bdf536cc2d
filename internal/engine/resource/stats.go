package resource

// ResourceStats mirrors one entry of get_utilization_stats: a single
// resource's allocation count and fraction of elapsed time spent busy.
type ResourceStats struct {
	Table              string
	ID                 any
	Type               string
	AllocationCount    int
	TotalBusyTime      float64
	UtilizationPercent float64
}

// Stats reports per-resource utilisation as of the current virtual time.
// A resource still holding an open allocation has its in-progress busy
// time folded in, matching get_utilization_stats's treatment of
// last_allocated with no matching last_released.
func (p *Pool) Stats() []ResourceStats {
	now := p.sched.Now()
	out := make([]ResourceStats, 0, len(p.all))
	for key, res := range p.all {
		rec := p.util[key]
		busy := rec.totalBusyTime
		if rec.lastAllocated != nil && (rec.lastReleased == nil || *rec.lastAllocated > *rec.lastReleased) {
			busy += now - *rec.lastAllocated
		}
		var pct float64
		if now > 0 {
			pct = (busy / now) * 100
		}
		out = append(out, ResourceStats{
			Table:              res.Table,
			ID:                 res.ID,
			Type:               res.Type,
			AllocationCount:    rec.allocationCount,
			TotalBusyTime:      busy,
			UtilizationPercent: pct,
		})
	}
	return out
}

// TypeUtilization aggregates Stats by resource type, the shape the
// reporting layer actually renders (per-type average utilisation rather
// than one row per resource instance).
func (p *Pool) TypeUtilization() map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, s := range p.Stats() {
		sums[s.Type] += s.UtilizationPercent
		counts[s.Type]++
	}
	out := make(map[string]float64, len(sums))
	for t, sum := range sums {
		out[t] = sum / float64(counts[t])
	}
	return out
}
