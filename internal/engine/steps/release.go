package steps

import (
	"context"
	"strings"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
)

// ReleaseProcessor implements the terminal Release step (spec.md §4.9
// Release): mark the entity completed and release any group-held
// resources, grounded on release_processor.py's resource-cleanup hook
// (which is wired but, in the original, always finds zero persistent
// allocations since _event_belongs_to_entity is a stub that returns
// False — see defaultGroupID's doc comment for the Go equivalent).
type ReleaseProcessor struct {
	deps   *Deps
	status *StatusTracker
}

// NewReleaseProcessor builds a ReleaseProcessor over deps and status.
func NewReleaseProcessor(deps *Deps, status *StatusTracker) *ReleaseProcessor {
	return &ReleaseProcessor{deps: deps, status: status}
}

// CanHandle reports whether kind names a Release step.
func (p *ReleaseProcessor) CanHandle(kind string) bool { return strings.EqualFold(kind, "release") }

// Process marks the entity completed, releases group-held resources,
// and resumes with no next step — ending the flow.
func (p *ReleaseProcessor) Process(ctx context.Context, sc StepContext, step schema.Step, done func(string, bool)) {
	p.deps.Sched.Schedule(0, func() {
		p.status.Set(sc.EntityID, "Completed")

		var tables []string
		if step.ReleaseConfig != nil {
			tables = step.ReleaseConfig.ResourceTables
		}
		p.deps.Resources.ReleaseGroupFiltered(sc.EntityID, defaultGroupID, tables)

		done("", false)
	})
}
