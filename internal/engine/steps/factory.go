package steps

// Factory dispatches a step's kind to its Processor. Create is excluded —
// it is driven once per flow by a CreateDriver rather than invoked per
// step (see create.go).
type Factory struct {
	processors []Processor
}

// NewFactory builds a Factory wired with every reacting step processor.
func NewFactory(deps *Deps, status *StatusTracker) *Factory {
	return &Factory{
		processors: []Processor{
			NewEventProcessor(deps),
			NewDecideProcessor(deps),
			NewAssignProcessor(deps),
			NewReleaseProcessor(deps, status),
		},
	}
}

// ForKind returns the processor that handles kind, if any.
func (f *Factory) ForKind(kind string) (Processor, bool) {
	for _, p := range f.processors {
		if p.CanHandle(kind) {
			return p, true
		}
	}
	return nil, false
}
