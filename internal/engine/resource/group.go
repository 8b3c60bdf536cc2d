package resource

import "fmt"

func groupKey(entityID any, groupID string) string { return fmt.Sprintf("%v:%s", entityID, groupID) }

// AddToGroup records resources as belonging to a named retention group
// for entityID, grounded on resource_manager.add_to_group: a flow can
// acquire resources piecemeal across several steps and release them all
// together later via ReleaseGroup.
func (p *Pool) AddToGroup(entityID any, groupID string, resources []*Resource) {
	key := groupKey(entityID, groupID)
	p.groupAllocations[key] = append(p.groupAllocations[key], resources...)
}

// GroupResources returns the resources currently retained under
// (entityID, groupID), without releasing them.
func (p *Pool) GroupResources(entityID any, groupID string) []*Resource {
	return append([]*Resource(nil), p.groupAllocations[groupKey(entityID, groupID)]...)
}

// ReleaseGroup returns every resource retained under (entityID, groupID)
// to the pool and clears the group.
func (p *Pool) ReleaseGroup(entityID any, groupID string) []*Resource {
	return p.ReleaseGroupFiltered(entityID, groupID, nil)
}

// ReleaseGroupFiltered returns only the resources retained under
// (entityID, groupID) whose Table appears in tables (every resource,
// when tables is empty) and keeps the rest held under the group — the
// Release step's optional resource_tables narrowing (spec.md §4.9).
func (p *Pool) ReleaseGroupFiltered(entityID any, groupID string, tables []string) []*Resource {
	key := groupKey(entityID, groupID)
	held := p.groupAllocations[key]
	if len(tables) == 0 {
		delete(p.groupAllocations, key)
		for _, res := range held {
			p.releaseOne(res)
		}
		p.recordHistory(key, held, "release_group")
		return held
	}

	wanted := make(map[string]bool, len(tables))
	for _, t := range tables {
		wanted[t] = true
	}

	var released, kept []*Resource
	for _, res := range held {
		if wanted[res.Table] {
			released = append(released, res)
		} else {
			kept = append(kept, res)
		}
	}
	if len(kept) == 0 {
		delete(p.groupAllocations, key)
	} else {
		p.groupAllocations[key] = kept
	}
	for _, res := range released {
		p.releaseOne(res)
	}
	p.recordHistory(key, released, "release_group")
	return released
}
