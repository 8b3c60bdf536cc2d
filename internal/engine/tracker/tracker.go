// Package tracker implements the Event Tracker (C8): persistence of
// event-processing and resource-allocation history, plus population of
// a dynamically resolved entity/resource bridge table, grounded on
// original_source/python/src/simulation/managers/event_tracker.py.
package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
)

// bridgeInfo is a resolved (entity_table, resource_table) pair's bridge
// table identity, cached after the first lookup.
type bridgeInfo struct {
	table         string
	entityFK      string
	resourceFK    string
	eventTypeCol  string
}

type bridgeKey struct {
	entityTable   string
	resourceTable string
}

// Tracker records every event's processing window and every resource
// allocation's lifetime to the engine-owned sim_event_processing /
// sim_resource_allocations tables, and — when a matching bridge table is
// declared in the database config — mirrors each allocation there too.
type Tracker struct {
	store     *store.Store
	resolver  *schema.ColumnResolver
	db        *schema.DatabaseConfig
	startDate time.Time

	bridgeCache map[bridgeKey]*bridgeInfo
}

// New builds a Tracker over db's declared tables, used to resolve bridge
// tables on demand.
func New(st *store.Store, resolver *schema.ColumnResolver, db *schema.DatabaseConfig, startDate time.Time) *Tracker {
	return &Tracker{store: st, resolver: resolver, db: db, startDate: startDate, bridgeCache: make(map[bridgeKey]*bridgeInfo)}
}

func (t *Tracker) toDatetime(minutes float64) string {
	return t.startDate.Add(time.Duration(minutes * float64(time.Minute))).UTC().Format(time.RFC3339)
}

// RecordEventProcessing appends one row describing a completed Event
// step's processing window.
func (t *Tracker) RecordEventProcessing(ctx context.Context, eventFlow, eventID string, entityID any, entityTable string, startTime, endTime float64) error {
	row := store.Row{
		"event_flow":     eventFlow,
		"event_id":       eventID,
		"entity_id":      entityID,
		"entity_table":   entityTable,
		"start_time":     startTime,
		"end_time":       endTime,
		"duration":       endTime - startTime,
		"start_datetime": t.toDatetime(startTime),
		"end_datetime":   t.toDatetime(endTime),
	}
	_, err := t.store.Insert(ctx, "sim_event_processing", "id", row, false)
	return err
}

// RecordResourceAllocation appends one row describing a resource's
// allocation lifetime and, when a bridge table can be resolved for
// (entityTable, resourceTable), mirrors the allocation there too. Release
// fields (release_time/release_datetime, and the bridge row's end_date)
// are written only when releaseTime != nil.
func (t *Tracker) RecordResourceAllocation(ctx context.Context, eventFlow, eventID, resourceTable string, resourceID any, allocationTime float64, releaseTime *float64, entityID any, entityTable, eventType string) error {
	row := store.Row{
		"event_flow":          eventFlow,
		"event_id":            eventID,
		"resource_table":      resourceTable,
		"resource_id":         resourceID,
		"allocation_time":     allocationTime,
		"allocation_datetime": t.toDatetime(allocationTime),
	}
	if releaseTime != nil {
		row["release_time"] = *releaseTime
		row["release_datetime"] = t.toDatetime(*releaseTime)
	}
	if _, err := t.store.Insert(ctx, "sim_resource_allocations", "id", row, false); err != nil {
		return err
	}

	if entityTable == "" {
		return nil
	}
	bridge, ok := t.resolveBridge(entityTable, resourceTable)
	if !ok {
		return nil
	}

	bridgeRow := store.Row{bridge.resourceFK: resourceID}
	if bridge.entityFK != "" {
		bridgeRow[bridge.entityFK] = entityID
	}
	if bridge.eventTypeCol != "" && eventType != "" {
		bridgeRow[bridge.eventTypeCol] = eventType
	}
	bridgeRow["start_date"] = t.toDatetime(allocationTime)
	if releaseTime != nil {
		bridgeRow["end_date"] = t.toDatetime(*releaseTime)
	}

	pkColumn, err := t.resolver.PrimaryKey(bridge.table)
	if err != nil {
		return err
	}
	_, err = t.store.Insert(ctx, bridge.table, pkColumn, bridgeRow, false)
	return err
}

// resolveBridge finds the table (if any) declared with both an
// entity_id attribute referencing entityTable and a resource_id
// attribute referencing resourceTable — the same "table carrying both
// foreign keys" search _get_dynamic_bridge performs, generalized from
// its single static bridge_table_config to scanning every declared
// table (spec.md names no fixed bridge table; SPEC_FULL §6 persistence
// layout only fixes the three engine-owned tables).
func (t *Tracker) resolveBridge(entityTable, resourceTable string) (*bridgeInfo, bool) {
	key := bridgeKey{entityTable, resourceTable}
	if cached, ok := t.bridgeCache[key]; ok {
		return cached, cached != nil
	}

	for _, table := range t.db.Entities {
		var entityFK, resourceFK, eventTypeCol string
		for _, attr := range table.Attributes {
			switch strings.ToLower(attr.Type) {
			case "entity_id":
				if refTable(attr.Ref) == entityTable {
					entityFK = attr.Name
				}
			case "resource_id":
				if refTable(attr.Ref) == resourceTable {
					resourceFK = attr.Name
				}
			case "event_type":
				eventTypeCol = attr.Name
			}
		}
		if entityFK != "" && resourceFK != "" {
			info := &bridgeInfo{table: table.Name, entityFK: entityFK, resourceFK: resourceFK, eventTypeCol: eventTypeCol}
			t.bridgeCache[key] = info
			return info, true
		}
	}

	t.bridgeCache[key] = nil
	return nil, false
}

func refTable(ref string) string {
	table, _, found := strings.Cut(ref, ".")
	if !found {
		return ref
	}
	return table
}
