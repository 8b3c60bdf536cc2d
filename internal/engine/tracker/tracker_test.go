package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/internal/engine/store"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

func bridgeDatabaseConfig() *schema.DatabaseConfig {
	return &schema.DatabaseConfig{
		Entities: []schema.TableConfig{
			{Name: "tickets", Type: "entity", Attributes: []schema.AttributeConfig{{Name: "ticket_id", Type: "pk"}}},
			{Name: "consultants", Type: "resource", Attributes: []schema.AttributeConfig{{Name: "consultant_id", Type: "pk"}}},
			{
				Name: "ticket_consultant",
				Type: "bridge",
				Attributes: []schema.AttributeConfig{
					{Name: "id", Type: "pk"},
					{Name: "ticket_ref", Type: "entity_id", Ref: "tickets.ticket_id"},
					{Name: "consultant_ref", Type: "resource_id", Ref: "consultants.consultant_id"},
					{Name: "kind", Type: "event_type"},
					{Name: "start_date", Type: "datetime"},
					{Name: "end_date", Type: "datetime"},
				},
			},
		},
	}
}

func newTestTracker(t *testing.T) (*Tracker, *store.Store) {
	t.Helper()
	db := bridgeDatabaseConfig()
	path := filepath.Join(t.TempDir(), "tracker-test.db")
	cfg := config.StoreConfig{Path: path, MigrateOnStart: true, BusyTimeoutMS: 2000, MaxRetryAttempts: 3}
	s, err := store.Open(context.Background(), cfg, logger.NewDefault("tracker-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.BuildUserSchema(context.Background(), db))

	resolver := schema.NewColumnResolver(db)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return New(s, resolver, db, start), s
}

func TestRecordEventProcessingWritesOneRow(t *testing.T) {
	tr, s := newTestTracker(t)

	err := tr.RecordEventProcessing(context.Background(), "ticket_flow", "evt-1", "T-1", "tickets", 0, 15)
	require.NoError(t, err)

	rows, err := s.Rows(context.Background(), "sim_event_processing")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ticket_flow", rows[0]["event_flow"])
	assert.Equal(t, 15.0, rows[0]["duration"])
}

func TestRecordResourceAllocationPopulatesDynamicBridgeTable(t *testing.T) {
	tr, s := newTestTracker(t)

	release := 30.0
	err := tr.RecordResourceAllocation(context.Background(), "ticket_flow", "evt-1", "consultants", "C-1", 10, &release, "T-1", "tickets", "triage")
	require.NoError(t, err)

	allocations, err := s.Rows(context.Background(), "sim_resource_allocations")
	require.NoError(t, err)
	require.Len(t, allocations, 1)
	assert.Equal(t, "C-1", allocations[0]["resource_id"])

	bridged, err := s.Rows(context.Background(), "ticket_consultant")
	require.NoError(t, err)
	require.Len(t, bridged, 1)
	assert.Equal(t, "T-1", bridged[0]["ticket_ref"])
	assert.Equal(t, "C-1", bridged[0]["consultant_ref"])
	assert.Equal(t, "triage", bridged[0]["kind"])
}

func TestRecordResourceAllocationSkipsBridgeWhenNoneResolves(t *testing.T) {
	tr, s := newTestTracker(t)

	err := tr.RecordResourceAllocation(context.Background(), "flow", "evt-2", "consultants", "C-2", 5, nil, nil, "", "")
	require.NoError(t, err)

	allocations, err := s.Rows(context.Background(), "sim_resource_allocations")
	require.NoError(t, err)
	require.Len(t, allocations, 1)

	bridged, err := s.Rows(context.Background(), "ticket_consultant")
	require.NoError(t, err)
	assert.Empty(t, bridged)
}
