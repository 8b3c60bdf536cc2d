package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/R3E-Network/eventsim/internal/engine/schema"
	"github.com/R3E-Network/eventsim/pkg/config"
	"github.com/R3E-Network/eventsim/pkg/logger"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eventsim-test.db")
	cfg := config.StoreConfig{
		Path:             path,
		MigrateOnStart:   true,
		BusyTimeoutMS:    2000,
		MaxRetryAttempts: 3,
	}
	s, err := Open(context.Background(), cfg, logger.NewDefault("store-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRunsEngineMigrations(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"sim_event_processing", "sim_resource_allocations", "sim_queue_activity"} {
		v, err := s.Scalar(context.Background(), "SELECT COUNT(*) FROM "+table)
		require.NoError(t, err)
		assert.EqualValues(t, 0, v)
	}
}

func TestCloseReleasesFileHandleForDeletion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventsim-close-test.db")
	cfg := config.StoreConfig{Path: path, MigrateOnStart: true, BusyTimeoutMS: 2000, MaxRetryAttempts: 3}
	s, err := Open(context.Background(), cfg, logger.NewDefault("store-test"))
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NoError(t, os.Remove(path))
}

func TestBuildUserSchemaCreatesDeclaredTables(t *testing.T) {
	s := openTestStore(t)

	db := &schema.DatabaseConfig{
		Entities: []schema.TableConfig{
			{
				Name: "customers",
				Type: "entity",
				Attributes: []schema.AttributeConfig{
					{Name: "customer_id", Type: "pk"},
					{Name: "region", Type: "string"},
				},
			},
		},
	}
	require.NoError(t, s.BuildUserSchema(context.Background(), db))

	pk, err := s.Insert(context.Background(), "customers", "customer_id", Row{"region": "west"}, false)
	require.NoError(t, err)
	assert.NotZero(t, pk)

	rows, err := s.Rows(context.Background(), "customers")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "west", rows[0]["region"])
}
