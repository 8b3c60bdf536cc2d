package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/R3E-Network/eventsim/infrastructure/errors"
)

func sampleDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Entities: []TableConfig{
			{
				Name: "customers",
				Type: "entity",
				Attributes: []AttributeConfig{
					{Name: "customer_id", Type: "pk"},
					{Name: "balance", Type: "decimal(10,2)"},
				},
			},
			{
				Name: "tickets",
				Type: "event",
				Attributes: []AttributeConfig{
					{Name: "ticket_id", Type: "pk"},
					{Name: "cust_ref", Type: "entity_id"},
					{Name: "kind", Type: "event_type"},
				},
			},
		},
	}
}

func TestColumnByRoleResolvesDeclaredColumn(t *testing.T) {
	r := NewColumnResolver(sampleDatabaseConfig())

	col, err := r.PrimaryKey("customers")
	require.NoError(t, err)
	assert.Equal(t, "customer_id", col)

	col, err = r.EntityFKColumn("tickets")
	require.NoError(t, err)
	assert.Equal(t, "cust_ref", col)

	col, err = r.EventTypeColumn("tickets")
	require.NoError(t, err)
	assert.Equal(t, "kind", col)
}

func TestColumnByRoleMatchesParameterizedBaseType(t *testing.T) {
	r := NewColumnResolver(sampleDatabaseConfig())

	col, err := r.ColumnByRole("customers", "decimal")
	require.NoError(t, err)
	assert.Equal(t, "balance", col)
}

func TestColumnByRoleUnknownTable(t *testing.T) {
	r := NewColumnResolver(sampleDatabaseConfig())

	_, err := r.PrimaryKey("nonexistent")
	require.Error(t, err)
	se, ok := simerrors.As(err)
	require.True(t, ok)
	assert.Equal(t, simerrors.CategoryConfig, se.Category)
}

func TestColumnByRoleMissingRoleDoesNotFallBack(t *testing.T) {
	r := NewColumnResolver(sampleDatabaseConfig())

	_, err := r.EventTypeColumn("customers")
	require.Error(t, err)
}

func TestColumnByRoleMemoizesHitsAndMisses(t *testing.T) {
	r := NewColumnResolver(sampleDatabaseConfig())

	_, _ = r.PrimaryKey("customers")
	_, _ = r.EventTypeColumn("customers")

	assert.True(t, r.found[cacheKey("customers", RolePrimaryKey)])
	assert.False(t, r.found[cacheKey("customers", RoleEventType)])

	col, err := r.PrimaryKey("customers")
	require.NoError(t, err)
	assert.Equal(t, "customer_id", col)

	_, err = r.EventTypeColumn("customers")
	require.Error(t, err)
}
