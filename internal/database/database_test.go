package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDriverFor(t *testing.T) {
	assert.Equal(t, DriverPostgres, DriverFor("postgres://u:p@host/db"))
	assert.Equal(t, DriverPostgres, DriverFor("postgresql://u:p@host/db"))
	assert.Equal(t, DriverSQLite, DriverFor("file:test.db"))
	assert.Equal(t, DriverSQLite, DriverFor(":memory:"))
}

func TestConnectSQLite(t *testing.T) {
	db, err := Connect(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	var enabled int
	require.NoError(t, db.Get(&enabled, `PRAGMA foreign_keys`))
	assert.Equal(t, 1, enabled)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}
