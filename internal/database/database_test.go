package database_test

import (
	"context"
	"testing"

	"github.com/pageza/cantine/backend/config"
	"github.com/pageza/cantine/backend/internal/database"
	"github.com/pageza/cantine/backend/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunMigrationsSQLite(t *testing.T) {
	db := testhelpers.SetupTestDB(t)

	for _, m := range database.Models() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}
	// idempotent
	require.NoError(t, database.RunMigrations(db, zap.NewNop()))
	assert.NoError(t, database.HealthCheck(context.Background(), db))
}

func TestRunMigrationsPostgres(t *testing.T) {
	db := testhelpers.SetupTestDatabase(t)

	var applied []string
	require.NoError(t, db.Table("migrations").Order("name").Pluck("name", &applied).Error)
	assert.Equal(t, []string{"0001_init.sql"}, applied)

	// a second run applies nothing
	require.NoError(t, database.RunMigrations(db, zap.NewNop()))
	var n int64
	require.NoError(t, db.Table("migrations").Count(&n).Error)
	assert.EqualValues(t, 1, n)

	for _, m := range database.Models() {
		assert.True(t, db.Migrator().HasTable(m), "missing table for %T", m)
	}
}

func TestRedisConfigured(t *testing.T) {
	assert.False(t, database.RedisConfigured(&config.Config{}))
	assert.True(t, database.RedisConfigured(&config.Config{RedisURL: "redis://localhost:6379"}))
	assert.True(t, database.RedisConfigured(&config.Config{RedisHost: "localhost"}))
}

func TestNewRedisClientRejectsBadURL(t *testing.T) {
	_, err := database.NewRedisClient(&config.Config{RedisURL: "://nope"}, zap.NewNop())
	assert.ErrorContains(t, err, "failed to parse Redis URL")
}
