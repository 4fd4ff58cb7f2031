package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("INSIGHTICA_ENV", Test)

	c := GetConfig()

	assert.Equal(t, "insightica", c.AppName)
	assert.Equal(t, SQLiteDatabase, c.DatabaseType)
	assert.Equal(t, 30*time.Second, c.LiveWindow())
	assert.Equal(t, "X-Owner-Email", c.OwnerHeader)
	assert.Equal(t, 1, c.GetMaxOpenConns())
	assert.Contains(t, c.DatabaseName, "insightica-test.db")
}

func TestGetConfigEnvironmentOverrides(t *testing.T) {
	Reset()
	t.Cleanup(Reset)
	t.Setenv("INSIGHTICA_ENV", Production)
	t.Setenv("INSIGHTICA_LIVE_WINDOW_SECONDS", "45")
	t.Setenv("INSIGHTICA_ANALYTICS_WORKERS", "0")

	c := GetConfig()

	assert.True(t, c.IsProduction())
	assert.Equal(t, 45*time.Second, c.LiveWindow())
	assert.Equal(t, 1, c.GetAnalyticsWorkers())
	assert.Equal(t, 10, c.GetMaxOpenConns())
}

func TestValidate(t *testing.T) {
	base := Config{Environment: Development, DatabaseType: SQLiteDatabase, LiveWindowSeconds: 30}

	t.Run("valid sqlite", func(t *testing.T) {
		c := base
		require.NoError(t, c.validate())
	})

	t.Run("unknown environment", func(t *testing.T) {
		c := base
		c.Environment = "staging"
		assert.Error(t, c.validate())
	})

	t.Run("postgres requires url", func(t *testing.T) {
		c := base
		c.DatabaseType = PostgresDatabase
		assert.Error(t, c.validate())

		c.DatabaseURL = "postgres://localhost/insightica"
		assert.NoError(t, c.validate())
	})

	t.Run("unknown database type", func(t *testing.T) {
		c := base
		c.DatabaseType = "mysql"
		assert.Error(t, c.validate())
	})

	t.Run("non-positive live window", func(t *testing.T) {
		c := base
		c.LiveWindowSeconds = 0
		assert.Error(t, c.validate())
	})
}

func TestJobInterval(t *testing.T) {
	assert.Equal(t, time.Minute, (&Config{JobIntervalSeconds: 5}).JobInterval())
	assert.Equal(t, time.Hour, (&Config{JobIntervalSeconds: 3600}).JobInterval())
}
