package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvThenFlags(t *testing.T) {
	// GIVEN: environment settings
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("CORS_ORIGINS", "https://site.example, ,https://admin.example")
	t.Setenv("SNAPSHOT_INTERVAL", "6h")

	// WHEN: a flag overrides one of them
	cfg, err := Load([]string{"-port", "7070"})

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, DriverMemory, cfg.DBDriver)
	assert.Equal(t, []string{"https://site.example", "https://admin.example"}, cfg.CORSOrigins)
	assert.Equal(t, 6*time.Hour, cfg.SnapshotInterval)
	assert.True(t, cfg.SnapshotEnabled)
}

func TestLoad_PostgresWithoutDSN(t *testing.T) {
	// GIVEN: postgres selected but no DSN anywhere
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_DSN", "")

	// WHEN
	cfg, err := Load(nil)

	// THEN: rejected instead of falling back to the sqlite file
	assert.ErrorContains(t, err, "DB_DSN")
	assert.Nil(t, cfg)
}

func TestLoad_SQLiteDefaultPath(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, DefaultSQLitePath, cfg.DBDSN)

	// An explicit path wins over the default.
	cfg, err = Load([]string{"-db", ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DBDSN)
}

func TestFromEnv_BadValues(t *testing.T) {
	cases := map[string]string{
		"PORT":              "eighty",
		"SNAPSHOT_ENABLED":  "sometimes",
		"SNAPSHOT_INTERVAL": "daily",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			cfg := Defaults()
			err := cfg.fromEnv(func(k string) string {
				if k == key {
					return value
				}
				return ""
			})
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())

	cfg.DBDriver = "oracle"
	assert.Error(t, cfg.Validate())

	cfg = Defaults()
	cfg.DBDriver = DriverPostgres
	assert.ErrorContains(t, cfg.Validate(), "DB_DSN")

	cfg = Defaults()
	cfg.SnapshotInterval = 0
	assert.Error(t, cfg.Validate())
	cfg.SnapshotEnabled = false
	assert.NoError(t, cfg.Validate())
}
