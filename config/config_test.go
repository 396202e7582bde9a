package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.TargetDriver)
	assert.Equal(t, 0.5, cfg.RejectionThreshold)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Equal(t, 2*time.Minute, cfg.LoadTimeout)
	assert.Empty(t, cfg.RulesFile)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TARGET_DRIVER", "sqlite")
	t.Setenv("TARGET_SQLITE_PATH", "/tmp/clean.db")
	t.Setenv("REJECTION_THRESHOLD", "0.25")
	t.Setenv("LOAD_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.TargetDriver)
	assert.Equal(t, "/tmp/clean.db", cfg.TargetSQLitePath)
	assert.Equal(t, 0.25, cfg.RejectionThreshold)
	assert.Equal(t, 10*time.Second, cfg.LoadTimeout)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("TARGET_DRIVER", "mongo")

	_, err := Load()
	assert.ErrorContains(t, err, "TARGET_DRIVER")
}

func TestValidateThresholds(t *testing.T) {
	base := func() *Config {
		return &Config{
			SourceDBPath:       "raw.db",
			TargetDriver:       "postgres",
			RejectionThreshold: 0.5,
			MaxMissingPercent:  50,
			SourceTimeout:      time.Second,
			LoadTimeout:        time.Second,
		}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.RejectionThreshold = 1.5
	assert.Error(t, c.Validate())

	c = base()
	c.MaxMissingPercent = 0
	assert.Error(t, c.Validate())

	c = base()
	c.LoadTimeout = 0
	assert.Error(t, c.Validate())
}

func TestDSN(t *testing.T) {
	c := &Config{
		PostgresHost: "db", PostgresPort: "5433", PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "v", PostgresSSLMode: "require",
	}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=v sslmode=require", c.DSN())
}
