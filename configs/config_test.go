package configs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, "barlive", config.Database.DBName)
	assert.Equal(t, 24*time.Hour, config.Agora.TokenTTL)
	assert.Equal(t, time.Minute, config.Scheduler.Interval)
	assert.Equal(t, 10*time.Second, config.Scheduler.InitialDelay)
	assert.Equal(t, 30*time.Second, config.Scheduler.ItemTimeout)
	assert.Equal(t, 10, config.Presence.JoinBatchSize)
	assert.Equal(t, 3*time.Second, config.Presence.JoinBatchDebounce)
	assert.Equal(t, "info", config.Log.Level)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SCHEDULER_INTERVAL", "15s")
	t.Setenv("PRESENCE_JOIN_BATCH_SIZE", "25")
	t.Setenv("PRESENCE_JOIN_BATCH_DEBOUNCE", "500ms")
	t.Setenv("LOG_LEVEL", "debug")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, config.Server.Port)
	assert.Equal(t, 15*time.Second, config.Scheduler.Interval)
	assert.Equal(t, 25, config.Presence.JoinBatchSize)
	assert.Equal(t, 500*time.Millisecond, config.Presence.JoinBatchDebounce)
	assert.Equal(t, "debug", config.Log.Level)
}

func TestLoadConfig_IgnoresUnparseableValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("SCHEDULER_INTERVAL", "soon")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, time.Minute, config.Scheduler.Interval)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.JWT.Secret = "secret"
		c.Agora.AppID = "app"
		c.Agora.AppCertificate = "cert"
		c.Presence.JoinBatchSize = 10
		return c
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.JWT.Secret = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Agora.AppCertificate = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Presence.JoinBatchSize = 0
	assert.Error(t, c.Validate())
}

func TestGetDatabaseURL(t *testing.T) {
	c := &Config{}
	c.Database.User = "postgres"
	c.Database.Password = "pw"
	c.Database.Host = "db.local"
	c.Database.Port = 5433
	c.Database.DBName = "barlive"
	c.Database.SSLMode = "disable"

	assert.Equal(t,
		"user=postgres password=pw host=db.local port=5433 dbname=barlive sslmode=disable",
		c.GetDatabaseURL())
}
