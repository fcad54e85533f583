package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "roadsense", cfg.Database.Database)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "agents/processed-data", cfg.MQTT.Topic)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 86400, cfg.LatestTTLSeconds)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "db.internal")
	t.Setenv("POSTGRES_PORT", "15432")
	t.Setenv("MQTT_ENABLED", "true")
	t.Setenv("LATEST_TTL_SECONDS", "60")

	cfg := Load()

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 15432, cfg.Database.Port)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, 60, cfg.LatestTTLSeconds)
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("POSTGRES_PORT", "not-a-port")

	cfg := Load()
	assert.Equal(t, 5432, cfg.Database.Port)
}
