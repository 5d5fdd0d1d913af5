package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(values map[string]string) func(string) string {
	return func(key string) string {
		return values[key]
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "pert-estimator.db", cfg.SQLitePath)
	assert.Equal(t, InputModeLenient, cfg.InputMode)
	assert.Equal(t, IdentityModeSession, cfg.IdentityMode)
	assert.Equal(t, "X-User-ID", cfg.IdentityHeader)
	assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5*time.Second, cfg.SaveTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionDuration)
	assert.Equal(t, 60, cfg.SaveRateLimitPerMinute)
	assert.False(t, cfg.LogJSON)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"PORT":                       "9000",
		"LOG_JSON":                   "true",
		"DB_DRIVER":                  "POSTGRES",
		"DB_HOST":                    "db",
		"DB_NAME":                    "pert",
		"INPUT_MODE":                 "strict",
		"IDENTITY_MODE":              "header",
		"IDENTITY_HEADER":            "X-WP-User",
		"CACHE_TTL":                  "30s",
		"SAVE_RATE_LIMIT_PER_MINUTE": "5",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "disable", cfg.DBSSLMode)
	assert.Equal(t, InputModeStrict, cfg.InputMode)
	assert.Equal(t, IdentityModeHeader, cfg.IdentityMode)
	assert.Equal(t, "X-WP-User", cfg.IdentityHeader)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.SaveRateLimitPerMinute)
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"postgres without host", map[string]string{"DB_DRIVER": "postgres", "DB_NAME": "pert"}},
		{"unknown input mode", map[string]string{"INPUT_MODE": "loose"}},
		{"unknown identity mode", map[string]string{"IDENTITY_MODE": "oauth"}},
		{"bad bool", map[string]string{"LOG_JSON": "talvez"}},
		{"bad duration", map[string]string{"CACHE_TTL": "dez minutos"}},
		{"negative duration", map[string]string{"SAVE_TIMEOUT": "-1s"}},
		{"bad rate limit", map[string]string{"SAVE_RATE_LIMIT_PER_MINUTE": "abc"}},
		{"zero rate limit", map[string]string{"SAVE_RATE_LIMIT_PER_MINUTE": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := FromEnv(envOf(tt.env))
			assert.Nil(t, cfg)
			assert.Error(t, err)
		})
	}
}

func TestFromEnvInvalidValueIsWrapped(t *testing.T) {
	_, err := FromEnv(envOf(map[string]string{"INPUT_MODE": "loose"}))
	assert.True(t, errors.Is(err, ErrInvalidValue))
}
