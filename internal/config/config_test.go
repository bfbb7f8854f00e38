package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTExpire)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("JWT_EXPIRE", "2h")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpire)
}

func TestLoad_ZeroRateLimitDisables(t *testing.T) {
	setRequired(t)
	t.Setenv("AUTH_RATE_LIMIT", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.AuthRateLimit)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"port", "SERVER_PORT", "0", "invalid SERVER_PORT"},
		{"driver", "DB_DRIVER", "mysql", "unsupported DB_DRIVER"},
		{"short secret", "JWT_SECRET", "short", "JWT_SECRET"},
		{"negative rate limit", "AUTH_RATE_LIMIT", "-1", "AUTH_RATE_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			cfg, err := Load()
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
