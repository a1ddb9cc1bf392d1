package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.AppPort)
	assert.Equal(t, "dynamo", cfg.StoreDriver)
	assert.Equal(t, "memory", cfg.QueueDriver)
	assert.Equal(t, 5*time.Minute, cfg.VerificationCodeTTL)
	assert.Equal(t, 4, cfg.RegisterRatePerMinute)
	assert.Equal(t, "role_user", cfg.DynamoTables.RoleUser)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("VERIFICATION_CODE_TTL", "10m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DYNAMO_TABLE_USERS", "patients")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StoreDriver)
	assert.Equal(t, 10*time.Minute, cfg.VerificationCodeTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "patients", cfg.DynamoTables.Users)
}

func TestLoad_RejectsUnknownDrivers(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	_, err := Load()
	assert.ErrorContains(t, err, "STORE_DRIVER")

	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("QUEUE_DRIVER", "sqs")
	_, err = Load()
	assert.ErrorContains(t, err, "QUEUE_DRIVER")
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "DEBUG"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "warning"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: ""}).SlogLevel())
}
