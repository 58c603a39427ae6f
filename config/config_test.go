package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "products", cfg.StoreCollection)
	assert.Equal(t, time.Duration(0), cfg.DBTimeout)
	assert.Equal(t, time.Hour, cfg.TokenExpiry)
	assert.Equal(t, 100, cfg.RateLimitMaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimitPeriod)
	assert.Equal(t, 30*time.Minute, cfg.UpdateSessionTTL)
	assert.Equal(t, 1.0, cfg.TraceSampleRatio)
	assert.False(t, cfg.AuthEnabled())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("STORE_COLLECTION", "items")
	t.Setenv("DB_TIMEOUT_SEC", "3")
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("ADMIN_PASSWORD_HASH", "$2a$10$hash")
	t.Setenv("UPDATE_SESSION_TTL_MIN", "5")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.Equal(t, "items", cfg.StoreCollection)
	assert.Equal(t, 3*time.Second, cfg.DBTimeout)
	assert.Equal(t, 5*time.Minute, cfg.UpdateSessionTTL)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.AuthEnabled())
}

func TestLoadConfig_DriverRequirements(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"firestore needs project", map[string]string{"STORE_DRIVER": "firestore"}, "FIRESTORE_PROJECT_ID"},
		{"mongo needs uri", map[string]string{"STORE_DRIVER": "mongo"}, "MONGO_URI"},
		{"redis needs addr", map[string]string{"STORE_DRIVER": "redis"}, "REDIS_ADDR"},
		{"postgres needs dsn", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"STORE_DRIVER": "cassandra"}, "unknown STORE_DRIVER"},
		{"auth needs password hash", map[string]string{"STORE_DRIVER": "memory", "JWT_SECRET_KEY": "s"}, "ADMIN_PASSWORD_HASH"},
		{"negative timeout", map[string]string{"STORE_DRIVER": "memory", "DB_TIMEOUT_SEC": "-1"}, "DB_TIMEOUT_SEC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig_OtherDriverKeysIgnored(t *testing.T) {
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.MongoURI)
	assert.Empty(t, cfg.FirestoreProjectID)
}

func TestLoadForDriver_PostgresOnlyNeedsDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("FIRESTORE_PROJECT_ID", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/stockdash?sslmode=disable")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FIRESTORE_PROJECT_ID")

	cfg, err := LoadForDriver(DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "postgres://localhost/stockdash?sslmode=disable", cfg.DatabaseURL)

	t.Setenv("DATABASE_URL", "")
	_, err = LoadForDriver(DriverPostgres)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
