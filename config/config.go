package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported values of STORE_DRIVER.
const (
	DriverFirestore = "firestore"
	DriverMongo     = "mongo"
	DriverRedis     = "redis"
	DriverPostgres  = "postgres"
	DriverMemory    = "memory"
)

// Config holds every setting of the service, read from the environment.
type Config struct {
	// General
	Port        string
	Environment string
	LogLevel    string

	// Document store
	StoreDriver     string
	StoreCollection string
	DBTimeout       time.Duration // 0 disables the per-operation timeout

	// Firestore
	FirestoreProjectID       string
	FirestoreCredentialsFile string
	FirestoreCredentialsJSON string

	// MongoDB
	MongoURI      string
	MongoDatabase string

	// Redis (store backend and rate limiter)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// PostgreSQL
	DatabaseURL string

	// Security
	JWTSecretKey      string
	TokenExpiry       time.Duration
	AdminUsername     string
	AdminPasswordHash string

	// Rate limiting
	RateLimitMaxRequests int
	RateLimitPeriod      time.Duration

	// Update sessions
	UpdateSessionTTL time.Duration

	// Tracing
	OTLPEndpoint     string
	ServiceName      string
	TraceSampleRatio float64
}

// AuthEnabled reports whether mutating routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecretKey != ""
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	return load(viper.New())
}

// LoadForDriver reads the configuration as LoadConfig does but with
// STORE_DRIVER fixed to driver, so only that driver's keys are required.
// cmd/migrate uses it with DriverPostgres.
func LoadForDriver(driver string) (*Config, error) {
	v := viper.New()
	v.Set("STORE_DRIVER", driver)
	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("STORE_DRIVER", DriverFirestore)
	v.SetDefault("STORE_COLLECTION", "products")
	v.SetDefault("DB_TIMEOUT_SEC", 0)

	v.SetDefault("MONGO_DATABASE", "stockdash")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_EXPIRY_MIN", 60)
	v.SetDefault("ADMIN_USERNAME", "admin")

	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 100)
	v.SetDefault("RATE_LIMIT_PERIOD_MIN", 1)

	v.SetDefault("UPDATE_SESSION_TTL_MIN", 30)

	v.SetDefault("OTEL_SERVICE_NAME", "stockdash")
	v.SetDefault("OTEL_SAMPLE_RATIO", 1.0)
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENV"),
		LogLevel:    strings.ToLower(v.GetString("LOG_LEVEL")),

		StoreDriver:     strings.ToLower(v.GetString("STORE_DRIVER")),
		StoreCollection: v.GetString("STORE_COLLECTION"),
		DBTimeout:       time.Duration(v.GetInt("DB_TIMEOUT_SEC")) * time.Second,

		FirestoreProjectID:       v.GetString("FIRESTORE_PROJECT_ID"),
		FirestoreCredentialsFile: v.GetString("FIRESTORE_CREDENTIALS_FILE"),
		FirestoreCredentialsJSON: v.GetString("FIRESTORE_CREDENTIALS_JSON"),

		MongoURI:      v.GetString("MONGO_URI"),
		MongoDatabase: v.GetString("MONGO_DATABASE"),

		RedisAddr:     v.GetString("REDIS_ADDR"),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		DatabaseURL: v.GetString("DATABASE_URL"),

		JWTSecretKey:      v.GetString("JWT_SECRET_KEY"),
		TokenExpiry:       time.Duration(v.GetInt("JWT_EXPIRY_MIN")) * time.Minute,
		AdminUsername:     v.GetString("ADMIN_USERNAME"),
		AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),

		RateLimitMaxRequests: v.GetInt("RATE_LIMIT_MAX_REQUESTS"),
		RateLimitPeriod:      time.Duration(v.GetInt("RATE_LIMIT_PERIOD_MIN")) * time.Minute,

		UpdateSessionTTL: time.Duration(v.GetInt("UPDATE_SESSION_TTL_MIN")) * time.Minute,

		OTLPEndpoint:     v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:      v.GetString("OTEL_SERVICE_NAME"),
		TraceSampleRatio: v.GetFloat64("OTEL_SAMPLE_RATIO"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that the selected driver has what it needs. Keys of the
// other drivers are ignored.
func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverFirestore:
		if c.FirestoreProjectID == "" {
			return missing("FIRESTORE_PROJECT_ID")
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return missing("MONGO_URI")
		}
	case DriverRedis:
		if c.RedisAddr == "" {
			return missing("REDIS_ADDR")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return missing("DATABASE_URL")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("config: unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.StoreCollection == "" {
		return missing("STORE_COLLECTION")
	}
	if c.DBTimeout < 0 {
		return fmt.Errorf("config: DB_TIMEOUT_SEC must not be negative")
	}
	if c.AuthEnabled() && c.AdminPasswordHash == "" {
		return missing("ADMIN_PASSWORD_HASH")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("config: OTEL_SAMPLE_RATIO must be within [0, 1]")
	}
	return nil
}

func missing(key string) error {
	return fmt.Errorf("config: environment variable %s must be set", key)
}
