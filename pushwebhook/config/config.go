package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

// Directory backends.
const (
	BackendREST      = "rest"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendFirestore = "firestore"
)

// Gateway modes.
const (
	GatewayHTTP = "http"
	GatewaySDK  = "sdk"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// CredentialsConfig names the service-account source. JSON wins over File.
type CredentialsConfig struct {
	JSON string
	File string
}

type DirectoryConfig struct {
	Backend string
	Table   string

	SupabaseURL    string
	ServiceRoleKey string

	DatabaseURL string
	MaxConns    int32

	SQLitePath string

	FirestoreCollection string

	// Timeout bounds each PostgREST lookup.
	Timeout time.Duration
}

type GatewayConfig struct {
	Mode    string
	BaseURL string
	Timeout time.Duration
}

type AuthConfig struct {
	CacheTokens bool
	EarlyExpiry time.Duration
	TokenURL    string
	// Timeout bounds each call to the token issuer.
	Timeout time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID    string
	ListenAddr   string
	MetricsAddr  string
	WebhookPath  string
	MaxBodyBytes int64

	Credentials CredentialsConfig
	Directory   DirectoryConfig
	Gateway     GatewayConfig
	Auth        AuthConfig
	Redis       RedisConfig

	// IdentityServiceURL enables JWT verification on the webhook when set.
	IdentityServiceURL string
	CorsConfig         middleware.CorsConfig

	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	PubsubConsumerConfig   *messagepipeline.GooglePubsubConsumerConfig
}

// PipelineEnabled reports whether Pub/Sub ingestion is configured.
func (c *Config) PipelineEnabled() bool {
	return c.SubscriptionID != ""
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	str := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			logger.Debug("Overriding config value", "key", key, "source", "env")
			*dst = val
		}
	}
	dur := func(key string, dst *time.Duration) {
		if val := os.Getenv(key); val != "" {
			if d, err := time.ParseDuration(val); err == nil {
				logger.Debug("Overriding config value", "key", key, "source", "env")
				*dst = d
			} else {
				logger.Warn("Ignoring unparseable duration", "key", key, "value", val)
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				logger.Debug("Overriding config value", "key", key, "source", "env")
				*dst = b
			}
		}
	}

	// 1. Apply Environment Overrides
	str("PROJECT_ID", &cfg.ProjectID)
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("METRICS_PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "METRICS_PORT", "source", "env")
		cfg.MetricsAddr = ":" + val
	}
	str("WEBHOOK_PATH", &cfg.WebhookPath)

	str("FIREBASE_SERVICE_ACCOUNT", &cfg.Credentials.JSON)
	str("SERVICE_ACCOUNT_FILE", &cfg.Credentials.File)

	str("DIRECTORY_BACKEND", &cfg.Directory.Backend)
	str("DIRECTORY_TABLE", &cfg.Directory.Table)
	str("SUPABASE_URL", &cfg.Directory.SupabaseURL)
	str("SUPABASE_SERVICE_ROLE_KEY", &cfg.Directory.ServiceRoleKey)
	str("DATABASE_URL", &cfg.Directory.DatabaseURL)
	str("SQLITE_PATH", &cfg.Directory.SQLitePath)
	dur("DIRECTORY_TIMEOUT", &cfg.Directory.Timeout)

	str("GATEWAY_MODE", &cfg.Gateway.Mode)
	str("FCM_BASE_URL", &cfg.Gateway.BaseURL)
	dur("GATEWAY_TIMEOUT", &cfg.Gateway.Timeout)

	boolean("CACHE_ACCESS_TOKENS", &cfg.Auth.CacheTokens)
	dur("TOKEN_EARLY_EXPIRY", &cfg.Auth.EarlyExpiry)
	dur("TOKEN_TIMEOUT", &cfg.Auth.Timeout)

	str("SUBSCRIPTION_ID", &cfg.SubscriptionID)
	str("TOPIC_ID", &cfg.TopicID)
	str("SUBSCRIPTION_DLQ_TOPIC_ID", &cfg.SubscriptionDLQTopicID)
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	boolean("REDIS_ENABLED", &cfg.Redis.Enabled)
	dur("REDIS_TTL", &cfg.Redis.TTL)

	str("IDENTITY_SERVICE_URL", &cfg.IdentityServiceURL)

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		var cleanOrigins []string
		for _, o := range strings.Split(corsOrigins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Defaults
	applyDefaults(cfg)

	// 3. Final Validation
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.PubsubConsumerConfig == nil && cfg.PipelineEnabled() {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}
	if cfg.PubsubConsumerConfig != nil && cfg.PubsubConsumerConfig.SubscriptionID != cfg.SubscriptionID {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/push-notification"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Directory.Backend == "" {
		cfg.Directory.Backend = BackendREST
	}
	if cfg.Gateway.Mode == "" {
		cfg.Gateway.Mode = GatewayHTTP
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 30 * time.Second
	}
	if cfg.Auth.EarlyExpiry <= 0 {
		cfg.Auth.EarlyExpiry = time.Minute
	}
	if cfg.Auth.Timeout <= 0 {
		cfg.Auth.Timeout = 10 * time.Second
	}
	if cfg.Directory.Timeout <= 0 {
		cfg.Directory.Timeout = 10 * time.Second
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 5 * time.Minute
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
}

func (cfg *Config) validate() error {
	var errs []error

	if cfg.Credentials.JSON == "" && cfg.Credentials.File == "" {
		errs = append(errs, errors.New("a service account is required (set FIREBASE_SERVICE_ACCOUNT or SERVICE_ACCOUNT_FILE)"))
	}

	d := cfg.Directory
	switch d.Backend {
	case BackendREST:
		if d.SupabaseURL == "" || d.ServiceRoleKey == "" {
			errs = append(errs, errors.New("rest directory requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY"))
		}
	case BackendPostgres:
		if d.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres directory requires DATABASE_URL"))
		}
	case BackendSQLite:
		if d.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite directory requires SQLITE_PATH"))
		}
	case BackendFirestore:
		// The project id may also come from the service account.
	default:
		errs = append(errs, fmt.Errorf("unknown directory backend %q", d.Backend))
	}

	switch cfg.Gateway.Mode {
	case GatewayHTTP, GatewaySDK:
	default:
		errs = append(errs, fmt.Errorf("unknown gateway mode %q", cfg.Gateway.Mode))
	}

	if cfg.PipelineEnabled() && cfg.TopicID == "" {
		errs = append(errs, errors.New("topic_id is required when subscription_id is set"))
	}

	return errors.Join(errs...)
}
