package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Enabled  bool          `yaml:"enabled"`
	TTL      time.Duration `yaml:"ttl"`
}

type YamlDirectoryConfig struct {
	Backend             string        `yaml:"backend"`
	Table               string        `yaml:"table"`
	SupabaseURL         string        `yaml:"supabase_url"`
	MaxConns            int32         `yaml:"max_conns"`
	SQLitePath          string        `yaml:"sqlite_path"`
	FirestoreCollection string        `yaml:"firestore_collection"`
	Timeout             time.Duration `yaml:"timeout"`
}

type YamlGatewayConfig struct {
	Mode    string        `yaml:"mode"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type YamlAuthConfig struct {
	CacheTokens bool          `yaml:"cache_tokens"`
	EarlyExpiry time.Duration `yaml:"early_expiry"`
	TokenURL    string        `yaml:"token_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
// Secrets are deliberately absent; they only come from the environment.
type YamlConfig struct {
	ProjectID              string              `yaml:"project_id"`
	ListenAddr             string              `yaml:"listen_addr"`
	MetricsAddr            string              `yaml:"metrics_addr"`
	WebhookPath            string              `yaml:"webhook_path"`
	MaxBodyBytes           int64               `yaml:"max_body_bytes"`
	ServiceAccountFile     string              `yaml:"service_account_file"`
	Directory              YamlDirectoryConfig `yaml:"directory"`
	Gateway                YamlGatewayConfig   `yaml:"gateway"`
	Auth                   YamlAuthConfig      `yaml:"auth"`
	IdentityServiceURL     string              `yaml:"identity_service_url"`
	CorsConfig             YamlCorsConfig      `yaml:"cors"`
	RedisConfig            YamlRedisConfig     `yaml:"redis"`
	TopicID                string              `yaml:"topic_id"`
	SubscriptionID         string              `yaml:"subscription_id"`
	SubscriptionDLQTopicID string              `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int                 `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:    baseCfg.ProjectID,
		ListenAddr:   baseCfg.ListenAddr,
		MetricsAddr:  baseCfg.MetricsAddr,
		WebhookPath:  baseCfg.WebhookPath,
		MaxBodyBytes: baseCfg.MaxBodyBytes,
		Credentials: CredentialsConfig{
			File: baseCfg.ServiceAccountFile,
		},
		Directory: DirectoryConfig{
			Backend:             baseCfg.Directory.Backend,
			Table:               baseCfg.Directory.Table,
			SupabaseURL:         baseCfg.Directory.SupabaseURL,
			MaxConns:            baseCfg.Directory.MaxConns,
			SQLitePath:          baseCfg.Directory.SQLitePath,
			FirestoreCollection: baseCfg.Directory.FirestoreCollection,
			Timeout:             baseCfg.Directory.Timeout,
		},
		Gateway: GatewayConfig{
			Mode:    baseCfg.Gateway.Mode,
			BaseURL: baseCfg.Gateway.BaseURL,
			Timeout: baseCfg.Gateway.Timeout,
		},
		Auth: AuthConfig{
			CacheTokens: baseCfg.Auth.CacheTokens,
			EarlyExpiry: baseCfg.Auth.EarlyExpiry,
			TokenURL:    baseCfg.Auth.TokenURL,
			Timeout:     baseCfg.Auth.Timeout,
		},
		IdentityServiceURL: baseCfg.IdentityServiceURL,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      baseCfg.RedisConfig.TTL,
		},
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"directory_backend", cfg.Directory.Backend,
		"gateway_mode", cfg.Gateway.Mode,
	)

	return cfg, nil
}
