package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"github.com/tinywideclouds/go-push-webhook/pushwebhook/config"
	"gopkg.in/yaml.v3"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		raw := []byte(`
project_id: yaml-project
listen_addr: ":9000"
metrics_addr: ":9100"
webhook_path: /push
service_account_file: sa.json
directory:
  backend: postgres
  table: public.tokens
  max_conns: 8
  timeout: 7s
gateway:
  mode: sdk
  timeout: 10s
auth:
  cache_tokens: true
  early_expiry: 90s
  timeout: 6s
cors:
  allowed_origins: ["http://yaml.com"]
  role: editor
redis:
  addr: localhost:6379
  enabled: true
  ttl: 1m
topic_id: yaml-topic
subscription_id: yaml-subscription
subscription_dlq_topic_id: yaml-dlq
num_pipeline_workers: 5
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, ":9100", cfg.MetricsAddr)
		assert.Equal(t, "/push", cfg.WebhookPath)
		assert.Equal(t, "sa.json", cfg.Credentials.File)
		assert.Equal(t, config.BackendPostgres, cfg.Directory.Backend)
		assert.Equal(t, "public.tokens", cfg.Directory.Table)
		assert.Equal(t, int32(8), cfg.Directory.MaxConns)
		assert.Equal(t, config.GatewaySDK, cfg.Gateway.Mode)
		assert.Equal(t, 10*time.Second, cfg.Gateway.Timeout)
		assert.True(t, cfg.Auth.CacheTokens)
		assert.Equal(t, 90*time.Second, cfg.Auth.EarlyExpiry)
		assert.Equal(t, 6*time.Second, cfg.Auth.Timeout)
		assert.Equal(t, 7*time.Second, cfg.Directory.Timeout)
		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, time.Minute, cfg.Redis.TTL)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)
		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		cfg, err := config.NewConfigFromYaml(&config.YamlConfig{ProjectID: "minimal-project"}, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Empty(t, cfg.ListenAddr)
		assert.Empty(t, cfg.Directory.Backend)
		assert.Nil(t, cfg.PubsubConsumerConfig)
	})
}
