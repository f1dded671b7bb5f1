package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-push-webhook/internal/platform/fcm"
	"github.com/tinywideclouds/go-push-webhook/internal/platform/googleauth"
	"github.com/tinywideclouds/go-push-webhook/internal/storage/cache"
	fsDirectory "github.com/tinywideclouds/go-push-webhook/internal/storage/firestore"
	"github.com/tinywideclouds/go-push-webhook/internal/storage/postgres"
	"github.com/tinywideclouds/go-push-webhook/internal/storage/rest"
	"github.com/tinywideclouds/go-push-webhook/internal/storage/sqlite"
	"github.com/tinywideclouds/go-push-webhook/pkg/dispatch"
	"github.com/tinywideclouds/go-push-webhook/pushwebhook"
	"github.com/tinywideclouds/go-push-webhook/pushwebhook/config"
)

//go:embed local.yaml
var configFile []byte

func main() {
	var logLevel slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug", "DEBUG":
		logLevel = slog.LevelDebug
	case "info", "INFO":
		logLevel = slog.LevelInfo
	case "warn", "WARN":
		logLevel = slog.LevelWarn
	case "error", "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With("service", "go-push-webhook")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("Service exited with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	// --- Config Loading ---
	var yamlCfg config.YamlConfig
	if err := yaml.Unmarshal(configFile, &yamlCfg); err != nil {
		return fmt.Errorf("failed to unmarshal embedded yaml config: %w", err)
	}
	baseCfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
	if err != nil {
		return err
	}
	cfg, err := config.UpdateConfigWithEnvOverrides(baseCfg, logger)
	if err != nil {
		return fmt.Errorf("config failed: %w", err)
	}

	// --- Service Identity ---
	cred, err := loadCredential(cfg)
	if err != nil {
		return err
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = cred.ProjectID
	}
	logger.Info("Service account loaded", "client_email", cred.ClientEmail, "project_id", cfg.ProjectID)

	credentials := googleauth.NewProvider(cred, googleauth.Options{
		CacheTokens: cfg.Auth.CacheTokens,
		EarlyExpiry: cfg.Auth.EarlyExpiry,
		TokenURL:    cfg.Auth.TokenURL,
		HTTPClient:  &http.Client{Timeout: cfg.Auth.Timeout},
	}, logger)

	// --- Endpoint Directory (optionally cached) ---
	directory, closeDirectory, err := newDirectory(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDirectory()

	if cfg.Redis.Enabled {
		logger.Info("Initializing Redis Cache layer...", "addr", cfg.Redis.Addr)
		endpointCache, err := cache.NewRedisEndpointCache(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer endpointCache.Close()
		directory = cache.NewCachedDirectory(directory, endpointCache, cfg.Redis.TTL, logger)
		logger.Info("Directory upgraded", "type", "redis_cached_"+cfg.Directory.Backend)
	}

	// --- Dispatcher ---
	var dispatcher dispatch.Dispatcher
	switch cfg.Gateway.Mode {
	case config.GatewaySDK:
		dispatcher = fcm.NewSDKDispatcher(fcm.NewSDKClientFactory(cfg.ProjectID), logger)
	default:
		dispatcher = fcm.NewHTTPDispatcher(cfg.ProjectID, cfg.Gateway.BaseURL, &http.Client{Timeout: cfg.Gateway.Timeout}, logger)
	}
	logger.Info("Dispatcher initialized", "mode", cfg.Gateway.Mode)

	// --- Optional Pub/Sub ingestion ---
	var consumer messagepipeline.MessageConsumer
	if cfg.PipelineEnabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client failed: %w", err)
		}
		defer psClient.Close()

		consumer, err = newIngestionConsumer(ctx, cfg, psClient, logger)
		if err != nil {
			return err
		}
	}

	// --- Webhook auth ---
	var authMiddleware func(http.Handler) http.Handler
	if cfg.IdentityServiceURL != "" {
		jwksURL, err := middleware.DiscoverAndValidateJWTConfig(cfg.IdentityServiceURL, middleware.RSA256, logger)
		if err != nil {
			return fmt.Errorf("failed to discover jwt config: %w", err)
		}
		authMiddleware, err = middleware.NewJWKSAuthMiddleware(jwksURL, logger)
		if err != nil {
			return fmt.Errorf("failed to create auth middleware: %w", err)
		}
		logger.Info("Webhook requires a bearer token", "identity_service", cfg.IdentityServiceURL)
	}

	// --- Metrics ---
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	service, err := pushwebhook.New(cfg, consumer, directory, credentials, dispatcher, reg, authMiddleware, logger)
	if err != nil {
		return fmt.Errorf("service creation failed: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting service...", "addr", cfg.ListenAddr, "path", cfg.WebhookPath)
		errCh <- service.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return service.Shutdown(shutdownCtx)
}

func loadCredential(cfg *config.Config) (googleauth.Credential, error) {
	if cfg.Credentials.JSON != "" {
		return googleauth.ParseCredential([]byte(cfg.Credentials.JSON))
	}
	return googleauth.LoadCredential(cfg.Credentials.File)
}

// newDirectory opens the configured backend. The returned func releases it.
func newDirectory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (dispatch.Directory, func(), error) {
	d := cfg.Directory
	noop := func() {}

	switch d.Backend {
	case config.BackendPostgres:
		pool, err := postgres.Connect(ctx, d.DatabaseURL, d.MaxConns)
		if err != nil {
			return nil, noop, err
		}
		logger.Info("Directory initialized", "type", "postgres")
		return postgres.NewDirectory(pool, d.Table), pool.Close, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, d.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		if err := sqlite.EnsureSchema(ctx, db, d.Table); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		logger.Info("Directory initialized", "type", "sqlite", "path", d.SQLitePath)
		return sqlite.NewDirectory(db, d.Table), func() { _ = db.Close() }, nil

	case config.BackendFirestore:
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, noop, fmt.Errorf("firestore client failed: %w", err)
		}
		logger.Info("Directory initialized", "type", "firestore")
		return fsDirectory.NewDirectory(fsClient, d.FirestoreCollection, logger), func() { _ = fsClient.Close() }, nil

	default:
		logger.Info("Directory initialized", "type", "rest", "url", d.SupabaseURL)
		client := &http.Client{Timeout: cfg.Directory.Timeout}
		return rest.NewDirectory(d.SupabaseURL, d.ServiceRoleKey, d.Table, client, logger), noop, nil
	}
}

func newIngestionConsumer(ctx context.Context, cfg *config.Config, psClient *pubsub.Client, logger *slog.Logger) (messagepipeline.MessageConsumer, error) {
	sub := convertPubsub(cfg.ProjectID, cfg.PubsubConsumerConfig.SubscriptionID, "subscriptions")
	topicID := convertPubsub(cfg.ProjectID, cfg.TopicID, "topics")

	subConfig := &pubsubpb.Subscription{
		Name:               sub,
		Topic:              topicID,
		AckDeadlineSeconds: 30,
	}
	if cfg.SubscriptionDLQTopicID != "" {
		subConfig.DeadLetterPolicy = &pubsubpb.DeadLetterPolicy{
			DeadLetterTopic:     convertPubsub(cfg.ProjectID, cfg.SubscriptionDLQTopicID, "topics"),
			MaxDeliveryAttempts: 5,
		}
	}
	logger.Debug("Ensuring subscription exists", "sub", subConfig.Name, "topic", subConfig.Topic)
	if _, err := psClient.SubscriptionAdminClient.CreateSubscription(ctx, subConfig); err != nil {
		if status.Code(err) != codes.AlreadyExists {
			logger.Error("Failed to create subscription", "sub", subConfig.Name, "err", err)
			return nil, fmt.Errorf("could not create sub %s: %w", sub, err)
		}
		logger.Debug("Subscription already exists, skipping creation", "sub", subConfig.Name)
	}

	return messagepipeline.NewGooglePubsubConsumer(
		messagepipeline.NewGooglePubsubConsumerDefaults(subConfig.Name), psClient, logger,
	)
}

type PS string

func convertPubsub(project, id string, ps PS) string {
	return fmt.Sprintf("projects/%s/%s/%s", project, ps, id)
}
