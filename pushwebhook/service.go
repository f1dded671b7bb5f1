// Package pushwebhook assembles the webhook, the optional Pub/Sub pipeline and
// the metrics endpoint into one runnable service.
package pushwebhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-push-webhook/internal/api"
	"github.com/tinywideclouds/go-push-webhook/internal/metrics"
	"github.com/tinywideclouds/go-push-webhook/internal/pipeline"
	"github.com/tinywideclouds/go-push-webhook/pkg/dispatch"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
	"github.com/tinywideclouds/go-push-webhook/pushwebhook/config"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[notification.NotificationEvent]
	metricsServer   *http.Server
	logger          *slog.Logger
}

// New assembles the service. consumer may be nil when Pub/Sub ingestion is
// disabled; authMiddleware may be nil to leave the webhook open.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	directory dispatch.Directory,
	credentials dispatch.CredentialProvider,
	dispatcher dispatch.Dispatcher,
	reg *prometheus.Registry,
	authMiddleware func(http.Handler) http.Handler,
	logger *slog.Logger,
) (*Wrapper, error) {

	// 1. Base Server
	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	// 2. Metrics
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.New(reg)

	// 3. Orchestration
	notifier := pipeline.NewNotifier(directory, credentials, dispatcher, m, logger)

	// 4. Optional Pipeline
	var streamingService *messagepipeline.StreamingService[notification.NotificationEvent]
	if consumer != nil {
		var err error
		streamingService, err = messagepipeline.NewStreamingService(
			messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
			consumer,
			pipeline.NotificationEventTransformer,
			pipeline.NewProcessor(notifier, logger),
			logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create streaming service: %w", err)
		}
	}

	// 5. Webhook. CORS answers preflights before auth sees them.
	var guards []func(http.Handler) http.Handler
	if len(cfg.CorsConfig.AllowedOrigins) > 0 {
		guards = append(guards, middleware.NewCorsMiddleware(cfg.CorsConfig, logger))
	}
	if authMiddleware != nil {
		guards = append(guards, authMiddleware)
	}
	webhook := api.NewRouter(
		api.NewWebhookHandler(notifier, m, logger),
		cfg.WebhookPath,
		cfg.MaxBodyBytes,
		logger,
		guards...,
	)
	baseServer.Mux().Handle(cfg.WebhookPath, webhook)

	// 6. Metrics listener, kept off the public port
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		metricsServer:   metricsServer,
		logger:          logger,
	}, nil
}

// Start blocks until the HTTP server stops.
func (w *Wrapper) Start(ctx context.Context) error {
	if w.pipelineService != nil {
		w.logger.Info("Core processing pipeline starting...")
		if err := w.pipelineService.Start(ctx); err != nil {
			return fmt.Errorf("failed to start processing service: %w", err)
		}
	}

	listener, err := net.Listen("tcp", w.metricsServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", w.metricsServer.Addr, err)
	}
	go func() {
		w.logger.Info("Metrics server listening", "addr", listener.Addr().String())
		if err := w.metricsServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error("Metrics server failed", "err", err)
		}
	}()

	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	w.SetReady(false)

	var errs []error
	if w.pipelineService != nil {
		if err := w.pipelineService.Stop(ctx); err != nil {
			w.logger.Error("Processing pipeline shutdown failed.", "err", err)
			errs = append(errs, err)
		}
	}
	if err := w.metricsServer.Shutdown(ctx); err != nil {
		w.logger.Error("Metrics server shutdown failed.", "err", err)
		errs = append(errs, err)
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		errs = append(errs, err)
	}
	w.logger.Info("Service shutdown complete.")
	return errors.Join(errs...)
}
