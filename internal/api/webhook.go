// Package api exposes the webhook that turns a database notification into
// push deliveries.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-push-webhook/internal/metrics"
	"github.com/tinywideclouds/go-push-webhook/internal/pipeline"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// Response bodies for the plain-text outcomes.
const (
	MsgNoRecord    = "No record provided"
	MsgNoTokens    = "No tokens found"
	MsgInvalidJSON = "Invalid JSON payload"
	MsgTooLarge    = "Payload too large"
	MsgInternal    = "Internal Server Error"
)

// Request outcomes recorded on push_webhook_requests_total.
const (
	OutcomeInvalid      = "invalid"
	OutcomeNoEndpoints  = "no_endpoints"
	OutcomeLookupFailed = "lookup_failed"
	OutcomeDispatched   = "dispatched"
	OutcomeFailed       = "failed"
)

// Notifier is the orchestration the webhook delegates to.
type Notifier interface {
	Notify(ctx context.Context, record *notification.Record) (pipeline.Delivery, error)
}

type WebhookHandler struct {
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

func NewWebhookHandler(notifier Notifier, m *metrics.Metrics, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		notifier: notifier,
		metrics:  m,
		logger:   logger.With("component", "WebhookHandler"),
	}
}

// ServeHTTP accepts any method. The body must be a NotificationEvent.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger.With("correlation_id", CorrelationIDFromContext(r.Context()))

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.metrics.Request(OutcomeInvalid)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("Rejecting oversized payload", "limit", tooLarge.Limit)
			writeText(w, http.StatusRequestEntityTooLarge, MsgTooLarge)
			return
		}
		log.Warn("Failed to read request body", "err", err)
		writeText(w, http.StatusBadRequest, MsgInvalidJSON)
		return
	}
	log.Info("Received payload", "payload", string(raw))

	var event notification.NotificationEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Warn("Rejecting malformed payload", "err", err)
		h.metrics.Request(OutcomeInvalid)
		writeText(w, http.StatusBadRequest, MsgInvalidJSON)
		return
	}
	if event.Type != "" {
		log = log.With("event_type", event.Type, "table", event.Table, "schema", event.Schema)
	}

	delivery, err := h.notifier.Notify(r.Context(), event.Record)
	switch {
	case errors.Is(err, notification.ErrMissingRecord):
		h.metrics.Request(OutcomeInvalid)
		writeText(w, http.StatusBadRequest, MsgNoRecord)
		return
	case err != nil:
		log.Error("Notification failed", "err", err)
		h.metrics.Request(OutcomeFailed)
		writeText(w, http.StatusInternalServerError, MsgInternal)
		return
	}

	switch delivery.Status {
	case pipeline.StatusDispatched:
		h.metrics.Request(OutcomeDispatched)
		writeJSON(w, http.StatusOK, delivery.Response(), log)
	case pipeline.StatusLookupFailed:
		h.metrics.Request(OutcomeLookupFailed)
		writeText(w, http.StatusOK, MsgNoTokens)
	default:
		h.metrics.Request(OutcomeNoEndpoints)
		writeText(w, http.StatusOK, MsgNoTokens)
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func writeJSON(w http.ResponseWriter, status int, body any, log *slog.Logger) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Error("Failed to encode response", "err", err)
		writeText(w, http.StatusInternalServerError, MsgInternal)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
