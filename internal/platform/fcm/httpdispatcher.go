// Package fcm delivers messages through Firebase Cloud Messaging.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// DefaultBaseURL is the public FCM host.
const DefaultBaseURL = "https://fcm.googleapis.com"

// HTTPDispatcher posts one envelope per call to the FCM HTTP v1 send endpoint.
// It does not interpret the gateway's answer: any JSON body, including an
// error body for an expired token, is returned as the delivery result.
type HTTPDispatcher struct {
	sendURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPDispatcher(projectID, baseURL string, httpClient *http.Client, logger *slog.Logger) *HTTPDispatcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &HTTPDispatcher{
		sendURL:    fmt.Sprintf("%s/v1/projects/%s/messages:send", strings.TrimRight(baseURL, "/"), url.PathEscape(projectID)),
		httpClient: httpClient,
		logger:     logger.With("component", "FCMHTTPDispatcher"),
	}
}

func (d *HTTPDispatcher) Send(
	ctx context.Context,
	endpoint notification.DeliveryEndpoint,
	record *notification.Record,
	token notification.AccessToken,
) (notification.DeliveryResult, error) {
	body, err := json.Marshal(notification.NewEnvelope(endpoint, record))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal envelope: %w", notification.ErrDelivery, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.sendURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to build request: %w", notification.ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.Value)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fcm transport failed: %w", notification.ErrDelivery, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read fcm response: %w", notification.ErrDelivery, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: fcm returned a non-JSON body (status %d)", notification.ErrDelivery, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		d.logger.Warn("FCM rejected message", "status", resp.StatusCode)
	}
	return notification.DeliveryResult(raw), nil
}
