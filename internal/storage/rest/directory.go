// Package rest resolves delivery endpoints through a PostgREST API such as the
// one Supabase exposes under /rest/v1.
package rest

import (
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

// DefaultTable holds one row per registered device token.
const DefaultTable = "user_fcm_tokens"

// Directory queries `<baseURL>/rest/v1/<table>?select=token&user_id=eq.<id>`
// using the service role key.
type Directory struct {
	baseURL    string
	serviceKey string
	table      string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewDirectory(baseURL, serviceKey, table string, httpClient *http.Client, logger *slog.Logger) *Directory {
	if table == "" {
		table = DefaultTable
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Directory{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		table:      table,
		httpClient: httpClient,
		logger:     logger.With("component", "RestDirectory"),
	}
}

type tokenRow struct {
	Token string `json:"token"`
}

func (d *Directory) Lookup(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error) {
	query := url.Values{
		"select":  {"token"},
		"user_id": {"eq." + userID.String()},
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", d.baseURL, url.PathEscape(d.table), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}
	req.Header.Set("apikey", d.serviceKey)
	req.Header.Set("Authorization", "Bearer "+d.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lookup returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var rows []tokenRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	endpoints := make([]notification.DeliveryEndpoint, 0, len(rows))
	for _, row := range rows {
		endpoints = append(endpoints, notification.DeliveryEndpoint{Token: row.Token})
	}
	d.logger.Debug("Endpoints resolved", "user_id", userID, "count", len(endpoints))
	return endpoints, nil
}
