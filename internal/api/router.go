package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// DefaultWebhookPath is where the database webhook posts events.
const DefaultWebhookPath = "/push-notification"

// DefaultMaxBodyBytes caps the size of an inbound event.
const DefaultMaxBodyBytes int64 = 1 << 20

// NewRouter mounts the webhook at path for every HTTP method. The guards run
// in order after the correlation id and request log are in place, so a
// request they reject is still recovered, tagged and logged.
func NewRouter(webhook http.Handler, path string, maxBodyBytes int64, logger *slog.Logger, guards ...func(http.Handler) http.Handler) http.Handler {
	if path == "" {
		path = DefaultWebhookPath
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestSize(maxBodyBytes))
	r.Use(CorrelationID)
	r.Use(RequestLogger(logger))
	for _, guard := range guards {
		if guard != nil {
			r.Use(guard)
		}
	}

	r.Handle(path, webhook)
	return r
}
