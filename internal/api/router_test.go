package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-push-webhook/internal/api"
	"github.com/tinywideclouds/go-push-webhook/internal/pipeline"
)

func TestNewRouter(t *testing.T) {
	t.Run("Mounts the webhook at the configured path", func(t *testing.T) {
		notifier := new(MockNotifier)
		notifier.On("Notify", mock.Anything, mock.Anything).Return(pipeline.Delivery{Status: pipeline.StatusNoEndpoints}, nil)
		router := api.NewRouter(api.NewWebhookHandler(notifier, nil, newTestLogger()), "/hooks/push", 0, newTestLogger())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/hooks/push", strings.NewReader(`{"record":{"user_id":"u1"}}`)))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/push-notification", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Echoes or generates a correlation id", func(t *testing.T) {
		notifier := new(MockNotifier)
		notifier.On("Notify", mock.Anything, mock.Anything).Return(pipeline.Delivery{Status: pipeline.StatusNoEndpoints}, nil)
		router := api.NewRouter(api.NewWebhookHandler(notifier, nil, newTestLogger()), "", 0, newTestLogger())

		req := httptest.NewRequest(http.MethodPost, api.DefaultWebhookPath, strings.NewReader(`{"record":{"user_id":"u1"}}`))
		req.Header.Set(api.CorrelationIDHeader, "corr-123")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, "corr-123", rec.Header().Get(api.CorrelationIDHeader))

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api.DefaultWebhookPath, strings.NewReader(`{"record":{"user_id":"u1"}}`)))
		assert.NotEmpty(t, rec.Header().Get(api.CorrelationIDHeader))
	})

	t.Run("Oversized bodies are rejected", func(t *testing.T) {
		notifier := new(MockNotifier)
		router := api.NewRouter(api.NewWebhookHandler(notifier, nil, newTestLogger()), "", 16, newTestLogger())

		rec := httptest.NewRecorder()
		body := `{"record":{"user_id":"u1","title":"` + strings.Repeat("x", 64) + `"}}`
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api.DefaultWebhookPath, strings.NewReader(body)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Equal(t, api.MsgTooLarge, rec.Body.String())
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})

	t.Run("Guard rejections keep the correlation id", func(t *testing.T) {
		notifier := new(MockNotifier)
		deny := func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "corr-401", api.CorrelationIDFromContext(r.Context()))
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			})
		}
		router := api.NewRouter(api.NewWebhookHandler(notifier, nil, newTestLogger()), "", 0, newTestLogger(), nil, deny)

		req := httptest.NewRequest(http.MethodPost, api.DefaultWebhookPath, strings.NewReader(`{"record":{"user_id":"u1"}}`))
		req.Header.Set(api.CorrelationIDHeader, "corr-401")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "corr-401", rec.Header().Get(api.CorrelationIDHeader))
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})

	t.Run("Guards run in the order given", func(t *testing.T) {
		var order []string
		tag := func(name string) func(http.Handler) http.Handler {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}
		notifier := new(MockNotifier)
		notifier.On("Notify", mock.Anything, mock.Anything).Return(pipeline.Delivery{Status: pipeline.StatusNoEndpoints}, nil)
		router := api.NewRouter(api.NewWebhookHandler(notifier, nil, newTestLogger()), "", 0, newTestLogger(), tag("cors"), tag("auth"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api.DefaultWebhookPath, strings.NewReader(`{"record":{"user_id":"u1"}}`)))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"cors", "auth"}, order)
	})

	t.Run("Panics in a guard surface as 500", func(t *testing.T) {
		boom := func(http.Handler) http.Handler {
			return http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("guard") })
		}
		router := api.NewRouter(http.NotFoundHandler(), "", 0, newTestLogger(), boom)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api.DefaultWebhookPath, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("Panics surface as 500", func(t *testing.T) {
		panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
		router := api.NewRouter(panicky, "", 0, newTestLogger())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api.DefaultWebhookPath, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
