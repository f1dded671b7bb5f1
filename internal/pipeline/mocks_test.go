package pipeline_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) Lookup(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error) {
	args := m.Called(ctx, userID)
	endpoints, _ := args.Get(0).([]notification.DeliveryEndpoint)
	return endpoints, args.Error(1)
}

type mockCredentials struct {
	mock.Mock
}

func (m *mockCredentials) Authorize(ctx context.Context) (notification.AccessToken, error) {
	args := m.Called(ctx)
	return args.Get(0).(notification.AccessToken), args.Error(1)
}

// fakeDispatcher answers from a per-token table and records every call.
type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []notification.DeliveryEndpoint
	tokens  []notification.AccessToken
	ctxErrs []error
	answers map[string]notification.DeliveryResult
	fail    map[string]error
	delay   map[string]time.Duration
	// hold blocks every send until closed, when set.
	hold chan struct{}
}

func (f *fakeDispatcher) Send(ctx context.Context, endpoint notification.DeliveryEndpoint, _ *notification.Record, token notification.AccessToken) (notification.DeliveryResult, error) {
	if f.hold != nil {
		<-f.hold
	}
	time.Sleep(f.delay[endpoint.Token])
	f.mu.Lock()
	f.calls = append(f.calls, endpoint)
	f.tokens = append(f.tokens, token)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()

	if err, ok := f.fail[endpoint.Token]; ok {
		return nil, err
	}
	if answer, ok := f.answers[endpoint.Token]; ok {
		return answer, nil
	}
	return notification.DeliveryResult(`{"name":"projects/p/messages/` + endpoint.Token + `"}`), nil
}

func (f *fakeDispatcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
