package fcm_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-webhook/internal/platform/fcm"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// MockClient satisfies the MessagingClient interface
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

func factoryFor(client fcm.MessagingClient, seen *notification.AccessToken) fcm.ClientFactory {
	return func(_ context.Context, token notification.AccessToken) (fcm.MessagingClient, error) {
		*seen = token
		return client, nil
	}
}

func TestSDKDispatcher_Send(t *testing.T) {
	ctx := context.Background()
	token := notification.AccessToken{Value: "tok-abc"}
	endpoint := notification.DeliveryEndpoint{Token: "T1"}
	record := &notification.Record{
		Title: "Hi",
		Body:  "There",
		Data: map[string]json.RawMessage{
			"chat_id": json.RawMessage(`"42"`),
			"count":   json.RawMessage(`3`),
		},
	}

	t.Run("Happy Path", func(t *testing.T) {
		mockClient := new(MockClient)
		var seen notification.AccessToken
		dispatcher := fcm.NewSDKDispatcher(factoryFor(mockClient, &seen), newTestLogger())

		mockClient.On("Send", ctx, mock.MatchedBy(func(msg *messaging.Message) bool {
			return msg.Token == "T1" &&
				msg.Notification.Title == "Hi" &&
				msg.Notification.Body == "There" &&
				msg.Data["chat_id"] == "42" &&
				msg.Data["count"] == "3"
		})).Return("projects/p/messages/123", nil)

		result, err := dispatcher.Send(ctx, endpoint, record, token)

		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"projects/p/messages/123"}`, string(result))
		assert.Equal(t, token, seen)
		mockClient.AssertExpectations(t)
	})

	t.Run("Transport Failure", func(t *testing.T) {
		mockClient := new(MockClient)
		var seen notification.AccessToken
		dispatcher := fcm.NewSDKDispatcher(factoryFor(mockClient, &seen), newTestLogger())

		mockClient.On("Send", ctx, mock.Anything).Return("", errors.New("network down"))

		_, err := dispatcher.Send(ctx, endpoint, record, token)

		require.Error(t, err)
		assert.ErrorIs(t, err, notification.ErrDelivery)
	})

	t.Run("Client construction failure", func(t *testing.T) {
		factory := func(context.Context, notification.AccessToken) (fcm.MessagingClient, error) {
			return nil, errors.New("no app")
		}
		dispatcher := fcm.NewSDKDispatcher(factory, newTestLogger())

		_, err := dispatcher.Send(ctx, endpoint, record, token)

		assert.ErrorIs(t, err, notification.ErrDelivery)
	})

	// Note: gateway rejections carry an *http.Response inside the SDK's own
	// error type, which cannot be built outside the SDK; the HTTP dispatcher
	// tests cover pass-through of rejection bodies.
}
