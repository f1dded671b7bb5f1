package fcm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// ClientFactory builds a messaging client bound to one access token.
type ClientFactory func(ctx context.Context, token notification.AccessToken) (MessagingClient, error)

// NewSDKClientFactory returns a factory that creates Firebase apps authorized
// with the per-request access token instead of ambient credentials.
func NewSDKClientFactory(projectID string, opts ...option.ClientOption) ClientFactory {
	return func(ctx context.Context, token notification.AccessToken) (MessagingClient, error) {
		ts := oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token.Value,
			TokenType:   "Bearer",
			Expiry:      token.Expiry,
		})
		clientOpts := append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)

		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
		}
		return app.Messaging(ctx)
	}
}

// SDKDispatcher sends through the Firebase Admin SDK. The SDK only exposes the
// message name, so results are rebuilt in the HTTP v1 response shape.
type SDKDispatcher struct {
	newClient ClientFactory
	logger    *slog.Logger
}

func NewSDKDispatcher(factory ClientFactory, logger *slog.Logger) *SDKDispatcher {
	return &SDKDispatcher{
		newClient: factory,
		logger:    logger.With("component", "FCMSDKDispatcher"),
	}
}

func (d *SDKDispatcher) Send(
	ctx context.Context,
	endpoint notification.DeliveryEndpoint,
	record *notification.Record,
	token notification.AccessToken,
) (notification.DeliveryResult, error) {
	client, err := d.newClient(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", notification.ErrDelivery, err)
	}

	msg := &messaging.Message{
		Token: endpoint.Token,
		Notification: &messaging.Notification{
			Title: record.Title,
			Body:  record.Body,
		},
		Data: stringData(record.EnvelopeData()),
	}

	name, err := client.Send(ctx, msg)
	if err != nil {
		// An attached HTTP response means FCM answered; that is a rejection, not a transport failure.
		if resp := errorutils.HTTPResponse(err); resp != nil {
			d.logger.Warn("FCM rejected message", "status", resp.StatusCode, "err", err)
			return rejectionResult(resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: fcm transport failed: %w", notification.ErrDelivery, err)
	}

	return marshalResult(map[string]string{"name": name})
}

func rejectionResult(status int, cause error) (notification.DeliveryResult, error) {
	return marshalResult(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": cause.Error(),
		},
	})
}

func marshalResult(v any) (notification.DeliveryResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to marshal result: %w", notification.ErrDelivery, err)
	}
	return notification.DeliveryResult(raw), nil
}

// stringData flattens raw JSON values into the string map the SDK requires.
// JSON strings are unquoted; every other value keeps its JSON text.
func stringData(data map[string]json.RawMessage) map[string]string {
	out := make(map[string]string, len(data))
	for k, raw := range data {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out[k] = s
			continue
		}
		out[k] = string(raw)
	}
	return out
}
