// --- File: pkg/dispatch/interfaces.go ---
package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// Dispatcher performs a single delivery call against the messaging gateway.
type Dispatcher interface {
	// Send posts one envelope built from the endpoint and record. The gateway's
	// response body is returned as-is; only transport failures are errors.
	Send(ctx context.Context, endpoint notification.DeliveryEndpoint, record *notification.Record, token notification.AccessToken) (notification.DeliveryResult, error)
}

// Directory resolves the delivery endpoints registered for a user.
// Implementations only read; the rows are owned by the backing store.
type Directory interface {
	// Lookup returns the endpoints for userID in the store's enumeration order.
	// An empty slice with a nil error means the user has no endpoints.
	Lookup(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error)
}

// CredentialProvider exchanges the service identity for a gateway bearer token.
type CredentialProvider interface {
	Authorize(ctx context.Context) (notification.AccessToken, error)
}
