package firestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// DefaultCollection is the root collection holding one document per user.
const DefaultCollection = "users"

// Directory reads device tokens from users/{userID}/devices.
type Directory struct {
	client     *firestore.Client
	collection string
	logger     *slog.Logger
}

func NewDirectory(client *firestore.Client, collection string, logger *slog.Logger) *Directory {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Directory{
		client:     client,
		collection: collection,
		logger:     logger.With("component", "FirestoreDirectory"),
	}
}

// deviceRecord is the stored representation of one registered device.
type deviceRecord struct {
	Token string `firestore:"token"`
}

func (d *Directory) Lookup(ctx context.Context, userID notification.UserID) ([]notification.DeliveryEndpoint, error) {
	iter := d.devices(userID).Documents(ctx)
	defer iter.Stop()

	endpoints := make([]notification.DeliveryEndpoint, 0)
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil {
			d.logger.Warn("Skipping unreadable device document", "doc_id", doc.Ref.ID, "err", err)
			continue
		}
		if record.Token == "" {
			continue
		}
		endpoints = append(endpoints, notification.DeliveryEndpoint{Token: record.Token})
	}

	return endpoints, nil
}

func (d *Directory) devices(userID notification.UserID) *firestore.CollectionRef {
	return d.client.Collection(d.collection).Doc(userID.String()).Collection("devices")
}
