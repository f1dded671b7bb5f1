package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// NewProcessor runs each decoded event through the notifier. Credential and
// delivery failures are returned so the message is redelivered; a user with
// no endpoints, or an unreadable directory, acknowledges the message.
func NewProcessor(notifier *Notifier, logger *slog.Logger) messagepipeline.StreamProcessor[notification.NotificationEvent] {
	return func(ctx context.Context, original messagepipeline.Message, event *notification.NotificationEvent) error {
		procLogger := logger.With(
			"user_id", event.Record.UserID.String(),
			"pubsub_msg_id", original.ID,
		)

		delivery, err := notifier.Notify(ctx, event.Record)
		if err != nil {
			procLogger.Error("Notification failed", "err", err)
			return err
		}

		switch delivery.Status {
		case StatusDispatched:
			procLogger.Info("Notification dispatched", "results", len(delivery.Results))
		case StatusLookupFailed:
			procLogger.Warn("Dropping notification after lookup failure", "err", delivery.Cause)
		default:
			procLogger.Info("No devices registered for user; dropping notification.")
		}
		return nil
	}
}
