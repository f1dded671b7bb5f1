package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

// NotificationEventTransformer decodes a Pub/Sub payload carrying the same
// JSON as the webhook body. Malformed payloads and events without a record
// are skipped so the streaming service dead-letters them.
func NotificationEventTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*notification.NotificationEvent, bool, error) {
	var event notification.NotificationEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal notification event from message %s: %w", msg.ID, err)
	}
	if event.Record == nil {
		return nil, true, fmt.Errorf("message %s: %w", msg.ID, notification.ErrMissingRecord)
	}
	return &event, false, nil
}
