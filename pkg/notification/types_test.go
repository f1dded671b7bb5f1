package notification_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-webhook/pkg/notification"
)

func TestNotificationEvent_Decode(t *testing.T) {
	t.Run("Database webhook payload", func(t *testing.T) {
		raw := `{"type":"INSERT","table":"notifications","schema":"public",
			"record":{"user_id":"u1","title":"Hi","body":"There","data":{"chat_id":"42","n":7}},
			"old_record":null}`

		var event notification.NotificationEvent
		require.NoError(t, json.Unmarshal([]byte(raw), &event))

		require.NotNil(t, event.Record)
		assert.Equal(t, "INSERT", event.Type)
		assert.Equal(t, "notifications", event.Table)
		assert.Equal(t, notification.UserID("u1"), event.Record.UserID)
		assert.Equal(t, "Hi", event.Record.Title)
		assert.JSONEq(t, `"42"`, string(event.Record.Data["chat_id"]))
		assert.JSONEq(t, `7`, string(event.Record.Data["n"]))
	})

	t.Run("Missing record decodes to nil", func(t *testing.T) {
		var event notification.NotificationEvent
		require.NoError(t, json.Unmarshal([]byte(`{"type":"INSERT"}`), &event))
		assert.Nil(t, event.Record)

		require.NoError(t, json.Unmarshal([]byte(`{"record":null}`), &event))
		assert.Nil(t, event.Record)
	})

	t.Run("Numeric user id", func(t *testing.T) {
		var rec notification.Record
		require.NoError(t, json.Unmarshal([]byte(`{"user_id":1234}`), &rec))
		assert.Equal(t, "1234", rec.UserID.String())
	})

	t.Run("Rejects object user id", func(t *testing.T) {
		var rec notification.Record
		assert.Error(t, json.Unmarshal([]byte(`{"user_id":{"id":1}}`), &rec))
	})
}

func TestNewEnvelope(t *testing.T) {
	endpoint := notification.DeliveryEndpoint{Token: "T1"}

	t.Run("Absent data becomes an empty mapping", func(t *testing.T) {
		rec := &notification.Record{UserID: "u1", Title: "Hi", Body: "There"}

		body, err := json.Marshal(notification.NewEnvelope(endpoint, rec))
		require.NoError(t, err)

		assert.JSONEq(t, `{"message":{"token":"T1","notification":{"title":"Hi","body":"There"},"data":{}}}`, string(body))
	})

	t.Run("Data is carried verbatim", func(t *testing.T) {
		rec := &notification.Record{
			Title: "Hi",
			Data: map[string]json.RawMessage{
				"chat_id": json.RawMessage(`"42"`),
				"big":     json.RawMessage(`12345678901234567890`),
				"flag":    json.RawMessage(`true`),
			},
		}

		body, err := json.Marshal(notification.NewEnvelope(endpoint, rec))
		require.NoError(t, err)

		var decoded struct {
			Message struct {
				Data map[string]json.RawMessage `json:"data"`
			} `json:"message"`
		}
		require.NoError(t, json.Unmarshal(body, &decoded))
		assert.Equal(t, rec.Data, decoded.Message.Data)
	})
}
