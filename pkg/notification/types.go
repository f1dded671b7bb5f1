// Package notification contains the public domain models exchanged between the
// webhook handler, the endpoint directory and the messaging gateway.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// NotificationEvent is the inbound webhook payload. Database webhooks also send
// the envelope fields (type, table, schema, old_record); only Record is used.
type NotificationEvent struct {
	Type      string          `json:"type,omitempty"`
	Table     string          `json:"table,omitempty"`
	Schema    string          `json:"schema,omitempty"`
	Record    *Record         `json:"record"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// Record is the newly inserted row that triggered the webhook.
type Record struct {
	UserID UserID `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	// Data values are kept as raw JSON so they reach the gateway untouched.
	Data map[string]json.RawMessage `json:"data,omitempty"`
}

// EnvelopeData returns the data mapping for an outbound envelope. It is never nil.
func (r *Record) EnvelopeData() map[string]json.RawMessage {
	if r.Data == nil {
		return map[string]json.RawMessage{}
	}
	return r.Data
}

// UserID identifies the owner of a set of delivery endpoints. It decodes from
// either a JSON string or a JSON number.
type UserID string

func (u *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*u = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user_id must be a string or number: %w", err)
	}
	*u = UserID(n.String())
	return nil
}

func (u UserID) String() string { return string(u) }

// DeliveryEndpoint is one registered destination (device token) for a user.
type DeliveryEndpoint struct {
	Token string `json:"token"`
}

// AccessToken is a short-lived bearer token for the messaging gateway.
type AccessToken struct {
	Value  string
	Expiry time.Time
}

// MessageEnvelope is the body posted to the gateway for a single endpoint.
type MessageEnvelope struct {
	Message Message `json:"message"`
}

type Message struct {
	Token        string                     `json:"token"`
	Notification Content                    `json:"notification"`
	Data         map[string]json.RawMessage `json:"data"`
}

// Content is the user-visible part of a push message.
type Content struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// NewEnvelope builds the gateway message for one endpoint from the record.
func NewEnvelope(endpoint DeliveryEndpoint, record *Record) MessageEnvelope {
	return MessageEnvelope{
		Message: Message{
			Token: endpoint.Token,
			Notification: Content{
				Title: record.Title,
				Body:  record.Body,
			},
			Data: record.EnvelopeData(),
		},
	}
}

// DeliveryResult is the gateway's response body for one delivery call. It is
// opaque: gateway-level rejections are passed through untouched.
type DeliveryResult = json.RawMessage

// DispatchResponse is the JSON body returned once every endpoint was dispatched.
type DispatchResponse struct {
	Success bool             `json:"success"`
	Results []DeliveryResult `json:"results"`
}
