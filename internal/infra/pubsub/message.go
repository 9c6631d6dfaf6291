package pubsub

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"coursebook/internal/domain/constants"
	"coursebook/internal/domain/entity"

	"github.com/pkg/errors"
)

// encodeEvent serializes event and builds the attributes used for filtering and tracing.
func encodeEvent(event *entity.VerificationEvent) ([]byte, map[string]string, error) {
	if event == nil {
		return nil, nil, errors.New("verification event is nil")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}

	attributes := map[string]string{
		constants.AttrEventType: constants.EventTypeVerificationRequested,
		constants.AttrEventID:   event.EventID,
		constants.AttrAccountID: event.AccountID.String(),
	}
	if event.RequestID != "" {
		attributes[constants.AttrRequestID] = event.RequestID
	}

	return data, attributes, nil
}

// PushMessage is the body Google Pub/Sub push subscriptions POST to the worker.
// The local publisher sends the same shape so one endpoint serves both.
type PushMessage struct {
	Message struct {
		Data        string            `json:"data"`
		Attributes  map[string]string `json:"attributes,omitempty"`
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func newPushMessage(subscription, messageID string, data []byte, attributes map[string]string, at time.Time) PushMessage {
	msg := PushMessage{Subscription: subscription}
	msg.Message.Data = base64.StdEncoding.EncodeToString(data)
	msg.Message.Attributes = attributes
	msg.Message.MessageID = messageID
	msg.Message.PublishTime = at.UTC().Format(time.RFC3339)

	return msg
}

// Payload decodes the base64 data field.
func (m *PushMessage) Payload() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.Message.Data)

	return data, errors.Wrapf(err, "decode push message %s", m.Message.MessageID)
}

// AttributesOrEmpty never returns nil, so callers may add to it.
func (m *PushMessage) AttributesOrEmpty() map[string]string {
	if m.Message.Attributes == nil {
		m.Message.Attributes = map[string]string{}
	}

	return m.Message.Attributes
}
