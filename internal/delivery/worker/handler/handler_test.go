package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/constants"
	"coursebook/internal/domain/entity"
	"coursebook/internal/errors"
	"coursebook/internal/infra/pubsub"
	"coursebook/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMail struct {
	err       error
	delivered []*entity.VerificationEvent
	requestID string
}

func (s *stubMail) DeliverVerification(ctx context.Context, event *entity.VerificationEvent) error {
	s.requestID = deliverycontext.GetRequestIDFromContext(ctx)
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, event)

	return nil
}

type countingObserver map[string]int

func (o countingObserver) ObserveMailDelivery(result string) {
	o[result]++
}

func newProcessor(mail *stubMail) (*EventProcessor, countingObserver) {
	observer := countingObserver{}

	return NewEventProcessor(EventProcessorParams{
		MailUC:   mail,
		Observer: observer,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}), observer
}

func eventJSON(t *testing.T, requestID string) []byte {
	t.Helper()

	raw, err := json.Marshal(entity.VerificationEvent{
		EventID:         "evt-1",
		AccountID:       uuid.New(),
		Name:            "Budi",
		Email:           "budi@example.com",
		VerificationURL: "https://courses.example.com/email/verify/x/y",
		RequestID:       requestID,
	})
	require.NoError(t, err)

	return raw
}

func TestEventProcessor_Process(t *testing.T) {
	tests := []struct {
		name          string
		data          func(t *testing.T) []byte
		attributes    map[string]string
		mailErr       error
		wantErr       bool
		wantRetryable bool
		wantResult    string
		wantRequestID string
	}{
		{
			name:          "delivered with attribute request id",
			data:          func(t *testing.T) []byte { return eventJSON(t, "from-event") },
			attributes:    map[string]string{constants.AttrRequestID: "from-attr", constants.AttrEventType: constants.EventTypeVerificationRequested},
			wantResult:    ResultSent,
			wantRequestID: "from-attr",
		},
		{
			name:          "event request id when no attribute",
			data:          func(t *testing.T) []byte { return eventJSON(t, "from-event") },
			attributes:    map[string]string{},
			wantResult:    ResultSent,
			wantRequestID: "from-event",
		},
		{
			name:       "unknown event type is dropped",
			data:       func(t *testing.T) []byte { return eventJSON(t, "") },
			attributes: map[string]string{constants.AttrEventType: "course.booked"},
			wantErr:    true,
			wantResult: ResultDropped,
		},
		{
			name:       "undecodable payload is dropped",
			data:       func(*testing.T) []byte { return []byte("{not json") },
			attributes: map[string]string{},
			wantErr:    true,
			wantResult: ResultDropped,
		},
		{
			name:       "malformed event is dropped",
			data:       func(t *testing.T) []byte { return eventJSON(t, "") },
			attributes: map[string]string{},
			mailErr:    errors.Wrap(usecase.ErrMalformedEvent, "missing email"),
			wantErr:    true,
			wantResult: ResultDropped,
		},
		{
			name:          "transport failure is retried",
			data:          func(t *testing.T) []byte { return eventJSON(t, "") },
			attributes:    map[string]string{},
			mailErr:       errors.New("smtp: connection refused"),
			wantErr:       true,
			wantRetryable: true,
			wantResult:    ResultRetry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mail := &stubMail{err: tt.mailErr}
			processor, observer := newProcessor(mail)

			err := processor.Process(context.Background(), tt.data(t), tt.attributes)

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantRetryable, IsRetryable(err))
			} else {
				require.NoError(t, err)
				require.Len(t, mail.delivered, 1)
			}
			assert.Equal(t, 1, observer[tt.wantResult])
			if tt.wantRequestID != "" {
				assert.Equal(t, tt.wantRequestID, mail.requestID)
			}
		})
	}
}

func TestEventProcessor_GeneratesRequestID(t *testing.T) {
	mail := &stubMail{}
	processor, _ := newProcessor(mail)

	require.NoError(t, processor.Process(context.Background(), eventJSON(t, ""), nil))
	assert.NotEmpty(t, mail.requestID)
}

func pushBody(t *testing.T, data string) string {
	t.Helper()

	var msg pubsub.PushMessage
	msg.Message.Data = data
	msg.Message.MessageID = "m-1"
	msg.Subscription = "projects/p/subscriptions/verification"
	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	return string(raw)
}

func TestPushHandler_HandlePush(t *testing.T) {
	valid := base64.StdEncoding.EncodeToString([]byte(`{"event_id":"evt-1","email":"budi@example.com"}`))

	tests := []struct {
		name       string
		body       string
		mailErr    error
		verifyAuth bool
		tokenErr   error
		want       int
	}{
		{name: "delivered", body: pushBody(t, valid), want: http.StatusOK},
		{name: "retryable failure asks for redelivery", body: pushBody(t, valid), mailErr: errors.New("smtp down"), want: http.StatusServiceUnavailable},
		{name: "permanent failure is acknowledged", body: pushBody(t, valid), mailErr: usecase.ErrMalformedEvent, want: http.StatusOK},
		{name: "bad base64 is acknowledged", body: pushBody(t, "%%%"), want: http.StatusOK},
		{name: "bad json is acknowledged", body: "{", want: http.StatusOK},
		{name: "rejected token", body: pushBody(t, valid), verifyAuth: true, tokenErr: errors.New("bad token"), want: http.StatusUnauthorized},
		{name: "accepted token", body: pushBody(t, valid), verifyAuth: true, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			processor, _ := newProcessor(&stubMail{err: tt.mailErr})
			h := &PushHandler{
				verifyPushAuth: tt.verifyAuth,
				verifyToken:    func(*http.Request) error { return tt.tokenErr },
				processor:      processor,
				logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
			}

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/push", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()

			require.NoError(t, h.HandlePush(e.NewContext(req, rec)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestVerifyPubSubToken_RejectsMissingBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/push", nil)
	require.Error(t, verifyPubSubToken(req, "https://worker.example.com/push"))

	req.Header.Set("Authorization", "Basic abc")
	require.Error(t, verifyPubSubToken(req, "https://worker.example.com/push"))
}
