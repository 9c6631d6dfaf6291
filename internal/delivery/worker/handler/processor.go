package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/constants"
	"coursebook/internal/domain/entity"
	"coursebook/internal/errors"
	"coursebook/internal/usecase"

	"go.uber.org/fx"
)

// Mail delivery results recorded per processed event.
const (
	ResultSent    = "sent"
	ResultDropped = "dropped"
	ResultRetry   = "retry"
)

// retryableError wraps an error to indicate the transport should redeliver the message
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return fmt.Sprintf("retryable: %v", e.err)
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// newRetryableError wraps an error as retryable
func newRetryableError(err error) error {
	return &retryableError{err: err}
}

// IsRetryable reports whether a processing error should trigger redelivery.
// Any other error means the message can never succeed and is dropped.
func IsRetryable(err error) bool {
	var re *retryableError

	return errors.As(err, &re)
}

// DeliveryObserver counts processed events by result.
type DeliveryObserver interface {
	ObserveMailDelivery(result string)
}

// EventProcessorParams holds dependencies for the EventProcessor
type EventProcessorParams struct {
	fx.In

	MailUC   usecase.MailUsecase
	Observer DeliveryObserver
	Logger   *slog.Logger
}

// EventProcessor decodes verification events and hands them to the mail use case,
// independent of the transport they arrived on.
type EventProcessor struct {
	mailUC   usecase.MailUsecase
	observer DeliveryObserver
	logger   *slog.Logger
}

// NewEventProcessor creates the transport-independent event processor.
func NewEventProcessor(params EventProcessorParams) *EventProcessor {
	return &EventProcessor{
		mailUC:   params.MailUC,
		observer: params.Observer,
		logger:   params.Logger,
	}
}

// Process handles one message. It returns nil when done, a retryable error for
// transient failures, and a plain error for messages that can never be delivered.
func (p *EventProcessor) Process(ctx context.Context, data []byte, attributes map[string]string) error {
	if eventType := attributes[constants.AttrEventType]; eventType != "" && eventType != constants.EventTypeVerificationRequested {
		p.logger.Warn("[Worker] Dropping event of unknown type", slog.String("event_type", eventType))
		p.observer.ObserveMailDelivery(ResultDropped)

		return errors.Errorf("unknown event type %q", eventType)
	}

	var event entity.VerificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		p.logger.Error("[Worker] Failed to parse verification event", slog.Any("error", err))
		p.observer.ObserveMailDelivery(ResultDropped)

		return errors.Wrap(err, "decode verification event")
	}

	// Priority: message attributes > event field > existing context
	requestID := attributes[constants.AttrRequestID]
	if requestID == "" {
		requestID = event.RequestID
	}
	if requestID == "" {
		requestID = deliverycontext.GetRequestIDFromContext(ctx)
	}
	if requestID == "" {
		requestID = deliverycontext.NewRequestID()
	}

	reqLogger := p.logger.With(slog.String("request_id", requestID))
	ctx = deliverycontext.WithRequestID(ctx, requestID)
	ctx = deliverycontext.WithLogger(ctx, reqLogger)

	reqLogger.Info("[Worker] Processing verification event",
		slog.String("event_id", event.EventID),
		slog.Any("account_id", event.AccountID),
	)

	if err := p.mailUC.DeliverVerification(ctx, &event); err != nil {
		if errors.Is(err, usecase.ErrMalformedEvent) {
			reqLogger.Error("[Worker] Dropping undeliverable event", slog.String("event_id", event.EventID), slog.Any("error", err))
			p.observer.ObserveMailDelivery(ResultDropped)

			return err
		}

		reqLogger.Error("[Worker] Failed to deliver verification mail", slog.String("event_id", event.EventID), slog.Any("error", err))
		p.observer.ObserveMailDelivery(ResultRetry)

		return newRetryableError(err)
	}

	reqLogger.Info("[Worker] Verification mail sent", slog.String("event_id", event.EventID))
	p.observer.ObserveMailDelivery(ResultSent)

	return nil
}
