package service

import (
	"context"

	"coursebook/internal/domain/entity"
)

// EventPublisher defines the interface for publishing events to a message queue
type EventPublisher interface {
	// PublishVerificationRequested hands a verification mail request to the mail worker.
	PublishVerificationRequested(ctx context.Context, event *entity.VerificationEvent) error

	// Close releases any resources held by the publisher
	Close() error
}
