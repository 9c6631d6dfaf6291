package usecase

import (
	"context"

	"coursebook/internal/domain/entity"
	"coursebook/internal/errors"
)

// ErrMalformedEvent marks an event that can never be delivered; consumers drop it instead of retrying.
var ErrMalformedEvent = errors.New("malformed event")

// MailUsecase delivers queued notification mail.
type MailUsecase interface {
	DeliverVerification(ctx context.Context, event *entity.VerificationEvent) error
}
