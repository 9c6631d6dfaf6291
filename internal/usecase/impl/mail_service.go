package impl

import (
	"context"
	"log/slog"

	"coursebook/config"
	deliverycontext "coursebook/internal/delivery/context"
	"coursebook/internal/domain/entity"
	"coursebook/internal/domain/service"
	"coursebook/internal/errors"
	"coursebook/internal/i18n"
	"coursebook/internal/usecase"

	"go.uber.org/fx"
	"golang.org/x/text/language"
)

type mailService struct {
	sender        service.MailSender
	defaultLocale language.Tag
	logger        *slog.Logger
}

// MailServiceParams holds dependencies for MailService, injected by Fx.
type MailServiceParams struct {
	fx.In

	Sender service.MailSender
	Config *config.Config
	Logger *slog.Logger
}

// NewMailService renders and sends queued verification mail.
func NewMailService(params MailServiceParams) usecase.MailUsecase {
	return &mailService{
		sender:        params.Sender,
		defaultLocale: i18n.Parse(params.Config.I18n.DefaultLocale, i18n.DefaultLocale),
		logger:        params.Logger,
	}
}

func (srv *mailService) log(ctx context.Context) *slog.Logger {
	return deliverycontext.GetLoggerOrDefault(ctx, srv.logger)
}

func (srv *mailService) DeliverVerification(ctx context.Context, event *entity.VerificationEvent) error {
	if event == nil || event.Email == "" || event.VerificationURL == "" {
		return errors.Wrap(usecase.ErrMalformedEvent, "verification event lacks recipient or link")
	}

	tag := i18n.Parse(event.Locale, srv.defaultLocale)
	mail := &service.Mail{
		To:      event.Email,
		Subject: i18n.T(tag, i18n.MailVerifySubject),
		Body:    i18n.T(tag, i18n.MailVerifyBody, event.Name, event.VerificationURL),
	}

	if err := srv.sender.Send(ctx, mail); err != nil {
		return errors.Wrapf(err, "failed to send verification mail for event %s", event.EventID)
	}

	srv.log(ctx).Info("Verification mail sent",
		slog.String("eventID", event.EventID),
		slog.Any("accountID", event.AccountID),
		slog.String("locale", tag.String()),
	)

	return nil
}
