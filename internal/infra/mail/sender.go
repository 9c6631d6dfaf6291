// Package mail delivers rendered verification mail.
package mail

import (
	"context"
	"log/slog"

	"coursebook/config"
	"coursebook/internal/domain/constants"
	"coursebook/internal/domain/service"

	"github.com/pkg/errors"
)

// NewMailSender picks the sender named by mail.provider.
func NewMailSender(cfg *config.Config, logger *slog.Logger) (service.MailSender, error) {
	mailCfg := cfg.Mail
	if mailCfg == nil || mailCfg.Provider == "" || mailCfg.Provider == constants.MailProviderLog {
		logger.Info("Using log mail sender")

		return NewLogSender(logger), nil
	}

	switch mailCfg.Provider {
	case constants.MailProviderSMTP:
		return NewSMTPSender(mailCfg)
	default:
		return nil, errors.Errorf("unknown mail provider: %s", mailCfg.Provider)
	}
}

type logSender struct {
	logger *slog.Logger
}

// NewLogSender writes mail to the log instead of sending it. Meant for local development.
func NewLogSender(logger *slog.Logger) service.MailSender {
	return &logSender{logger: logger}
}

func (s *logSender) Send(ctx context.Context, mail *service.Mail) error {
	s.logger.InfoContext(ctx, "[LogMail] Mail not sent, logged instead",
		slog.String("to", mail.To),
		slog.String("subject", mail.Subject),
		slog.String("body", mail.Body),
	)

	return nil
}
