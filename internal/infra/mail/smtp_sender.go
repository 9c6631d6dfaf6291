package mail

import (
	"context"
	"time"

	"coursebook/config"
	"coursebook/internal/domain/service"

	"github.com/pkg/errors"
	gomail "github.com/wneessen/go-mail"
)

const smtpTimeout = 15 * time.Second

// smtpDialer is the part of *gomail.Client the sender uses.
type smtpDialer interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

type smtpSender struct {
	from   string
	client smtpDialer
	now    func() time.Time
}

// NewSMTPSender sends plain-text mail through the configured relay, with PLAIN auth
// when a username is set. STARTTLS is used whenever the relay offers it unless
// mail.tls says otherwise.
func NewSMTPSender(cfg *config.MailConfig) (service.MailSender, error) {
	if cfg.Host == "" || cfg.Port == 0 {
		return nil, errors.New("mail host and port are required for smtp provider")
	}
	if cfg.From == "" {
		return nil, errors.New("mail from address is required for smtp provider")
	}

	policy, err := tlsPolicy(cfg.TLS)
	if err != nil {
		return nil, err
	}

	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(policy),
		gomail.WithTimeout(smtpTimeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "smtp client")
	}

	return &smtpSender{from: cfg.From, client: client, now: time.Now}, nil
}

func tlsPolicy(name string) (gomail.TLSPolicy, error) {
	switch name {
	case "", "opportunistic":
		return gomail.TLSOpportunistic, nil
	case "mandatory":
		return gomail.TLSMandatory, nil
	case "none":
		return gomail.NoTLS, nil
	default:
		return gomail.NoTLS, errors.Errorf("unknown mail tls policy: %s", name)
	}
}

func (s *smtpSender) Send(ctx context.Context, mail *service.Mail) error {
	msg, err := s.compose(mail)
	if err != nil {
		return err
	}

	return errors.Wrap(s.client.DialAndSendWithContext(ctx, msg), "smtp send")
}

func (s *smtpSender) compose(mail *service.Mail) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.from); err != nil {
		return nil, errors.Wrap(err, "invalid sender address")
	}
	if err := msg.To(mail.To); err != nil {
		return nil, errors.Wrap(err, "invalid recipient address")
	}
	msg.Subject(mail.Subject)
	msg.SetDateWithValue(s.now())
	msg.SetMessageID()
	msg.SetBodyString(gomail.TypeTextPlain, mail.Body)

	return msg, nil
}
