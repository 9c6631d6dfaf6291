package pubsub

import (
	"context"
	"log/slog"

	"coursebook/config"
	"coursebook/internal/domain/constants"
	"coursebook/internal/domain/entity"
	"coursebook/internal/domain/service"

	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// noopPublisher drops verification events. The link is logged at debug level
// so local sign-ups can still be verified without a mail worker.
type noopPublisher struct {
	logger *slog.Logger
}

func (p *noopPublisher) PublishVerificationRequested(ctx context.Context, event *entity.VerificationEvent) error {
	p.logger.DebugContext(ctx, "Verification event not published",
		slog.String("event_id", event.EventID),
		slog.String("verification_url", event.VerificationURL),
	)

	return nil
}

func (p *noopPublisher) Close() error {
	return nil
}

type PublisherParams struct {
	fx.In

	Lc     fx.Lifecycle
	Ctx    context.Context
	Config *config.Config
	Logger *slog.Logger
}

// NewEventPublisher picks the broker the verification events travel over.
// An empty or "noop" provider disables publishing; registration still succeeds.
func NewEventPublisher(params PublisherParams) (service.EventPublisher, error) {
	cfg := params.Config.PubSub
	if cfg == nil || cfg.Provider == "" || cfg.Provider == constants.PubSubProviderNoop {
		params.Logger.Info("Verification events disabled")

		return &noopPublisher{logger: params.Logger}, nil
	}

	if err := validatePubSub(cfg); err != nil {
		return nil, err
	}

	publisher, err := openPublisher(params.Ctx, cfg, params.Logger)
	if err != nil {
		return nil, err
	}
	params.Logger.Info("Verification events enabled", slog.String("provider", cfg.Provider))

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return errors.Wrapf(publisher.Close(), "close %s publisher", cfg.Provider)
		},
	})

	return publisher, nil
}

func validatePubSub(cfg *config.PubSubConfig) error {
	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		if cfg.LocalEndpoint == "" {
			return errors.New("pubsub: localEndpoint is required for the local provider")
		}
	case constants.PubSubProviderGoogle:
		if cfg.ProjectID == "" || cfg.TopicID == "" {
			return errors.New("pubsub: projectId and topicId are required for the google provider")
		}
	case constants.PubSubProviderRabbitMQ:
		if cfg.AMQPURL == "" || cfg.Queue == "" {
			return errors.New("pubsub: amqpUrl and queue are required for the rabbitmq provider")
		}
	default:
		return errors.Errorf("pubsub: unknown provider %q", cfg.Provider)
	}

	return nil
}

func openPublisher(ctx context.Context, cfg *config.PubSubConfig, logger *slog.Logger) (service.EventPublisher, error) {
	switch cfg.Provider {
	case constants.PubSubProviderLocal:
		return NewLocalHTTPPublisher(cfg.LocalEndpoint, logger), nil
	case constants.PubSubProviderGoogle:
		return NewGooglePubSubPublisher(ctx, cfg.ProjectID, cfg.TopicID, logger)
	default:
		client, err := NewRabbitMQClient(cfg.AMQPURL, cfg.Queue)
		if err != nil {
			return nil, err
		}

		return NewRabbitMQPublisher(client, logger), nil
	}
}

// Module provides the verification event publisher.
//
//nolint:gochecknoglobals
var Module = fx.Options(
	fx.Provide(NewEventPublisher),
)
