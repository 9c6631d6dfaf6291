package main

import (
	"context"
	"log/slog"
	"os"

	"coursebook/config"
	"coursebook/internal/delivery"
	"coursebook/internal/delivery/worker"
	"coursebook/internal/delivery/worker/handler"
	"coursebook/internal/domain/constants"
	logs "coursebook/internal/infra/log"
	"coursebook/internal/infra/mail"
	"coursebook/internal/infra/metrics"
	"coursebook/internal/infra/pubsub"
	"coursebook/internal/usecase/impl"

	"go.uber.org/fx"
)

type startServerParams struct {
	fx.In
	fx.Lifecycle
	fx.Shutdowner

	Deliveries []delivery.Delivery `group:"deliveries"`
}

func main() {
	fx.New(
		injectInfra(),
		injectService(),
		injectHandler(),
		injectDelivery(),
		fx.Invoke(
			startServer,
		),
	).Run()
}

func injectInfra() fx.Option {
	return fx.Provide(
		config.New,
		logs.New,
		context.Background,
		metrics.New,
		func(m *metrics.Metrics) handler.DeliveryObserver { return m },
	)
}

func injectService() fx.Option {
	return fx.Options(
		fx.Provide(
			mail.NewMailSender,
			impl.NewMailService,
		),
	)
}

func injectHandler() fx.Option {
	return fx.Options(
		fx.Provide(
			handler.NewEventProcessor,
			handler.NewPushHandler,
		),
	)
}

// injectDelivery always serves the push endpoint and adds the queue consumer when events travel over RabbitMQ.
func injectDelivery() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				worker.NewServer,
				fx.ResultTags(`group:"deliveries"`),
			),
			newQueueConsumer,
			fx.Annotate(
				newConsumerDelivery,
				fx.ResultTags(`group:"deliveries"`),
			),
		),
	)
}

// newQueueConsumer dials RabbitMQ unless another provider is configured.
func newQueueConsumer(lc fx.Lifecycle, cfg *config.Config) (worker.QueueConsumer, error) {
	if cfg.PubSub == nil || cfg.PubSub.Provider != constants.PubSubProviderRabbitMQ {
		return nil, nil
	}

	client, err := pubsub.NewRabbitMQClient(cfg.PubSub.AMQPURL, cfg.PubSub.Queue)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func newConsumerDelivery(params worker.ConsumerParams) (delivery.Delivery, error) {
	if params.Queue == nil {
		return idleDelivery{}, nil
	}

	return worker.NewConsumer(params)
}

// idleDelivery stands in for the consumer when no queue is configured.
type idleDelivery struct{}

func (idleDelivery) Serve(context.Context) error { return nil }

func startServer(ctx context.Context, params startServerParams) {
	for _, delivery := range params.Deliveries {
		go func() {
			if err := delivery.Serve(ctx); err != nil {
				slog.Error("Failed to start server", slog.Any("error", err))

				// Trigger graceful shutdown to execute all OnStop hooks
				if shutdownErr := params.Shutdown(); shutdownErr != nil {
					slog.Error("Failed to shutdown gracefully", slog.Any("error", shutdownErr))
					os.Exit(1)
				}
			}
		}()
	}
}
