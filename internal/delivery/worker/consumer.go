package worker

import (
	"context"
	"log/slog"
	"sync/atomic"

	"coursebook/config"
	"coursebook/internal/delivery"
	"coursebook/internal/delivery/worker/handler"
	"coursebook/internal/errors"
	"coursebook/internal/infra/pubsub"

	"go.uber.org/fx"
)

const defaultPrefetch = 8

// QueueConsumer is the receiving side of a queue.
type QueueConsumer interface {
	Consume(ctx context.Context, prefetch int, handler pubsub.DeliveryHandler) error
}

// ConsumerParams holds dependencies for the queue consumer
type ConsumerParams struct {
	fx.In

	Lc        fx.Lifecycle
	Cfg       *config.Config
	Logger    *slog.Logger
	Queue     QueueConsumer
	Processor *handler.EventProcessor
}

type queueConsumer struct {
	queue     QueueConsumer
	processor *handler.EventProcessor
	prefetch  int
	logger    *slog.Logger

	stopped context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}
}

// NewConsumer creates the delivery that drains verification events from the queue.
func NewConsumer(params ConsumerParams) (delivery.Delivery, error) {
	prefetch := defaultPrefetch
	if params.Cfg.Worker != nil && params.Cfg.Worker.Prefetch > 0 {
		prefetch = params.Cfg.Worker.Prefetch
	}

	stopped, cancel := context.WithCancel(context.Background())
	c := &queueConsumer{
		queue:     params.Queue,
		processor: params.Processor,
		prefetch:  prefetch,
		logger:    params.Logger,
		stopped:   stopped,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	params.Lc.Append(fx.Hook{
		OnStop: c.stop,
	})

	return c, nil
}

// Serve consumes until stopped. Retryable failures are requeued, anything else is dropped.
func (c *queueConsumer) Serve(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("queue consumer already started")
	}
	defer close(c.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	unlink := context.AfterFunc(c.stopped, cancel)
	defer unlink()

	c.logger.Info("Starting queue consumer", slog.Int("prefetch", c.prefetch))

	err := c.queue.Consume(ctx, c.prefetch, c.handle)
	if err != nil && ctx.Err() == nil {
		return errors.WithStack(err)
	}

	return nil
}

func (c *queueConsumer) handle(ctx context.Context, d pubsub.Delivery) error {
	err := c.processor.Process(ctx, d.Data, d.Attributes)
	if err == nil {
		return nil
	}
	if handler.IsRetryable(err) {
		return errors.Join(pubsub.ErrRequeue, err)
	}

	return err
}

func (c *queueConsumer) stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.cancel()
	if !c.started.Load() {
		return nil
	}

	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}
