package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"coursebook/config"
	"coursebook/internal/delivery/worker/handler"
	"coursebook/internal/domain/entity"
	"coursebook/internal/errors"
	"coursebook/internal/infra/pubsub"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
)

// replayQueue hands every delivery to the handler once, records the outcome, then blocks until cancelled.
type replayQueue struct {
	deliveries []pubsub.Delivery
	outcomes   []error
	prefetch   int
}

func (q *replayQueue) Consume(ctx context.Context, prefetch int, h pubsub.DeliveryHandler) error {
	q.prefetch = prefetch
	for _, d := range q.deliveries {
		q.outcomes = append(q.outcomes, h(ctx, d))
	}
	<-ctx.Done()

	return ctx.Err()
}

type mailFunc func(ctx context.Context, event *entity.VerificationEvent) error

func (f mailFunc) DeliverVerification(ctx context.Context, event *entity.VerificationEvent) error {
	return f(ctx, event)
}

type nopObserver struct{}

func (nopObserver) ObserveMailDelivery(string) {}

func TestConsumer_AckRequeueDrop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	processor := handler.NewEventProcessor(handler.EventProcessorParams{
		MailUC: mailFunc(func(_ context.Context, event *entity.VerificationEvent) error {
			if event.Email == "down@example.com" {
				return errors.New("smtp down")
			}

			return nil
		}),
		Observer: nopObserver{},
		Logger:   logger,
	})

	queue := &replayQueue{deliveries: []pubsub.Delivery{
		{ID: "ok", Data: []byte(`{"event_id":"1","email":"budi@example.com"}`)},
		{ID: "retry", Data: []byte(`{"event_id":"2","email":"down@example.com"}`)},
		{ID: "drop", Data: []byte(`not json`)},
	}}

	lc := fxtest.NewLifecycle(t)
	cfg := &config.Config{Worker: &config.WorkerConfig{Prefetch: 4}}
	consumer, err := NewConsumer(ConsumerParams{Lc: lc, Cfg: cfg, Logger: logger, Queue: queue, Processor: processor})
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- consumer.Serve(context.Background()) }()

	require.Eventually(t, func() bool {
		return consumer.(*queueConsumer).started.Load()
	}, time.Second, 5*time.Millisecond)
	lc.RequireStart()
	lc.RequireStop()

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Equal(t, 4, queue.prefetch)
	require.Len(t, queue.outcomes, 3)
	require.NoError(t, queue.outcomes[0])
	require.ErrorIs(t, queue.outcomes[1], pubsub.ErrRequeue)
	require.Error(t, queue.outcomes[2])
	assert.NotErrorIs(t, queue.outcomes[2], pubsub.ErrRequeue)
}

func TestConsumer_ServeTwice(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lc := fxtest.NewLifecycle(t)
	consumer, err := NewConsumer(ConsumerParams{
		Lc:     lc,
		Cfg:    &config.Config{},
		Logger: logger,
		Queue:  &replayQueue{},
	})
	require.NoError(t, err)

	served := make(chan error, 1)
	go func() { served <- consumer.Serve(context.Background()) }()

	require.Eventually(t, func() bool {
		return consumer.(*queueConsumer).started.Load()
	}, time.Second, 5*time.Millisecond)
	require.Error(t, consumer.Serve(context.Background()))

	lc.RequireStart()
	lc.RequireStop()
	require.NoError(t, <-served)
}
