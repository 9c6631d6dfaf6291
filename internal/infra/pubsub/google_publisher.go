package pubsub

import (
	"context"
	"log/slog"

	"coursebook/internal/domain/entity"
	"coursebook/internal/domain/service"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pkg/errors"
)

type googlePubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    *slog.Logger
}

// NewGooglePubSubPublisher fails when the topic does not exist, so a misconfigured
// deployment stops at boot rather than at the first registration.
func NewGooglePubSubPublisher(ctx context.Context, projectID, topicID string, logger *slog.Logger) (service.EventPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.Wrapf(err, "pubsub client for project %s", projectID)
	}

	topic := "projects/" + projectID + "/topics/" + topicID
	if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topic}); err != nil {
		_ = client.Close()

		return nil, errors.Wrapf(err, "lookup topic %s", topic)
	}

	return &googlePubSubPublisher{
		client:    client,
		publisher: client.Publisher(topicID),
		logger:    logger.With(slog.String("topic", topic)),
	}, nil
}

// PublishVerificationRequested blocks until Pub/Sub has stored the message.
func (p *googlePubSubPublisher) PublishVerificationRequested(ctx context.Context, event *entity.VerificationEvent) error {
	data, attributes, err := encodeEvent(event)
	if err != nil {
		return err
	}

	serverID, err := p.publisher.Publish(ctx, &pubsub.Message{Data: data, Attributes: attributes}).Get(ctx)
	if err != nil {
		return errors.Wrapf(err, "publish event %s", event.EventID)
	}

	p.logger.DebugContext(ctx, "Verification event published",
		slog.String("event_id", event.EventID),
		slog.String("message_id", serverID),
	)

	return nil
}

// Close flushes pending publishes before closing the client.
func (p *googlePubSubPublisher) Close() error {
	p.publisher.Stop()

	return errors.WithStack(p.client.Close())
}
