package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/huanews/newsingest/internal/ingest"
)

// topicPublisher is the slice of *pubsub.Topic this notifier uses.
type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// PubSub publishes new-article batches to a Google Cloud Pub/Sub topic.
type PubSub struct {
	topic topicPublisher
}

// NewPubSub constructs a notifier bound to an existing topic handle.
func NewPubSub(topic *pubsub.Topic) *PubSub {
	return &PubSub{topic: topic}
}

// Notify implements ingest.Notifier.
func (p *PubSub) Notify(ctx context.Context, articles []ingest.NewArticle) error {
	if p.topic == nil {
		return fmt.Errorf("pubsub notifier is not configured")
	}
	if len(articles) == 0 {
		return nil
	}
	data, err := json.Marshal(webhookPayload{Articles: articles})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	result := p.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}
