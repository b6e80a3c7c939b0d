// Package pubsub implements the distributed job queue on Google Cloud
// Pub/Sub, letting the API tier and workers scale independently.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/xvc323/omnidocs/internal/crawler"
)

// Config identifies the topic and subscription to use.
type Config struct {
	ProjectID      string
	TopicID        string
	SubscriptionID string
}

// Queue implements crawler.Queue on a Pub/Sub topic. Items are published as
// JSON; the receive loop starts lazily on the first Dequeue.
type Queue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	log    *zap.Logger

	items     chan crawler.QueueItem
	startOnce sync.Once
	recvCtx   context.Context
	recvStop  context.CancelFunc
}

// New connects to Pub/Sub using Application Default Credentials and
// verifies the topic exists.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Queue, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %s: %w", cfg.TopicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
	}

	var sub *pubsub.Subscription
	if cfg.SubscriptionID != "" {
		sub = client.Subscription(cfg.SubscriptionID)
	}

	recvCtx, recvStop := context.WithCancel(context.Background())
	return &Queue{
		client:   client,
		topic:    topic,
		sub:      sub,
		log:      log,
		items:    make(chan crawler.QueueItem),
		recvCtx:  recvCtx,
		recvStop: recvStop,
	}, nil
}

// Enqueue publishes the item and waits for the server acknowledgement, so a
// 202 returned to the client means the job is durably queued.
func (q *Queue) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode queue item: %w", err)
	}
	result := q.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish queue item: %w", err)
	}
	return nil
}

// Dequeue returns the next job from the subscription.
func (q *Queue) Dequeue(ctx context.Context) (crawler.QueueItem, error) {
	if q.sub == nil {
		return crawler.QueueItem{}, fmt.Errorf("queue has no subscription configured")
	}
	q.startOnce.Do(func() { go q.receive() })

	select {
	case <-ctx.Done():
		return crawler.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item, ok := <-q.items:
		if !ok {
			return crawler.QueueItem{}, fmt.Errorf("queue receive loop stopped")
		}
		return item, nil
	}
}

// receive pumps subscription messages into the items channel. Messages are
// acked once handed to a caller; undecodable messages are acked and dropped
// so they cannot poison the subscription.
func (q *Queue) receive() {
	defer close(q.items)
	err := q.sub.Receive(q.recvCtx, func(ctx context.Context, msg *pubsub.Message) {
		var item crawler.QueueItem
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			q.log.Warn("dropping undecodable queue message", zap.Error(err))
			msg.Ack()
			return
		}
		select {
		case q.items <- item:
			msg.Ack()
		case <-ctx.Done():
			msg.Nack()
		}
	})
	if err != nil && q.recvCtx.Err() == nil {
		q.log.Error("pubsub receive loop failed", zap.Error(err))
	}
}

// Close stops the receive loop, flushes pending publishes and closes the
// client.
func (q *Queue) Close() error {
	q.recvStop()
	q.topic.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
