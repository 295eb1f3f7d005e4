package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub"
	"github.com/rs/zerolog/log"
)

// Publishable is anything that knows which topic it belongs to.
type Publishable interface {
	GetEventTopicName() string
}

// Publisher delivers messages on a best effort basis. Failures are logged, never returned.
type Publisher interface {
	Publish(ctx context.Context, message Publishable)
}

type GooglePublisher struct {
	client *gcppubsub.Client

	topicsMutex sync.Mutex
	topics      map[string]*gcppubsub.Topic
}

func NewGooglePublisher(ctx context.Context, projectId string) (*GooglePublisher, error) {
	if projectId == "" {
		return nil, fmt.Errorf("pub sub missing projectID to initialize")
	}
	client, err := gcppubsub.NewClient(ctx, projectId)
	if err != nil {
		return nil, fmt.Errorf("init pubsub client: %w", err)
	}
	log.Info().Str("projectId", projectId).Msg("Successful pubsub init")
	return &GooglePublisher{client: client, topics: map[string]*gcppubsub.Topic{}}, nil
}

func (p *GooglePublisher) Publish(ctx context.Context, message Publishable) {
	topicName := message.GetEventTopicName()
	t, err := p.topic(ctx, topicName)
	if err != nil {
		log.Error().Err(err).Str("topic", topicName).Msg("Cannot resolve pubsub topic")
		return
	}

	result := t.Publish(ctx, &gcppubsub.Message{Data: encodeMessage(message)})

	go func(res *gcppubsub.PublishResult) {
		if _, err := res.Get(context.Background()); err != nil {
			log.Warn().Err(err).Str("topic", topicName).Msg("Failed to publish message")
		}
	}(result)
}

// Subscribe blocks until ctx is done or the subscription fails.
func (p *GooglePublisher) Subscribe(ctx context.Context, subscriptionHandler SubscriptionHandler) {
	sub := p.client.Subscription(subscriptionHandler.SubscriptionId)
	if err := sub.Receive(ctx, subscriptionHandler.Handler); err != nil {
		log.Error().Err(err).Str("subscriptionId", subscriptionHandler.SubscriptionId).Msg("Subscriber error")
	}
}

func (p *GooglePublisher) Close() error {
	p.topicsMutex.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = map[string]*gcppubsub.Topic{}
	p.topicsMutex.Unlock()
	return p.client.Close()
}

func (p *GooglePublisher) topic(ctx context.Context, topicName string) (*gcppubsub.Topic, error) {
	p.topicsMutex.Lock()
	defer p.topicsMutex.Unlock()

	if t, ok := p.topics[topicName]; ok {
		return t, nil
	}

	t := p.client.Topic(topicName)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Info().Str("topic", topicName).Msg("Topic does not exist. Creating new")
		t, err = p.client.CreateTopic(ctx, topicName)
		if err != nil {
			return nil, err
		}
	}
	p.topics[topicName] = t
	return t, nil
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Publishable) {}

// FanOut publishes every message to each publisher in order.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, message Publishable) {
	for _, p := range f {
		p.Publish(ctx, message)
	}
}

func encodeMessage(message any) []byte {
	switch m := message.(type) {
	case string:
		return []byte(m)
	default:
		bytes, _ := json.Marshal(m)
		return bytes
	}
}
