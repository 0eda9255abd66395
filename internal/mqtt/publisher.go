package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
)

// Publisher sends analysis events to a fixed topic
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher returns a publisher bound to topic
func NewPublisher(c Client, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{client: c, topic: topic}
}

// Topic returns the topic events are published to
func (p *Publisher) Topic() string { return p.topic }

// PublishAnalysis marshals and publishes one event
func (p *Publisher) PublishAnalysis(ctx context.Context, event AnalysisEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal analysis event: %w", err)
	}
	return p.client.Publish(ctx, p.topic, payload)
}

// Close disconnects the underlying client
func (p *Publisher) Close() {
	p.client.Disconnect()
}
