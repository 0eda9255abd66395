// Package mqtt publishes analysis events to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/nutrisnap/nutrisnap/internal/conf"
)

// DefaultTopic receives analysis events when no topic is configured
const DefaultTopic = "nutrisnap/analysis"

// Client is the broker connection used by Publisher
type Client interface {
	Connect(ctx context.Context) error
	// Publish blocks until the broker acknowledges or ctx expires.
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
	Disconnect()
}

// Metrics receives connection and publish observations
type Metrics interface {
	SetConnected(connected bool)
	RecordPublish(size int, latency time.Duration, err error)
}

// Config configures the paho backed Client
type Config struct {
	Broker            string
	ClientID          string
	Username          string
	Password          string
	Topic             string // topic analysis events are published to
	Retain            bool   // true to retain messages at the broker
	QoS               byte
	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
}

// DefaultConfig returns the timeouts used in production and the default topic
func DefaultConfig() Config {
	return Config{
		Topic:             DefaultTopic,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
	}
}

// ConfigFromSettings maps the mqtt settings group onto a Config. The instance
// name is used as client id when none is configured.
func ConfigFromSettings(s *conf.MQTTSettings, instanceName string) Config {
	cfg := DefaultConfig()
	cfg.Broker = s.Broker
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Retain = s.Retain
	cfg.ClientID = s.ClientID
	if cfg.ClientID == "" {
		cfg.ClientID = instanceName
	}
	if s.Topic != "" {
		cfg.Topic = s.Topic
	}
	return cfg
}
