package mqtt

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/nutrisnap/nutrisnap/internal/errors"
	"github.com/nutrisnap/nutrisnap/internal/logger"
)

// client implements Client on top of paho
type client struct {
	config  Config
	metrics Metrics
	log     logger.Logger
	factory func(*paho.ClientOptions) paho.Client

	mu       sync.Mutex
	internal paho.Client
}

// NewClient creates a new MQTT client with the provided configuration.
// metrics may be nil.
func NewClient(cfg Config, metrics Metrics) Client {
	return newClient(cfg, metrics, paho.NewClient)
}

func newClient(cfg Config, metrics Metrics, factory func(*paho.ClientOptions) paho.Client) *client {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = def.DisconnectTimeout
	}
	return &client{
		config:  cfg,
		metrics: metrics,
		log:     GetLogger(),
		factory: factory,
	}
}

// Connect resolves the broker host and connects. paho reconnects on its own
// after a successful first connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Hostname() == "" {
		return c.publishError(fmt.Errorf("invalid broker URL %q", c.config.Broker), "connect")
	}

	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.publishError(fmt.Errorf("failed to resolve hostname %s: %w", host, err), "resolve")
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internal = c.factory(opts)
	token := c.internal.Connect()
	if !token.WaitTimeout(c.config.ConnectTimeout) {
		return c.publishError(fmt.Errorf("connection timeout"), "connect")
	}
	if err := token.Error(); err != nil {
		return c.publishError(fmt.Errorf("connection error: %w", err), "connect")
	}

	c.setConnected(true)
	return nil
}

// Publish sends payload and waits for the broker acknowledgement
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internal == nil || !c.internal.IsConnected() {
		return c.publishError(fmt.Errorf("not connected to MQTT broker"), "publish")
	}

	timeout := c.config.PublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	start := time.Now()
	token := c.internal.Publish(topic, c.config.QoS, c.config.Retain, payload)
	var err error
	if !token.WaitTimeout(timeout) {
		err = fmt.Errorf("publish timeout")
	} else {
		err = token.Error()
	}
	if c.metrics != nil {
		c.metrics.RecordPublish(len(payload), time.Since(start), err)
	}
	if err != nil {
		return c.publishError(err, "publish")
	}

	c.log.Debug("message published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internal != nil && c.internal.IsConnected() {
		c.internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.setConnected(false)
	}
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	c.setConnected(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.String("broker", c.config.Broker), logger.Error(err))
	c.setConnected(false)
}

func (c *client) setConnected(v bool) {
	if c.metrics != nil {
		c.metrics.SetConnected(v)
	}
}

func (c *client) publishError(err error, op string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryPublish).
		Context("operation", op).
		Context("broker", c.config.Broker).
		Build()
}
