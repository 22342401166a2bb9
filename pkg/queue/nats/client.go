package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tunogya/seqprep/pkg/logger"
)

// Config holds NATS client configuration
type Config struct {
	URL        string
	StreamName string

	MaxReconnects int
	ReconnectWait time.Duration
	MaxAge        time.Duration // stream retention

	AckWait    time.Duration // per delivery
	MaxDeliver int           // deliveries before a message is dropped
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		StreamName:    "seqprep",
		MaxReconnects: 3,
		ReconnectWait: time.Second,
		MaxAge:        24 * time.Hour,
		AckWait:       30 * time.Second,
		MaxDeliver:    3,
	}
}

// Client publishes and consumes seqprep messages over JetStream
type Client struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	cfg Config
	log *logger.Logger
}

// NewClient connects to NATS and opens a JetStream context
func NewClient(cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}

	nc, err := nats.Connect(cfg.URL, connectOptions(cfg, log)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &Client{nc: nc, js: js, cfg: cfg, log: log}, nil
}

func connectOptions(cfg Config, log *logger.Logger) []nats.Option {
	return []nats.Option{
		nats.Name("seqprep"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", logger.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", logger.String("url", nc.ConnectedUrl()))
		}),
	}
}

// CreateStream creates or updates the work-queue stream. With no subjects
// the stream covers Subjects().
func (c *Client) CreateStream(ctx context.Context, subjects ...string) error {
	if len(subjects) == 0 {
		subjects = Subjects()
	}
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      c.cfg.StreamName,
		Subjects:  subjects,
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
		MaxAge:    c.cfg.MaxAge,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %s: %w", c.cfg.StreamName, err)
	}
	return nil
}

// Publish publishes raw bytes and waits for the stream ack
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := c.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

// PublishJSON encodes v and publishes it
func (c *Client) PublishJSON(ctx context.Context, subject string, v interface{}) error {
	data, err := Encode(v)
	if err != nil {
		return fmt.Errorf("failed to encode message for %s: %w", subject, err)
	}
	return c.Publish(ctx, subject, data)
}

// MessageHandler processes one message payload. A non-nil error naks the
// message so JetStream redelivers it.
type MessageHandler func(ctx context.Context, data []byte) error

// JSONHandler adapts a typed handler to MessageHandler
func JSONHandler[T any](fn func(ctx context.Context, msg *T) error) MessageHandler {
	return func(ctx context.Context, data []byte) error {
		msg, err := Decode[T](data)
		if err != nil {
			return fmt.Errorf("failed to decode %T: %w", msg, err)
		}
		return fn(ctx, msg)
	}
}

// Subscribe attaches a durable explicit-ack consumer to subject. The returned
// ConsumeContext must be stopped by the caller.
func (c *Client) Subscribe(ctx context.Context, subject, durable string, handler MessageHandler) (jetstream.ConsumeContext, error) {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, c.cfg.StreamName, jetstream.ConsumerConfig{
		Durable:       durable,
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       c.cfg.AckWait,
		MaxDeliver:    c.cfg.MaxDeliver,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer %s: %w", durable, err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		if err := handler(ctx, msg.Data()); err != nil {
			c.log.Warn("Handler failed, message will be redelivered",
				logger.String("subject", msg.Subject()),
				logger.String("consumer", durable),
				logger.Error(err),
			)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming %s: %w", subject, err)
	}
	return cc, nil
}

// Close closes the connection
func (c *Client) Close() {
	if c.nc != nil {
		c.nc.Close()
	}
}

// IsConnected returns true if connected to NATS
func (c *Client) IsConnected() bool {
	return c.nc != nil && c.nc.IsConnected()
}
