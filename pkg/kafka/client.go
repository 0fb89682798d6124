package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/ktable/pkg/table"
	"go.uber.org/zap"
)

// Client creates broker connections for a table's cluster.
type Client struct {
	config *Config
	logger *zap.Logger

	newProducer func(addrs []string, conf *sarama.Config) (sarama.SyncProducer, error)
	newConsumer func(addrs []string, conf *sarama.Config) (sarama.Consumer, error)
	newAdmin    func(addrs []string, conf *sarama.Config) (sarama.ClusterAdmin, error)
}

// NewClient creates a new Client
func NewClient(config *Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		config:      config,
		logger:      logger,
		newProducer: sarama.NewSyncProducer,
		newConsumer: sarama.NewConsumer,
		newAdmin:    sarama.NewClusterAdmin,
	}
}

// NewClientForTable creates a client for the cluster t is bound to.
func NewClientForTable(t *table.Table, logger *zap.Logger) (*Client, error) {
	cfg, err := ConfigFromTable(t)
	if err != nil {
		return nil, err
	}
	return NewClient(cfg, logger), nil
}

func (c *Client) Config() *Config { return c.config }

// CreateProducer creates a new SyncProducer, retrying with exponential
// backoff until the connect timeout elapses or ctx is done.
func (c *Client) CreateProducer(ctx context.Context) (sarama.SyncProducer, error) {
	conf, err := c.saramaConfig()
	if err != nil {
		return nil, err
	}

	var producer sarama.SyncProducer
	err = c.retry(ctx, "producer", func() error {
		p, err := c.newProducer(c.config.GetBrokers(), conf)
		if err != nil {
			return err
		}
		producer = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}
	return producer, nil
}

// CreateConsumer creates a new Consumer, retrying like CreateProducer.
func (c *Client) CreateConsumer(ctx context.Context) (sarama.Consumer, error) {
	conf, err := c.saramaConfig()
	if err != nil {
		return nil, err
	}

	var consumer sarama.Consumer
	err = c.retry(ctx, "consumer", func() error {
		cons, err := c.newConsumer(c.config.GetBrokers(), conf)
		if err != nil {
			return err
		}
		consumer = cons
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	return consumer, nil
}

// ListTopics lists all topics
func (c *Client) ListTopics() (map[string]sarama.TopicDetail, error) {
	conf, err := c.saramaConfig()
	if err != nil {
		return nil, err
	}
	admin, err := c.newAdmin(c.config.GetBrokers(), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster admin: %w", err)
	}
	defer admin.Close()

	topics, err := admin.ListTopics()
	if err != nil {
		return nil, fmt.Errorf("failed to list topics: %w", err)
	}
	return topics, nil
}

// MissingTopics returns the topics of t that do not exist on the cluster.
func (c *Client) MissingTopics(t *table.Table) ([]string, error) {
	existing, err := c.ListTopics()
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, topic := range t.Topics() {
		if _, ok := existing[topic]; !ok {
			missing = append(missing, topic)
		}
	}
	return missing, nil
}

// Writer connects a producer and returns a writer for t that owns it.
func (c *Client) Writer(ctx context.Context, t *table.Table, opts ...WriterOption) (*Writer, error) {
	producer, err := c.CreateProducer(ctx)
	if err != nil {
		return nil, err
	}
	w, err := NewWriter(t, producer, append([]WriterOption{WithWriterLogger(c.logger)}, opts...)...)
	if err != nil {
		producer.Close()
		return nil, err
	}
	w.owned = true
	return w, nil
}

// Reader connects a consumer and returns a reader for t that owns it.
func (c *Client) Reader(ctx context.Context, t *table.Table, opts ...ReaderOption) (*Reader, error) {
	offset, err := c.config.InitialOffset()
	if err != nil {
		return nil, err
	}
	consumer, err := c.CreateConsumer(ctx)
	if err != nil {
		return nil, err
	}
	defaults := []ReaderOption{WithReaderLogger(c.logger), WithOffset(offset)}
	r := NewReader(t, consumer, append(defaults, opts...)...)
	r.owned = true
	return r, nil
}

func (c *Client) saramaConfig() (*sarama.Config, error) {
	if len(c.config.GetBrokers()) == 0 {
		return nil, ErrNoBrokers
	}
	conf, err := c.config.ToSaramaConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create sarama config: %w", err)
	}
	return conf, nil
}

func (c *Client) retry(ctx context.Context, what string, operation backoff.Operation) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = c.config.ConnectTimeout

	return backoff.RetryNotify(operation, backoff.WithContext(b, ctx), func(err error, delay time.Duration) {
		c.logger.Warn("Retrying connection",
			zap.String("client", what),
			zap.Strings("brokers", c.config.GetBrokers()),
			zap.Duration("delay", delay),
			zap.Error(err))
	})
}
