package kafka

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/edgeflare/ktable/pkg/metrics"
	"github.com/edgeflare/ktable/pkg/schema"
	"github.com/edgeflare/ktable/pkg/table"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Message is a decoded record and its position in the log.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Row       schema.Row
}

// HandlerFunc receives decoded messages. It is called concurrently from one
// goroutine per partition. Returning an error stops the reader.
type HandlerFunc func(ctx context.Context, msg Message) error

// Reader consumes every partition of every table topic and decodes messages
// with the table's codec.
type Reader struct {
	table    *table.Table
	consumer sarama.Consumer
	logger   *zap.Logger
	offset   int64
	strict   bool
	owned    bool
}

type ReaderOption func(*Reader)

func WithReaderLogger(logger *zap.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithOffset sets where partitions without committed state start,
// sarama.OffsetOldest or sarama.OffsetNewest (the default).
func WithOffset(offset int64) ReaderOption {
	return func(r *Reader) {
		r.offset = offset
	}
}

// WithStrictDecoding stops the reader on the first undecodable message
// instead of logging and skipping it.
func WithStrictDecoding() ReaderOption {
	return func(r *Reader) {
		r.strict = true
	}
}

// NewReader returns a reader consuming through consumer. The consumer is
// not closed by Reader.Close unless the reader was created by a Client.
func NewReader(t *table.Table, consumer sarama.Consumer, opts ...ReaderOption) *Reader {
	r := &Reader{
		table:    t,
		consumer: consumer,
		logger:   zap.NewNop(),
		offset:   sarama.OffsetNewest,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.Stringer("format", t.Format()))
	return r
}

// Run consumes until ctx is done, which is not an error, or until handler,
// a partition consumer or (in strict mode) the codec fails.
func (r *Reader) Run(ctx context.Context, handler HandlerFunc) error {
	pcs, err := r.consumePartitions()
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, pc := range pcs {
		g.Go(func() error {
			defer r.closePartition(pc)
			return r.consume(gctx, pc.PartitionConsumer, handler)
		})
	}

	r.logger.Info("Reading table", zap.Strings("topics", r.table.Topics()), zap.Int("partitions", len(pcs)))
	err = g.Wait()
	if err != nil && !(errors.Is(err, context.Canceled) && ctx.Err() != nil) {
		return err
	}
	return nil
}

type partitionConsumer struct {
	sarama.PartitionConsumer
	topic     string
	partition int32
}

// consumePartitions starts a consumer for every partition of every topic.
// On failure the ones already started are closed.
func (r *Reader) consumePartitions() ([]partitionConsumer, error) {
	var pcs []partitionConsumer
	fail := func(err error) ([]partitionConsumer, error) {
		for _, pc := range pcs {
			r.closePartition(pc)
		}
		return nil, err
	}

	for _, topic := range r.table.Topics() {
		partitions, err := r.consumer.Partitions(topic)
		if err != nil {
			return fail(fmt.Errorf("failed to list partitions of %s: %w", topic, err))
		}
		for _, partition := range partitions {
			pc, err := r.consumer.ConsumePartition(topic, partition, r.offset)
			if err != nil {
				return fail(fmt.Errorf("failed to consume %s/%d: %w", topic, partition, err))
			}
			pcs = append(pcs, partitionConsumer{PartitionConsumer: pc, topic: topic, partition: partition})
		}
	}
	return pcs, nil
}

func (r *Reader) closePartition(pc partitionConsumer) {
	if err := pc.Close(); err != nil {
		r.logger.Warn("Failed to close partition consumer",
			zap.String("topic", pc.topic), zap.Int32("partition", pc.partition), zap.Error(err))
	}
}

func (r *Reader) consume(ctx context.Context, pc sarama.PartitionConsumer, handler HandlerFunc) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cerr, ok := <-pc.Errors():
			if !ok {
				return nil
			}
			r.logger.Warn("Consumer error",
				zap.String("topic", cerr.Topic), zap.Int32("partition", cerr.Partition), zap.Error(cerr.Err))
		case msg, ok := <-pc.Messages():
			if !ok {
				return nil
			}
			row, err := r.table.Codec().Decode(msg.Value)
			if err != nil {
				metrics.CodecErrors.WithLabelValues(r.table.Format().String(), metrics.OperationDecode).Inc()
				if r.strict {
					return fmt.Errorf("failed to decode %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
				}
				r.logger.Warn("Skipping undecodable message",
					zap.String("topic", msg.Topic),
					zap.Int32("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err))
				continue
			}
			metrics.MessagesConsumed.WithLabelValues(msg.Topic).Inc()
			if err := handler(ctx, Message{
				Topic:     msg.Topic,
				Partition: msg.Partition,
				Offset:    msg.Offset,
				Key:       msg.Key,
				Row:       row,
			}); err != nil {
				return err
			}
		}
	}
}

// Close closes the consumer if the reader owns it.
func (r *Reader) Close() error {
	if !r.owned {
		return nil
	}
	return r.consumer.Close()
}
