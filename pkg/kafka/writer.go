package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/edgeflare/ktable/pkg/metrics"
	"github.com/edgeflare/ktable/pkg/schema"
	"github.com/edgeflare/ktable/pkg/table"
	"go.uber.org/zap"
)

// Writer encodes rows with a table's codec and publishes them to the
// table's first topic.
type Writer struct {
	table    *table.Table
	topic    string
	producer sarama.SyncProducer
	logger   *zap.Logger
	keyField int
	owned    bool
}

type WriterOption func(*Writer) error

func WithWriterLogger(logger *zap.Logger) WriterOption {
	return func(w *Writer) error {
		w.logger = logger
		return nil
	}
}

// WithKeyField uses the named field's value, as text, for the message key.
// Rows with a null key field are published without a key.
func WithKeyField(name string) WriterOption {
	return func(w *Writer) error {
		_, i, ok := w.table.Schema().Lookup(name)
		if !ok {
			return fmt.Errorf("key field %q is not in the table schema", name)
		}
		w.keyField = i
		return nil
	}
}

// NewWriter returns a writer publishing through producer. The producer is
// not closed by Writer.Close unless the writer was created by a Client.
func NewWriter(t *table.Table, producer sarama.SyncProducer, opts ...WriterOption) (*Writer, error) {
	topics := t.Topics()
	if len(topics) == 0 {
		return nil, errors.New("table has no topics")
	}
	w := &Writer{
		table:    t,
		topic:    topics[0],
		producer: producer,
		logger:   zap.NewNop(),
		keyField: -1,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With(zap.String("topic", w.topic), zap.Stringer("format", t.Format()))
	return w, nil
}

func (w *Writer) Topic() string { return w.topic }

// Write encodes every row and publishes them. No message is sent if any row
// fails to encode.
func (w *Writer) Write(ctx context.Context, rows ...schema.Row) error {
	if len(rows) == 0 {
		return nil
	}
	start := time.Now()

	msgs := make([]*sarama.ProducerMessage, 0, len(rows))
	for i, row := range rows {
		data, err := w.table.Codec().Encode(row)
		if err != nil {
			metrics.CodecErrors.WithLabelValues(w.table.Format().String(), metrics.OperationEncode).Inc()
			return fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		msg := &sarama.ProducerMessage{
			Topic: w.topic,
			Value: sarama.ByteEncoder(data),
		}
		if w.keyField >= 0 && row[w.keyField] != nil {
			msg.Key = sarama.StringEncoder(fmt.Sprint(row[w.keyField]))
		}
		msgs = append(msgs, msg)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if len(msgs) == 1 {
		partition, offset, err := w.producer.SendMessage(msgs[0])
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
		w.logger.Debug("Message produced", zap.Int32("partition", partition), zap.Int64("offset", offset))
	} else if err := w.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("failed to send messages: %w", err)
	}

	metrics.MessagesProduced.WithLabelValues(w.topic).Add(float64(len(msgs)))
	metrics.ProduceDuration.WithLabelValues(w.topic).Observe(time.Since(start).Seconds())
	return nil
}

// Close closes the producer if the writer owns it.
func (w *Writer) Close() error {
	if !w.owned {
		return nil
	}
	return w.producer.Close()
}
