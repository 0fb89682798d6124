package kafka

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/edgeflare/ktable/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errBrokerDown = errors.New("broker down")

func TestClientRetriesProducerCreation(t *testing.T) {
	tbl := jsonTable(t, map[string]any{"connectTimeout": "10s"})
	client, err := NewClientForTable(tbl, zaptest.NewLogger(t))
	require.NoError(t, err)

	producer := mocks.NewSyncProducer(t, mockConfig())
	var attempts atomic.Int32
	client.newProducer = func(addrs []string, conf *sarama.Config) (sarama.SyncProducer, error) {
		assert.Equal(t, []string{"b1:9092", "b2:9092"}, addrs)
		assert.Equal(t, client.Config().ClientID, conf.ClientID)
		if attempts.Add(1) < 3 {
			return nil, errBrokerDown
		}
		return producer, nil
	}

	w, err := client.Writer(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())

	producer.ExpectSendMessageAndSucceed()
	require.NoError(t, w.Write(context.Background(), testutil.OrderRow(1, nil)))

	// the writer owns producers it was created with
	require.NoError(t, w.Close())
}

func TestClientGivesUpAfterConnectTimeout(t *testing.T) {
	tbl := jsonTable(t, map[string]any{"connectTimeout": "10ms"})
	client, err := NewClientForTable(tbl, zaptest.NewLogger(t))
	require.NoError(t, err)

	client.newConsumer = func([]string, *sarama.Config) (sarama.Consumer, error) {
		return nil, errBrokerDown
	}

	start := time.Now()
	_, err = client.Reader(context.Background(), tbl)
	assert.ErrorIs(t, err, errBrokerDown)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestClientStopsRetryingOnCancel(t *testing.T) {
	tbl := jsonTable(t, map[string]any{"connectTimeout": "1m"})
	client, err := NewClientForTable(tbl, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	client.newProducer = func([]string, *sarama.Config) (sarama.SyncProducer, error) {
		cancel()
		return nil, errBrokerDown
	}

	_, err = client.CreateProducer(ctx)
	assert.Error(t, err)
}

func TestClientReaderUsesConfiguredOffset(t *testing.T) {
	tbl := jsonTable(t, map[string]any{"offset": "oldest"})
	client, err := NewClientForTable(tbl, zaptest.NewLogger(t))
	require.NoError(t, err)

	consumer := mocks.NewConsumer(t, mockConfig())
	consumer.SetTopicMetadata(map[string][]int32{"orders": {0}, "orders-replay": {0}})
	consumer.ExpectConsumePartition("orders", 0, sarama.OffsetOldest).
		YieldMessage(&sarama.ConsumerMessage{Value: encode(t, tbl, testutil.OrderRow(7, nil))})
	consumer.ExpectConsumePartition("orders-replay", 0, sarama.OffsetOldest)

	client.newConsumer = func([]string, *sarama.Config) (sarama.Consumer, error) {
		return consumer, nil
	}

	r, err := client.Reader(context.Background(), tbl)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &collector{want: 1, cancel: cancel}
	require.NoError(t, runReader(t, r, ctx, c.handle))
	assert.Equal(t, int64(7), c.rows()[0][0])
}

func TestClientRequiresBrokers(t *testing.T) {
	cfg := &Config{}
	cfg.setDefaults()
	client := NewClient(cfg, nil)

	_, err := client.CreateProducer(context.Background())
	assert.ErrorIs(t, err, ErrNoBrokers)
	_, err = client.ListTopics()
	assert.ErrorIs(t, err, ErrNoBrokers)
}

// fakeAdmin implements the ClusterAdmin calls the client makes.
type fakeAdmin struct {
	sarama.ClusterAdmin
	topics map[string]sarama.TopicDetail
	closed bool
}

func (a *fakeAdmin) ListTopics() (map[string]sarama.TopicDetail, error) { return a.topics, nil }

func (a *fakeAdmin) Close() error {
	a.closed = true
	return nil
}

func TestClientMissingTopics(t *testing.T) {
	tbl := jsonTable(t, nil)
	client, err := NewClientForTable(tbl, nil)
	require.NoError(t, err)

	admin := &fakeAdmin{topics: map[string]sarama.TopicDetail{"orders": {NumPartitions: 3}}}
	client.newAdmin = func([]string, *sarama.Config) (sarama.ClusterAdmin, error) { return admin, nil }

	missing, err := client.MissingTopics(tbl)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders-replay"}, missing)
	assert.True(t, admin.closed)
}
