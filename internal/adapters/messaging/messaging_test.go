package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/athebyme/gomarket-platform/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ interfaces.MessagingPort = (*KafkaMessaging)(nil)

func headerMap(msg *kafka.Message) map[string]string {
	out := make(map[string]string)
	for _, h := range msg.Headers {
		out[h.Key] = string(h.Value)
	}
	return out
}

func TestMessageRoundTrip(t *testing.T) {
	km := messageToKafkaMessage(models.TopicSKUResolve, []byte(`{"a":1}`), "mp-1", map[string]string{"source": "drain"})

	require.NotNil(t, km.TopicPartition.Topic)
	assert.Equal(t, models.TopicSKUResolve, *km.TopicPartition.Topic)
	assert.Equal(t, kafka.PartitionAny, km.TopicPartition.Partition)
	assert.Equal(t, []byte("mp-1"), km.Key)

	headers := headerMap(km)
	assert.Equal(t, "drain", headers["source"])
	assert.NotEmpty(t, headers[headerMessageID])
	_, err := time.Parse(time.RFC3339Nano, headers[headerTimestamp])
	require.NoError(t, err)

	msg := kafkaMessageToMessage(km)
	assert.Equal(t, headers[headerMessageID], msg.ID)
	assert.Equal(t, models.TopicSKUResolve, msg.Topic)
	assert.Equal(t, "mp-1", msg.Key)
	assert.Equal(t, `{"a":1}`, string(msg.Value))
	assert.False(t, msg.PublishedAt.IsZero())
	assert.Zero(t, msg.Attempts)
}

func TestMessageToKafkaMessage_NoKey(t *testing.T) {
	km := messageToKafkaMessage("t", nil, "", nil)
	assert.Nil(t, km.Key)
	assert.Len(t, km.Headers, 2)
}

func TestDeadLetter(t *testing.T) {
	msg := &interfaces.Message{
		ID:       "m-1",
		Topic:    models.TopicSKUResolve,
		Key:      "mp-1",
		Value:    []byte("payload"),
		Headers:  map[string]string{headerMessageID: "m-1", headerTimestamp: "2024-01-01T00:00:00Z"},
		Attempts: 3,
	}

	dl := deadLetter("sync.dlq", msg, errors.New("boom"))

	assert.Equal(t, "sync.dlq", *dl.TopicPartition.Topic)
	assert.Equal(t, []byte("mp-1"), dl.Key)
	headers := headerMap(dl)
	assert.Equal(t, "m-1", headers[headerMessageID])
	assert.Equal(t, "3", headers[headerAttempts])
	assert.Equal(t, "boom", headers[headerError])
	assert.Equal(t, models.TopicSKUResolve, headers[headerTopic])
	assert.Len(t, dl.Headers, 5)
}

type capturedProducer struct {
	messages []*kafka.Message
	err      error
}

func (p *capturedProducer) produce(msg *kafka.Message, _ chan kafka.Event) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func newTestMessaging(dlq string) (*KafkaMessaging, *capturedProducer) {
	p := &capturedProducer{}
	return &KafkaMessaging{
		produce:         p.produce,
		deadLetterTopic: dlq,
		logger:          logger.NewNop(),
		subscriptions:   make(map[string]func() error),
	}, p
}

func TestHandle_SucceedsAfterRetry(t *testing.T) {
	k, p := newTestMessaging("dlq")
	calls := 0
	handler := func(ctx context.Context, msg *interfaces.Message) error {
		calls++
		if calls < 2 {
			return errors.New("temporary")
		}
		return nil
	}

	msg := &interfaces.Message{Topic: "t"}
	require.NoError(t, k.handle(context.Background(), msg, handler, 3))
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, msg.Attempts)
	assert.Empty(t, p.messages)
}

func TestHandle_DeadLetterAfterAttempts(t *testing.T) {
	k, p := newTestMessaging("dlq")
	calls := 0
	handler := func(ctx context.Context, msg *interfaces.Message) error {
		calls++
		return fmt.Errorf("attempt %d failed", calls)
	}

	msg := &interfaces.Message{Topic: "t", Value: []byte("v")}
	require.NoError(t, k.handle(context.Background(), msg, handler, 3))
	assert.Equal(t, 3, calls)
	require.Len(t, p.messages, 1)
	headers := headerMap(p.messages[0])
	assert.Equal(t, "attempt 3 failed", headers[headerError])
	assert.Equal(t, "3", headers[headerAttempts])
}

func TestHandle_DeadLetterProduceError(t *testing.T) {
	k, p := newTestMessaging("dlq")
	p.err = errors.New("queue full")

	err := k.handle(context.Background(), &interfaces.Message{Topic: "t"}, func(context.Context, *interfaces.Message) error {
		return errors.New("fail")
	}, 1)
	assert.EqualError(t, err, "queue full")
}

func TestHandle_NoDeadLetterTopicDrops(t *testing.T) {
	k, p := newTestMessaging("")

	err := k.handle(context.Background(), &interfaces.Message{Topic: "t"}, func(context.Context, *interfaces.Message) error {
		return errors.New("fail")
	}, 0)
	require.NoError(t, err)
	assert.Empty(t, p.messages)
}

func TestHandle_ContextCanceled(t *testing.T) {
	k, p := newTestMessaging("dlq")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := k.handle(ctx, &interfaces.Message{Topic: "t"}, func(context.Context, *interfaces.Message) error {
		calls++
		cancel()
		return errors.New("fail")
	}, 3)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Empty(t, p.messages)
}

type recordedOffsets struct {
	committed []kafka.Offset
	seeks     []kafka.Offset
	seekErr   error
}

func (o *recordedOffsets) CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error) {
	o.committed = append(o.committed, m.TopicPartition.Offset)
	return nil, nil
}

func (o *recordedOffsets) Seek(partition kafka.TopicPartition, timeoutMs int) error {
	if o.seekErr != nil {
		return o.seekErr
	}
	o.seeks = append(o.seeks, partition.Offset)
	return nil
}

func consumedMessage(offset kafka.Offset) *kafka.Message {
	topic := models.TopicSKUResolve
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: 0, Offset: offset},
		Value:          []byte("v"),
	}
}

func TestProcess_CommitsHandledMessage(t *testing.T) {
	k, _ := newTestMessaging("dlq")
	offsets := &recordedOffsets{}
	cfg := &interfaces.ConsumerConfig{MaxAttempts: 1}

	ok := k.process(context.Background(), offsets, consumedMessage(7), func(context.Context, *interfaces.Message) error {
		return nil
	}, cfg)
	assert.True(t, ok)
	assert.Equal(t, []kafka.Offset{7}, offsets.committed)
	assert.Empty(t, offsets.seeks)
}

func TestProcess_DeadLetterFailureSeeksBack(t *testing.T) {
	k, p := newTestMessaging("dlq")
	p.err = errors.New("queue full")
	offsets := &recordedOffsets{}
	cfg := &interfaces.ConsumerConfig{MaxAttempts: 1}
	fail := func(context.Context, *interfaces.Message) error { return errors.New("fail") }

	ok := k.process(context.Background(), offsets, consumedMessage(7), fail, cfg)
	assert.True(t, ok)
	assert.Empty(t, offsets.committed)
	assert.Equal(t, []kafka.Offset{7}, offsets.seeks)
}

func TestProcess_SeekFailureStopsConsuming(t *testing.T) {
	k, p := newTestMessaging("dlq")
	p.err = errors.New("queue full")
	offsets := &recordedOffsets{seekErr: errors.New("unknown partition")}
	cfg := &interfaces.ConsumerConfig{MaxAttempts: 1}
	fail := func(context.Context, *interfaces.Message) error { return errors.New("fail") }

	ok := k.process(context.Background(), offsets, consumedMessage(7), fail, cfg)
	assert.False(t, ok)
	assert.Empty(t, offsets.committed)
}

func TestPublishWithKey(t *testing.T) {
	k, p := newTestMessaging("")

	require.NoError(t, k.Publish(context.Background(), models.TopicFeedGenerated, []byte("{}")))
	require.Len(t, p.messages, 1)
	assert.Nil(t, p.messages[0].Key)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, k.PublishWithKey(ctx, "t", "k", nil), context.Canceled)
	assert.Len(t, p.messages, 1)
}

type recordingPublisher struct {
	topic, key string
	payload    []byte
}

func (r *recordingPublisher) PublishWithKey(ctx context.Context, topic, key string, message []byte) error {
	r.topic, r.key, r.payload = topic, key, message
	return nil
}

func TestKafkaRepairTrigger(t *testing.T) {
	pub := &recordingPublisher{}
	trigger := NewKafkaRepairTrigger(pub)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	trigger.now = func() time.Time { return at }

	require.NoError(t, trigger.TriggerSKUResolve(context.Background(), "mp-1", "100500"))

	assert.Equal(t, models.TopicSKUResolve, pub.topic)
	assert.Equal(t, "mp-1", pub.key)
	var cmd models.SKUResolveCommand
	require.NoError(t, json.Unmarshal(pub.payload, &cmd))
	assert.Equal(t, models.SKUResolveCommand{MarketplaceID: "mp-1", ExternalSKU: "100500", RequestedAt: at}, cmd)
}

type fakeResolver struct {
	calls [][2]string
	err   error
}

func (f *fakeResolver) ResolveExternalSKU(ctx context.Context, marketplaceID, externalSKU string) error {
	f.calls = append(f.calls, [2]string{marketplaceID, externalSKU})
	return f.err
}

func TestSKUResolveHandler(t *testing.T) {
	payload := []byte(`{"marketplace_id":"mp-1","external_sku":"100500"}`)

	t.Run("resolves", func(t *testing.T) {
		r := &fakeResolver{}
		handler := SKUResolveHandler(r, logger.NewNop())
		require.NoError(t, handler(context.Background(), &interfaces.Message{Value: payload}))
		assert.Equal(t, [][2]string{{"mp-1", "100500"}}, r.calls)
	})

	t.Run("invalid payload skipped", func(t *testing.T) {
		r := &fakeResolver{}
		handler := SKUResolveHandler(r, logger.NewNop())
		require.NoError(t, handler(context.Background(), &interfaces.Message{Value: []byte("not json")}))
		require.NoError(t, handler(context.Background(), &interfaces.Message{Value: []byte(`{"marketplace_id":"mp-1"}`)}))
		assert.Empty(t, r.calls)
	})

	t.Run("missing marketplace skipped", func(t *testing.T) {
		r := &fakeResolver{err: fmt.Errorf("marketplace mp-1: %w", models.ErrNotFound)}
		handler := SKUResolveHandler(r, logger.NewNop())
		require.NoError(t, handler(context.Background(), &interfaces.Message{Value: payload}))
	})

	t.Run("transient error returned", func(t *testing.T) {
		r := &fakeResolver{err: errors.New("api down")}
		handler := SKUResolveHandler(r, logger.NewNop())
		assert.EqualError(t, handler(context.Background(), &interfaces.Message{Value: payload}), "api down")
	})
}
