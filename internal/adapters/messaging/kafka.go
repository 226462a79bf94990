package messaging

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/gomarket-platform/internal/metrics"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

const (
	headerMessageID = "message_id"
	headerTimestamp = "timestamp"
	headerAttempts  = "attempts"
	headerError     = "error"
	headerTopic     = "original_topic"

	flushTimeout = 5 * time.Second
	seekTimeout  = 5 * time.Second

	// redeliveryDelay пауза перед повторным чтением необработанного сообщения
	redeliveryDelay = time.Second
)

// offsetStore управление смещениями consumer
type offsetStore interface {
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Seek(partition kafka.TopicPartition, timeoutMs int) error
}

// KafkaMessaging реализация interfaces.MessagingPort поверх confluent-kafka-go
type KafkaMessaging struct {
	producer        *kafka.Producer
	produce         func(*kafka.Message, chan kafka.Event) error
	subscriptions   map[string]func() error
	subsMutex       sync.Mutex
	brokers         string
	groupID         string
	deadLetterTopic string
	logger          interfaces.LoggerPort
	wg              sync.WaitGroup
}

// NewKafkaMessaging создает новый экземпляр KafkaMessaging
func NewKafkaMessaging(brokers []string, groupID, deadLetterTopic string, logger interfaces.LoggerPort) (*KafkaMessaging, error) {
	servers := strings.Join(brokers, ",")
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":            servers,
		"client.id":                    "catalog-sync-producer",
		"acks":                         "all",
		"retries":                      5,
		"retry.backoff.ms":             500,
		"compression.type":             "snappy",
		"linger.ms":                    10,
		"batch.size":                   16384,
		"message.max.bytes":            1000000,
		"queue.buffering.max.messages": 100000,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	k := &KafkaMessaging{
		producer:        producer,
		produce:         producer.Produce,
		subscriptions:   make(map[string]func() error),
		brokers:         servers,
		groupID:         groupID,
		deadLetterTopic: deadLetterTopic,
		logger:          logger,
	}

	k.wg.Add(1)
	go k.deliveryReports()

	return k, nil
}

// deliveryReports логирует неуспешные доставки асинхронного producer
func (k *KafkaMessaging) deliveryReports() {
	defer k.wg.Done()
	for ev := range k.producer.Events() {
		switch e := ev.(type) {
		case *kafka.Message:
			if e.TopicPartition.Error != nil {
				k.logger.Error("Сообщение не доставлено",
					interfaces.LogField{Key: "topic", Value: topicName(e)},
					interfaces.LogField{Key: "error", Value: e.TopicPartition.Error.Error()},
				)
			}
		case kafka.Error:
			k.logger.Warn("Ошибка Kafka producer", interfaces.LogField{Key: "error", Value: e.Error()})
		}
	}
}

// messageToKafkaMessage преобразует сообщение в kafka.Message
func messageToKafkaMessage(topic string, message []byte, key string, headers map[string]string) *kafka.Message {
	kafkaHeaders := make([]kafka.Header, 0, len(headers)+2)
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	if _, ok := headers[headerMessageID]; !ok {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: headerMessageID, Value: []byte(uuid.New().String())})
	}
	if _, ok := headers[headerTimestamp]; !ok {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: headerTimestamp, Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))})
	}

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers:        kafkaHeaders,
	}
}

// kafkaMessageToMessage преобразует kafka.Message в Message
func kafkaMessageToMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	publishedAt := msg.Timestamp
	if ts, err := time.Parse(time.RFC3339Nano, headers[headerTimestamp]); err == nil {
		publishedAt = ts
	}

	attempts, _ := strconv.Atoi(headers[headerAttempts])

	return &interfaces.Message{
		ID:          headers[headerMessageID],
		Topic:       topicName(msg),
		Key:         string(msg.Key),
		Value:       msg.Value,
		Headers:     headers,
		PublishedAt: publishedAt,
		Attempts:    attempts,
	}
}

func topicName(msg *kafka.Message) string {
	if msg.TopicPartition.Topic == nil {
		return ""
	}
	return *msg.TopicPartition.Topic
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.PublishWithKey(ctx, topic, "", message)
}

// PublishWithKey публикует сообщение с указанным ключом
func (k *KafkaMessaging) PublishWithKey(ctx context.Context, topic, key string, message []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.produce(messageToKafkaMessage(topic, message, key, nil), nil)
}

// Subscribe подписывается на тему в группе потребителей сервиса
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	return k.SubscribeWithConfig(ctx, topic, handler, &interfaces.ConsumerConfig{
		GroupID:     k.groupID,
		PollTimeout: 100 * time.Millisecond,
		MaxAttempts: 3,
	})
}

// SubscribeWithConfig подписывается на тему с дополнительными настройками.
// Смещение фиксируется только после обработки сообщения или его отправки в очередь недоставленных.
func (k *KafkaMessaging) SubscribeWithConfig(ctx context.Context, topic string, handler interfaces.MessageHandler, config *interfaces.ConsumerConfig) (func() error, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":     k.brokers,
		"group.id":              config.GroupID,
		"auto.offset.reset":     "earliest",
		"enable.auto.commit":    false,
		"session.timeout.ms":    30000,
		"max.poll.interval.ms":  300000,
		"heartbeat.interval.ms": 3000,
		"fetch.wait.max.ms":     500,
		"reconnect.backoff.ms":  50,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("ошибка подписки на топик %s: %w", topic, err)
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		k.consumeMessages(consumeCtx, consumer, handler, config)
	}()

	k.logger.Info("Подписка на топик оформлена",
		interfaces.LogField{Key: "topic", Value: topic},
		interfaces.LogField{Key: "group_id", Value: config.GroupID},
	)

	subscriptionID := uuid.New().String()
	var once sync.Once
	var closeErr error
	unsubscribe := func() error {
		once.Do(func() {
			cancel()
			<-done
			closeErr = consumer.Close()

			k.subsMutex.Lock()
			delete(k.subscriptions, subscriptionID)
			k.subsMutex.Unlock()
		})
		return closeErr
	}

	k.subsMutex.Lock()
	k.subscriptions[subscriptionID] = unsubscribe
	k.subsMutex.Unlock()

	return unsubscribe, nil
}

// consumeMessages читает сообщения до отмены контекста
func (k *KafkaMessaging) consumeMessages(ctx context.Context, consumer *kafka.Consumer, handler interfaces.MessageHandler, config *interfaces.ConsumerConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ev := consumer.Poll(int(config.PollTimeout.Milliseconds()))
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			if !k.process(ctx, consumer, e, handler, config) {
				return
			}

		case kafka.Error:
			k.logger.Warn("Ошибка Kafka consumer",
				interfaces.LogField{Key: "code", Value: e.Code().String()},
				interfaces.LogField{Key: "error", Value: e.Error()},
			)
			if e.IsFatal() {
				return
			}
		}
	}
}

// process обрабатывает сообщение и фиксирует его смещение. Если сообщение
// не удалось ни обработать, ни отправить в очередь недоставленных, consumer
// возвращается к его смещению, чтобы следующие коммиты не перешагнули его.
// Возвращает false, когда чтение нужно прекратить.
func (k *KafkaMessaging) process(ctx context.Context, offsets offsetStore, e *kafka.Message, handler interfaces.MessageHandler, config *interfaces.ConsumerConfig) bool {
	msg := kafkaMessageToMessage(e)
	if err := k.handle(ctx, msg, handler, config.MaxAttempts); err != nil {
		if ctx.Err() != nil {
			return false
		}
		k.logger.Error("Сообщение не обработано, повторное чтение",
			interfaces.LogField{Key: "topic", Value: msg.Topic},
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "offset", Value: e.TopicPartition.Offset.String()},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		if err := offsets.Seek(e.TopicPartition, int(seekTimeout.Milliseconds())); err != nil {
			k.logger.Error("Не удалось вернуться к смещению, чтение остановлено",
				interfaces.LogField{Key: "topic", Value: msg.Topic},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(redeliveryDelay):
		}
		return true
	}

	if _, err := offsets.CommitMessage(e); err != nil {
		k.logger.Warn("Не удалось зафиксировать смещение",
			interfaces.LogField{Key: "topic", Value: msg.Topic},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}
	return true
}

// handle обрабатывает сообщение с повторами. Исчерпав попытки, отправляет
// сообщение в очередь недоставленных и считает его обработанным.
func (k *KafkaMessaging) handle(ctx context.Context, msg *interfaces.Message, handler interfaces.MessageHandler, maxAttempts int) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		msg.Attempts++
		if err = handler(ctx, msg); err == nil {
			metrics.MessagesProcessed.WithLabelValues(msg.Topic, "success").Inc()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	metrics.MessagesProcessed.WithLabelValues(msg.Topic, "failed").Inc()
	if k.deadLetterTopic == "" {
		k.logger.Error("Сообщение отброшено после исчерпания попыток",
			interfaces.LogField{Key: "topic", Value: msg.Topic},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		return nil
	}
	return k.produce(deadLetter(k.deadLetterTopic, msg, err), nil)
}

// deadLetter формирует сообщение для очереди недоставленных
func deadLetter(topic string, msg *interfaces.Message, cause error) *kafka.Message {
	headers := make(map[string]string, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[headerAttempts] = strconv.Itoa(msg.Attempts)
	headers[headerError] = cause.Error()
	headers[headerTopic] = msg.Topic
	return messageToKafkaMessage(topic, msg.Value, msg.Key, headers)
}

// EnsureTopics создает недостающие темы
func (k *KafkaMessaging) EnsureTopics(ctx context.Context, partitions, replicationFactor int, topics ...string) error {
	adminClient, err := kafka.NewAdminClientFromProducer(k.producer)
	if err != nil {
		return fmt.Errorf("ошибка создания Kafka admin client: %w", err)
	}
	defer adminClient.Close()

	specs := make([]kafka.TopicSpecification, 0, len(topics))
	for _, topic := range topics {
		specs = append(specs, kafka.TopicSpecification{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: replicationFactor,
		})
	}

	results, err := adminClient.CreateTopics(ctx, specs, kafka.SetAdminOperationTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("ошибка создания топиков: %w", err)
	}
	for _, r := range results {
		if r.Error.Code() != kafka.ErrNoError && r.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("ошибка создания топика %s: %w", r.Topic, r.Error)
		}
	}
	return nil
}

// Close останавливает подписки и дожидается отправки буфера producer
func (k *KafkaMessaging) Close() error {
	k.subsMutex.Lock()
	unsubscribers := make([]func() error, 0, len(k.subscriptions))
	for _, unsubscribe := range k.subscriptions {
		unsubscribers = append(unsubscribers, unsubscribe)
	}
	k.subsMutex.Unlock()

	var firstErr error
	for _, unsubscribe := range unsubscribers {
		if err := unsubscribe(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if left := k.producer.Flush(int(flushTimeout.Milliseconds())); left > 0 {
		k.logger.Warn("Не все сообщения отправлены при закрытии", interfaces.LogField{Key: "pending", Value: left})
	}
	k.producer.Close()
	k.wg.Wait()

	return firstErr
}
