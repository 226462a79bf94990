package interfaces

import (
	"context"
	"time"
)

// Message сообщение, полученное из брокера
type Message struct {
	ID          string
	Topic       string
	Key         string // ключ партиционирования, для команд синхронизации это ID маркетплейса
	Value       []byte
	Headers     map[string]string
	PublishedAt time.Time
	Attempts    int // неудачные попытки обработки, включая предыдущие доставки
}

// MessageHandler обработчик сообщения. Ошибка означает повторную попытку
type MessageHandler func(ctx context.Context, msg *Message) error

// ConsumerConfig параметры подписки
type ConsumerConfig struct {
	GroupID     string
	PollTimeout time.Duration
	// MaxAttempts попыток до отправки в очередь недоставленных
	MaxAttempts int
}

type Publisher interface {
	Publish(ctx context.Context, topic string, message []byte) error
	// PublishWithKey сохраняет порядок сообщений с одним ключом
	PublishWithKey(ctx context.Context, topic, key string, message []byte) error
}

// Subscriber подписка возвращает функцию остановки потребителя
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (func() error, error)
}

// MessagingPort брокер команд и событий синхронизации
type MessagingPort interface {
	Publisher
	Subscriber
	Close() error
}
