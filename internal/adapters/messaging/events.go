package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
)

// Publisher часть interfaces.Publisher, нужная для отправки команд
type Publisher interface {
	PublishWithKey(ctx context.Context, topic, key string, message []byte) error
}

// SKUResolver выполняет переопределение одного SKU маркетплейса
type SKUResolver interface {
	ResolveExternalSKU(ctx context.Context, marketplaceID, externalSKU string) error
}

// KafkaRepairTrigger отправляет команду переопределения SKU в очередь.
// Ключ сообщения ID конфигурации, поэтому команды одного маркетплейса обрабатываются по порядку.
type KafkaRepairTrigger struct {
	publisher Publisher
	now       func() time.Time
}

func NewKafkaRepairTrigger(publisher Publisher) *KafkaRepairTrigger {
	return &KafkaRepairTrigger{publisher: publisher, now: time.Now}
}

func (t *KafkaRepairTrigger) TriggerSKUResolve(ctx context.Context, marketplaceID, externalSKU string) error {
	payload, err := json.Marshal(models.SKUResolveCommand{
		MarketplaceID: marketplaceID,
		ExternalSKU:   externalSKU,
		RequestedAt:   t.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode sku resolve command: %w", err)
	}
	return t.publisher.PublishWithKey(ctx, models.TopicSKUResolve, marketplaceID, payload)
}

// SKUResolveHandler обрабатывает команды переопределения SKU.
// Некорректные команды и удаленные конфигурации пропускаются без повторов.
func SKUResolveHandler(resolver SKUResolver, logger interfaces.LoggerPort) interfaces.MessageHandler {
	return func(ctx context.Context, msg *interfaces.Message) error {
		var cmd models.SKUResolveCommand
		if err := json.Unmarshal(msg.Value, &cmd); err != nil {
			logger.Warn("Некорректная команда переопределения SKU",
				interfaces.LogField{Key: "message_id", Value: msg.ID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			return nil
		}
		if cmd.MarketplaceID == "" || cmd.ExternalSKU == "" {
			logger.Warn("Пустая команда переопределения SKU", interfaces.LogField{Key: "message_id", Value: msg.ID})
			return nil
		}

		err := resolver.ResolveExternalSKU(ctx, cmd.MarketplaceID, cmd.ExternalSKU)
		if errors.Is(err, models.ErrNotFound) {
			logger.Info("Конфигурация для команды не найдена",
				interfaces.LogField{Key: "marketplace_id", Value: cmd.MarketplaceID},
				interfaces.LogField{Key: "sku", Value: cmd.ExternalSKU},
			)
			return nil
		}
		return err
	}
}
