// Package app собирает зависимости процессов api и worker из конфигурации.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/athebyme/gomarket-platform/config"
	"github.com/athebyme/gomarket-platform/internal/adapters/cache"
	"github.com/athebyme/gomarket-platform/internal/adapters/marketapi"
	"github.com/athebyme/gomarket-platform/internal/adapters/messaging"
	postgres "github.com/athebyme/gomarket-platform/internal/adapters/storage"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/internal/domain/services"
	"github.com/athebyme/gomarket-platform/internal/scheduler"
	"github.com/athebyme/gomarket-platform/internal/utils"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
)

// Components собранные зависимости процесса
type Components struct {
	Storage *postgres.Storage
	// Cache задан только при включенной распределенной блокировке
	Cache interfaces.CachePort
	// Messaging равен nil, если Kafka отключена
	Messaging *messaging.KafkaMessaging

	Catalog      *services.CatalogService
	Marketplaces *services.MarketplaceService
	PriceQueue   *services.PriceQueueService
	SKUMapping   *services.SKUMappingService
	Scheduler    *scheduler.Scheduler

	logger  interfaces.LoggerPort
	closers []namedCloser
}

type namedCloser struct {
	name  string
	close func() error
}

// New подключает хранилище, кэш и Kafka и собирает сервисы с планировщиком.
// При ошибке уже открытые соединения закрываются.
func New(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (_ *Components, err error) {
	c := &Components{logger: log}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	if err := c.initStorage(ctx, cfg); err != nil {
		return nil, err
	}
	if cfg.Scheduler.LockEnabled {
		if err := c.initCache(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Kafka.Enabled {
		if err := c.initMessaging(ctx, cfg); err != nil {
			return nil, err
		}
	}

	c.initServices(cfg)
	return c, nil
}

func (c *Components) initStorage(ctx context.Context, cfg *config.Config) error {
	connStr, err := utils.PostgresDSN(utils.PostgresParams{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
		PoolSize: cfg.Postgres.PoolSize,
		Timeout:  cfg.Postgres.Timeout,
	})
	if err != nil {
		return fmt.Errorf("строка подключения PostgreSQL: %w", err)
	}

	storage, err := postgres.NewPostgresStorage(ctx, connStr, c.logger)
	if err != nil {
		return fmt.Errorf("инициализация хранилища: %w", err)
	}
	c.Storage = storage
	c.addCloser("postgres", storage.Close)
	c.logger.Info("Хранилище инициализировано")

	if cfg.Postgres.Migrate {
		if err := storage.Migrate(ctx); err != nil {
			return fmt.Errorf("миграция схемы: %w", err)
		}
		c.logger.Info("Схема базы данных применена")
	}
	return nil
}

func (c *Components) initCache(ctx context.Context, cfg *config.Config) error {
	cacheClient, err := cache.NewRedisCache(ctx, cache.RedisOptions{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return fmt.Errorf("инициализация кэша: %w", err)
	}
	c.Cache = cacheClient
	c.addCloser("redis", cacheClient.Close)
	c.logger.Info("Кэш инициализирован")
	return nil
}

func (c *Components) initMessaging(ctx context.Context, cfg *config.Config) error {
	km, err := messaging.NewKafkaMessaging(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.DeadLetterTopic, c.logger)
	if err != nil {
		return fmt.Errorf("инициализация Kafka: %w", err)
	}
	c.Messaging = km
	c.addCloser("kafka", km.Close)

	topics := []string{models.TopicSKUResolve, models.TopicFeedGenerated}
	if cfg.Kafka.DeadLetterTopic != "" {
		topics = append(topics, cfg.Kafka.DeadLetterTopic)
	}
	if err := km.EnsureTopics(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor, topics...); err != nil {
		// Топики могли создать заранее без прав на admin API
		c.logger.Warn("Не удалось проверить топики Kafka", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	c.logger.Info("Система обмена сообщениями инициализирована")
	return nil
}

func (c *Components) initServices(cfg *config.Config) {
	store := c.Storage

	limiters := marketapi.NewLimiters(cfg.MarketAPI.RPS, cfg.MarketAPI.Burst)
	executor := marketapi.NewExecutor(
		c.logger,
		limiters,
		&http.Client{Timeout: cfg.MarketAPI.Timeout},
		cfg.MarketAPI.RetryMax,
		marketapi.ClassifyError,
	)
	api := marketapi.NewClient(executor, cfg.MarketAPI.BaseURL)

	var publisher services.EventPublisher
	if c.Messaging != nil {
		publisher = c.Messaging
	}

	c.Marketplaces = services.NewMarketplaceService(store, c.logger)
	c.Catalog = services.NewCatalogService(store, store, store, store.TxManager(), c.logger)
	c.SKUMapping = services.NewSKUMappingService(store, store, api, c.logger)

	var repair services.RepairTrigger = services.NewDirectRepairTrigger(c.SKUMapping)
	if c.Messaging != nil {
		repair = messaging.NewKafkaRepairTrigger(c.Messaging)
	}

	c.PriceQueue = services.NewPriceQueueService(store, store, store, api, repair, c.logger, cfg.Scheduler.DrainBatchSize)
	feedService := services.NewFeedService(store, store, publisher, c.logger, cfg.Feed.Dir, cfg.Feed.ImageBaseURL)
	hiddenOffers := services.NewHiddenOfferService(store, store, api, c.logger, cfg.Scheduler.HiddenBatchSize)

	opts := scheduler.Options{
		Backoff:  scheduler.BackoffPolicy{Base: cfg.Scheduler.BackoffBase, Max: cfg.Scheduler.BackoffMax},
		LeaseTTL: cfg.Scheduler.LeaseTTL,
	}
	if c.Cache != nil {
		opts.Locker = scheduler.NewCacheLocker(c.Cache)
	}

	c.Scheduler = scheduler.New(store, store, c.logger, opts)
	c.Scheduler.Register(services.NewFeedJob(feedService), cfg.Scheduler.FeedTick)
	c.Scheduler.Register(services.NewSKUMappingJob(c.SKUMapping, cfg.Scheduler.SKUMappingInterval), cfg.Scheduler.SKUMappingTick)
	c.Scheduler.Register(services.NewHiddenOffersJob(hiddenOffers, cfg.Scheduler.HiddenOffersInterval), cfg.Scheduler.HiddenOffersTick)
	c.Scheduler.Register(services.NewPriceFillJob(c.PriceQueue), cfg.Scheduler.PriceFillTick)
	c.Scheduler.Register(services.NewPriceDrainJob(c.PriceQueue), cfg.Scheduler.PriceDrainTick)
}

// CheckDependencies проверяет доступность хранилища и кэша
func (c *Components) CheckDependencies(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return checkDependencies(ctx, c.Storage, c.Cache)
}

func checkDependencies(ctx context.Context, storage interfaces.StoragePort, cacheClient interfaces.CachePort) error {
	if err := storage.Ping(ctx); err != nil {
		return fmt.Errorf("PostgreSQL недоступен: %w", err)
	}
	if cacheClient == nil {
		return nil
	}

	testKey := "health:connection"
	testValue := []byte("ok")
	if err := cacheClient.Set(ctx, testKey, testValue, 10*time.Second); err != nil {
		return fmt.Errorf("ошибка записи в Redis: %w", err)
	}
	value, err := cacheClient.Get(ctx, testKey)
	if err != nil {
		return fmt.Errorf("ошибка чтения из Redis: %w", err)
	}
	if string(value) != string(testValue) {
		return fmt.Errorf("некорректное значение из Redis: получено %s, ожидалось %s", value, testValue)
	}
	return cacheClient.Delete(ctx, testKey)
}

func (c *Components) addCloser(name string, fn func() error) {
	c.closers = append(c.closers, namedCloser{name: name, close: fn})
}

// Close закрывает соединения в обратном порядке открытия
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		closer := c.closers[i]
		if err := closer.close(); err != nil {
			c.logger.Error("Ошибка при закрытии зависимости",
				interfaces.LogField{Key: "dependency", Value: closer.name},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}
	c.closers = nil
}
