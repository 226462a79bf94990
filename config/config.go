package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/athebyme/gomarket-platform/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config содержит все настройки сервиса
type Config struct {
	AppName  string
	Version  string
	LogLevel string
	ENV      string

	Server struct {
		Host            string
		Port            int
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
		JobTimeout      time.Duration // лимит ручного запуска задачи через API
		BodyLimit       int     // максимальный размер запроса в МБ
		RateLimit       float64 // запросов в секунду на клиента, 0 - без ограничения
		RateBurst       int
	}

	Postgres struct {
		Host     string
		Port     int
		User     string
		Password string
		DBName   string
		SSLMode  string
		Timeout  time.Duration
		PoolSize int // размер пула соединений
		Migrate  bool
	}

	Redis struct {
		Host     string
		Port     int
		Password string
		DB       int
	}

	Kafka struct {
		Enabled           bool
		Brokers           []string
		GroupID           string
		DeadLetterTopic   string
		Partitions        int
		ReplicationFactor int
	}

	Metrics struct {
		Enabled  bool
		Endpoint string
		Port     int // порт /metrics воркера
	}

	Security struct {
		CORSAllowOrigins []string
	}

	Keycloak KeycloakConfig

	Feed struct {
		Dir          string
		ImageBaseURL string
	}

	Scheduler struct {
		FeedTick             time.Duration
		SKUMappingTick       time.Duration
		HiddenOffersTick     time.Duration
		PriceFillTick        time.Duration
		PriceDrainTick       time.Duration
		SKUMappingInterval   time.Duration
		HiddenOffersInterval time.Duration
		BackoffBase          time.Duration // 0 отключает backoff
		BackoffMax           time.Duration
		LockEnabled          bool
		LeaseTTL             time.Duration
		HiddenBatchSize      int
		DrainBatchSize       int
	}

	MarketAPI struct {
		BaseURL  string
		Timeout  time.Duration
		RetryMax int
		RPS      float64
		Burst    int
	}
}

// Load загружает конфигурацию из .env, файла и переменных окружения
func Load(configPath string) (*Config, error) {
	// .env необязателен
	_ = godotenv.Load()

	configFile := "config"
	if configPath != "" {
		configFile = configPath
	}

	v := viper.New()
	v.SetConfigName(configFile)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("../../config")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("ошибка чтения файла конфигурации: %w", err)
		}
		// Продолжаем, если файл не найден, будем использовать только переменные окружения
	}

	setDefaults(v)
	bindEnvVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет согласованность настроек
func (c *Config) Validate() error {
	if c.Feed.Dir == "" {
		return utils.ErrEmptyFeedDir
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return utils.ErrKafkaNoBrokers
	}
	ticks := map[string]time.Duration{
		"scheduler.feedTick":         c.Scheduler.FeedTick,
		"scheduler.skuMappingTick":   c.Scheduler.SKUMappingTick,
		"scheduler.hiddenOffersTick": c.Scheduler.HiddenOffersTick,
		"scheduler.priceFillTick":    c.Scheduler.PriceFillTick,
		"scheduler.priceDrainTick":   c.Scheduler.PriceDrainTick,
	}
	for key, tick := range ticks {
		if tick <= 0 {
			return fmt.Errorf("%s: период должен быть положительным", key)
		}
	}
	if c.Scheduler.BackoffMax > 0 && c.Scheduler.BackoffMax < c.Scheduler.BackoffBase {
		return errors.New("scheduler.backoffMax меньше scheduler.backoffBase")
	}
	return nil
}

// setDefaults устанавливает значения по умолчанию
func setDefaults(v *viper.Viper) {
	// Основные настройки
	v.SetDefault("appName", "catalog-sync")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("logLevel", "info")
	v.SetDefault("env", "development")

	// Настройки сервера
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "10s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "5s")
	v.SetDefault("server.jobTimeout", "10m")
	v.SetDefault("server.bodyLimit", 10) // 10 МБ
	v.SetDefault("server.rateLimit", 20)
	v.SetDefault("server.rateBurst", 40)

	// Настройки Postgres
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "postgres")
	v.SetDefault("postgres.dbname", "catalog")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.timeout", "5s")
	v.SetDefault("postgres.poolSize", 10)
	v.SetDefault("postgres.migrate", true)

	// Настройки Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Настройки Kafka
	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.groupID", "catalog-sync")
	v.SetDefault("kafka.deadLetterTopic", "marketplace.dead_letter")
	v.SetDefault("kafka.partitions", 3)
	v.SetDefault("kafka.replicationFactor", 1)

	// Настройки метрик
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Настройки безопасности
	v.SetDefault("security.corsAllowOrigins", []string{"*"})
	v.SetDefault("keycloak.enabled", false)
	v.SetDefault("keycloak.requiredRoles", []string{"catalog-admin"})

	// Фиды
	v.SetDefault("feed.dir", "./feeds")
	v.SetDefault("feed.imageBaseURL", "")

	// Планировщик
	v.SetDefault("scheduler.feedTick", "1m")
	v.SetDefault("scheduler.skuMappingTick", "5m")
	v.SetDefault("scheduler.hiddenOffersTick", "5m")
	v.SetDefault("scheduler.priceFillTick", "1m")
	v.SetDefault("scheduler.priceDrainTick", "30s")
	v.SetDefault("scheduler.skuMappingInterval", "60m")
	v.SetDefault("scheduler.hiddenOffersInterval", "30m")
	v.SetDefault("scheduler.backoffBase", "0s")
	v.SetDefault("scheduler.backoffMax", "30m")
	v.SetDefault("scheduler.lockEnabled", true)
	v.SetDefault("scheduler.leaseTTL", "30m")
	v.SetDefault("scheduler.hiddenBatchSize", 500)
	v.SetDefault("scheduler.drainBatchSize", 50)

	// API маркетплейса
	v.SetDefault("marketAPI.baseURL", "https://api.partner.market.yandex.ru")
	v.SetDefault("marketAPI.timeout", "30s")
	v.SetDefault("marketAPI.retryMax", 3)
	v.SetDefault("marketAPI.rps", 5)
	v.SetDefault("marketAPI.burst", 5)
}

// bindEnvVariables привязывает переменные окружения к конфигурации
func bindEnvVariables(v *viper.Viper) {
	bindings := map[string]string{
		// Основные настройки
		"appName":  "APP_NAME",
		"version":  "APP_VERSION",
		"logLevel": "LOG_LEVEL",
		"env":      "APP_ENV",

		// Настройки сервера
		"server.host":            "SERVER_HOST",
		"server.port":            "SERVER_PORT",
		"server.readTimeout":     "SERVER_READ_TIMEOUT",
		"server.writeTimeout":    "SERVER_WRITE_TIMEOUT",
		"server.shutdownTimeout": "SERVER_SHUTDOWN_TIMEOUT",
		"server.jobTimeout":      "SERVER_JOB_TIMEOUT",
		"server.bodyLimit":       "SERVER_BODY_LIMIT",
		"server.rateLimit":       "SERVER_RATE_LIMIT",
		"server.rateBurst":       "SERVER_RATE_BURST",

		// Настройки Postgres
		"postgres.host":     "POSTGRES_HOST",
		"postgres.port":     "POSTGRES_PORT",
		"postgres.user":     "POSTGRES_USER",
		"postgres.password": "POSTGRES_PASSWORD",
		"postgres.dbname":   "POSTGRES_DBNAME",
		"postgres.sslmode":  "POSTGRES_SSLMODE",
		"postgres.timeout":  "POSTGRES_TIMEOUT",
		"postgres.poolSize": "POSTGRES_POOL_SIZE",
		"postgres.migrate":  "POSTGRES_MIGRATE",

		// Настройки Redis
		"redis.host":     "REDIS_HOST",
		"redis.port":     "REDIS_PORT",
		"redis.password": "REDIS_PASSWORD",
		"redis.db":       "REDIS_DB",

		// Настройки Kafka
		"kafka.enabled":           "KAFKA_ENABLED",
		"kafka.brokers":           "KAFKA_BROKERS",
		"kafka.groupID":           "KAFKA_GROUP_ID",
		"kafka.deadLetterTopic":   "KAFKA_DEAD_LETTER_TOPIC",
		"kafka.partitions":        "KAFKA_PARTITIONS",
		"kafka.replicationFactor": "KAFKA_REPLICATION_FACTOR",

		// Настройки метрик
		"metrics.enabled":  "METRICS_ENABLED",
		"metrics.endpoint": "METRICS_ENDPOINT",
		"metrics.port":     "METRICS_PORT",

		// Настройки безопасности
		"security.corsAllowOrigins": "CORS_ALLOW_ORIGINS",
		"keycloak.enabled":          "KEYCLOAK_ENABLED",
		"keycloak.serverURL":        "KEYCLOAK_SERVER_URL",
		"keycloak.realm":            "KEYCLOAK_REALM",
		"keycloak.clientID":         "KEYCLOAK_CLIENT_ID",
		"keycloak.requiredRoles":    "KEYCLOAK_REQUIRED_ROLES",

		// Фиды
		"feed.dir":          "FEED_DIR",
		"feed.imageBaseURL": "IMAGE_BASE_URL",

		// Планировщик
		"scheduler.feedTick":             "SCHEDULER_FEED_TICK",
		"scheduler.skuMappingTick":       "SCHEDULER_SKU_MAPPING_TICK",
		"scheduler.hiddenOffersTick":     "SCHEDULER_HIDDEN_OFFERS_TICK",
		"scheduler.priceFillTick":        "SCHEDULER_PRICE_FILL_TICK",
		"scheduler.priceDrainTick":       "SCHEDULER_PRICE_DRAIN_TICK",
		"scheduler.skuMappingInterval":   "SCHEDULER_SKU_MAPPING_INTERVAL",
		"scheduler.hiddenOffersInterval": "SCHEDULER_HIDDEN_OFFERS_INTERVAL",
		"scheduler.backoffBase":          "SCHEDULER_BACKOFF_BASE",
		"scheduler.backoffMax":           "SCHEDULER_BACKOFF_MAX",
		"scheduler.lockEnabled":          "SCHEDULER_LOCK_ENABLED",
		"scheduler.leaseTTL":             "SCHEDULER_LEASE_TTL",
		"scheduler.hiddenBatchSize":      "SCHEDULER_HIDDEN_BATCH_SIZE",
		"scheduler.drainBatchSize":       "SCHEDULER_DRAIN_BATCH_SIZE",

		// API маркетплейса
		"marketAPI.baseURL":  "MARKET_API_BASE_URL",
		"marketAPI.timeout":  "MARKET_API_TIMEOUT",
		"marketAPI.retryMax": "MARKET_API_RETRY_MAX",
		"marketAPI.rps":      "MARKET_API_RPS",
		"marketAPI.burst":    "MARKET_API_BURST",
	}
	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}
}
