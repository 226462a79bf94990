package utils

import "errors"

// ошибки параметров подключения PostgreSQL
var (
	ErrDSNHost     = errors.New("postgres: не указан хост")
	ErrDSNPort     = errors.New("postgres: порт вне диапазона 1-65535")
	ErrDSNUser     = errors.New("postgres: не указан пользователь")
	ErrDSNPassword = errors.New("postgres: не указан пароль")
	ErrDSNDatabase = errors.New("postgres: не указана база данных")
	ErrDSNSSLMode  = errors.New("postgres: неизвестный sslmode")
	ErrDSNPoolSize = errors.New("postgres: отрицательный размер пула")
	ErrDSNTimeout  = errors.New("postgres: отрицательный таймаут подключения")
)

// ошибки конфигурации синхронизации
var (
	ErrEmptyFeedDir   = errors.New("feed: не задан каталог выгрузки")
	ErrKafkaNoBrokers = errors.New("kafka: не указаны брокеры")
)
