package interfaces

import "context"

// LogLevel минимальный уровень записей
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// LogField дополнительное поле записи
type LogField struct {
	Key   string
	Value interface{}
}

// LoggerPort структурированный логгер сервиса.
// Аргументы args принимают LogField; *WithContext добавляют поля из контекста запроса или задачи.
type LoggerPort interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	// Fatal пишет запись и завершает процесс
	Fatal(msg string, args ...interface{})

	DebugWithContext(ctx context.Context, msg string, args ...interface{})
	InfoWithContext(ctx context.Context, msg string, args ...interface{})
	WarnWithContext(ctx context.Context, msg string, args ...interface{})
	ErrorWithContext(ctx context.Context, msg string, args ...interface{})

	// WithFields возвращает логгер, добавляющий поля ко всем записям
	WithFields(fields ...LogField) LoggerPort
	// WithMarketplace возвращает логгер с идентификатором конфигурации маркетплейса
	WithMarketplace(marketplaceID string) LoggerPort

	// SetLevel меняет уровень на лету для логгера и всех производных
	SetLevel(level LogLevel)
	GetLevel() LogLevel

	// Sync сбрасывает буферы перед завершением процесса
	Sync() error
}
