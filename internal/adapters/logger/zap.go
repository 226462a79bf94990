package logger

import (
	"context"
	"strings"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var zapLevels = map[interfaces.LogLevel]zapcore.Level{
	interfaces.DebugLevel: zapcore.DebugLevel,
	interfaces.InfoLevel:  zapcore.InfoLevel,
	interfaces.WarnLevel:  zapcore.WarnLevel,
	interfaces.ErrorLevel: zapcore.ErrorLevel,
}

type ctxFieldsKey struct{}

// ZapLogger реализация LoggerPort поверх zap.SugaredLogger
type ZapLogger struct {
	logger *zap.SugaredLogger
	level  zap.AtomicLevel
}

// NewZapLogger создает логгер процесса. В production пишет JSON, иначе консольный формат.
func NewZapLogger(level string, isProduction bool) (interfaces.LoggerPort, error) {
	var config zap.Config
	if isProduction {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	atomic := zap.NewAtomicLevelAt(zapLevels[ParseLevel(level)])
	config.Level = atomic
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &ZapLogger{logger: logger.Sugar(), level: atomic}, nil
}

// NewNop возвращает логгер, который ничего не пишет
func NewNop() interfaces.LoggerPort {
	return &ZapLogger{logger: zap.NewNop().Sugar(), level: zap.NewAtomicLevel()}
}

// ParseLevel переводит имя уровня из конфигурации, неизвестное имя дает info
func ParseLevel(name string) interfaces.LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return interfaces.DebugLevel
	case "warn", "warning":
		return interfaces.WarnLevel
	case "error":
		return interfaces.ErrorLevel
	default:
		return interfaces.InfoLevel
	}
}

// ContextWithFields добавляет в контекст поля, которые попадут во все *WithContext записи
func ContextWithFields(ctx context.Context, fields ...interfaces.LogField) context.Context {
	existing, _ := ctx.Value(ctxFieldsKey{}).([]interfaces.LogField)
	merged := make([]interfaces.LogField, 0, len(existing)+len(fields))
	merged = append(merged, existing...)
	merged = append(merged, fields...)
	return context.WithValue(ctx, ctxFieldsKey{}, merged)
}

func toZap(args []interface{}) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		if field, ok := arg.(interfaces.LogField); ok {
			out[i] = zap.Any(field.Key, field.Value)
			continue
		}
		out[i] = arg
	}
	return out
}

func withContext(ctx context.Context, args []interface{}) []interface{} {
	out := toZap(args)
	if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
		out = append(out, zap.String("request_id", reqID))
	}
	if extra, ok := ctx.Value(ctxFieldsKey{}).([]interfaces.LogField); ok {
		for _, f := range extra {
			out = append(out, zap.Any(f.Key, f.Value))
		}
	}
	return out
}

func (z *ZapLogger) Debug(msg string, args ...interface{}) { z.logger.Debugw(msg, toZap(args)...) }
func (z *ZapLogger) Info(msg string, args ...interface{})  { z.logger.Infow(msg, toZap(args)...) }
func (z *ZapLogger) Warn(msg string, args ...interface{})  { z.logger.Warnw(msg, toZap(args)...) }
func (z *ZapLogger) Error(msg string, args ...interface{}) { z.logger.Errorw(msg, toZap(args)...) }
func (z *ZapLogger) Fatal(msg string, args ...interface{}) { z.logger.Fatalw(msg, toZap(args)...) }

func (z *ZapLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {
	z.logger.Debugw(msg, withContext(ctx, args)...)
}

func (z *ZapLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{}) {
	z.logger.Infow(msg, withContext(ctx, args)...)
}

func (z *ZapLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{}) {
	z.logger.Warnw(msg, withContext(ctx, args)...)
}

func (z *ZapLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {
	z.logger.Errorw(msg, withContext(ctx, args)...)
}

func (z *ZapLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort {
	kv := make([]interface{}, 0, len(fields)*2)
	for _, field := range fields {
		kv = append(kv, field.Key, field.Value)
	}
	return &ZapLogger{logger: z.logger.With(kv...), level: z.level}
}

func (z *ZapLogger) WithMarketplace(marketplaceID string) interfaces.LoggerPort {
	return z.WithFields(interfaces.LogField{Key: "marketplace_id", Value: marketplaceID})
}

func (z *ZapLogger) SetLevel(level interfaces.LogLevel) {
	zl, ok := zapLevels[level]
	if !ok {
		zl = zapcore.InfoLevel
	}
	z.level.SetLevel(zl)
}

func (z *ZapLogger) GetLevel() interfaces.LogLevel {
	current := z.level.Level()
	for level, zl := range zapLevels {
		if zl == current {
			return level
		}
	}
	if current > zapcore.ErrorLevel {
		return interfaces.ErrorLevel
	}
	return interfaces.InfoLevel
}

func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}
