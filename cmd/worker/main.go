package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/athebyme/gomarket-platform/config"
	"github.com/athebyme/gomarket-platform/internal/adapters/logger"
	"github.com/athebyme/gomarket-platform/internal/adapters/messaging"
	"github.com/athebyme/gomarket-platform/internal/app"
	"github.com/athebyme/gomarket-platform/internal/domain/models"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	components, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("Ошибка инициализации зависимостей", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	if err := components.CheckDependencies(ctx, 5*time.Second); err != nil {
		components.Close()
		log.Fatal("Зависимости недоступны", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
		metricsServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Info("Запуск HTTP сервера для метрик", interfaces.LogField{Key: "addr", Value: metricsServer.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Ошибка запуска HTTP сервера для метрик", interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	if components.Messaging != nil {
		handler := messaging.SKUResolveHandler(components.SKUMapping, log)
		if _, err := components.Messaging.Subscribe(ctx, models.TopicSKUResolve, handler); err != nil {
			components.Close()
			log.Fatal("Ошибка подписки на команды восстановления SKU",
				interfaces.LogField{Key: "topic", Value: models.TopicSKUResolve},
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
		log.Info("Подписка на команды восстановления SKU активна", interfaces.LogField{Key: "topic", Value: models.TopicSKUResolve})
	}

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		components.Scheduler.Start(ctx)
	}()
	log.Info("Планировщик запущен")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Получен сигнал завершения, останавливаем воркер...")

	cancel()

	select {
	case <-schedulerDone:
		log.Info("Планировщик остановлен")
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn("Планировщик не остановился за отведенное время")
	}

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка остановки HTTP сервера для метрик", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		shutdownCancel()
	}

	components.Close()
	log.Info("Воркер корректно завершил работу")
}
