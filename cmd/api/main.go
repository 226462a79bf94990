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
	"github.com/athebyme/gomarket-platform/internal/api"
	"github.com/athebyme/gomarket-platform/internal/app"
	"github.com/athebyme/gomarket-platform/pkg/auth"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
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

	log.Info("Инициализация API",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
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
	log.Info("Соединения с зависимостями проверены")

	var validator auth.TokenValidator
	if cfg.Keycloak.Enabled {
		keycloakClient, err := auth.NewKeycloakClient(ctx, cfg.Keycloak.ClientConfig())
		if err != nil {
			components.Close()
			log.Fatal("Ошибка инициализации Keycloak", interfaces.LogField{Key: "error", Value: err.Error()})
		}
		validator = keycloakClient
		log.Info("Проверка токенов Keycloak включена",
			interfaces.LogField{Key: "token_endpoint", Value: keycloakClient.TokenEndpoint()},
			interfaces.LogField{Key: "roles", Value: cfg.Keycloak.RequiredRoles})
	} else {
		log.Warn("Аутентификация API отключена")
	}

	routerCfg := api.RouterConfig{
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		RequestTimeout:     cfg.Server.WriteTimeout,
		JobTimeout:         cfg.Server.JobTimeout,
		BodyLimit:          int64(cfg.Server.BodyLimit) << 20,
		RateLimit:          cfg.Server.RateLimit,
		RateBurst:          cfg.Server.RateBurst,
		RequiredRoles:      cfg.Keycloak.RequiredRoles,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsPath = cfg.Metrics.Endpoint
	}

	router := api.SetupRouter(api.Services{
		Marketplaces: components.Marketplaces,
		Catalog:      components.Catalog,
		PriceQueue:   components.PriceQueue,
		Jobs:         components.Scheduler,
	}, validator, log, routerCfg)
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
	case err := <-serverErr:
		log.Error("Ошибка запуска сервера", interfaces.LogField{Key: "error", Value: err.Error()})
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Ошибка при graceful shutdown", interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("HTTP сервер остановлен")

	cancel()
	components.Close()
	log.Info("Сервер корректно завершил работу")
}
