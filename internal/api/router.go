package api

import (
	"net/http"
	"time"

	"github.com/athebyme/gomarket-platform/internal/api/handlers"
	"github.com/athebyme/gomarket-platform/internal/api/middleware"
	"github.com/athebyme/gomarket-platform/pkg/auth"
	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services зависимости обработчиков API
type Services struct {
	Marketplaces handlers.MarketplaceManager
	Catalog      handlers.CatalogManager
	PriceQueue   handlers.PriceQueueReader
	Jobs         handlers.JobRunner
}

// RouterConfig параметры HTTP слоя
type RouterConfig struct {
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	JobTimeout         time.Duration
	BodyLimit          int64 // байт, 0 - без ограничения
	RateLimit          float64
	RateBurst          int
	MetricsPath        string // пусто - метрики не публикуются
	// RequiredRoles роли, любой из которых открывает доступ к /api/v1
	RequiredRoles []string
}

// SetupRouter настраивает маршрутизатор.
// Если validator равен nil, /api/v1 работает без аутентификации.
func SetupRouter(
	svc Services,
	validator auth.TokenValidator,
	logger interfaces.LoggerPort,
	cfg RouterConfig,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	if cfg.BodyLimit > 0 {
		r.Use(chimiddleware.RequestSize(cfg.BodyLimit))
	}

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if cfg.MetricsPath != "" {
		r.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	marketplaceHandler := handlers.NewMarketplaceHandler(svc.Marketplaces, logger)
	catalogHandler := handlers.NewCatalogHandler(svc.Catalog, logger)
	syncHandler := handlers.NewSyncHandler(svc.Marketplaces, svc.PriceQueue, svc.Jobs, cfg.JobTimeout, logger)

	r.Route("/api/v1", func(r chi.Router) {
		if validator != nil {
			r.Use(auth.AuthMiddleware(validator, logger))
			if len(cfg.RequiredRoles) > 0 {
				r.Use(auth.RequireAnyRole(validator, cfg.RequiredRoles...))
			}
		}

		// Ручной запуск задачи живет со своим таймаутом, остальные маршруты с общим
		timed := func(r chi.Router) chi.Router {
			if cfg.RequestTimeout > 0 {
				return r.With(chimiddleware.Timeout(cfg.RequestTimeout))
			}
			return r
		}

		r.Route("/marketplaces", func(r chi.Router) {
			timed(r).Get("/", marketplaceHandler.List)
			timed(r).Post("/", marketplaceHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				timed(r).Get("/", marketplaceHandler.Get)
				timed(r).Put("/", marketplaceHandler.Update)
				timed(r).Delete("/", marketplaceHandler.Delete)
				timed(r).Get("/price-queue", syncHandler.ListPriceQueue)
				r.Post("/jobs/{job}", syncHandler.RunJob)
			})
		})

		r.Route("/products/{id}", func(r chi.Router) {
			timed(r).Get("/", catalogHandler.GetProduct)
			timed(r).Put("/marketplaces/{marketplaceID}", catalogHandler.SetProductSetting)
		})

		timed(r).Put("/categories/{code}/marketplaces/{marketplaceID}/blocked", catalogHandler.SetCategoryBlocked)
	})

	return r
}
