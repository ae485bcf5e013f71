package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"restopos/internal/config"
	"restopos/internal/export"
	"restopos/internal/metrics"
	"restopos/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Services are the dependencies the HTTP handlers call into.
type Services struct {
	Orders   *service.OrderService
	Catalog  *service.CatalogService
	Revenue  *service.RevenueService
	Exporter *export.RevenueExporter
	DB       Pinger
}

// HTTPServer exposes the POS JSON API.
type HTTPServer struct {
	cfg    config.APIConfig
	svc    Services
	logger *zerolog.Logger
	auth   *HTTPAuth
	router chi.Router
	server *http.Server
}

func NewHTTPServer(cfg config.APIConfig, svc Services, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	srv := &HTTPServer{
		cfg:    cfg,
		svc:    svc,
		logger: logger,
		auth:   NewHTTPAuth(cfg),
	}
	srv.router = srv.routes()

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return srv
}

// Handler returns the fully wrapped router.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(middleware.RealIP)
	r.Use(accessLogMiddleware(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   s.cfg.CORS.AllowedOrigins,
		AllowedMethods:   s.cfg.CORS.AllowedMethods,
		AllowedHeaders:   s.cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{"Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: s.cfg.CORS.AllowCredentials,
		MaxAge:           s.cfg.CORS.MaxAge,
	}).Handler)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Wrap)

		r.Route("/tables", func(r chi.Router) {
			r.Get("/", s.handleListTables)
			r.Post("/", s.handleCreateTable)
			r.Delete("/{id}", s.handleDeleteTable)
			r.Put("/{id}/status", s.handleUpdateTableStatus)
			r.Get("/{id}/active-order", s.handleActiveOrder)
		})

		r.Route("/menu-collections", func(r chi.Router) {
			r.Get("/", s.handleListCollections)
			r.Post("/", s.handleCreateCollection)
			r.Put("/{id}", s.handleUpdateCollection)
			r.Delete("/{id}", s.handleDeleteCollection)
		})

		r.Route("/menu-items", func(r chi.Router) {
			r.Get("/", s.handleListMenuItems)
			r.Post("/", s.handleCreateMenuItem)
			r.Get("/{id}", s.handleGetMenuItem)
			r.Put("/{id}", s.handleUpdateMenuItem)
			r.Delete("/{id}", s.handleDeleteMenuItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", s.handleListOrders)
			r.Post("/", s.handleOpenOrder)
			r.Get("/{id}", s.handleGetOrder)
			r.Put("/{id}/complete", s.handleCompleteOrder)
			r.Put("/{id}/cancel", s.handleCancelOrder)
			r.Post("/{id}/pay-items", s.handlePayItems)
			r.Get("/{id}/items", s.handleListOrderItems)
			r.Post("/{id}/items", s.handleAddOrderItem)
		})

		r.Put("/order-items/{id}", s.handleUpdateOrderItem)
		r.Delete("/order-items/{id}", s.handleRemoveOrderItem)

		r.Get("/bills", s.handleListBills)
		r.Get("/bills/{id}", s.handleGetBill)

		r.Get("/revenue/daily", s.handleDailyRevenue)
		r.Get("/revenue/by-table", s.handleRevenueByTable)
		r.Get("/revenue/export", s.handleExportRevenue)

		r.Post("/sync-to-sheets", s.handleSyncToSheets)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *HTTPServer) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.svc.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.svc.DB.PingContext(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// requestIDMiddleware stores a uuid request id where middleware.GetReqID
// finds it, reusing the caller's X-Request-Id when present.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDFrom(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

func accessLogMiddleware(logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			metrics.IncHTTP(route, status)

			logger.Info().
				Str("request_id", requestIDFrom(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote", r.RemoteAddr).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
