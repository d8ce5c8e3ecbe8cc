package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"accizard/internal/api/handlers/http/admin"
	"accizard/internal/api/handlers/http/public"
	"accizard/internal/api/handlers/http/sessions"
	"accizard/internal/api/handlers/http/system"
	"accizard/internal/config"
	"accizard/internal/middleware"
	"accizard/internal/service"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	logger *slog.Logger
	router *chi.Mux
	cfg    config.Config
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Service  *service.Service
	Lookup   public.Lookup
	Sessions sessions.Sessions
	Checks   map[string]system.Pinger
}

func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps) *Server {
	adminHandler := admin.NewHandler(logger, deps.Service.Pins, deps.Service)
	publicHandler := public.NewHandler(logger, deps.Lookup)
	sessionHandler := sessions.NewHandler(logger, deps.Sessions)
	systemHandler := system.NewHandler(logger, deps.Checks)

	r := InitRouter(ctx, cfg, adminHandler, publicHandler, sessionHandler, systemHandler, logger)

	return &Server{
		logger: logger,
		router: r,
		cfg:    *cfg,
	}
}

func InitRouter(ctx context.Context, cfg *config.Config, adminHandler *admin.Handler, publicHandler *public.Handler, sessionHandler *sessions.Handler, systemHandler *system.Handler, logger *slog.Logger) *chi.Mux {
	r := chi.NewMux()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(middleware.CORS)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", systemHandler.SystemHealth)

		api.Group(func(pr chi.Router) {
			pr.Use(middleware.APIKeyMiddleware(cfg.APIKey))
			pr.Use(middleware.Operator)

			// PINS
			pr.Route("/pins", func(pinr chi.Router) {
				pinr.Use(middleware.Limit(ctx, 20, 40, 10*time.Minute, logger))

				pinr.Get("/", adminHandler.PinList)
				pinr.Post("/", adminHandler.PinCreate)
				pinr.Get("/stream", adminHandler.PinStream)
				pinr.Get("/heatmap", adminHandler.PinHeatmap)

				pinr.Route("/{id}", func(ir chi.Router) {
					ir.Get("/", adminHandler.PinGet)
					ir.Put("/", adminHandler.PinUpdate)
					ir.Delete("/", adminHandler.PinDelete)
				})
			})

			// ADMIN
			pr.Route("/admin", func(ar chi.Router) {
				ar.Use(middleware.Limit(ctx, 2, 5, 10*time.Minute, logger))
				ar.Get("/stats", adminHandler.AdminStats)
			})
			pr.Get("/reports/response-time", adminHandler.ResponseTime)

			// GEOCODE
			pr.Route("/geocode", func(gr chi.Router) {
				gr.Use(middleware.Limit(ctx, 10, 20, 5*time.Minute, logger))
				gr.Get("/search", publicHandler.GeocodeSearch)
				gr.Get("/reverse", publicHandler.GeocodeReverse)
				gr.Get("/route", publicHandler.GeocodeRoute)
				gr.Get("/travel", publicHandler.GeocodeTravel)
			})

			// CONSOLE SESSIONS
			pr.Route("/sessions", func(sr chi.Router) {
				sr.Use(middleware.Limit(ctx, 30, 60, 10*time.Minute, logger))
				sr.Post("/", sessionHandler.SessionCreate)

				sr.Route("/{sid}", func(s chi.Router) {
					s.Get("/", sessionHandler.SessionGet)
					s.Delete("/", sessionHandler.SessionDelete)

					s.Get("/filters", sessionHandler.FiltersGet)
					s.Post("/filters/{group}/toggle", sessionHandler.FilterToggle)
					s.Post("/filters/{group}/all", sessionHandler.FilterSelectAll)
					s.Put("/query", sessionHandler.QuerySet)
					s.Get("/pins", sessionHandler.PinsGet)

					s.Route("/map", func(m chi.Router) {
						m.Get("/scene", sessionHandler.SceneGet)
						m.Get("/stream", sessionHandler.SceneStream)
						m.Post("/events", sessionHandler.MapEvent)
						m.Post("/retry", sessionHandler.MapRetry)
						m.Put("/options", sessionHandler.MapOptions)
						m.Post("/route", sessionHandler.RouteShow)
						m.Delete("/route", sessionHandler.RouteClear)
						m.Post("/popups/{marker}", sessionHandler.PopupOpen)
						m.Delete("/popups/{marker}", sessionHandler.PopupClose)
					})

					s.Route("/authoring", func(a chi.Router) {
						a.Get("/", sessionHandler.AuthoringGet)
						a.Post("/open", sessionHandler.AuthoringOpen)
						a.Patch("/form", sessionHandler.AuthoringUpdate)
						a.Post("/save", sessionHandler.AuthoringSave)
						a.Post("/reset", sessionHandler.AuthoringReset)
						a.Post("/close", sessionHandler.AuthoringClose)
					})

					s.Post("/delete/confirm", sessionHandler.DeleteConfirm)
					s.Post("/delete/cancel", sessionHandler.DeleteCancel)

					s.Post("/search", sessionHandler.SearchInput)
					s.Get("/search", sessionHandler.SearchGet)
					s.Delete("/notice", sessionHandler.NoticeDismiss)
				})
			})
		})
	})

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Http.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	// A zero WriteTimeout keeps the event streams open.
	srv := &http.Server{
		Addr:         port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
