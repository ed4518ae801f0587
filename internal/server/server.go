package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/admitportal/apiserver/config"
	"github.com/admitportal/apiserver/internal/handlers"
	"github.com/admitportal/apiserver/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	portal     *Portal
	stop       context.CancelFunc
}

// New constructs a Server with basic middleware and defaults. It seeds the
// default administrator before returning.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	portal, err := NewPortal(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	created, err := portal.SeedAdmin(ctx)
	if err != nil {
		_ = portal.Close()
		return nil, fmt.Errorf("seeding admin: %w", err)
	}
	if created {
		portal.Log.Info(ctx, "default admin created", "username", cfg.Admin.Username)
	}

	router := NewRouter(portal)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
		// uploads carry up to four 200MB files
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		portal:     portal,
	}, nil
}

// NewRouter builds the HTTP routes over portal.
func NewRouter(portal *Portal) *chi.Mux {
	authMiddleware := handlers.RequireAuth(portal.Users, portal.Sessions)
	documents := handlers.NewDocumentHandler(portal.Documents, portal.Config.Auth.DownloadSecret, portal.Config.Auth.DownloadLinkTTL)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(5*time.Minute),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, portal.Users, portal.Sessions)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, portal.Users, portal.Vault, authMiddleware)
	})
	router.Route("/messages", func(r chi.Router) {
		handlers.MessageRouter(r, portal.Messages, authMiddleware)
	})
	router.Route("/documents", func(r chi.Router) {
		handlers.DocumentRouter(r, documents, authMiddleware)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, portal.Admin, authMiddleware)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Portal exposes the wired services.
func (s *Server) Portal() *Portal {
	return s.portal
}

// Start runs the HTTP server, plus the session sweeper and event log when
// configured.
func (s *Server) Start() error {
	ctx, stop := context.WithCancel(context.Background())
	s.stop = stop

	if interval := s.portal.Config.Session.SweepInterval; interval > 0 {
		go s.portal.Sessions.RunSweeper(ctx, interval)
	}
	// an in-process broker has no outside consumer
	if s.portal.Config.MQ.Backend == "memory" {
		go s.portal.RunEventLog(ctx)
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// the broker.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.portal.Close())
}
