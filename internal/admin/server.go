// Package admin serves the HTTP/WebSocket surface used to observe and
// control runner pools: pool and task introspection, pause/resume/submit
// control, and a live trace-event stream, the kernel-backed analog of the
// teacher's task-queue admin API.
package admin

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nilrun/statekit/internal/admin/handlers"
	adminMiddleware "github.com/nilrun/statekit/internal/admin/middleware"
	adminWebsocket "github.com/nilrun/statekit/internal/admin/websocket"
	"github.com/nilrun/statekit/internal/config"
	"github.com/nilrun/statekit/internal/runner"
	"github.com/nilrun/statekit/internal/trace"
)

// Server is the admin HTTP server: a chi router fronting an AdminHandler
// and a trace-event websocket hub.
type Server struct {
	router  *chi.Mux
	cfg     *config.Config
	admin   *handlers.AdminHandler
	wsHub   *adminWebsocket.Hub
	wsHandl *adminWebsocket.Handler
}

// NewServer builds a Server. sink may be nil (no trace stream configured),
// in which case the websocket endpoint still accepts connections but the
// hub never has anything to tail.
func NewServer(cfg *config.Config, sink *trace.Sink) *Server {
	wsHub := adminWebsocket.NewHub(sink, "admin-server")

	s := &Server{
		router:  chi.NewRouter(),
		cfg:     cfg,
		admin:   handlers.NewAdminHandler(),
		wsHub:   wsHub,
		wsHandl: adminWebsocket.NewHandler(wsHub),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// RegisterPool exposes p at /admin/pools/{p.ID()}.
func (s *Server) RegisterPool(p *runner.Pool) {
	s.admin.RegisterPool(p)
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(adminMiddleware.RequestLogger())
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(chimiddleware.Heartbeat("/health"))
}

func (s *Server) setupRoutes() {
	s.router.Route("/admin", func(r chi.Router) {
		r.Use(chimiddleware.AllowContentType("application/json"))

		if s.cfg.Kernel.RateLimitRPS > 0 {
			r.Use(adminMiddleware.ClientRateLimit(s.cfg.Kernel.RateLimitRPS))
		}
		if s.cfg.Auth.Enabled {
			r.Use(adminMiddleware.Auth(&s.cfg.Auth))
		}

		r.Get("/health", s.admin.HealthCheck)

		r.Get("/pools", s.admin.ListPools)
		r.Get("/pools/{poolID}", s.admin.GetPool)
		r.Post("/pools/{poolID}/pause", s.admin.PausePool)
		r.Post("/pools/{poolID}/resume", s.admin.ResumePool)
		r.Post("/pools/{poolID}/jobs", s.admin.SubmitJob)

		r.Get("/pools/{poolID}/tasks", s.admin.ListTasks)
		r.Get("/pools/{poolID}/tasks/{taskID}", s.admin.GetTask)

		r.Get("/ws", s.wsHandl.ServeWS)
	})

	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, promhttp.Handler())
	}
}

// Start launches the websocket hub's tail-and-fanout goroutines.
func (s *Server) Start(ctx context.Context) {
	go s.wsHub.Run(ctx)
}

// Stop shuts the websocket hub down.
func (s *Server) Stop() {
	s.wsHub.Stop()
}

// Router returns the underlying chi router, e.g. for http.ListenAndServe.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
