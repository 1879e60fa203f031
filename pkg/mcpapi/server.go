package mcpapi

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/lxfight/chatless/pkg/mcpmgr"
)

// Server serves the HTTP command surface of one Manager.
type Server struct {
	manager *mcpmgr.Manager
	opts    Options
	logger  *slog.Logger
	handler http.Handler

	httpServerMu sync.Mutex
	httpServer   *http.Server
}

// NewServer builds the router for manager.
func NewServer(manager *mcpmgr.Manager, opts *Options) (*Server, error) {
	if manager == nil {
		return nil, errors.New("mcpapi: manager is required")
	}
	options := opts.withDefaults()
	s := &Server{manager: manager, opts: options, logger: options.Logger}
	s.handler = s.routes()
	return s, nil
}

// Options returns a copy of the effective options.
func (s *Server) Options() Options {
	opts := s.opts
	opts.AllowedOrigins = append([]string(nil), s.opts.AllowedOrigins...)
	return opts
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	corsOpts := cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}
	if len(s.opts.AllowedOrigins) == 0 {
		// rs/cors reads an empty list as "*".
		corsOpts.AllowOriginFunc = func(string) bool { return false }
	}
	c := cors.New(corsOpts)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(c.Handler)
	r.Use(rejectForeignOrigin(c))

	r.Get("/servers", s.listServers)
	r.Route("/servers/{name}", func(r chi.Router) {
		r.Delete("/", s.disconnect)
		r.Get("/tools", s.listTools)
		r.Get("/resources", s.listResources)
		r.Get("/prompts", s.listPrompts)
		r.Group(func(r chi.Router) {
			r.Use(requireJSON)
			r.Post("/connect", s.connect)
			r.Post("/tools/{tool}", s.callTool)
			r.Post("/resources/read", s.readResource)
			r.Post("/prompts/{prompt}", s.getPrompt)
		})
	})
	return r
}

// rejectForeignOrigin refuses browser requests from origins c does not
// allow. CORS alone only hides responses; simple requests still run.
func rejectForeignOrigin(c *cors.Cors) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Origin") != "" && !c.OriginAllowed(r) {
				writeError(w, http.StatusForbidden, "origin not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// requireJSON rejects bodies that are not declared as application/json, so
// a cross-origin form or text/plain post cannot skip the preflight.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "application/json" {
			writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts the HTTP server
// and the manager down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServerMu.Lock()
	if s.httpServer != nil {
		srv := s.httpServer
		s.httpServerMu.Unlock()
		return errors.Newf("mcpapi: server already running on %s", srv.Addr)
	}
	srv := &http.Server{Addr: s.opts.Addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	s.httpServer = srv
	s.httpServerMu.Unlock()
	defer func() {
		s.httpServerMu.Lock()
		if s.httpServer == srv {
			s.httpServer = nil
		}
		s.httpServerMu.Unlock()
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info("mcp api listening", "addr", s.opts.Addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
		if err := s.manager.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("manager shutdown", "error", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "mcpapi: listen")
	}
}

// Shutdown stops the HTTP server if it is running. Managed connections are
// left to the caller.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpServerMu.Lock()
	srv := s.httpServer
	s.httpServerMu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
