// Package server exposes the live snapshot over HTTP.
//
// The catch-all Handler serves pages with conditional GET support; the
// Server adds the static file prefix, the optional metrics and live-reload
// endpoints, request logging, and the http.Server lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/tessera/internal/livereload"
	"github.com/conneroisu/tessera/internal/logging"
	"github.com/conneroisu/tessera/internal/metrics"
	"github.com/conneroisu/tessera/internal/store"
)

// StaticPrefix is the URL prefix served from the static directory.
const StaticPrefix = "/static/"

// Options configures a Server.
type Options struct {
	Host      string
	Port      int
	StaticDir string
	Handler   HandlerOptions
	// Metrics, when set, is exposed at /metrics.
	Metrics *metrics.Metrics
	// LiveReload, when set, is mounted at livereload.Path.
	LiveReload *livereload.Hub
}

// Server is the HTTP front end.
type Server struct {
	httpServer *http.Server
	handler    *Handler
	opts       Options
	logger     logging.Logger

	mu         sync.Mutex
	isShutdown bool
}

// New builds a server reading pages from st.
func New(st *store.Store, opts Options, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithComponent("server")

	if opts.LiveReload != nil && opts.Handler.LiveReload == "" {
		opts.Handler.LiveReload = livereload.Path
	}
	handler := NewHandler(st, opts.Handler, logger)

	s := &Server{
		handler: handler,
		opts:    opts,
		logger:  logger,
	}
	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if s.opts.StaticDir != "" {
		mux.Handle(StaticPrefix, http.StripPrefix(StaticPrefix, staticFiles(s.opts.StaticDir)))
	}
	if s.opts.Metrics != nil {
		mux.Handle("/metrics", s.opts.Metrics.Handler())
	}
	if s.opts.LiveReload != nil {
		mux.Handle(livereload.Path, s.opts.LiveReload)
	}
	mux.Handle("/", s.handler)

	return Chain(mux,
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger, s.opts.Metrics),
		SecurityHeadersMiddleware(),
	)
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Pages returns the catch-all page handler.
func (s *Server) Pages() *Handler {
	return s.handler
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start listens on the configured address and serves until ctx is done,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server has been shut down")
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "Serving content", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting connections and waits for in-flight requests.
// It is idempotent.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isShutdown {
		return nil
	}
	s.isShutdown = true

	if s.opts.LiveReload != nil {
		s.opts.LiveReload.Close()
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info(ctx, "Server stopped")
	return nil
}

// staticFiles serves dir without directory listings.
func staticFiles(dir string) http.Handler {
	return http.FileServer(noListingFS{http.Dir(dir)})
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		index, err := n.fs.Open(name + "/index.html")
		if err != nil {
			_ = f.Close()
			return nil, os.ErrNotExist
		}
		_ = index.Close()
	}
	return f, nil
}
