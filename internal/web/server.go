package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/logging"
	"github.com/hpungsan/brief/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Server is the HTTP server plus the background runs its handlers started.
type Server struct {
	*http.Server
	handlers   *Handlers
	cancelRuns context.CancelFunc
}

// Shutdown cancels in-flight runs, stops accepting requests, and waits for
// background runs to record their outcome. It returns early if ctx expires first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.handlers.closeRuns()
	s.cancelRuns()
	err := s.Server.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if err == nil {
			err = fmt.Errorf("waiting for background runs: %w", ctx.Err())
		}
	}
	return err
}

// NewServer creates and configures the HTTP server for the Brief web UI and JSON API.
func NewServer(db *sql.DB, cfg *config.Config, runner ops.Runner, version, bind string, port int) (*Server, error) {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	// Request contexts and background runs started from the HTML form are
	// cancelled on shutdown
	runCtx, cancelRuns := context.WithCancel(context.Background())

	h := &Handlers{
		db:       db,
		cfg:      cfg,
		runner:   runner,
		renderer: NewRenderer(templateSub, version),
		runCtx:   runCtx,
		logger:   logging.New("web"),
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           h.routes(staticSub),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return runCtx },
	}
	return &Server{Server: srv, handlers: h, cancelRuns: cancelRuns}, nil
}

// routes builds the request multiplexer wrapped in the security headers middleware.
func (h *Handlers) routes(staticSub fs.FS) http.Handler {
	mux := http.NewServeMux()

	// Routes using Go 1.22+ pattern syntax
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/cases", http.StatusFound)
	})
	mux.HandleFunc("GET /cases", h.HandleList)
	mux.HandleFunc("GET /cases/new", h.HandleNew)
	mux.HandleFunc("POST /cases", h.HandleCreate)
	mux.HandleFunc("GET /cases/{id}", h.HandleDetail)
	mux.HandleFunc("POST /cases/{id}/execute", h.HandleExecute)
	mux.HandleFunc("GET /cases/{id}/logs", h.HandleLogs)
	mux.HandleFunc("GET /cases/{id}/result", h.HandleResult)
	mux.HandleFunc("GET /cases/{id}/export", h.HandleExport)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	return securityHeaders(mux)
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
// It returns only after background runs have been cancelled and recorded.
func Run(srv *Server) error {
	logger := logging.New("web")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("Brief UI running", "url", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		logger.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		srv.handlers.closeRuns()
		srv.cancelRuns()
		srv.handlers.Wait()
		return err
	case <-sigCh:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
