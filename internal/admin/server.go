// internal/admin/server.go
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/leaderboard-crawler/internal/control"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/logger"
	"github.com/rovshanmuradov/leaderboard-crawler/internal/metrics"
)

const (
	transport    = "http"
	maxBodyBytes = 1 << 20
	defaultLogs  = 100
)

// Handler serves one raw control request.
type Handler interface {
	Handle(ctx context.Context, body []byte) control.Response
}

// Server is the HTTP admin surface: the control plane, health and metrics.
type Server struct {
	handler Handler
	metrics *metrics.Collector
	logs    *logger.LogBuffer
	logger  *zap.Logger
	srv     *http.Server
}

// NewServer builds the admin server. logs may be nil, which disables /logs.
func NewServer(addr string, handler Handler, collector *metrics.Collector, logs *logger.LogBuffer, log *zap.Logger) *Server {
	s := &Server{
		handler: handler,
		metrics: collector,
		logs:    logs,
		logger:  log.Named("admin"),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Routes returns the admin mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /control", s.handleControl)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	mux.HandleFunc("GET /logs", s.handleLogs)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	var resp control.Response
	if err != nil {
		resp = control.Failure("read request: " + err.Error())
	} else {
		resp = s.handler.Handle(r.Context(), body)
	}
	s.metrics.RecordControl(transport, resp.Success)

	out, err := control.Encode(resp)
	if err != nil {
		s.logger.Error("Failed to encode control response", zap.Error(err))
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(out)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.Error(w, "log buffer disabled", http.StatusNotFound)
		return
	}
	limit := defaultLogs
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.logs.GetRecentLogs(limit)); err != nil {
		s.logger.Warn("Failed to write logs response", zap.Error(err))
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 Admin server listening", zap.String("addr", ln.Addr().String()))
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin server: %w", err)
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	return nil
}
