package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/soltrack/service/db"
	"github.com/brojonat/soltrack/service/metrics"
	"github.com/brojonat/soltrack/service/poller"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// TransferReader is the read side of the transfer store.
type TransferReader interface {
	ListAllTransfers(ctx context.Context) ([]*db.Transfer, error)
	ListTransfers(ctx context.Context, limit, offset int32) ([]*db.Transfer, error)
	GetTransfer(ctx context.Context, signature string) (*db.Transfer, error)
	CountTransfers(ctx context.Context) (int64, error)
}

// PollerStatus reports what the in-process poller is doing.
type PollerStatus interface {
	Account() solanago.PublicKey
	State() poller.State
	LastCycle() *poller.CycleResult
}

// Server represents the HTTP read API.
type Server struct {
	addr       string
	store      TransferReader
	status     PollerStatus
	subscriber TransferSubscriber
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new HTTP server with the given dependencies.
// status, subscriber and m are optional. Without a subscriber the stream
// endpoint is not registered; without m there is no /metrics.
func New(addr string, store TransferReader, status PollerStatus, subscriber TransferSubscriber, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:       addr,
		store:      store,
		status:     status,
		subscriber: subscriber,
		metrics:    m,
		logger:     logger,
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	route("GET /transactions", "/transactions", handleTransactions(s.store, s.logger))
	route("GET /api/v1/transfers", "/api/v1/transfers", handleListTransfers(s.store, s.logger))
	route("GET /api/v1/transfers/{signature}", "/api/v1/transfers/{signature}", handleGetTransfer(s.store, s.logger))
	route("GET /api/v1/status", "/api/v1/status", handleStatus(s.store, s.status, s.logger))

	if s.subscriber != nil {
		route("GET /api/v1/stream/transfers", "/api/v1/stream/transfers", handleStreamTransfers(s.subscriber, s.metrics, s.logger))
		s.logger.Info("SSE streaming endpoint enabled")
	} else {
		s.logger.Warn("NATS not configured, streaming endpoint disabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	// Close the subscriber first so open streams end.
	if s.subscriber != nil {
		s.subscriber.Close()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware allows any origin to read the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
