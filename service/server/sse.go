package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/soltrack/service/metrics"
	natspkg "github.com/brojonat/soltrack/service/nats"
	"github.com/nats-io/nats.go"
)

const sseKeepalive = 10 * time.Second

// TransferSubscriber delivers transfer events as they are published.
type TransferSubscriber interface {
	// Subscribe calls fn for each event on account, or on every account when
	// account is empty, until the returned func is called.
	Subscribe(account string, fn func(*natspkg.TransferEvent)) (unsubscribe func(), err error)
	Close() error
}

// SSEPublisher feeds Server-Sent Events from NATS.
type SSEPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewSSEPublisher connects to NATS for streaming.
func NewSSEPublisher(natsURL string, logger *slog.Logger) (*SSEPublisher, error) {
	nc, err := natspkg.Connect(natsURL, "soltrack-sse")
	if err != nil {
		return nil, err
	}
	logger.Info("SSE publisher initialized", "nats_url", natsURL)
	return &SSEPublisher{nc: nc, logger: logger}, nil
}

// Subscribe implements TransferSubscriber.
func (p *SSEPublisher) Subscribe(account string, fn func(*natspkg.TransferEvent)) (func(), error) {
	sub, err := natspkg.SubscribeTransfers(p.nc, account, p.logger, fn)
	if err != nil {
		return nil, err
	}
	return func() { sub.Unsubscribe() }, nil
}

// Close closes the NATS connection.
func (p *SSEPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("SSE publisher closed")
	}
	return nil
}

// handleStreamTransfers streams newly stored transfers as SSE.
// GET /api/v1/stream/transfers?account={account}
func handleStreamTransfers(sub TransferSubscriber, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		account := r.URL.Query().Get("account")
		desc := account
		if desc == "" {
			desc = "all accounts"
		}

		events := make(chan *natspkg.TransferEvent, 16)
		unsubscribe, err := sub.Subscribe(account, func(e *natspkg.TransferEvent) {
			select {
			case events <- e:
			default:
				logger.WarnContext(ctx, "SSE client too slow, dropping event", "signature", e.Signature)
			}
		})
		if err != nil {
			logger.ErrorContext(ctx, "failed to subscribe", "account", desc, "error", err)
			writeError(w, "failed to subscribe", http.StatusServiceUnavailable)
			return
		}
		defer unsubscribe()

		// Streams outlive the server write timeout.
		rc := http.NewResponseController(w)
		rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)

		m.RecordSSEConnectionChange(1)
		defer m.RecordSSEConnectionChange(-1)
		logger.DebugContext(ctx, "SSE client connected", "account", desc, "remote_addr", r.RemoteAddr)

		fmt.Fprintf(w, "event: connected\ndata: {\"account\":%q}\n\n", desc)
		rc.Flush()

		keepalive := time.NewTicker(sseKeepalive)
		defer keepalive.Stop()

		for {
			select {
			case <-keepalive.C:
				fmt.Fprint(w, ": keepalive\n\n")
				rc.Flush()

			case e := <-events:
				data, err := json.Marshal(e)
				if err != nil {
					logger.WarnContext(ctx, "failed to marshal event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: transfer\ndata: %s\n\n", data)
				rc.Flush()
				m.RecordSSEEventSent()

			case <-ctx.Done():
				logger.DebugContext(ctx, "SSE client disconnected", "account", desc, "remote_addr", r.RemoteAddr)
				return
			}
		}
	})
}
