// Package gateway exposes a subset of the connector over a language-neutral
// JSON-RPC surface: transaction preparation and submission over HTTP, event
// streams over WebSocket, plus Prometheus metrics and a liveness probe.
package gateway

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/w3b2/w3b2-solana-go/chain"
	"github.com/w3b2/w3b2-solana-go/engine"
	"github.com/w3b2/w3b2-solana-go/store"
	"github.com/w3b2/w3b2-solana-go/txbuilder"
	"github.com/w3b2/w3b2-solana-go/types"
)

// EventSource is the engine surface the gateway consumes.
type EventSource interface {
	Subscribe(ctx context.Context, pda solana.PublicKey, kind types.ProfileKind) (*engine.Listener, error)
	Cursor(pda solana.PublicKey) (store.Cursor, bool, error)
}

// TxSubmitter forwards signed transaction blobs.
type TxSubmitter interface {
	Submit(ctx context.Context, signedTx []byte) (solana.Signature, error)
}

// Server is the gateway HTTP server.
type Server struct {
	logger    log.Logger
	builder   *txbuilder.Builder
	submitter TxSubmitter
	events    EventSource
	accounts  chain.AccountReader
	health    func(ctx context.Context) error
	gatherer  prometheus.Gatherer

	upgrader websocket.Upgrader
	srv      *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewServer(
	logger log.Logger,
	builder *txbuilder.Builder,
	sub TxSubmitter,
	events EventSource,
	accounts chain.AccountReader,
	health func(ctx context.Context) error,
	gatherer prometheus.Gatherer,
) *Server {
	return &Server{
		logger:    logger.With("module", "gateway"),
		builder:   builder,
		submitter: sub,
		events:    events,
		accounts:  accounts,
		health:    health,
		gatherer:  gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(ln) }()

	s.logger.Info("gateway listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
		s.closeConns()
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Server) trackConn(c *websocket.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrackConn(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
