package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flo-mic/stackdash/internal/api"
	"github.com/flo-mic/stackdash/internal/auth"
	"github.com/flo-mic/stackdash/internal/config"
	"github.com/flo-mic/stackdash/internal/discovery"
	"github.com/flo-mic/stackdash/internal/entitlements"
	"github.com/flo-mic/stackdash/internal/groups"
	"github.com/flo-mic/stackdash/internal/run"
)

const shutdownTimeout = 5 * time.Second

// Server serves the dashboard API.
type Server struct {
	cfg      *config.ServerConfig
	ents     entitlements.Entitlements
	logger   *slog.Logger
	starter  run.Starter
	runOpts  run.Options
	upgrader websocket.Upgrader
}

// New returns a Server for cfg. ents is fixed for the lifetime of the process.
func New(cfg *config.ServerConfig, ents entitlements.Entitlements, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		ents:    ents,
		logger:  logger,
		starter: run.Starter{ScanRoot: cfg.ScanRoot},
		runOpts: run.Options{Interval: cfg.RunInterval, Buffer: cfg.RunBuffer},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed API with logging and CORS applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	protect := func(h http.HandlerFunc) http.Handler { return auth.Middleware(s.cfg.Token, h) }

	mux.HandleFunc("GET /api/healthz", s.handleHealth)
	mux.Handle("GET /api/inventory", protect(s.handleInventory))
	mux.Handle("GET /api/inventory/{host}/{stack}", protect(s.handleDetail))
	mux.Handle("GET /api/inventory/{host}/{stack}/bundle", protect(s.handleBundle))
	mux.Handle("POST /api/ci/run", protect(s.handleRun))
	mux.Handle("GET /api/ci/run/ws", protect(s.handleRunWS))

	return accessLog(s.logger, cors(mux))
}

// Run listens on the configured bind address and serves until ctx is
// cancelled. See Serve for shutdown behaviour.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled. On cancellation it
// stops accepting and gives in-flight requests, run streams included, up to
// shutdownTimeout to finish before their connections are closed. WebSocket
// streams are hijacked connections and are not waited for.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("shutdown timed out, closing open connections", "err", err)
			_ = srv.Close()
		}
	}()
	go s.watchInventory(ctx)

	s.logger.Info("stackdashd listening", "bind", ln.Addr().String(), "scan_root", s.cfg.ScanRoot,
		"edition", s.ents.Edition, "license", s.ents.Source)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-stopped
	return nil
}

// watchInventory rescans every RefreshInterval and reports the inventory
// size, warning when it exceeds the licensed host count.
func (s *Server) watchInventory(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()
	for {
		s.reportInventory()
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) reportInventory() {
	inv := discovery.Scan(s.cfg.ScanRoot, s.logger)
	stacks := 0
	for _, h := range inv.Hosts {
		stacks += len(h.Stacks)
	}
	s.logger.Info("inventory scanned", "hosts", len(inv.Hosts), "stacks", stacks)
	if s.ents.MaxHosts != nil && len(inv.Hosts) > *s.ents.MaxHosts {
		s.logger.Warn("inventory exceeds licensed hosts", "hosts", len(inv.Hosts), "max_hosts", *s.ents.MaxHosts)
	}
}

func (s *Server) inventory() api.Inventory {
	inv := discovery.Scan(s.cfg.ScanRoot, s.logger)
	resolver, err := groups.Load(s.cfg.GroupsPath)
	if err != nil {
		s.logger.Warn("groups file ignored", "path", s.cfg.GroupsPath, "err", err)
	}
	resolver.Apply(&inv)
	return inv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
