// Package server implements the GoChat IRC server: the listener, the per
// connection pumps, the dispatch worker pool and the lifecycle controls that
// start, stop and restart them.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/dispatch"
	"github.com/Tyrowin/gochat-ircd/internal/meter"
	"github.com/Tyrowin/gochat-ircd/internal/metrics"
	"github.com/Tyrowin/gochat-ircd/internal/textfile"
)

// meterWindow is the number of dispatches each worker averages over.
const meterWindow = 64

// loadShedDelay is how long the listener waits before accepting while the
// dispatch stage is above its latency threshold.
const loadShedDelay = 50 * time.Millisecond

// Server is the process-wide server context. Start, Stop, CloseAll and
// Restart may be called concurrently; they are serialized internally.
type Server struct {
	cfg      *Config
	logger   *slog.Logger
	metrics  *metrics.Collectors
	files    textfile.Provider
	upgrader websocket.Upgrader
	meters   []*meter.AverageMeter

	mu         sync.Mutex
	state      atomic.Int32
	listener   net.Listener
	acceptDone chan struct{}
	hub        atomic.Pointer[Hub]
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics replaces the collectors the server reports to.
func WithMetrics(m *metrics.Collectors) Option {
	return func(s *Server) { s.metrics = m }
}

// WithFiles sets the provider for MOTD and INFO content.
func WithFiles(p textfile.Provider) Option {
	return func(s *Server) { s.files = p }
}

// New creates a stopped server. cfg is copied and sanitized; nil means
// defaults.
func New(cfg *Config, opts ...Option) *Server {
	if cfg == nil {
		cfg = NewConfig()
	}
	sanitized := sanitizeConfig(*cfg)

	s := &Server{
		cfg:    &sanitized,
		logger: slog.Default(),
		files:  textfile.Files{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}
	s.logger = s.logger.With("component", "server")

	s.meters = make([]*meter.AverageMeter, s.cfg.Workers)
	for i := range s.meters {
		s.meters[i] = meter.New(meterWindow)
	}
	if err := s.metrics.RegisterDispatchLatency(func() float64 {
		return s.DispatchLatency().Seconds()
	}); err != nil {
		s.logger.Warn("Dispatch latency gauge not registered", "error", err)
	}

	origins := newOriginPolicy(s.cfg.AllowedOrigins, s.logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     origins.checkOrigin,
	}
	return s
}

// Config returns the sanitized configuration.
func (s *Server) Config() *Config { return s.cfg }

// Metrics returns the server's collectors.
func (s *Server) Metrics() *metrics.Collectors { return s.metrics }

// State returns the lifecycle state.
func (s *Server) State() State { return State(s.state.Load()) }

// Addr returns the bound IRC listen address, or "" when stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Registry returns the registry of the running generation, nil when stopped.
func (s *Server) Registry() *directory.Registry {
	if h := s.hub.Load(); h != nil {
		return h.registry
	}
	return nil
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	if h := s.hub.Load(); h != nil {
		return h.clientCount()
	}
	return 0
}

// DispatchLatency is the mean time spent dispatching one line.
func (s *Server) DispatchLatency() time.Duration {
	return meanLatency(s.meters)
}

// Start binds the IRC listener and launches the pipeline with a fresh
// registry.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

func (s *Server) startLocked() error {
	if s.State() != StateStopped {
		return ErrAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.cfg.Port, err)
	}

	registry := directory.NewRegistry(s.cfg.Hostname())
	dispatcher := dispatch.New(s.cfg, registry,
		dispatch.WithFiles(s.files),
		dispatch.WithMetrics(s.metrics),
		dispatch.WithLogger(s.logger))
	for _, m := range s.meters {
		m.Reset()
	}
	pool := newWorkerPool(dispatcher, s.meters, s.logger.With("component", "workers"))
	hub := newHub(s.cfg, registry, dispatcher, pool, s.metrics, s.logger.With("component", "hub"))

	pool.start()
	s.listener = ln
	s.acceptDone = make(chan struct{})
	s.hub.Store(hub)
	s.state.Store(int32(StateRunning))
	s.metrics.SetRegisteredUsers(0)

	go s.acceptLoop(ln, s.acceptDone)
	s.logger.Info("Server listening", "addr", ln.Addr().String(), "hostname", s.cfg.Hostname(),
		"workers", s.cfg.Workers)
	return nil
}

// Stop stops accepting connections and lets in-flight work drain: every
// connection receives its closing ERROR and queued replies are flushed
// before it is closed. Connections still open when ctx expires are closed
// hard. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

func (s *Server) stopLocked(ctx context.Context) error {
	if s.State() != StateRunning {
		return nil
	}
	s.state.Store(int32(StateStopping))
	s.logger.Info("Stopping server...")

	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.logger.Warn("Error closing listener", "error", err)
	}
	<-s.acceptDone

	hub := s.hub.Swap(nil)
	err := hub.Shutdown(ctx)

	s.listener = nil
	s.state.Store(int32(StateStopped))
	s.logger.Info("Server stopped")
	return err
}

// CloseAll force-disconnects every active connection immediately without
// waiting for queued replies. The server keeps accepting. It returns the
// number of connections closed.
func (s *Server) CloseAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	hub := s.hub.Load()
	if hub == nil {
		return 0
	}
	return hub.closeAll()
}

// Restart stops the server and starts it again with a new, empty registry.
// A stopped server is simply started.
func (s *Server) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("Restarting server")
	if err := s.stopLocked(ctx); err != nil {
		s.logger.Warn("Forced shutdown during restart", "error", err)
	}
	return s.startLocked()
}

// Attach adopts an already established transport, such as a WebSocket
// connection, as if it had been accepted by the listener.
func (s *Server) Attach(tr directory.Transport) error {
	hub := s.hub.Load()
	if hub == nil {
		return ErrNotRunning
	}
	_, err := hub.register(tr)
	return err
}

func (s *Server) acceptLoop(ln net.Listener, done chan<- struct{}) {
	defer close(done)

	for {
		s.shedLoad()

		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.logger.Error("Accept failed", "error", err)
			return
		}

		if err := s.Attach(newTCPTransport(conn, s.cfg.MaxLineLength)); err != nil {
			s.logger.Debug("Rejected connection", "addr", conn.RemoteAddr().String(), "error", err)
			_ = conn.Close()
		}
	}
}

// shedLoad delays the next accept while dispatching is slower than the
// configured threshold.
func (s *Server) shedLoad() {
	latency := s.DispatchLatency()
	if latency <= s.cfg.LoadShedThreshold {
		return
	}
	s.logger.Debug("Dispatch latency above threshold; delaying accept",
		"latency", latency, "threshold", s.cfg.LoadShedThreshold)
	time.Sleep(loadShedDelay)
}
