// Package server coordinates connection registration, pump lifecycles, and
// teardown for one running generation of the GoChat server via the Hub type.
package server

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/dispatch"
	"github.com/Tyrowin/gochat-ircd/internal/metrics"
)

// Hub owns the live connections of one server generation together with the
// registry, dispatcher and worker pool they share. A restart discards the
// hub and builds a new one.
type Hub struct {
	clients  map[*Client]struct{}
	mutex    sync.Mutex
	closed   bool
	stopping atomic.Bool

	// readers tracks reader pumps; wg tracks every pump.
	readers sync.WaitGroup
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	cfg        *Config
	registry   *directory.Registry
	dispatcher *dispatch.Dispatcher
	pool       *workerPool
	metrics    *metrics.Collectors
	logger     *slog.Logger
}

func newHub(cfg *Config, registry *directory.Registry, dispatcher *dispatch.Dispatcher,
	pool *workerPool, m *metrics.Collectors, logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		pool:       pool,
		metrics:    m,
		logger:     logger,
	}
}

// register creates the Connection/Talker pair for tr, records it in the
// registry and launches its pumps.
func (h *Hub) register(tr directory.Transport) (*Client, error) {
	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		return nil, ErrNotRunning
	}
	conn, _ := directory.NewConnection(tr)
	client := newClient(conn, h)
	h.clients[client] = struct{}{}
	clientCount := len(h.clients)
	h.readers.Add(1)
	h.wg.Add(2)
	h.mutex.Unlock()

	h.registry.AddConnection(conn)
	conn.Open()
	h.metrics.ConnectionOpened()
	client.logger.Info("Client registered", "total", clientCount)

	go func() {
		defer h.wg.Done()
		defer h.readers.Done()
		client.readPump()
	}()
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	return client, nil
}

// unregister runs once both pumps of client have returned.
func (h *Hub) unregister(client *Client) {
	reason := client.dropReason.Load().(string)
	h.dispatcher.Drop(client.talker, reason)
	h.registry.Remove(client.talker)

	h.mutex.Lock()
	delete(h.clients, client)
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.metrics.ConnectionClosed()
	h.metrics.SetRegisteredUsers(h.registry.Counts().Users)
	client.logger.Info("Client unregistered", "nick", client.talker.Target(), "total", clientCount)
}

// getClientSnapshot returns a thread-safe snapshot of all current clients.
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

func (h *Hub) clientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// closeAll force-disconnects every live connection and reports how many
// were closed.
func (h *Hub) closeAll() int {
	clients := h.getClientSnapshot()
	for _, client := range clients {
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			client.logger.Warn("Error closing client connection", "error", err)
		}
	}
	h.logger.Info("Closed client connections", "count", len(clients))
	return len(clients)
}

// Shutdown stops accepting connections and drains the hub: readers are
// interrupted and announce a QUIT, the workers dispatch what is left, and the
// writers flush their queues. If ctx expires first the remaining connections
// are closed hard. The worker pool is stopped in every case.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info("Initiating hub shutdown...")

	h.mutex.Lock()
	h.closed = true
	h.mutex.Unlock()
	h.stopping.Store(true)
	h.cancel()

	for _, client := range h.getClientSnapshot() {
		client.interrupt()
	}

	var err error
	if werr := waitGroup(ctx, &h.readers); werr != nil {
		err = werr
		h.closeAll()
		h.readers.Wait()
	}

	h.pool.stop()

	if werr := waitGroup(ctx, &h.wg); werr != nil {
		err = werr
		h.logger.Warn("Hub shutdown timeout reached; closing remaining connections")
		h.closeAll()
		h.wg.Wait()
	}

	if err == nil {
		h.logger.Info("Hub shutdown completed successfully")
	}
	return err
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
