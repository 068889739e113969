// Package server manages individual connections, handling the read and write
// pumps, flood control, and teardown for each of them.
package server

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/irc"
)

// Client binds one Connection to its pumps. The reader feeds the connection's
// input queue; the writer drains the talker's output queue. The hub releases
// the client once both pumps have returned.
type Client struct {
	conn      *directory.Connection
	talker    *directory.Talker
	transport directory.Transport
	hub       *Hub
	addr      string
	limiter   *rate.Limiter
	logger    *slog.Logger

	// pending counts the pumps still running.
	pending atomic.Int32
	// dropReason is the QUIT reason synthesized by the reader.
	dropReason atomic.Value

	// lastSeen is the time of the last inbound line, pingedAt the time of
	// the outstanding keepalive PING (zero when none is pending).
	lastSeen atomic.Int64
	pingedAt atomic.Int64
	timedOut atomic.Bool
}

func newClient(conn *directory.Connection, hub *Hub) *Client {
	cfg := hub.cfg
	c := &Client{
		conn:      conn,
		talker:    conn.Talker(),
		transport: conn.Transport(),
		hub:       hub,
		addr:      conn.RemoteAddr(),
		limiter:   newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		logger:    hub.logger.With("connection", conn.ID().String(), "addr", conn.RemoteAddr()),
	}
	c.pending.Store(2)
	c.dropReason.Store("Connection closed")
	c.lastSeen.Store(time.Now().UnixNano())
	return c
}

// Connection returns the underlying connection.
func (c *Client) Connection() *directory.Connection {
	return c.conn
}

// release is called by each pump on exit.
func (c *Client) release() {
	if c.pending.Add(-1) == 0 {
		c.hub.unregister(c)
	}
}

func (c *Client) readPump() {
	defer c.release()

	for {
		line, err := c.transport.ReadLine()
		if err != nil {
			c.dropReason.Store(c.handleReadError(err))
			break
		}
		c.lastSeen.Store(time.Now().UnixNano())
		c.pingedAt.Store(0)

		if !c.waitRateLimit() {
			c.dropReason.Store(quitShuttingDown)
			break
		}

		if err := c.conn.Input().Push(line); err != nil {
			// Closed from elsewhere; nothing left to dispatch.
			return
		}
		c.hub.pool.schedule(c.conn)
	}

	reason := c.dropReason.Load().(string)
	if err := c.conn.Input().Push("QUIT :" + reason); err == nil {
		c.hub.pool.schedule(c.conn)
	}
}

const (
	quitShuttingDown = "Server shutting down"
	quitReadError    = "Read error"
	quitExcessFlood  = "Excess flood"
	quitClosed       = "Connection closed"
	quitRemoteClosed = "Remote host closed the connection"
	quitPingTimeout  = "Ping timeout"
)

// handleReadError logs appropriate messages based on the error type and
// returns the QUIT reason announced for the connection.
func (c *Client) handleReadError(err error) string {
	if c.hub.stopping.Load() && errors.Is(err, os.ErrDeadlineExceeded) {
		return quitShuttingDown
	}

	if c.timedOut.Load() {
		c.logger.Info("Client did not answer PING", "timeout", c.hub.cfg.PingTimeout)
		return quitPingTimeout
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.logger.Warn("Frame exceeded maximum size", "limit", c.hub.cfg.MaxLineLength*maxFrameLines)
		return quitExcessFlood
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.logger.Info("Client disconnected", "error", err)
		return quitRemoteClosed
	}

	if errors.Is(err, io.EOF) {
		c.logger.Info("Client connection closed")
		return quitRemoteClosed
	}

	if errors.Is(err, net.ErrClosed) || isExpectedCloseError(err) {
		c.logger.Debug("Connection closed locally", "error", err)
		return quitClosed
	}

	c.logger.Warn("Read error", "error", err)
	return quitReadError
}

// waitRateLimit paces the reader once the burst allowance is used up. It
// returns false when the hub is shutting down.
func (c *Client) waitRateLimit() bool {
	if c.limiter.Allow() {
		return true
	}
	c.logger.Debug("Rate limit reached; pacing input",
		"burst", c.hub.cfg.RateLimit.Burst, "interval", c.hub.cfg.RateLimit.RefillInterval)
	return c.limiter.Wait(c.hub.ctx) == nil
}

// writePump drains the talker's output queue until it is closed and empty,
// then closes the connection. After a write failure the remaining replies are
// discarded so the queue can still be drained to completion.
func (c *Client) writePump() {
	defer func() {
		c.closeConnection()
		c.release()
	}()

	ticker := time.NewTicker(keepaliveTick(c.hub.cfg))
	defer ticker.Stop()

	out := c.talker.Output()
	failed := false
	for {
		for {
			reply, ok := out.Poll()
			if !ok {
				break
			}
			if failed {
				continue
			}
			if !c.writeReply(reply) {
				failed = true
				c.closeTransport()
			}
		}
		if out.Done() {
			return
		}
		select {
		case <-out.Ready():
		case now := <-ticker.C:
			c.keepalive(now)
		}
	}
}

// keepaliveTick is how often the writer checks the connection for idleness.
func keepaliveTick(cfg *Config) time.Duration {
	return min(cfg.PingInterval, cfg.PingTimeout) / 2
}

// keepalive sends PING to a connection that has been silent for PingInterval
// and, once that PING has gone unanswered for PingTimeout, interrupts the
// reader so the connection is dropped with a "Ping timeout" QUIT.
func (c *Client) keepalive(now time.Time) {
	cfg := c.hub.cfg
	if pinged := c.pingedAt.Load(); pinged != 0 {
		if now.Sub(time.Unix(0, pinged)) >= cfg.PingTimeout && c.timedOut.CompareAndSwap(false, true) {
			c.interrupt()
		}
		return
	}
	if now.Sub(time.Unix(0, c.lastSeen.Load())) < cfg.PingInterval {
		return
	}
	c.pingedAt.Store(now.UnixNano())
	host := cfg.Hostname()
	c.talker.Send(irc.Command(host, "PING", host).WithTrailing())
}

func (c *Client) writeReply(reply irc.Reply) bool {
	if err := c.transport.WriteLine(reply.Render()); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("Error writing reply", "error", err)
		}
		return false
	}
	c.hub.metrics.RecordReply()
	return true
}

func (c *Client) closeTransport() {
	if err := c.transport.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("Error closing transport", "error", err)
	}
}

// closeConnection safely closes the connection with proper error handling.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("Error closing connection in writePump", "error", err)
		}
	}
}

// interrupt unblocks a reader waiting on the transport.
func (c *Client) interrupt() {
	if err := c.transport.SetReadDeadline(time.Now()); err != nil && !isExpectedCloseError(err) {
		c.logger.Debug("Error setting read deadline", "error", err)
	}
}
