package directory

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Tyrowin/gochat-ircd/internal/queue"
)

// Transport is a line-oriented byte-stream endpoint.
type Transport interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// ConnState is the transport-level state of a Connection.
type ConnState int32

const (
	ConnConnecting ConnState = iota
	ConnOpen
	ConnClosed
)

func (s ConnState) String() string {
	switch s {
	case ConnConnecting:
		return "CONNECTING"
	case ConnOpen:
		return "OPEN"
	case ConnClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Connection is one transport endpoint owned by exactly one Talker.
type Connection struct {
	id        uuid.UUID
	transport Transport
	remote    string
	created   time.Time
	state     atomic.Int32
	input     *queue.Queue[string]
	talker    *Talker

	scheduled atomic.Bool
	closeOnce sync.Once
}

// NewConnection creates a Connection and its provisional, unregistered Talker.
func NewConnection(tr Transport) (*Connection, *Talker) {
	c := &Connection{
		id:        uuid.New(),
		transport: tr,
		created:   time.Now(),
		input:     queue.New[string](),
	}
	if tr != nil {
		c.remote = tr.RemoteAddr()
	}
	c.talker = newTalker(c)
	return c, c.talker
}

// ID returns the connection's unique id.
func (c *Connection) ID() uuid.UUID { return c.id }

// RemoteAddr returns the peer address captured at accept time.
func (c *Connection) RemoteAddr() string { return c.remote }

// Host returns the host part of the remote address.
func (c *Connection) Host() string {
	host, _, err := net.SplitHostPort(c.remote)
	if err != nil {
		host = c.remote
	}
	if host == "" {
		return "unknown"
	}
	return host
}

// Created returns the accept time.
func (c *Connection) Created() time.Time { return c.created }

// Transport returns the underlying endpoint.
func (c *Connection) Transport() Transport { return c.transport }

// Talker returns the owning Talker.
func (c *Connection) Talker() *Talker { return c.talker }

// Input returns the queue of raw inbound lines.
func (c *Connection) Input() *queue.Queue[string] { return c.input }

// State returns the transport state.
func (c *Connection) State() ConnState { return ConnState(c.state.Load()) }

// Open marks the transport as ready for traffic.
func (c *Connection) Open() {
	c.state.CompareAndSwap(int32(ConnConnecting), int32(ConnOpen))
}

// TrySchedule claims the connection for one dispatch worker. It returns false
// if another worker already owns it.
func (c *Connection) TrySchedule() bool {
	return c.scheduled.CompareAndSwap(false, true)
}

// Unschedule releases the claim taken by TrySchedule.
func (c *Connection) Unschedule() {
	c.scheduled.Store(false)
}

// Close tears the connection down immediately: the transport is closed, the
// input queue stops accepting lines and the Talker moves to CLOSE.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(ConnClosed))
		c.input.Close()
		c.talker.Close()
		if c.transport != nil {
			err = c.transport.Close()
		}
	})
	return err
}
