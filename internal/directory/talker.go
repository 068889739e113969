package directory

import (
	"sync"
	"sync/atomic"

	"github.com/Tyrowin/gochat-ircd/internal/irc"
	"github.com/Tyrowin/gochat-ircd/internal/queue"
)

// Kind identifies the Talker variant.
type Kind int

const (
	// KindUnknown is the variant of a connection that has not registered yet.
	KindUnknown Kind = iota
	KindUser
	KindService
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindService:
		return "service"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// State is the registration state of a Talker.
type State int32

const (
	StateUnregistered State = iota
	StateOperational
	StateClose
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "UNREGISTERED"
	case StateOperational:
		return "OPERATIONAL"
	case StateClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// UserInfo is the payload of a user Talker.
type UserInfo struct {
	Username string
	Hostname string
	Realname string
	Operator bool
}

// ServiceInfo is the payload of a service Talker.
type ServiceInfo struct {
	Distribution string
	Type         string
	Info         string
}

// ServerInfo is the payload of a server Talker. Uplink is the directly
// connected peer the server was introduced by, nil for a direct peer.
type ServerInfo struct {
	Hopcount int
	Info     string
	Uplink   *Talker
}

// Talker is a protocol participant. Identity fields are guarded by mu and
// written only by the dispatch worker that currently owns the connection;
// other workers read them through the accessors.
type Talker struct {
	conn  *Connection
	out   *queue.Queue[irc.Reply]
	state atomic.Int32

	mu       sync.RWMutex
	kind     Kind
	nick     string
	password string
	user     UserInfo
	service  ServiceInfo
	server   ServerInfo

	// channels holds the folded names of joined channels; guarded by Registry.mu.
	channels map[string]struct{}
}

func newTalker(conn *Connection) *Talker {
	return &Talker{
		conn:     conn,
		out:      queue.New[irc.Reply](),
		channels: make(map[string]struct{}),
	}
}

// NewRemoteServer builds a server Talker that is reachable only through
// uplink. It is operational from the start and has no Connection.
func NewRemoteServer(name string, hopcount int, info string, uplink *Talker) *Talker {
	t := newTalker(nil)
	t.kind = KindServer
	t.nick = name
	t.server = ServerInfo{Hopcount: hopcount, Info: info, Uplink: uplink}
	return t
}

// NewDetached builds an unregistered Talker without a transport. It is used
// for in-process clients and tests that inspect the output queue directly.
func NewDetached() *Talker {
	return newTalker(nil)
}

// Conn returns the owning Connection, nil for remote servers.
func (t *Talker) Conn() *Connection { return t.conn }

// Output returns the talker's outbound queue.
func (t *Talker) Output() *queue.Queue[irc.Reply] { return t.out }

// State returns the current registration state.
func (t *Talker) State() State { return State(t.state.Load()) }

// Operational reports whether the talker completed registration and has not quit.
func (t *Talker) Operational() bool { return t.State() == StateOperational }

// Closed reports whether the talker reached the terminal state.
func (t *Talker) Closed() bool { return t.State() == StateClose }

func (t *Talker) markOperational() bool {
	return t.state.CompareAndSwap(int32(StateUnregistered), int32(StateOperational))
}

// Kind returns the variant.
func (t *Talker) Kind() Kind {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.kind
}

// Nick returns the nickname, service name or server name.
func (t *Talker) Nick() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nick
}

// SetNick records a nickname before registration. Registered talkers must be
// renamed through Registry.Rename.
func (t *Talker) SetNick(nick string) {
	t.mu.Lock()
	t.nick = nick
	t.mu.Unlock()
}

// Password returns the PASS value given during registration.
func (t *Talker) Password() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.password
}

// SetPassword records the PASS value.
func (t *Talker) SetPassword(p string) {
	t.mu.Lock()
	t.password = p
	t.mu.Unlock()
}

// User returns a copy of the user payload.
func (t *Talker) User() UserInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.user
}

// SetUser replaces the user payload.
func (t *Talker) SetUser(u UserInfo) {
	t.mu.Lock()
	t.user = u
	t.mu.Unlock()
}

// HasUser reports whether USER has been received.
func (t *Talker) HasUser() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.user.Username != ""
}

// SetOperator grants or revokes operator privileges.
func (t *Talker) SetOperator(op bool) {
	t.mu.Lock()
	t.user.Operator = op
	t.mu.Unlock()
}

// IsOperator reports whether the talker is an operator user.
func (t *Talker) IsOperator() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.kind == KindUser && t.user.Operator
}

// Service returns a copy of the service payload.
func (t *Talker) Service() ServiceInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.service
}

// SetService replaces the service payload.
func (t *Talker) SetService(s ServiceInfo) {
	t.mu.Lock()
	t.service = s
	t.mu.Unlock()
}

// Server returns a copy of the server payload.
func (t *Talker) Server() ServerInfo {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.server
}

// SetServer replaces the server payload.
func (t *Talker) SetServer(s ServerInfo) {
	t.mu.Lock()
	t.server = s
	t.mu.Unlock()
}

// Prefix is the message origin used when relaying this talker's actions:
// nick!user@host for users, the bare name otherwise.
func (t *Talker) Prefix() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.kind == KindServer || t.kind == KindService || t.user.Username == "" {
		return t.nick
	}
	return t.nick + "!" + t.user.Username + "@" + t.user.Hostname
}

// Target is the name numerics are addressed to; "*" until a nick is known.
func (t *Talker) Target() string {
	if nick := t.Nick(); nick != "" {
		return nick
	}
	return "*"
}

// Send queues a reply. Remote servers forward to their uplink. Replies to a
// closed talker are dropped.
func (t *Talker) Send(r irc.Reply) {
	if t.conn == nil {
		if up := t.Server().Uplink; up != nil {
			up.Send(r)
			return
		}
	}
	_ = t.out.Push(r)
}

// Poll removes the oldest queued reply without waiting.
func (t *Talker) Poll() (irc.Reply, bool) {
	return t.out.Poll()
}

// Close moves the talker to CLOSE and stops accepting replies. Replies already
// queued are still delivered; the writer closes the Connection once the queue
// is drained. It reports whether this call performed the transition.
func (t *Talker) Close() bool {
	prev := State(t.state.Swap(int32(StateClose)))
	t.out.Close()
	return prev != StateClose
}

// channelKeys returns the folded names of joined channels.
func (t *Talker) channelKeys() []string {
	keys := make([]string, 0, len(t.channels))
	for k := range t.channels {
		keys = append(keys, k)
	}
	return keys
}
