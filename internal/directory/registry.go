package directory

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/Tyrowin/gochat-ircd/internal/irc"
)

var (
	// ErrDuplicateIdentity is returned when a name is already registered.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrNotFound is returned when a name does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrNotOnChannel is returned when parting a channel the talker is not in.
	ErrNotOnChannel = errors.New("not on channel")
	// ErrTalkerClosed is returned when a talker in CLOSE is offered to the
	// registry.
	ErrTalkerClosed = errors.New("talker closed")
)

// Channel is the minimal channel model: a name and its member set.
// Members are guarded by the owning Registry.
type Channel struct {
	name    string
	members map[*Talker]struct{}
}

// Name returns the channel name as first joined.
func (c *Channel) Name() string { return c.name }

// Counts summarizes the registry for LUSERS and metrics.
type Counts struct {
	Users       int
	Operators   int
	Services    int
	Servers     int
	Channels    int
	Connections int
	Unknown     int
}

// Registry is the process-scoped directory of talkers, channels and
// connections. All methods are safe for concurrent use; every mutation takes
// the same write lock, so a name published by a Register call is visible to
// every later lookup.
type Registry struct {
	mu          sync.RWMutex
	localName   string
	users       map[string]*Talker
	services    map[string]*Talker
	servers     []*Talker
	serverIndex map[string]*Talker
	channels    map[string]*Channel
	connections []*Connection
}

// NewRegistry creates an empty registry for the server named localName.
// Peer servers may not register under the local name.
func NewRegistry(localName string) *Registry {
	return &Registry{
		localName:   irc.Fold(localName),
		users:       make(map[string]*Talker),
		services:    make(map[string]*Talker),
		serverIndex: make(map[string]*Talker),
		channels:    make(map[string]*Channel),
	}
}

// nameTaken reports whether key is used in the shared nickname namespace by
// a talker other than self. Callers hold mu.
func (r *Registry) nameTaken(key string, self *Talker) bool {
	if t, ok := r.users[key]; ok && t != self {
		return true
	}
	if t, ok := r.services[key]; ok && t != self {
		return true
	}
	return false
}

// RegisterUser publishes t as a user under its current nickname and moves it
// to OPERATIONAL.
func (r *Registry) RegisterUser(t *Talker) error {
	return r.register(t, KindUser, r.users)
}

// RegisterService publishes t as a service under its current name and moves
// it to OPERATIONAL.
func (r *Registry) RegisterService(t *Talker) error {
	return r.register(t, KindService, r.services)
}

func (r *Registry) register(t *Talker, kind Kind, into map[string]*Talker) error {
	nick := t.Nick()
	if nick == "" {
		return fmt.Errorf("register %s: %w", kind, ErrNotFound)
	}
	key := irc.Fold(nick)

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.nameTaken(key, nil) {
		return fmt.Errorf("register %s %q: %w", kind, nick, ErrDuplicateIdentity)
	}
	if t.Closed() {
		return fmt.Errorf("register %s %q: %w", kind, nick, ErrTalkerClosed)
	}
	t.mu.Lock()
	t.kind = kind
	t.mu.Unlock()
	t.markOperational()
	into[key] = t
	return nil
}

// RegisterServer adds a peer or remote server. Servers keep insertion order.
func (r *Registry) RegisterServer(t *Talker) error {
	name := t.Nick()
	key := irc.Fold(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if key == r.localName {
		return fmt.Errorf("register server %q: %w", name, ErrDuplicateIdentity)
	}
	if _, ok := r.serverIndex[key]; ok {
		return fmt.Errorf("register server %q: %w", name, ErrDuplicateIdentity)
	}
	t.mu.Lock()
	t.kind = KindServer
	t.mu.Unlock()
	t.markOperational()
	r.serverIndex[key] = t
	r.servers = append(r.servers, t)
	return nil
}

// Rename changes a registered user's nickname. Changing only the case of
// one's own nickname is allowed.
func (r *Registry) Rename(t *Talker, nick string) error {
	newKey := irc.Fold(nick)

	r.mu.Lock()
	defer r.mu.Unlock()

	oldKey := irc.Fold(t.Nick())
	if r.users[oldKey] != t {
		return fmt.Errorf("rename %q: %w", t.Nick(), ErrNotFound)
	}
	if r.nameTaken(newKey, t) {
		return fmt.Errorf("rename to %q: %w", nick, ErrDuplicateIdentity)
	}
	delete(r.users, oldKey)
	r.users[newKey] = t
	t.SetNick(nick)
	return nil
}

// LookupUser finds a user by nickname.
func (r *Registry) LookupUser(nick string) (*Talker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.users[irc.Fold(nick)]
	return t, ok
}

// LookupService finds a service by name.
func (r *Registry) LookupService(name string) (*Talker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.services[irc.Fold(name)]
	return t, ok
}

// LookupServer finds a known server by name.
func (r *Registry) LookupServer(name string) (*Talker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.serverIndex[irc.Fold(name)]
	return t, ok
}

// NicknameInUse reports whether nick is taken by a user or service.
func (r *Registry) NicknameInUse(nick string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nameTaken(irc.Fold(nick), nil)
}

// Servers returns the known servers in registration order.
func (r *Registry) Servers() []*Talker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.servers)
}

// Users returns the registered users ordered by nickname.
func (r *Registry) Users() []*Talker {
	r.mu.RLock()
	users := make([]*Talker, 0, len(r.users))
	for _, t := range r.users {
		users = append(users, t)
	}
	r.mu.RUnlock()
	sortByNick(users)
	return users
}

// AddConnection records a newly accepted connection.
func (r *Registry) AddConnection(c *Connection) {
	r.mu.Lock()
	r.connections = append(r.connections, c)
	r.mu.Unlock()
}

// Connections returns the active connections in accept order.
func (r *Registry) Connections() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.connections)
}

// Remove detaches t and its connection from every index and channel. Servers
// that were introduced through t are removed with it. Removing an unknown
// talker is a no-op.
func (r *Registry) Remove(t *Talker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(t)
}

func (r *Registry) remove(t *Talker) {
	key := irc.Fold(t.Nick())
	if r.users[key] == t {
		delete(r.users, key)
	}
	if r.services[key] == t {
		delete(r.services, key)
	}
	if r.serverIndex[key] == t {
		delete(r.serverIndex, key)
		r.servers = slices.DeleteFunc(r.servers, func(s *Talker) bool { return s == t })
		for _, s := range slices.Clone(r.servers) {
			if s.Server().Uplink == t {
				r.remove(s)
			}
		}
	}
	if c := t.Conn(); c != nil {
		r.connections = slices.DeleteFunc(r.connections, func(x *Connection) bool { return x == c })
	}
	for _, key := range t.channelKeys() {
		r.leave(key, t)
	}
}

// JoinChannel adds t to the channel, creating it if needed. It returns the
// channel and false when t was already a member. Only registered users and
// services that are not closing may join; anything else fails without
// touching the channel.
func (r *Registry) JoinChannel(name string, t *Talker) (*Channel, bool, error) {
	key := irc.Fold(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if t.Closed() {
		return nil, false, fmt.Errorf("join %q: %w", name, ErrTalkerClosed)
	}
	if !r.published(t) {
		return nil, false, fmt.Errorf("join %q: talker %q: %w", name, t.Nick(), ErrNotFound)
	}

	ch, ok := r.channels[key]
	if !ok {
		ch = &Channel{name: name, members: make(map[*Talker]struct{})}
		r.channels[key] = ch
	}
	if _, member := ch.members[t]; member {
		return ch, false, nil
	}
	ch.members[t] = struct{}{}
	t.channels[key] = struct{}{}
	return ch, true, nil
}

// published reports whether t is the registered user or service under its
// nickname. Callers hold mu.
func (r *Registry) published(t *Talker) bool {
	key := irc.Fold(t.Nick())
	return r.users[key] == t || r.services[key] == t
}

// PartChannel removes t from the channel. Empty channels are dropped.
func (r *Registry) PartChannel(name string, t *Talker) (*Channel, error) {
	key := irc.Fold(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[key]
	if !ok {
		return nil, fmt.Errorf("part %q: %w", name, ErrNotFound)
	}
	if _, member := ch.members[t]; !member {
		return ch, fmt.Errorf("part %q: %w", name, ErrNotOnChannel)
	}
	r.leave(key, t)
	return ch, nil
}

func (r *Registry) leave(key string, t *Talker) {
	delete(t.channels, key)
	ch, ok := r.channels[key]
	if !ok {
		return
	}
	delete(ch.members, t)
	if len(ch.members) == 0 {
		delete(r.channels, key)
	}
}

// LookupChannel finds a channel by name.
func (r *Registry) LookupChannel(name string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[irc.Fold(name)]
	return ch, ok
}

// Members returns the channel's members ordered by nickname.
func (r *Registry) Members(ch *Channel) []*Talker {
	r.mu.RLock()
	members := make([]*Talker, 0, len(ch.members))
	for t := range ch.members {
		members = append(members, t)
	}
	r.mu.RUnlock()
	sortByNick(members)
	return members
}

// IsMember reports whether t has joined ch.
func (r *Registry) IsMember(ch *Channel, t *Talker) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := ch.members[t]
	return ok
}

// ChannelsOf returns the names of the channels t has joined.
func (r *Registry) ChannelsOf(t *Talker) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(t.channels))
	for key := range t.channels {
		if ch, ok := r.channels[key]; ok {
			names = append(names, ch.name)
		}
	}
	sort.Strings(names)
	return names
}

// Peers returns every talker sharing at least one channel with t, each once.
func (r *Registry) Peers(t *Talker) []*Talker {
	r.mu.RLock()
	seen := make(map[*Talker]struct{})
	for key := range t.channels {
		ch, ok := r.channels[key]
		if !ok {
			continue
		}
		for m := range ch.members {
			if m != t {
				seen[m] = struct{}{}
			}
		}
	}
	r.mu.RUnlock()

	peers := make([]*Talker, 0, len(seen))
	for m := range seen {
		peers = append(peers, m)
	}
	sortByNick(peers)
	return peers
}

// Counts returns a snapshot of registry sizes.
func (r *Registry) Counts() Counts {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c := Counts{
		Users:       len(r.users),
		Services:    len(r.services),
		Servers:     len(r.servers),
		Channels:    len(r.channels),
		Connections: len(r.connections),
	}
	for _, t := range r.users {
		if t.IsOperator() {
			c.Operators++
		}
	}
	for _, conn := range r.connections {
		if conn.Talker().State() == StateUnregistered {
			c.Unknown++
		}
	}
	return c
}

func sortByNick(ts []*Talker) {
	sort.Slice(ts, func(i, j int) bool {
		return irc.Fold(ts[i].Nick()) < irc.Fold(ts[j].Nick())
	})
}
