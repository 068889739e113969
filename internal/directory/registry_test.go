package directory

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, r *Registry, nick string) *Talker {
	t.Helper()
	tk := NewDetached()
	tk.SetNick(nick)
	tk.SetUser(UserInfo{Username: nick, Hostname: "localhost", Realname: nick})
	require.NoError(t, r.RegisterUser(tk))
	return tk
}

func TestRegisterUserPublishesAndTransitions(t *testing.T) {
	r := NewRegistry("irc.example.org")
	tk := NewDetached()
	tk.SetNick("Alice")
	require.Equal(t, StateUnregistered, tk.State())

	require.NoError(t, r.RegisterUser(tk))
	assert.Equal(t, StateOperational, tk.State())
	assert.Equal(t, KindUser, tk.Kind())

	found, ok := r.LookupUser("aLiCe")
	require.True(t, ok)
	assert.Same(t, tk, found)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry("irc.example.org")
	first := newUser(t, r, "nick[1]")

	dup := NewDetached()
	dup.SetNick("NICK{1}")
	err := r.RegisterUser(dup)
	assert.ErrorIs(t, err, ErrDuplicateIdentity)
	assert.Equal(t, StateUnregistered, dup.State())

	found, _ := r.LookupUser("nick[1]")
	assert.Same(t, first, found)

	svc := NewDetached()
	svc.SetNick("nick[1]")
	assert.ErrorIs(t, r.RegisterService(svc), ErrDuplicateIdentity)
}

func TestRegisterService(t *testing.T) {
	r := NewRegistry("irc.example.org")
	svc := NewDetached()
	svc.SetNick("NickServ")
	svc.SetService(ServiceInfo{Type: "0", Distribution: "*", Info: "nick registration"})
	require.NoError(t, r.RegisterService(svc))

	found, ok := r.LookupService("nickserv")
	require.True(t, ok)
	assert.Same(t, svc, found)
	assert.Equal(t, KindService, svc.Kind())
	_, ok = r.LookupUser("nickserv")
	assert.False(t, ok)

	user := NewDetached()
	user.SetNick("NickServ")
	assert.ErrorIs(t, r.RegisterUser(user), ErrDuplicateIdentity)
}

func TestRegisterWithoutNick(t *testing.T) {
	r := NewRegistry("irc.example.org")
	assert.ErrorIs(t, r.RegisterUser(NewDetached()), ErrNotFound)
}

func TestServersKeepInsertionOrder(t *testing.T) {
	r := NewRegistry("irc.example.org")
	names := []string{"c.example.org", "a.example.org", "b.example.org"}
	for _, name := range names {
		require.NoError(t, r.RegisterServer(NewRemoteServer(name, 1, "info", nil)))
	}
	var got []string
	for _, s := range r.Servers() {
		got = append(got, s.Nick())
	}
	assert.Equal(t, names, got)

	assert.ErrorIs(t, r.RegisterServer(NewRemoteServer("B.EXAMPLE.ORG", 1, "", nil)), ErrDuplicateIdentity)
	assert.ErrorIs(t, r.RegisterServer(NewRemoteServer("irc.example.org", 1, "", nil)), ErrDuplicateIdentity)
}

func TestRemoveDetachesEverything(t *testing.T) {
	r := NewRegistry("irc.example.org")
	conn, tk := NewConnection(nil)
	r.AddConnection(conn)
	tk.SetNick("bob")
	require.NoError(t, r.RegisterUser(tk))
	r.JoinChannel("#go", tk)

	tk.Close()
	// CLOSE does not purge the registry on its own.
	_, ok := r.LookupUser("bob")
	require.True(t, ok)

	r.Remove(tk)
	_, ok = r.LookupUser("bob")
	assert.False(t, ok)
	assert.Empty(t, r.Connections())
	_, ok = r.LookupChannel("#go")
	assert.False(t, ok)

	r.Remove(tk)
}

func TestRemovePeerDropsIntroducedServers(t *testing.T) {
	r := NewRegistry("irc.example.org")
	peer := NewDetached()
	peer.SetNick("hub.example.org")
	require.NoError(t, r.RegisterServer(peer))
	leaf := NewRemoteServer("leaf.example.org", 2, "leaf", peer)
	require.NoError(t, r.RegisterServer(leaf))
	deep := NewRemoteServer("deep.example.org", 3, "deep", leaf)
	require.NoError(t, r.RegisterServer(deep))
	other := NewRemoteServer("other.example.org", 1, "", nil)
	require.NoError(t, r.RegisterServer(other))

	r.Remove(peer)
	servers := r.Servers()
	require.Len(t, servers, 1)
	assert.Same(t, other, servers[0])
}

func TestRename(t *testing.T) {
	r := NewRegistry("irc.example.org")
	alice := newUser(t, r, "alice")
	newUser(t, r, "bob")

	assert.ErrorIs(t, r.Rename(alice, "BOB"), ErrDuplicateIdentity)
	require.NoError(t, r.Rename(alice, "Alice"))
	require.NoError(t, r.Rename(alice, "carol"))

	_, ok := r.LookupUser("alice")
	assert.False(t, ok)
	found, ok := r.LookupUser("carol")
	require.True(t, ok)
	assert.Same(t, alice, found)
	assert.Equal(t, "carol", alice.Nick())
}

func TestChannelsAndPeers(t *testing.T) {
	r := NewRegistry("irc.example.org")
	alice := newUser(t, r, "alice")
	bob := newUser(t, r, "bob")
	carol := newUser(t, r, "carol")
	dave := newUser(t, r, "dave")

	ch, created, err := r.JoinChannel("#go", alice)
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, "#go", ch.Name())
	_, created, err = r.JoinChannel("#GO", alice)
	require.NoError(t, err)
	assert.False(t, created)

	r.JoinChannel("#go", bob)
	r.JoinChannel("#rust", alice)
	r.JoinChannel("#rust", bob)
	r.JoinChannel("#rust", carol)
	r.JoinChannel("#zig", dave)

	peers := r.Peers(alice)
	require.Len(t, peers, 2)
	assert.Same(t, bob, peers[0])
	assert.Same(t, carol, peers[1])

	assert.Equal(t, []string{"#go", "#rust"}, r.ChannelsOf(alice))
	assert.Len(t, r.Members(ch), 2)
	assert.True(t, r.IsMember(ch, bob))

	_, err = r.PartChannel("#zig", alice)
	assert.ErrorIs(t, err, ErrNotOnChannel)
	_, err = r.PartChannel("#nowhere", alice)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.PartChannel("#zig", dave)
	require.NoError(t, err)
	_, ok := r.LookupChannel("#zig")
	assert.False(t, ok)
}

func TestCounts(t *testing.T) {
	r := NewRegistry("irc.example.org")
	alice := newUser(t, r, "alice")
	alice.SetOperator(true)
	newUser(t, r, "bob")
	conn, _ := NewConnection(nil)
	r.AddConnection(conn)
	require.NoError(t, r.RegisterServer(NewRemoteServer("a.example.org", 1, "", nil)))
	r.JoinChannel("#go", alice)

	c := r.Counts()
	assert.Equal(t, 2, c.Users)
	assert.Equal(t, 1, c.Operators)
	assert.Equal(t, 1, c.Servers)
	assert.Equal(t, 1, c.Channels)
	assert.Equal(t, 1, c.Connections)
	assert.Equal(t, 1, c.Unknown)
}

func TestConcurrentRegistrationHasOneWinner(t *testing.T) {
	r := NewRegistry("irc.example.org")
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := NewDetached()
			tk.SetNick("contested")
			if r.RegisterUser(tk) == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestConcurrentMixedOperations(t *testing.T) {
	r := NewRegistry("irc.example.org")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tk := NewDetached()
			tk.SetNick(fmt.Sprintf("user%d", i))
			if err := r.RegisterUser(tk); err != nil {
				t.Errorf("register: %v", err)
				return
			}
			r.JoinChannel("#all", tk)
			_ = r.Peers(tk)
			_ = r.Counts()
			if i%2 == 0 {
				r.Remove(tk)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 8, r.Counts().Users)
	ch, ok := r.LookupChannel("#all")
	require.True(t, ok)
	assert.Len(t, r.Members(ch), 8)
}

func TestJoinChannelRefusesDepartedTalkers(t *testing.T) {
	r := NewRegistry("irc.example.org")
	closed := newUser(t, r, "closed")
	removed := newUser(t, r, "removed")
	stranger := NewDetached()
	stranger.SetNick("stranger")

	closed.Close()
	r.Remove(removed)

	_, joined, err := r.JoinChannel("#room", closed)
	assert.ErrorIs(t, err, ErrTalkerClosed)
	assert.False(t, joined)

	_, joined, err = r.JoinChannel("#room", removed)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, joined)

	_, _, err = r.JoinChannel("#room", stranger)
	assert.ErrorIs(t, err, ErrNotFound)

	_, ok := r.LookupChannel("#room")
	assert.False(t, ok)
	assert.Empty(t, r.ChannelsOf(removed))
}
