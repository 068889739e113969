package directory

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/gochat-ircd/internal/irc"
	"github.com/Tyrowin/gochat-ircd/internal/queue"
)

type stubTransport struct {
	closed bool
}

func (s *stubTransport) ReadLine() (string, error)       { return "", errors.New("eof") }
func (s *stubTransport) WriteLine(string) error          { return nil }
func (s *stubTransport) SetReadDeadline(time.Time) error { return nil }
func (s *stubTransport) RemoteAddr() string              { return "192.0.2.7:40000" }
func (s *stubTransport) Close() error                    { s.closed = true; return nil }

func TestNewConnectionPairsTalker(t *testing.T) {
	tr := &stubTransport{}
	conn, tk := NewConnection(tr)

	assert.Same(t, conn, tk.Conn())
	assert.Same(t, tk, conn.Talker())
	assert.Equal(t, ConnConnecting, conn.State())
	assert.Equal(t, "192.0.2.7", conn.Host())
	assert.Equal(t, StateUnregistered, tk.State())
	assert.Equal(t, "*", tk.Target())

	conn.Open()
	assert.Equal(t, ConnOpen, conn.State())
}

func TestConnectionCloseClosesTalker(t *testing.T) {
	tr := &stubTransport{}
	conn, tk := NewConnection(tr)
	conn.Open()

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
	assert.True(t, tr.closed)
	assert.Equal(t, ConnClosed, conn.State())
	assert.Equal(t, StateClose, tk.State())
	assert.ErrorIs(t, conn.Input().Push("PING x"), queue.ErrClosed)
}

func TestTalkerCloseKeepsQueuedReplies(t *testing.T) {
	tk := NewDetached()
	tk.Send(irc.Command("srv", "ERROR", "bye"))
	assert.True(t, tk.Close())
	assert.False(t, tk.Close())
	tk.Send(irc.Command("srv", "NOTICE", "dropped"))

	r, ok := tk.Poll()
	require.True(t, ok)
	assert.Equal(t, "ERROR", r.Command)
	_, ok = tk.Poll()
	assert.False(t, ok)
}

func TestPrefix(t *testing.T) {
	tk := NewDetached()
	tk.SetNick("alice")
	assert.Equal(t, "alice", tk.Prefix())
	tk.SetUser(UserInfo{Username: "al", Hostname: "example.net"})
	assert.Equal(t, "alice!al@example.net", tk.Prefix())
	assert.True(t, tk.HasUser())
}

func TestRemoteServerForwardsToUplink(t *testing.T) {
	peer := NewDetached()
	remote := NewRemoteServer("leaf.example.org", 2, "leaf", peer)
	remote.Send(irc.Command("srv", "PING", "x"))

	_, ok := remote.Output().Poll()
	assert.False(t, ok)
	r, ok := peer.Poll()
	require.True(t, ok)
	assert.Equal(t, "PING", r.Command)
}

func TestIsOperatorRequiresUserKind(t *testing.T) {
	r := NewRegistry("irc.example.org")
	tk := NewDetached()
	tk.SetNick("op")
	tk.SetOperator(true)
	assert.False(t, tk.IsOperator())
	require.NoError(t, r.RegisterUser(tk))
	assert.True(t, tk.IsOperator())
}
