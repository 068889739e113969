package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("Nick[Away]"), Fold("nick{away}"))
	assert.True(t, EqualFold("Foo\\Bar~", "foo|bar^"))
	assert.False(t, EqualFold("alice", "alicia"))
}

func TestValidNickname(t *testing.T) {
	for _, nick := range []string{"alice", "Bob_", "[tom]", "x-1", "^caret"} {
		assert.True(t, ValidNickname(nick), nick)
	}
	for _, nick := range []string{"", "1abc", "-dash", "has space", "#chan", "way-too-long-nickname-over-thirty-chars"} {
		assert.False(t, ValidNickname(nick), nick)
	}
}

func TestValidChannel(t *testing.T) {
	assert.True(t, ValidChannel("#go"))
	assert.True(t, ValidChannel("&local"))
	assert.False(t, ValidChannel("go"))
	assert.False(t, ValidChannel("#"))
	assert.False(t, ValidChannel("#a,b"))
}

func TestValidServerName(t *testing.T) {
	assert.True(t, ValidServerName("irc.example.org"))
	assert.False(t, ValidServerName("localhost"))
	assert.False(t, ValidServerName("bad_name.org"))
}

func TestMatchMask(t *testing.T) {
	tests := []struct {
		mask, name string
		want       bool
	}{
		{"", "anything.org", true},
		{"*", "irc.example.org", true},
		{"*.example.org", "irc.example.org", true},
		{"*.EXAMPLE.org", "irc.example.org", true},
		{"irc.?xample.org", "irc.example.org", true},
		{"*.example.net", "irc.example.org", false},
		{"irc.example.org", "irc.example.org.uk", false},
		{"*a*b*", "xaxxbx", true},
		{"a*", "b", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchMask(tt.mask, tt.name), "%q vs %q", tt.mask, tt.name)
	}
}
