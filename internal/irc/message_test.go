package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Message
	}{
		{
			name: "bare command",
			line: "motd",
			want: Message{Command: "MOTD"},
		},
		{
			name: "params and trailing",
			line: "PRIVMSG #chan :hello there  world\r\n",
			want: Message{Command: "PRIVMSG", Params: []string{"#chan", "hello there  world"}},
		},
		{
			name: "prefix is kept",
			line: ":irc.example.org SERVER leaf.example.org 2 :Leaf",
			want: Message{Prefix: "irc.example.org", Command: "SERVER", Params: []string{"leaf.example.org", "2", "Leaf"}},
		},
		{
			name: "repeated spaces",
			line: "USER  guest   0 * :Real Name",
			want: Message{Command: "USER", Params: []string{"guest", "0", "*", "Real Name"}},
		},
		{
			name: "empty trailing",
			line: "QUIT :",
			want: Message{Command: "QUIT", Params: []string{""}},
		},
		{
			name: "numeric command",
			line: "001 nick :Welcome",
			want: Message{Command: "001", Params: []string{"nick", "Welcome"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	assert.ErrorIs(t, err, ErrEmptyLine)
	_, err = Parse("   \r\n")
	assert.ErrorIs(t, err, ErrEmptyLine)
	_, err = Parse(":prefix.only")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Parse(":prefix   ")
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Parse("MO$TD now")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseParamLimit(t *testing.T) {
	line := "CMD 1 2 3 4 5 6 7 8 9 10 11 12 13 14 15 16 17"
	msg, err := Parse(line)
	require.NoError(t, err)
	require.Len(t, msg.Params, MaxParams)
	assert.Equal(t, "15 16 17", msg.Params[MaxParams-1])
}

func TestMessageString(t *testing.T) {
	msg := Message{Prefix: "a.b", Command: "SERVER", Params: []string{"c.d", "1", "Some info"}}
	assert.Equal(t, ":a.b SERVER c.d 1 :Some info", msg.String())

	again, err := Parse(msg.String())
	require.NoError(t, err)
	assert.Equal(t, msg, again)
}

func TestParam(t *testing.T) {
	msg := Message{Params: []string{"a"}}
	assert.Equal(t, "a", msg.Param(0))
	assert.Equal(t, "", msg.Param(1))
	assert.Equal(t, "", msg.Param(-1))
}
