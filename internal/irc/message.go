// Package irc holds the wire-level pieces of the protocol: the line grammar,
// reply records and their rendering, numeric codes, name validation and mask
// matching. It has no knowledge of connections or server state.
package irc

import (
	"errors"
	"strings"
)

// MaxParams is the protocol limit on parameters per message.
const MaxParams = 15

var (
	// ErrEmptyLine is returned for lines with no content.
	ErrEmptyLine = errors.New("irc: empty line")
	// ErrMalformed is returned for lines that have no usable command token.
	ErrMalformed = errors.New("irc: malformed line")
)

// Message is one parsed protocol line.
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// Param returns the i-th parameter or "" if absent.
func (m Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Parse tokenizes a raw line. The command is upper-cased. A parameter starting
// with ':' takes the rest of the line verbatim.
func Parse(line string) (Message, error) {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimLeft(line, " ")
	if line == "" {
		return Message{}, ErrEmptyLine
	}

	var msg Message
	if line[0] == ':' {
		end := strings.IndexByte(line, ' ')
		if end < 0 {
			return Message{}, ErrMalformed
		}
		msg.Prefix = line[1:end]
		line = strings.TrimLeft(line[end:], " ")
		if line == "" {
			return Message{}, ErrMalformed
		}
	}

	command, rest, _ := strings.Cut(line, " ")
	if !validCommand(command) {
		return Message{}, ErrMalformed
	}
	msg.Command = strings.ToUpper(command)

	for rest != "" {
		rest = strings.TrimLeft(rest, " ")
		if rest == "" {
			break
		}
		if rest[0] == ':' || len(msg.Params) == MaxParams-1 {
			msg.Params = append(msg.Params, strings.TrimPrefix(rest, ":"))
			break
		}
		var param string
		param, rest, _ = strings.Cut(rest, " ")
		msg.Params = append(msg.Params, param)
	}
	return msg, nil
}

func validCommand(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// String renders the message back to wire form without a line terminator.
func (m Message) String() string {
	var b strings.Builder
	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(m.Command)
	writeParams(&b, m.Params, false)
	return b.String()
}

// writeParams appends params separated by spaces, marking the last one with
// ':' when forced or when it would not survive re-parsing otherwise.
func writeParams(b *strings.Builder, params []string, trailing bool) {
	for i, p := range params {
		b.WriteByte(' ')
		if i == len(params)-1 && (trailing || needsColon(p)) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
}

func needsColon(p string) bool {
	return p == "" || p[0] == ':' || strings.IndexByte(p, ' ') >= 0
}
