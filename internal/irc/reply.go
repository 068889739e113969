package irc

import (
	"strconv"
	"strings"
)

// Reply is one outbound record queued for a talker. Numeric replies always
// render their target slot, so an empty target shows up as a double space.
type Reply struct {
	Prefix   string
	Command  string
	Target   string
	Params   []string
	Trailing bool
}

// Numeric builds a server-originated numeric reply. The last param is treated
// as free text.
func Numeric(server string, code Code, target string, params ...string) Reply {
	return Reply{
		Prefix:   server,
		Command:  code.String(),
		Target:   target,
		Params:   params,
		Trailing: true,
	}
}

// Command builds a reply carrying a bare command word such as QUIT or JOIN.
func Command(prefix, command string, params ...string) Reply {
	return Reply{Prefix: prefix, Command: command, Params: params}
}

// WithTrailing marks the final parameter as free text.
func (r Reply) WithTrailing() Reply {
	r.Trailing = true
	return r
}

// IsNumeric reports whether the reply carries a three-digit code.
func (r Reply) IsNumeric() bool {
	if len(r.Command) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if r.Command[i] < '0' || r.Command[i] > '9' {
			return false
		}
	}
	return true
}

// Code returns the numeric code or 0 for command replies.
func (r Reply) Code() Code {
	if !r.IsNumeric() {
		return 0
	}
	c, _ := strconv.Atoi(r.Command)
	return Code(c)
}

// Render returns the wire form without the trailing CRLF.
func (r Reply) Render() string {
	var b strings.Builder
	if r.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(r.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(r.Command)
	if r.IsNumeric() || r.Target != "" {
		b.WriteByte(' ')
		b.WriteString(r.Target)
	}
	writeParams(&b, r.Params, r.Trailing)
	return b.String()
}

func (r Reply) String() string {
	return r.Render()
}
