package dispatch

import (
	"crypto/subtle"
	"fmt"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/irc"
)

func handleQuit(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	reason := msg.Param(0)
	if reason == "" {
		reason = t.Nick()
	}
	if reason == "" {
		reason = "Client Quit"
	}
	d.Quit(t, reason)
}

// Quit moves t to CLOSE: every talker sharing a channel with t receives one
// QUIT notice, t leaves its channels and receives a closing ERROR, and its
// output queue is closed so the writer tears the connection down once the
// ERROR has been flushed. t stays in the registry until it is removed
// explicitly.
func (d *Dispatcher) Quit(t *directory.Talker, reason string) {
	if t.Closed() {
		return
	}
	d.depart(t, reason)

	host := "unknown"
	if c := t.Conn(); c != nil {
		host = c.Host()
	}
	t.Send(irc.Command(d.host(), "ERROR",
		fmt.Sprintf("Closing Link: %s[%s] (%s)", t.Target(), host, reason)).WithTrailing())
	t.Close()
	d.logger.Info("Talker quit", "nick", t.Target(), "kind", t.Kind(), "reason", reason)
}

// Drop announces the loss of t's connection to its channel peers and removes
// it from its channels. Unlike Quit it sends nothing to t; it is used when the
// transport is already gone. Talkers that left through QUIT have no channels
// left, so Drop is a no-op for them.
func (d *Dispatcher) Drop(t *directory.Talker, reason string) {
	if len(d.registry.ChannelsOf(t)) == 0 {
		return
	}
	d.depart(t, reason)
	d.logger.Info("Talker dropped", "nick", t.Target(), "reason", reason)
}

func (d *Dispatcher) depart(t *directory.Talker, reason string) {
	quit := irc.Command(t.Prefix(), "QUIT", reason).WithTrailing()
	relay(d.registry.Peers(t), quit)
	for _, name := range d.registry.ChannelsOf(t) {
		_, _ = d.registry.PartChannel(name, t)
	}
}

func handlePing(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if len(msg.Params) < 1 || msg.Params[0] == "" {
		d.numeric(t, irc.ErrNoOrigin, "No origin specified")
		return
	}
	t.Send(irc.Command(d.host(), "PONG", d.host(), msg.Params[0]).WithTrailing())
}

// handlePong has nothing to do: the connection's reader counts every inbound
// line, PONG included, as proof of life for the keepalive.
func handlePong(*Dispatcher, *directory.Talker, irc.Message) {}

// handleError is a peer server announcing that it is dropping the link.
func handleError(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if t.Kind() != directory.KindServer {
		return
	}
	d.logger.Warn("Peer server sent ERROR", "server", t.Nick(), "message", msg.Param(0))
	d.Quit(t, "Link closed by peer")
}

func handleOper(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if len(msg.Params) < 2 {
		d.needMoreParams(t, msg.Command)
		return
	}
	want, ok := d.settings.OperatorPassword(msg.Params[0])
	if !ok || subtle.ConstantTimeCompare([]byte(want), []byte(msg.Params[1])) != 1 {
		d.logger.Warn("Failed OPER attempt", "nick", t.Nick(), "name", msg.Params[0])
		d.numeric(t, irc.ErrPasswdMismatch, "Password incorrect")
		return
	}
	t.SetOperator(true)
	d.logger.Info("Operator privileges granted", "nick", t.Nick(), "name", msg.Params[0])
	d.numeric(t, irc.RplYoureOper, "You are now an IRC operator")
}
