package dispatch

import (
	"errors"
	"strings"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/irc"
)

func handleJoin(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if len(msg.Params) < 1 {
		d.needMoreParams(t, msg.Command)
		return
	}
	if msg.Params[0] == "0" {
		for _, name := range d.registry.ChannelsOf(t) {
			d.part(t, name, "")
		}
		return
	}

	for _, name := range strings.Split(msg.Params[0], ",") {
		if !irc.ValidChannel(name) {
			d.numeric(t, irc.ErrNoSuchChannel, name, "No such channel")
			continue
		}
		ch, joined, err := d.registry.JoinChannel(name, t)
		if err != nil {
			// Torn down while this line was being dispatched.
			d.logger.Debug("Join refused", "talker", t.Target(), "channel", name, "error", err)
			return
		}
		if !joined {
			continue
		}
		members := d.registry.Members(ch)
		relay(members, irc.Command(t.Prefix(), "JOIN", ch.Name()))
		d.names(t, ch, members)
	}
}

func (d *Dispatcher) names(t *directory.Talker, ch *directory.Channel, members []*directory.Talker) {
	nicks := make([]string, 0, len(members))
	for _, m := range members {
		nick := m.Nick()
		if m.IsOperator() {
			nick = "@" + nick
		}
		nicks = append(nicks, nick)
	}
	d.numeric(t, irc.RplNamReply, "=", ch.Name(), strings.Join(nicks, " "))
	d.numeric(t, irc.RplEndOfNames, ch.Name(), "End of NAMES list")
}

func handlePart(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if len(msg.Params) < 1 {
		d.needMoreParams(t, msg.Command)
		return
	}
	for _, name := range strings.Split(msg.Params[0], ",") {
		d.part(t, name, msg.Param(1))
	}
}

func (d *Dispatcher) part(t *directory.Talker, name, reason string) {
	ch, ok := d.registry.LookupChannel(name)
	if !ok {
		d.numeric(t, irc.ErrNoSuchChannel, name, "No such channel")
		return
	}
	members := d.registry.Members(ch)
	if _, err := d.registry.PartChannel(name, t); err != nil {
		if errors.Is(err, directory.ErrNotOnChannel) {
			d.numeric(t, irc.ErrNotOnChannel, ch.Name(), "You're not on that channel")
		} else {
			d.numeric(t, irc.ErrNoSuchChannel, name, "No such channel")
		}
		return
	}
	notice := irc.Command(t.Prefix(), "PART", ch.Name())
	if reason != "" {
		notice = irc.Command(t.Prefix(), "PART", ch.Name(), reason).WithTrailing()
	}
	relay(members, notice)
}

func handlePrivmsg(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	d.deliver(t, msg, true)
}

func handleNotice(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	d.deliver(t, msg, false)
}

// deliver sends PRIVMSG or NOTICE text to channels and nicknames. NOTICE never
// generates error replies.
func (d *Dispatcher) deliver(t *directory.Talker, msg irc.Message, errorsAllowed bool) {
	fail := func(code irc.Code, params ...string) {
		if errorsAllowed {
			d.numeric(t, code, params...)
		}
	}
	if len(msg.Params) < 1 || msg.Params[0] == "" {
		fail(irc.ErrNoRecipient, "No recipient given ("+msg.Command+")")
		return
	}
	if len(msg.Params) < 2 || msg.Params[1] == "" {
		fail(irc.ErrNoTextToSend, "No text to send")
		return
	}
	text := msg.Params[1]

	for _, target := range strings.Split(msg.Params[0], ",") {
		if irc.ValidChannel(target) {
			ch, ok := d.registry.LookupChannel(target)
			if !ok {
				fail(irc.ErrNoSuchChannel, target, "No such channel")
				continue
			}
			if !d.registry.IsMember(ch, t) {
				fail(irc.ErrCannotSendToChan, ch.Name(), "Cannot send to channel")
				continue
			}
			out := irc.Command(t.Prefix(), msg.Command, ch.Name(), text).WithTrailing()
			for _, m := range d.registry.Members(ch) {
				if m != t {
					m.Send(out)
				}
			}
			continue
		}

		to, ok := d.registry.LookupUser(target)
		if !ok {
			to, ok = d.registry.LookupService(target)
		}
		if !ok {
			fail(irc.ErrNoSuchNick, target, "No such nick/channel")
			continue
		}
		to.Send(irc.Command(t.Prefix(), msg.Command, to.Nick(), text).WithTrailing())
	}
}
