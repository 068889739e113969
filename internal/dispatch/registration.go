package dispatch

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/irc"
)

func handlePass(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if t.Operational() {
		d.numeric(t, irc.ErrAlreadyRegistered, "Unauthorized command (already registered)")
		return
	}
	if len(msg.Params) < 1 {
		d.needMoreParams(t, msg.Command)
		return
	}
	t.SetPassword(msg.Params[0])
}

func handleNick(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if len(msg.Params) < 1 || msg.Params[0] == "" {
		d.numeric(t, irc.ErrNoNicknameGiven, "No nickname given")
		return
	}
	nick := msg.Params[0]
	if !irc.ValidNickname(nick) {
		d.numeric(t, irc.ErrErroneusNickname, nick, "Erroneous nickname")
		return
	}

	if !t.Operational() {
		if d.registry.NicknameInUse(nick) {
			d.numeric(t, irc.ErrNicknameInUse, nick, "Nickname is already in use")
			return
		}
		t.SetNick(nick)
		d.completeUserRegistration(t)
		return
	}

	if t.Kind() != directory.KindUser {
		d.numeric(t, irc.ErrAlreadyRegistered, "Unauthorized command (already registered)")
		return
	}
	if t.Nick() == nick {
		return
	}
	oldPrefix := t.Prefix()
	if err := d.registry.Rename(t, nick); err != nil {
		if errors.Is(err, directory.ErrDuplicateIdentity) {
			d.numeric(t, irc.ErrNicknameInUse, nick, "Nickname is already in use")
			return
		}
		d.logger.Warn("Nickname change failed", "nick", nick, "error", err)
		return
	}
	change := irc.Command(oldPrefix, "NICK", nick).WithTrailing()
	t.Send(change)
	relay(d.registry.Peers(t), change)
}

func handleUser(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if t.Operational() || t.HasUser() {
		d.numeric(t, irc.ErrAlreadyRegistered, "Unauthorized command (already registered)")
		return
	}
	if len(msg.Params) < 4 || msg.Params[0] == "" {
		d.needMoreParams(t, msg.Command)
		return
	}
	host := "localhost"
	if c := t.Conn(); c != nil {
		host = c.Host()
	}
	t.SetUser(directory.UserInfo{
		Username: msg.Params[0],
		Hostname: host,
		Realname: msg.Params[3],
	})
	d.completeUserRegistration(t)
}

// completeUserRegistration publishes t once both NICK and USER are known.
func (d *Dispatcher) completeUserRegistration(t *directory.Talker) {
	nick := t.Nick()
	if nick == "" || !t.HasUser() {
		return
	}
	if err := d.registry.RegisterUser(t); err != nil {
		if errors.Is(err, directory.ErrDuplicateIdentity) {
			d.numeric(t, irc.ErrNicknameInUse, nick, "Nickname is already in use")
			return
		}
		d.logger.Warn("User registration failed", "nick", nick, "error", err)
		return
	}
	d.logger.Info("User registered", "nick", nick, "prefix", t.Prefix())
	d.publishUserCount()
	d.welcome(t)
}

func (d *Dispatcher) welcome(t *directory.Talker) {
	host := d.host()
	d.numeric(t, irc.RplWelcome, "Welcome to the Internet Relay Network "+t.Prefix())
	d.numeric(t, irc.RplYourHost, fmt.Sprintf("Your host is %s, running version %s", host, Version))
	d.numeric(t, irc.RplCreated, "This server was created "+d.created.Format("Mon Jan 2 2006 at 15:04:05 MST"))
	d.numericArgs(t, irc.RplMyInfo, host, Version, "o", "o")
}

// handleService registers a service:
// SERVICE <nickname> <reserved> <distribution> <type> <reserved> :<info>
func handleService(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if t.Operational() || t.HasUser() {
		d.numeric(t, irc.ErrAlreadyRegistered, "Unauthorized command (already registered)")
		return
	}
	if len(msg.Params) < 6 {
		d.needMoreParams(t, msg.Command)
		return
	}
	name := msg.Params[0]
	if !irc.ValidNickname(name) {
		d.numeric(t, irc.ErrErroneusNickname, name, "Erroneous nickname")
		return
	}
	t.SetNick(name)
	t.SetService(directory.ServiceInfo{
		Distribution: msg.Params[2],
		Type:         msg.Params[3],
		Info:         msg.Params[5],
	})
	if err := d.registry.RegisterService(t); err != nil {
		t.SetNick("")
		d.numeric(t, irc.ErrNicknameInUse, name, "Nickname is already in use")
		return
	}
	d.logger.Info("Service registered", "service", name)
	d.numeric(t, irc.RplYoureService, "You are service "+name)
}

// handleServer accepts a peer link from an unregistered connection, or a
// remote server introduced by an established peer:
// SERVER <servername> <hopcount> :<info>
func handleServer(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if t.Operational() && t.Kind() != directory.KindServer {
		d.numeric(t, irc.ErrAlreadyRegistered, "Unauthorized command (already registered)")
		return
	}
	if len(msg.Params) < 2 {
		d.needMoreParams(t, msg.Command)
		return
	}
	name := msg.Params[0]
	info := msg.Params[len(msg.Params)-1]
	hopcount := 1
	if len(msg.Params) > 2 {
		if n, err := strconv.Atoi(msg.Params[1]); err == nil && n > 0 {
			hopcount = n
		}
	}

	if !irc.ValidServerName(name) {
		d.closeLink(t, fmt.Sprintf("Bogus server name %q", name))
		return
	}

	if t.Operational() {
		if hopcount <= t.Server().Hopcount {
			hopcount = t.Server().Hopcount + 1
		}
		remote := directory.NewRemoteServer(name, hopcount, info, t)
		if err := d.registry.RegisterServer(remote); err != nil {
			d.closeLink(t, fmt.Sprintf("ID %q already registered", name))
			return
		}
		d.logger.Info("Remote server introduced", "server", name, "uplink", t.Nick(), "hopcount", hopcount)
		return
	}

	if t.HasUser() || t.Nick() != "" {
		d.numeric(t, irc.ErrAlreadyRegistered, "Unauthorized command (already registered)")
		return
	}
	t.SetNick(name)
	t.SetServer(directory.ServerInfo{Hopcount: 1, Info: info})
	if err := d.registry.RegisterServer(t); err != nil {
		d.closeLink(t, fmt.Sprintf("ID %q already registered", name))
		return
	}
	d.logger.Info("Peer server linked", "server", name)
	t.Send(irc.Command(d.host(), "SERVER", d.host(), "1", d.settings.ServerInfo()).WithTrailing())
}

// closeLink sends ERROR and closes the talker without a QUIT broadcast; used
// for link-level rejections.
func (d *Dispatcher) closeLink(t *directory.Talker, reason string) {
	t.Send(irc.Command(d.host(), "ERROR", "Closing Link: "+t.Target()+" ("+reason+")").WithTrailing())
	t.Close()
}
