package dispatch

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/irc"
	"github.com/Tyrowin/gochat-ircd/internal/textfile"
)

func (d *Dispatcher) noSuchServer(t *directory.Talker, name string) {
	d.numeric(t, irc.ErrNoSuchServer, name, "No such server")
}

// handleMOTD replies 375, one 372 per file line and 376, or 422 when the
// file is not available.
func handleMOTD(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if target := msg.Param(0); !d.isLocal(target) {
		d.noSuchServer(t, target)
		return
	}
	lines, err := d.files.Lines(d.settings.MOTDFile())
	if err != nil {
		if !errors.Is(err, textfile.ErrAbsent) {
			d.logger.Warn("Reading MOTD failed", "error", err)
		}
		d.numeric(t, irc.ErrNoMOTD, "MOTD File is missing")
		return
	}
	d.numeric(t, irc.RplMOTDStart, "- "+d.host()+" Message of the day - ")
	for line := range lines {
		d.numeric(t, irc.RplMOTD, "- "+line)
	}
	d.numeric(t, irc.RplEndOfMOTD, "End of MOTD command")
}

// handleInfo replies one 371 per line of the info file, or a built-in
// description when there is none, followed by 374.
func handleInfo(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if target := msg.Param(0); !d.isLocal(target) {
		d.noSuchServer(t, target)
		return
	}
	if lines, err := d.files.Lines(d.settings.InfoFile()); err == nil {
		for line := range lines {
			d.numeric(t, irc.RplInfo, line)
		}
	} else {
		for _, line := range d.builtinInfo() {
			d.numeric(t, irc.RplInfo, line)
		}
	}
	d.numeric(t, irc.RplEndOfInfo, "End of INFO list")
}

func (d *Dispatcher) builtinInfo() []string {
	return []string{
		Version + " - " + d.settings.ServerInfo(),
		"Server " + d.host() + " listening on " + d.settings.ListenPort(),
		"On-line since " + d.created.Format("Mon Jan 2 15:04:05 2006"),
	}
}

// handleLinks lists known servers matching a mask:
// LINKS [[<remote server>] <server mask>]
func handleLinks(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	var remote, mask string
	switch len(msg.Params) {
	case 0:
	case 1:
		mask = msg.Params[0]
	default:
		remote, mask = msg.Params[0], msg.Params[1]
	}

	servers := d.registry.Servers()
	if remote != "" && !d.isLocal(remote) && !anyMatch(servers, remote) {
		d.noSuchServer(t, remote)
		return
	}

	var matched []*directory.Talker
	for _, s := range servers {
		if irc.MatchMask(mask, s.Nick()) {
			matched = append(matched, s)
		}
	}
	if mask != "" && len(matched) == 0 {
		d.noSuchServer(t, mask)
		return
	}

	for _, s := range matched {
		info := s.Server()
		uplink := d.host()
		if info.Uplink != nil {
			uplink = info.Uplink.Nick()
		}
		d.numeric(t, irc.RplLinks, s.Nick(), uplink, strconv.Itoa(info.Hopcount)+" "+info.Info)
	}
	endMask := mask
	if endMask == "" {
		endMask = "*"
	}
	d.numeric(t, irc.RplEndOfLinks, endMask, "End of LINKS list")
}

func anyMatch(servers []*directory.Talker, mask string) bool {
	for _, s := range servers {
		if irc.MatchMask(mask, s.Nick()) {
			return true
		}
	}
	return false
}

// handleTrace reports local connections (operators only):
// TRACE [<target>]
func handleTrace(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	target := msg.Param(0)
	host := d.host()

	switch {
	case d.isLocal(target):
		for _, c := range d.registry.Connections() {
			d.traceLine(t, c.Talker())
		}
	default:
		if u, ok := d.registry.LookupUser(target); ok {
			d.traceLine(t, u)
			break
		}
		if s, ok := d.registry.LookupServer(target); ok {
			next := s.Nick()
			if up := s.Server().Uplink; up != nil {
				next = up.Nick()
			}
			d.numericArgs(t, irc.RplTraceLink, "Link", Version, s.Nick(), next)
			break
		}
		d.noSuchServer(t, target)
		return
	}
	d.numeric(t, irc.RplTraceEnd, host, Version, "End of TRACE")
}

const traceClass = "1"

func (d *Dispatcher) traceLine(to, subject *directory.Talker) {
	if subject.Closed() {
		return
	}
	switch {
	case subject.State() == directory.StateUnregistered:
		addr := "*"
		if c := subject.Conn(); c != nil {
			addr = c.Host()
		}
		d.numericArgs(to, irc.RplTraceUnknown, "????", traceClass, addr)
	case subject.Kind() == directory.KindServer:
		host := "*"
		if c := subject.Conn(); c != nil {
			host = c.Host()
		}
		users := d.registry.Counts().Users
		d.numericArgs(to, irc.RplTraceServer, "Serv", traceClass, "0S",
			fmt.Sprintf("%dC", users), subject.Nick(), "*!*@"+host)
	case subject.Kind() == directory.KindService:
		svc := subject.Service()
		d.numericArgs(to, irc.RplTraceService, "Service", traceClass, subject.Nick(), svc.Type, svc.Distribution)
	case subject.IsOperator():
		d.numericArgs(to, irc.RplTraceOperator, "Oper", traceClass, subject.Nick())
	default:
		d.numericArgs(to, irc.RplTraceUser, "User", traceClass, subject.Nick())
	}
}

func handleVersion(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if target := msg.Param(0); !d.isLocal(target) {
		d.noSuchServer(t, target)
		return
	}
	d.numeric(t, irc.RplVersion, Version+".", d.host(), d.settings.ServerInfo())
}

func handleTime(d *Dispatcher, t *directory.Talker, msg irc.Message) {
	if target := msg.Param(0); !d.isLocal(target) {
		d.noSuchServer(t, target)
		return
	}
	d.numeric(t, irc.RplTime, d.host(), d.now().Format("Monday January 2 2006 -- 15:04:05 -07:00"))
}

func handleLusers(d *Dispatcher, t *directory.Talker, _ irc.Message) {
	c := d.registry.Counts()
	d.numeric(t, irc.RplLUserClient, fmt.Sprintf("There are %d users and %d services on %d servers",
		c.Users, c.Services, c.Servers+1))
	d.numeric(t, irc.RplLUserOp, strconv.Itoa(c.Operators), "operator(s) online")
	d.numeric(t, irc.RplLUserChannels, strconv.Itoa(c.Channels), "channels formed")
	d.numeric(t, irc.RplLUserMe, fmt.Sprintf("I have %d clients and %d servers", c.Users+c.Services, c.Servers))
}
