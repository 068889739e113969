// Package dispatch turns parsed protocol lines into registry changes and
// numeric replies. A Dispatcher never touches a transport: every reply is
// queued on a talker's output queue and written later by that talker's
// writer, so handlers never block on the network.
package dispatch

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Tyrowin/gochat-ircd/internal/directory"
	"github.com/Tyrowin/gochat-ircd/internal/irc"
	"github.com/Tyrowin/gochat-ircd/internal/metrics"
	"github.com/Tyrowin/gochat-ircd/internal/textfile"
)

// Version is reported by VERSION, TRACE and the welcome burst.
const Version = "gochat-1.0.0"

// Settings is the read-only server configuration consulted by handlers.
type Settings interface {
	Hostname() string
	ListenPort() string
	MOTDFile() string
	InfoFile() string
	ServerInfo() string
	OperatorPassword(name string) (string, bool)
}

type handlerFunc func(d *Dispatcher, t *directory.Talker, msg irc.Message)

type command struct {
	handle handlerFunc
	// registration commands are accepted before the talker is operational.
	registration bool
	operator     bool
	// disabled commands always answer with this numeric, in any state.
	disabled irc.Code
	// fromServer commands are accepted from peer servers.
	fromServer bool
}

// Dispatcher validates and executes commands for talkers of one server.
type Dispatcher struct {
	settings Settings
	registry *directory.Registry
	files    textfile.Provider
	metrics  *metrics.Collectors
	logger   *slog.Logger
	created  time.Time
	now      func() time.Time
	commands map[string]command
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithFiles sets the provider used for MOTD and INFO content.
func WithFiles(p textfile.Provider) Option {
	return func(d *Dispatcher) { d.files = p }
}

// WithMetrics records per-command counters.
func WithMetrics(m *metrics.Collectors) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock overrides the time source used by TIME and the welcome burst.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a Dispatcher bound to registry.
func New(settings Settings, registry *directory.Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		settings: settings,
		registry: registry,
		files:    textfile.Files{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "dispatch")
	d.created = d.now()
	d.commands = commandTable()
	return d
}

func commandTable() map[string]command {
	return map[string]command{
		"PASS":    {handle: handlePass, registration: true},
		"NICK":    {handle: handleNick, registration: true},
		"USER":    {handle: handleUser, registration: true},
		"SERVICE": {handle: handleService, registration: true},
		"SERVER":  {handle: handleServer, registration: true, fromServer: true},
		"QUIT":    {handle: handleQuit, registration: true, fromServer: true},
		"PING":    {handle: handlePing, registration: true, fromServer: true},
		"PONG":    {handle: handlePong, registration: true, fromServer: true},
		"ERROR":   {handle: handleError, fromServer: true},
		"OPER":    {handle: handleOper},
		"JOIN":    {handle: handleJoin},
		"PART":    {handle: handlePart},
		"PRIVMSG": {handle: handlePrivmsg},
		"NOTICE":  {handle: handleNotice},
		"MOTD":    {handle: handleMOTD},
		"INFO":    {handle: handleInfo},
		"LINKS":   {handle: handleLinks},
		"TRACE":   {handle: handleTrace, operator: true},
		"VERSION": {handle: handleVersion},
		"TIME":    {handle: handleTime},
		"LUSERS":  {handle: handleLusers},
		"SUMMON":  {disabled: irc.ErrSummonDisabled},
		"USERS":   {disabled: irc.ErrUsersDisabled},
	}
}

// Registry returns the registry the dispatcher operates on.
func (d *Dispatcher) Registry() *directory.Registry {
	return d.registry
}

// Dispatch parses and executes one raw line on behalf of t.
func (d *Dispatcher) Dispatch(t *directory.Talker, line string) {
	if t.Closed() {
		return
	}

	msg, err := irc.Parse(line)
	if errors.Is(err, irc.ErrEmptyLine) {
		return
	}
	if err != nil {
		d.logger.Debug("Unparseable line", "talker", t.Target(), "error", err)
		d.metrics.RecordCommand("MALFORMED")
		d.numeric(t, irc.ErrUnknownCommand, "*", "Unknown command")
		return
	}

	cmd, known := d.commands[msg.Command]
	if known {
		d.metrics.RecordCommand(msg.Command)
	} else {
		d.metrics.RecordCommand("UNKNOWN")
	}
	d.logger.Debug("Dispatching command", "talker", t.Target(), "command", msg.Command)

	if known && cmd.disabled != 0 {
		d.numeric(t, cmd.disabled, disabledText(msg.Command))
		return
	}

	if !t.Operational() && !(known && cmd.registration) {
		t.Send(irc.Numeric(d.host(), irc.ErrNotRegistered, "", "You have not registered"))
		return
	}

	if !known {
		d.numeric(t, irc.ErrUnknownCommand, msg.Command, "Unknown command")
		return
	}

	if t.Operational() && t.Kind() == directory.KindServer && !cmd.fromServer {
		d.logger.Debug("Ignoring client command from peer server", "server", t.Nick(), "command", msg.Command)
		return
	}

	if cmd.operator && !t.IsOperator() {
		d.numeric(t, irc.ErrNoPrivileges, "Permission Denied- You're not an IRC operator")
		return
	}

	cmd.handle(d, t, msg)
}

func disabledText(command string) string {
	return command + " has been disabled"
}

func (d *Dispatcher) host() string {
	return d.settings.Hostname()
}

// numeric queues a server numeric to t whose last parameter is free text.
func (d *Dispatcher) numeric(t *directory.Talker, code irc.Code, params ...string) {
	t.Send(irc.Numeric(d.host(), code, t.Target(), params...))
}

// numericArgs queues a numeric whose parameters are all plain tokens.
func (d *Dispatcher) numericArgs(t *directory.Talker, code irc.Code, params ...string) {
	t.Send(irc.Reply{Prefix: d.host(), Command: code.String(), Target: t.Target(), Params: params})
}

func (d *Dispatcher) needMoreParams(t *directory.Talker, command string) {
	d.numeric(t, irc.ErrNeedMoreParams, command, "Not enough parameters")
}

// relay queues r on every talker in to.
func relay(to []*directory.Talker, r irc.Reply) {
	for _, t := range to {
		t.Send(r)
	}
}

// isLocal reports whether a server mask or name designates this server.
func (d *Dispatcher) isLocal(target string) bool {
	return target == "" || irc.MatchMask(target, d.host())
}

func (d *Dispatcher) publishUserCount() {
	if d.metrics != nil {
		d.metrics.SetRegisteredUsers(d.registry.Counts().Users)
	}
}
