// Package session manages one conversation with one device: connecting over SSH,
// Telnet or NETCONF, running commands or RPCs, and releasing the transport exactly once.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/damianoneill/nocexec/errs"
	"github.com/damianoneill/nocexec/expect"
	"github.com/damianoneill/nocexec/netconf"
	"github.com/damianoneill/nocexec/transport"
	"github.com/google/uuid"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// State is the lifecycle state of a Session.
type State int

// Session states. A session moves Disconnected -> Connecting -> Connected, alternates
// between Connected and Executing, and ends Closing -> Closed. A failed connect goes
// straight to Closed.
const (
	Disconnected State = iota
	Connecting
	Connected
	Executing
	Closing
	Closed
)

func (s State) String() string {
	return [...]string{"Disconnected", "Connecting", "Connected", "Executing", "Closing", "Closed"}[s]
}

// teardownTimeout bounds the best-effort unlock and close-session on Close.
const teardownTimeout = 2 * time.Second

// Dialer opens the transport for a session.
type Dialer func(ctx context.Context, cfg *Config) (transport.Transport, error)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger; session fields are added to it.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) {
		s.baseLog = log
	}
}

// WithDialer replaces the protocol dialer.
func WithDialer(d Dialer) Option {
	return func(s *Session) {
		s.dial = d
	}
}

// Session is a connection to one device. Operations are serialised: an operation
// attempted while another is executing fails with *errs.StateError.
type Session struct {
	id      string
	cfg     *Config
	dial    Dialer
	baseLog logrus.FieldLogger
	log     logrus.FieldLogger

	mu     sync.Mutex
	state  State
	broken bool

	tport  transport.Transport
	engine *expect.Engine
	rpc    *netconf.Client

	closeOnce sync.Once
	closeErr  error

	banner []string
	prompt string
}

// New creates a Disconnected session.
func New(cfg *Config, opts ...Option) *Session {
	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultConfig)
	if len(resolved.Prompts) == 0 {
		resolved.Prompts = expect.DefaultShellPrompts
	}
	if resolved.Netconf.HelloTimeout == 0 {
		resolved.Netconf.HelloTimeout = resolved.ConnectTimeout
	}
	resolved.Netconf.Target = resolved.Address()

	s := &Session{
		id:      uuid.New().String(),
		cfg:     &resolved,
		dial:    dial,
		baseLog: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.baseLog.WithFields(logrus.Fields{
		"session":  s.id,
		"target":   resolved.Address(),
		"protocol": resolved.Protocol.String(),
	})
	return s
}

// Open creates a session and connects it.
func Open(ctx context.Context, cfg *Config, opts ...Option) (*Session, error) {
	s := New(cfg, opts...)
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// With opens a session, runs fn and closes the session however fn exits.
// fn's error takes precedence over a close error.
func With(ctx context.Context, cfg *Config, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Open(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

// ID returns the unique id of the session.
func (s *Session) ID() string { return s.id }

// Protocol returns the session protocol.
func (s *Session) Protocol() Protocol { return s.cfg.Protocol }

// Config returns the resolved session configuration.
func (s *Session) Config() Config { return *s.cfg }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Banner returns the lines received before the first shell prompt.
func (s *Session) Banner() []string { return s.banner }

// Prompt returns the shell prompt seen at login, e.g. "router#".
func (s *Session) Prompt() string { return s.prompt }

// Capabilities returns the NETCONF server capabilities.
func (s *Session) Capabilities() []string {
	if s.rpc == nil {
		return nil
	}
	return s.rpc.ServerCapabilities()
}

// HasPendingEdits reports whether NETCONF candidate edits await commit or discard.
func (s *Session) HasPendingEdits() bool {
	return s.rpc != nil && s.rpc.HasPendingEdits()
}

// Connect opens the transport and performs the login or hello exchange.
// Any failure leaves the session Closed with the transport released.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Disconnected {
		state := s.state
		s.mu.Unlock()
		return &errs.StateError{Op: "connect", State: state.String()}
	}
	s.state = Connecting
	s.mu.Unlock()

	s.log.Debug("connecting")
	tport, err := s.dial(ctx, s.cfg)
	if err != nil {
		s.setState(Closed)
		s.log.WithError(err).Error("connect failed")
		return err
	}

	s.mu.Lock()
	if s.state != Connecting {
		s.mu.Unlock()
		_ = tport.Close()
		return &errs.StateError{Op: "connect", State: Closed.String()}
	}
	s.tport = tport
	s.mu.Unlock()

	if err := s.handshake(ctx); err != nil {
		s.mu.Lock()
		s.broken = true
		s.mu.Unlock()
		s.release()
		s.setState(Closed)
		s.log.WithError(err).Error("connect failed")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connecting {
		return &errs.StateError{Op: "connect", State: s.state.String()}
	}
	s.state = Connected
	s.log.Info("connected")
	return nil
}

func (s *Session) handshake(ctx context.Context) error {
	if s.cfg.Protocol == NETCONF {
		s.rpc = netconf.NewClient(s.tport, &s.cfg.Netconf, netconf.WithLogger(s.log))
		if err := s.rpc.Handshake(ctx); err != nil {
			return err
		}
		if s.cfg.Exclusive {
			return s.rpc.Lock(ctx)
		}
		return nil
	}

	engine, err := expect.New(s.tport, &expect.Config{
		Terminator: s.cfg.Terminator,
		Timeout:    s.cfg.Timeout,
		Encoding:   s.cfg.Encoding,
		Target:     s.cfg.Address(),
	}, expect.WithLogger(s.log))
	if err != nil {
		return err
	}
	s.engine = engine

	res, err := expect.Login(ctx, engine, &expect.LoginConfig{
		Username:     s.cfg.Username,
		Password:     s.cfg.Password,
		SkipUsername: s.cfg.Protocol == SSH,
		Prompts:      s.cfg.Prompts,
		Timeout:      s.cfg.ConnectTimeout,
	})
	if err != nil {
		return err
	}
	s.banner = res.Lines
	if n := len(res.Lines); n > 0 {
		s.banner, s.prompt = res.Lines[:n-1], res.Lines[n-1]
	}
	s.prompt = strings.TrimSpace(s.prompt + res.Match)
	return nil
}

// Execute sends command and collects its output until one of wait matches. With no
// patterns it returns after a quiet period. A zero timeout uses the configured default.
// A timeout leaves the session usable; a lost connection closes it.
func (s *Session) Execute(ctx context.Context, command string, wait []expect.Pattern, timeout time.Duration) (res *expect.Result, err error) {
	if err := s.begin("execute", SSH, Telnet); err != nil {
		return nil, err
	}
	defer func() { s.end(err) }()
	return s.engine.Execute(ctx, &expect.Request{Command: command, Patterns: wait, Timeout: timeout})
}

// ExecuteSecret is Execute for a password or enable secret: the value is not logged.
func (s *Session) ExecuteSecret(ctx context.Context, secret string, wait []expect.Pattern, timeout time.Duration) (res *expect.Result, err error) {
	if err := s.begin("execute", SSH, Telnet); err != nil {
		return nil, err
	}
	defer func() { s.end(err) }()
	return s.engine.Execute(ctx, &expect.Request{Command: secret, Patterns: wait, Timeout: timeout, Secret: true})
}

// Expect waits for one of patterns without sending anything.
func (s *Session) Expect(ctx context.Context, wait []expect.Pattern, timeout time.Duration) (res *expect.Result, err error) {
	if err := s.begin("expect", SSH, Telnet); err != nil {
		return nil, err
	}
	defer func() { s.end(err) }()
	return s.engine.Expect(ctx, wait, timeout)
}

// Send writes command and the line terminator without waiting for output.
func (s *Session) Send(command string) (err error) {
	if err := s.begin("send", SSH, Telnet); err != nil {
		return err
	}
	defer func() { s.end(err) }()
	return s.engine.SendLine(command)
}

// View runs a read-only NETCONF query; see netconf.Client.View.
func (s *Session) View(ctx context.Context, query string) (reply *netconf.Reply, err error) {
	if err := s.begin("view", NETCONF); err != nil {
		return nil, err
	}
	defer func() { s.end(err) }()
	return s.rpc.View(ctx, query)
}

// Command runs an operational command over NETCONF with output in format.
func (s *Session) Command(ctx context.Context, command, format string) (reply *netconf.Reply, err error) {
	if err := s.begin("command", NETCONF); err != nil {
		return nil, err
	}
	defer func() { s.end(err) }()
	return s.rpc.Command(ctx, command, format)
}

// Edit loads configuration into the candidate datastore.
func (s *Session) Edit(ctx context.Context, config string) (reply *netconf.Reply, err error) {
	if err := s.begin("edit", NETCONF); err != nil {
		return nil, err
	}
	defer func() { s.end(err) }()
	return s.rpc.Edit(ctx, config)
}

// Validate validates the candidate datastore.
func (s *Session) Validate(ctx context.Context) (err error) {
	if err := s.begin("validate", NETCONF); err != nil {
		return err
	}
	defer func() { s.end(err) }()
	return s.rpc.Validate(ctx)
}

// Compare returns the pending candidate diff; changed is false when nothing was edited.
func (s *Session) Compare(ctx context.Context) (diff string, changed bool, err error) {
	if err := s.begin("compare", NETCONF); err != nil {
		return "", false, err
	}
	defer func() { s.end(err) }()
	return s.rpc.Compare(ctx)
}

// Commit commits the candidate datastore.
func (s *Session) Commit(ctx context.Context) (err error) {
	if err := s.begin("commit", NETCONF); err != nil {
		return err
	}
	defer func() { s.end(err) }()
	return s.rpc.Commit(ctx)
}

// Discard discards candidate edits.
func (s *Session) Discard(ctx context.Context) (err error) {
	if err := s.begin("discard", NETCONF); err != nil {
		return err
	}
	defer func() { s.end(err) }()
	return s.rpc.Discard(ctx)
}

// Lock locks the candidate datastore.
func (s *Session) Lock(ctx context.Context) (err error) {
	if err := s.begin("lock", NETCONF); err != nil {
		return err
	}
	defer func() { s.end(err) }()
	return s.rpc.Lock(ctx)
}

// Unlock unlocks the candidate datastore.
func (s *Session) Unlock(ctx context.Context) (err error) {
	if err := s.begin("unlock", NETCONF); err != nil {
		return err
	}
	defer func() { s.end(err) }()
	return s.rpc.Unlock(ctx)
}

// Close releases the session. It is idempotent and safe to call from any state;
// only the first call does any work.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == Closing || s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	graceful := s.state == Connected && !s.broken
	s.state = Closing
	s.mu.Unlock()

	if graceful && s.rpc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		if err := s.rpc.Unlock(ctx); err != nil {
			s.log.WithError(err).Warn("unlock on close failed")
		}
		if err := s.rpc.CloseSession(ctx); err != nil {
			s.log.WithError(err).Debug("close-session failed")
		}
		cancel()
	}
	s.release()
	s.setState(Closed)
	s.log.Info("closed")
	return s.closeErr
}

// release frees the transport exactly once.
func (s *Session) release() {
	s.closeOnce.Do(func() {
		if s.rpc != nil {
			s.rpc.Close()
		}
		if s.engine != nil {
			s.engine.Close()
		}
		s.mu.Lock()
		tport := s.tport
		s.mu.Unlock()
		if tport != nil {
			s.closeErr = tport.Close()
		}
	})
}

func (s *Session) begin(op string, protocols ...Protocol) error {
	supported := false
	for _, p := range protocols {
		supported = supported || p == s.cfg.Protocol
	}
	if !supported {
		return errors.Wrapf(errs.ErrNotSupported, "%s over %s", op, s.cfg.Protocol)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Connected {
		return &errs.StateError{Op: op, State: s.state.String()}
	}
	s.state = Executing
	return nil
}

func (s *Session) end(err error) {
	if errs.IsFatal(err) {
		s.log.WithError(err).Error("session lost")
		s.mu.Lock()
		s.broken = true
		s.mu.Unlock()
		_ = s.Close()
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Executing {
		s.state = Connected
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
