// Package driver adapts vendor CLIs and RPC sets to a common device interface.
// Drivers hold no state machine of their own; they choose the commands and wait
// patterns passed to a session.
package driver

//go:generate mockgen -destination=mocks/mock_session.go -package=mocks github.com/damianoneill/nocexec/driver Shell,RPC

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/damianoneill/nocexec/expect"
	"github.com/damianoneill/nocexec/netconf"
	"github.com/damianoneill/nocexec/session"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Driver is a connection to one device of a known vendor.
type Driver interface {
	// Connect opens the session and prepares the device CLI.
	Connect(ctx context.Context) error
	// View runs a read-only command and returns its output lines.
	View(ctx context.Context, command string) ([]string, error)
	// Edit runs a configuration command and returns its output lines.
	Edit(ctx context.Context, command string) ([]string, error)
	// Save persists the configuration.
	Save(ctx context.Context) error
	// Hostname returns the device name learned on connect, or the configured host.
	Hostname() string
	Close() error
}

// Shell is the part of a session used by CLI drivers.
type Shell interface {
	Execute(ctx context.Context, command string, wait []expect.Pattern, timeout time.Duration) (*expect.Result, error)
	// ExecuteSecret is Execute for credentials, which are kept out of the logs.
	ExecuteSecret(ctx context.Context, secret string, wait []expect.Pattern, timeout time.Duration) (*expect.Result, error)
	Prompt() string
	Close() error
}

// RPC is the part of a session used by NETCONF drivers.
type RPC interface {
	Command(ctx context.Context, command, format string) (*netconf.Reply, error)
	Edit(ctx context.Context, config string) (*netconf.Reply, error)
	Validate(ctx context.Context) error
	Compare(ctx context.Context) (diff string, changed bool, err error)
	Commit(ctx context.Context) error
	Discard(ctx context.Context) error
	HasPendingEdits() bool
	Close() error
}

// CommandError reports a command the device rejected.
type CommandError struct {
	Driver  string
	Command string
	Output  []string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: command %q failed", e.Driver, e.Command)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Output) > 0 {
		msg += ": " + strings.Join(e.Output, " | ")
	}
	return msg
}

func (e *CommandError) Unwrap() error { return e.Err }

// ErrNotConnected is returned by operations on a driver that has no session.
var ErrNotConnected = errors.New("no connection to the device")

type options struct {
	log          logrus.FieldLogger
	enableSecret string
	openShell    func(ctx context.Context, cfg *session.Config) (Shell, error)
	openRPC      func(ctx context.Context, cfg *session.Config) (RPC, error)
}

// Option configures a driver.
type Option func(*options)

// WithLogger sets the driver and session logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithEnableSecret sets the password answered to a privileged mode prompt.
func WithEnableSecret(secret string) Option {
	return func(o *options) {
		o.enableSecret = secret
	}
}

// WithShellOpener replaces how CLI drivers open their session.
func WithShellOpener(open func(ctx context.Context, cfg *session.Config) (Shell, error)) Option {
	return func(o *options) {
		o.openShell = open
	}
}

// WithRPCOpener replaces how NETCONF drivers open their session.
func WithRPCOpener(open func(ctx context.Context, cfg *session.Config) (RPC, error)) Option {
	return func(o *options) {
		o.openRPC = open
	}
}

func newOptions(name string, opts []Option) *options {
	o := &options{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.WithField("driver", name)
	if o.openShell == nil {
		o.openShell = func(ctx context.Context, cfg *session.Config) (Shell, error) {
			s, err := session.Open(ctx, cfg, session.WithLogger(o.log))
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	if o.openRPC == nil {
		o.openRPC = func(ctx context.Context, cfg *session.Config) (RPC, error) {
			s, err := session.Open(ctx, cfg, session.WithLogger(o.log))
			if err != nil {
				return nil, err
			}
			return s, nil
		}
	}
	return o
}

// Factory creates a driver for a device.
type Factory func(cfg *session.Config, opts ...Option) (Driver, error)

var registry = map[string]Factory{
	CiscoIOS:     func(cfg *session.Config, opts ...Option) (Driver, error) { return NewIOS(cfg, opts...) },
	ExtremeXOS:   func(cfg *session.Config, opts ...Option) (Driver, error) { return NewXOS(cfg, opts...) },
	JuniperJunOS: func(cfg *session.Config, opts ...Option) (Driver, error) { return NewJunOS(cfg, opts...) },
}

// New creates the driver registered under name.
func New(name string, cfg *session.Config, opts ...Option) (Driver, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("driver %q not found, available drivers: %s", name, strings.Join(Names(), ", "))
	}
	return factory(cfg, opts...)
}

// Names returns the registered driver names in order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// checkProtocol rejects a protocol the driver cannot speak.
func checkProtocol(name string, cfg *session.Config, supported ...session.Protocol) error {
	if cfg == nil {
		return errors.Errorf("%s: missing device configuration", name)
	}
	names := make([]string, len(supported))
	for i, p := range supported {
		if p == cfg.Protocol {
			return nil
		}
		names[i] = p.String()
	}
	return errors.Errorf("'%s' protocol is not supported by the '%s' driver. Supported protocols: %s",
		cfg.Protocol, name, strings.Join(names, ", "))
}

// commandTimeout derives a command timeout from the context deadline; zero selects
// the session default.
func commandTimeout(ctx context.Context) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			return d
		}
	}
	return 0
}

func closeShell(s Shell) error {
	if s == nil {
		return nil
	}
	return s.Close()
}
