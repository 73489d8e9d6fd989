package transport

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// SSHConfig controls how the SSH channel is set up once the connection is authenticated.
type SSHConfig struct {
	// Subsystem, when set, requests the named subsystem instead of an interactive shell.
	Subsystem string
	// TerminalType, TerminalWidth and TerminalHeight describe the pty requested for a shell.
	TerminalType   string
	TerminalWidth  int
	TerminalHeight int
}

// DefaultSSHConfig defines the default pty used for interactive shells.
var DefaultSSHConfig = SSHConfig{
	TerminalType:   "dumb",
	TerminalWidth:  511,
	TerminalHeight: 24,
}

type sshTransport struct {
	stdout  io.Reader
	stdin   io.WriteCloser
	session *ssh.Session
	client  *ssh.Client
}

// NewSSHTransport connects to the target with the supplied client configuration and opens
// either an interactive shell on a pty or, when cfg.Subsystem is set, the named subsystem.
// Authentication failures are reported as *errs.AuthenticationError, all other failures
// as *errs.ConnectionError.
func NewSSHTransport(ctx context.Context, clientConfig *ssh.ClientConfig, target string, cfg *SSHConfig) (rt Transport, err error) {
	resolved := SSHConfig{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultSSHConfig)

	trace := ContextClientTrace(ctx)
	trace.DialStart(target)
	defer func(begin time.Time) {
		trace.DialDone(target, err, time.Since(begin))
		if err != nil {
			trace.Error("ssh connect", target, err)
		}
	}(time.Now())

	t := &sshTransport{}
	if t.client, err = dialSSH(ctx, clientConfig, target); err != nil {
		return nil, err
	}
	if err = t.open(&resolved); err != nil {
		_ = t.Close()
		return nil, classify(target, clientConfig.User, err)
	}
	return withTrace(t, target, trace), nil
}

// NewNetconfTransport connects to the target and requests the "netconf" subsystem.
func NewNetconfTransport(ctx context.Context, clientConfig *ssh.ClientConfig, target string) (Transport, error) {
	return NewSSHTransport(ctx, clientConfig, target, &SSHConfig{Subsystem: "netconf"})
}

// open starts a session on the client and attaches it to the subsystem or a shell.
func (t *sshTransport) open(cfg *SSHConfig) (err error) {
	if t.session, err = t.client.NewSession(); err != nil {
		return errors.Wrap(err, "new ssh session failed")
	}
	if t.stdout, err = t.session.StdoutPipe(); err != nil {
		return err
	}
	if t.stdin, err = t.session.StdinPipe(); err != nil {
		return err
	}

	if cfg.Subsystem != "" {
		return errors.Wrapf(t.session.RequestSubsystem(cfg.Subsystem), "request subsystem %s failed", cfg.Subsystem)
	}
	// Devices echo commands themselves; a pty echo would double them.
	modes := ssh.TerminalModes{ssh.ECHO: 0}
	if err = t.session.RequestPty(cfg.TerminalType, cfg.TerminalHeight, cfg.TerminalWidth, modes); err != nil {
		return errors.Wrap(err, "request pty failed")
	}
	return errors.Wrap(t.session.Shell(), "login shell failed")
}

func dialSSH(ctx context.Context, clientConfig *ssh.ClientConfig, target string) (*ssh.Client, error) {
	dialer := &net.Dialer{Timeout: clientConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, classify(target, clientConfig.User, err)
	}
	// The handshake honours the context deadline; the established connection has none.
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, target, clientConfig)
	if err != nil {
		_ = conn.Close()
		return nil, classify(target, clientConfig.User, err)
	}
	_ = conn.SetDeadline(time.Time{})
	return ssh.NewClient(c, chans, reqs), nil
}

func (t *sshTransport) Read(p []byte) (int, error) {
	return t.stdout.Read(p)
}

func (t *sshTransport) Write(p []byte) (int, error) {
	return t.stdin.Write(p)
}

// Close releases stdin, the session and the client, in that order. The first
// failure is returned; io.EOF from an already closed channel is not a failure.
func (t *sshTransport) Close() error {
	var failures []error
	if t.stdin != nil {
		failures = append(failures, t.stdin.Close())
	}
	if t.session != nil {
		failures = append(failures, t.session.Close())
	}
	if t.client != nil {
		failures = append(failures, t.client.Close())
	}
	for _, err := range failures {
		if err != nil && err != io.EOF {
			return err
		}
	}
	return nil
}
