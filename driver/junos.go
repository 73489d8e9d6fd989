package driver

import (
	"context"

	"github.com/damianoneill/nocexec/expect"
	"github.com/damianoneill/nocexec/netconf"
	"github.com/damianoneill/nocexec/session"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// JunOS drives Juniper devices over NETCONF. The candidate datastore is locked for
// the lifetime of the connection.
type JunOS struct {
	cfg  *session.Config
	opts *options
	log  logrus.FieldLogger

	rpc RPC
}

// NewJunOS creates a Juniper JunOS driver.
func NewJunOS(cfg *session.Config, opts ...Option) (*JunOS, error) {
	if err := checkProtocol(JuniperJunOS, cfg, session.NETCONF); err != nil {
		return nil, err
	}
	o := newOptions(JuniperJunOS, opts)
	c := *cfg
	c.Exclusive = true
	return &JunOS{cfg: &c, opts: o, log: o.log}, nil
}

// Connect opens the NETCONF session and locks the candidate configuration.
func (d *JunOS) Connect(ctx context.Context) error {
	rpc, err := d.opts.openRPC(ctx, d.cfg)
	if err != nil {
		return errors.Wrap(err, JuniperJunOS)
	}
	d.rpc = rpc
	return nil
}

// Hostname returns the configured host.
func (d *JunOS) Hostname() string { return d.cfg.Host }

// View runs an operational command and returns its text output.
func (d *JunOS) View(ctx context.Context, command string) ([]string, error) {
	reply, err := d.command(ctx, command, netconf.FormatText)
	if err != nil {
		return nil, err
	}
	return expect.SplitLines(reply.Text()), nil
}

// ViewXML runs an operational command and returns the XML reply.
func (d *JunOS) ViewXML(ctx context.Context, command string) (*netconf.Reply, error) {
	return d.command(ctx, command, netconf.FormatXML)
}

func (d *JunOS) command(ctx context.Context, command, format string) (*netconf.Reply, error) {
	if d.rpc == nil {
		return nil, ErrNotConnected
	}
	reply, err := d.rpc.Command(ctx, command, format)
	if err != nil {
		return nil, &CommandError{Driver: JuniperJunOS, Command: command, Err: err}
	}
	return reply, nil
}

// Edit loads a set command, or an XML configuration, into the candidate.
func (d *JunOS) Edit(ctx context.Context, command string) ([]string, error) {
	if d.rpc == nil {
		return nil, ErrNotConnected
	}
	reply, err := d.rpc.Edit(ctx, command)
	if err != nil {
		return nil, &CommandError{Driver: JuniperJunOS, Command: command, Err: err}
	}
	return expect.SplitLines(reply.Text()), nil
}

// Save validates the candidate and commits it when it differs from the running
// configuration. Without pending edits nothing is sent.
func (d *JunOS) Save(ctx context.Context) error {
	if d.rpc == nil {
		return ErrNotConnected
	}
	if !d.rpc.HasPendingEdits() {
		return nil
	}
	if err := d.rpc.Validate(ctx); err != nil {
		d.log.WithError(err).Error("error in device configuration")
		return err
	}
	diff, _, err := d.rpc.Compare(ctx)
	if err != nil {
		return err
	}
	if diff == "" {
		d.log.Debug("candidate matches running configuration")
		return d.rpc.Discard(ctx)
	}
	d.log.WithField("diff", diff).Debug("committing")
	if err := d.rpc.Commit(ctx); err != nil {
		d.log.WithError(err).Errorf("commit on %s failed", d.cfg.Host)
		return err
	}
	return nil
}

// Validate validates the candidate configuration.
func (d *JunOS) Validate(ctx context.Context) error {
	if d.rpc == nil {
		return ErrNotConnected
	}
	return d.rpc.Validate(ctx)
}

// Compare returns the candidate diff against the running configuration.
func (d *JunOS) Compare(ctx context.Context) (string, bool, error) {
	if d.rpc == nil {
		return "", false, ErrNotConnected
	}
	return d.rpc.Compare(ctx)
}

// Commit commits the candidate configuration.
func (d *JunOS) Commit(ctx context.Context) error {
	if d.rpc == nil {
		return ErrNotConnected
	}
	return d.rpc.Commit(ctx)
}

// Discard discards candidate edits.
func (d *JunOS) Discard(ctx context.Context) error {
	if d.rpc == nil {
		return ErrNotConnected
	}
	return d.rpc.Discard(ctx)
}

// Close unlocks the candidate and closes the session.
func (d *JunOS) Close() error {
	if d.rpc == nil {
		return nil
	}
	err := d.rpc.Close()
	d.rpc = nil
	return err
}
