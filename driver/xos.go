package driver

import (
	"context"
	"regexp"
	"strings"

	"github.com/damianoneill/nocexec/expect"
	"github.com/damianoneill/nocexec/session"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// XOS prompts carry a command counter and an optional "* " unsaved marker: "* sw1.4 # ".
	xosAnyPrompt = expect.MustRegex(`\.\d+ #\s*$`)
	xosErrors    = []*regexp.Regexp{
		regexp.MustCompile(`Invalid .* detected.*[.]`),
		regexp.MustCompile(`Error:.*[.]`),
	}
)

const (
	xosSaveQuestion = "Do you want to save configuration to primary.cfg and overwrite it?"
	xosSaveDone     = "Configuration saved to primary.cfg successfully."
)

// XOS drives Extreme Networks XOS switches over SSH or Telnet. XOS has no
// configuration mode, so Edit is View.
type XOS struct {
	cfg  *session.Config
	opts *options
	log  logrus.FieldLogger

	shell    Shell
	hostname string
}

// NewXOS creates an Extreme XOS driver.
func NewXOS(cfg *session.Config, opts ...Option) (*XOS, error) {
	if err := checkProtocol(ExtremeXOS, cfg, session.SSH, session.Telnet); err != nil {
		return nil, err
	}
	o := newOptions(ExtremeXOS, opts)
	return &XOS{cfg: cfg, opts: o, log: o.log, hostname: cfg.Host}, nil
}

// Connect opens the session, disables paging and learns the hostname.
func (d *XOS) Connect(ctx context.Context) error {
	shell, err := d.opts.openShell(ctx, d.cfg)
	if err != nil {
		return errors.Wrap(err, ExtremeXOS)
	}
	d.shell = shell

	res, err := shell.Execute(ctx, "disable clipaging", []expect.Pattern{xosAnyPrompt}, 0)
	if err != nil {
		return errors.Wrap(err, "prepare shell")
	}
	if n := len(res.Lines); n > 0 {
		if host := strings.TrimPrefix(strings.TrimSpace(res.Lines[n-1]), "* "); host != "" {
			d.hostname = host
		}
	}
	d.log.WithField("hostname", d.hostname).Debug("shell ready")
	return nil
}

// Hostname returns the switch name taken from its prompt.
func (d *XOS) Hostname() string { return d.hostname }

func (d *XOS) promptExpr() string {
	return `(?:\* )?` + regexp.QuoteMeta(d.hostname) + `\.\d+ #\s*$`
}

// View runs command and checks its output for XOS error messages.
func (d *XOS) View(ctx context.Context, command string) ([]string, error) {
	if d.shell == nil {
		return nil, ErrNotConnected
	}
	res, err := d.shell.Execute(ctx, command, []expect.Pattern{expect.MustRegex(d.promptExpr())}, commandTimeout(ctx))
	if err != nil {
		return nil, &CommandError{Driver: ExtremeXOS, Command: command, Err: err}
	}
	if xosFailed(res.Lines) {
		return res.Lines, &CommandError{Driver: ExtremeXOS, Command: command, Output: res.Lines}
	}
	return res.Lines, nil
}

// Edit is View.
func (d *XOS) Edit(ctx context.Context, command string) ([]string, error) {
	return d.View(ctx, command)
}

// Save saves the primary configuration, confirming the overwrite.
func (d *XOS) Save(ctx context.Context) error {
	if d.shell == nil {
		return ErrNotConnected
	}
	const command = "save configuration primary"
	if _, err := d.shell.Execute(ctx, command, []expect.Pattern{expect.Literal(xosSaveQuestion)}, commandTimeout(ctx)); err != nil {
		d.log.WithError(err).Error("save configuration failed")
		return &CommandError{Driver: ExtremeXOS, Command: command, Err: err}
	}
	done := expect.MustRegex(regexp.QuoteMeta(xosSaveDone) + `[\s\S]*?` + d.promptExpr())
	if _, err := d.shell.Execute(ctx, "Yes", []expect.Pattern{done}, commandTimeout(ctx)); err != nil {
		d.log.WithError(err).Error("save configuration failed")
		return &CommandError{Driver: ExtremeXOS, Command: command, Err: err}
	}
	return nil
}

// Close closes the session.
func (d *XOS) Close() error {
	err := closeShell(d.shell)
	d.shell = nil
	return err
}

func xosFailed(lines []string) bool {
	text := strings.Join(lines, "|")
	for _, re := range xosErrors {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
