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

// Registered driver names.
const (
	CiscoIOS     = "CiscoIOS"
	ExtremeXOS   = "ExtremeXOS"
	JuniperJunOS = "JuniperJunOS"
)

var iosErrors = regexp.MustCompile(`^%\s*(Invalid input|Incomplete command|Ambiguous command|Unknown command)`)

// IOS drives Cisco IOS devices over SSH or Telnet.
type IOS struct {
	cfg  *session.Config
	opts *options
	log  logrus.FieldLogger

	shell      Shell
	hostname   string
	privileged bool
	configMode bool
}

// NewIOS creates a Cisco IOS driver.
func NewIOS(cfg *session.Config, opts ...Option) (*IOS, error) {
	if err := checkProtocol(CiscoIOS, cfg, session.SSH, session.Telnet); err != nil {
		return nil, err
	}
	o := newOptions(CiscoIOS, opts)
	return &IOS{cfg: cfg, opts: o, log: o.log, hostname: cfg.Host}, nil
}

// Connect opens the session, disables paging and learns the hostname and privilege level.
func (d *IOS) Connect(ctx context.Context) error {
	shell, err := d.opts.openShell(ctx, d.cfg)
	if err != nil {
		return errors.Wrap(err, CiscoIOS)
	}
	d.shell = shell

	res, err := shell.Execute(ctx, "terminal length 0", expect.DefaultShellPrompts, 0)
	if err != nil {
		return errors.Wrap(err, "prepare shell")
	}
	if n := len(res.Lines); n > 0 && strings.TrimSpace(res.Lines[n-1]) != "" {
		d.hostname = strings.TrimSpace(res.Lines[n-1])
	} else if p := strings.TrimRight(shell.Prompt(), ">#"); p != "" {
		d.hostname = p
	}
	d.privileged = res.Index == 1
	d.log.WithField("hostname", d.hostname).Debugf("shell ready, privileged=%t", d.privileged)
	return nil
}

// Hostname returns the device hostname taken from its prompt.
func (d *IOS) Hostname() string { return d.hostname }

func (d *IOS) shellPrompt() expect.Pattern {
	mark := ">"
	if d.privileged {
		mark = "#"
	}
	return expect.MustRegex(regexp.QuoteMeta(d.hostname+mark) + `\s*$`)
}

func (d *IOS) configPrompt() expect.Pattern {
	return expect.MustRegex(regexp.QuoteMeta(d.hostname) + `\(config[^)]*\)#\s*$`)
}

// View leaves configuration mode if needed and runs command.
func (d *IOS) View(ctx context.Context, command string) ([]string, error) {
	if d.shell == nil {
		return nil, ErrNotConnected
	}
	if err := d.exitConfig(ctx); err != nil {
		return nil, err
	}
	return d.run(ctx, command, d.shellPrompt())
}

// Edit enters configuration mode if needed and runs command.
func (d *IOS) Edit(ctx context.Context, command string) ([]string, error) {
	if d.shell == nil {
		return nil, ErrNotConnected
	}
	if err := d.enterConfig(ctx); err != nil {
		return nil, err
	}
	return d.run(ctx, command, d.configPrompt())
}

// Save writes the running configuration to startup.
func (d *IOS) Save(ctx context.Context) error {
	if d.shell == nil {
		return ErrNotConnected
	}
	if err := d.exitConfig(ctx); err != nil {
		return err
	}
	prompt := regexp.QuoteMeta(d.hostname+"#") + `\s*$`
	if _, err := d.run(ctx, "write memory", expect.MustRegex(`\[OK\][\s\S]*?`+prompt)); err != nil {
		d.log.WithError(err).Error("save configuration failed")
		return err
	}
	return nil
}

// Close leaves configuration mode and closes the session.
func (d *IOS) Close() error {
	if d.shell == nil {
		return nil
	}
	if d.configMode {
		if err := d.exitConfig(context.Background()); err != nil {
			d.log.WithError(err).Warn("exit configuration mode on close")
		}
	}
	err := closeShell(d.shell)
	d.shell = nil
	return err
}

func (d *IOS) run(ctx context.Context, command string, wait expect.Pattern) ([]string, error) {
	res, err := d.shell.Execute(ctx, command, []expect.Pattern{wait}, commandTimeout(ctx))
	if err != nil {
		return nil, &CommandError{Driver: CiscoIOS, Command: command, Err: err}
	}
	for _, line := range res.Lines {
		if iosErrors.MatchString(strings.TrimSpace(line)) {
			return res.Lines, &CommandError{Driver: CiscoIOS, Command: command, Output: res.Lines}
		}
	}
	return res.Lines, nil
}

func (d *IOS) enable(ctx context.Context) error {
	if d.privileged {
		return nil
	}
	priv := expect.MustRegex(regexp.QuoteMeta(d.hostname+"#") + `\s*$`)
	user := expect.MustRegex(regexp.QuoteMeta(d.hostname+">") + `\s*$`)
	res, err := d.shell.Execute(ctx, "enable", []expect.Pattern{priv, expect.DefaultPasswordPrompt}, 0)
	if err != nil {
		return &CommandError{Driver: CiscoIOS, Command: "enable", Err: err}
	}
	if res.Index == 1 {
		if d.opts.enableSecret == "" {
			return &CommandError{Driver: CiscoIOS, Command: "enable", Err: errors.New("enable secret required")}
		}
		res, err = d.shell.ExecuteSecret(ctx, d.opts.enableSecret, []expect.Pattern{priv, user, expect.DefaultPasswordPrompt}, 0)
		if err != nil {
			return &CommandError{Driver: CiscoIOS, Command: "enable", Err: err}
		}
		if res.Index != 0 {
			return &CommandError{Driver: CiscoIOS, Command: "enable", Err: errors.New("enable secret rejected")}
		}
	}
	d.privileged = true
	return nil
}

func (d *IOS) enterConfig(ctx context.Context) error {
	if d.configMode {
		return nil
	}
	if err := d.enable(ctx); err != nil {
		d.log.WithError(err).Error("unprivileged mode is used")
		return errors.Wrap(err, "can not enter configuration mode")
	}
	if _, err := d.run(ctx, "configure terminal", d.configPrompt()); err != nil {
		return errors.Wrap(err, "can not enter configuration mode")
	}
	d.configMode = true
	return nil
}

func (d *IOS) exitConfig(ctx context.Context) error {
	if !d.configMode {
		return nil
	}
	if _, err := d.run(ctx, "end", d.shellPrompt()); err != nil {
		return errors.Wrap(err, "can not exit configuration mode")
	}
	d.configMode = false
	return nil
}
