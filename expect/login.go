package expect

import (
	"context"
	"time"

	"github.com/damianoneill/nocexec/errs"
	"github.com/pkg/errors"
)

// Default login patterns.
var (
	DefaultUsernamePrompt = MustRegex(`(?i)(user ?name|login)\s*:\s*$`)
	DefaultPasswordPrompt = MustRegex(`(?i)password\s*:\s*$`)
	DefaultShellPrompts   = []Pattern{MustRegex(`>\s*$`), MustRegex(`#\s*$`)}
	DefaultDenials        = []Pattern{
		MustRegex(`(?i)(permission denied|login incorrect|login invalid|authentication failed|access denied|bad password)`),
	}
)

// LoginConfig describes the login conversation with a device.
type LoginConfig struct {
	Username string
	Password string
	// SkipUsername is set when the transport already authenticated the user, as SSH does;
	// only a password re-prompt is then answered.
	SkipUsername   bool
	UsernamePrompt Pattern
	PasswordPrompt Pattern
	// Prompts signal a ready shell.
	Prompts []Pattern
	// Denials signal rejected credentials.
	Denials []Pattern
	// Timeout bounds each step of the conversation.
	Timeout time.Duration
}

func (c *LoginConfig) resolve() LoginConfig {
	r := *c
	if r.UsernamePrompt.IsZero() {
		r.UsernamePrompt = DefaultUsernamePrompt
	}
	if r.PasswordPrompt.IsZero() {
		r.PasswordPrompt = DefaultPasswordPrompt
	}
	if len(r.Prompts) == 0 {
		r.Prompts = DefaultShellPrompts
	}
	if len(r.Denials) == 0 {
		r.Denials = DefaultDenials
	}
	return r
}

// Login answers username and password prompts until a shell prompt appears. The result
// holds the banner lines and the matched prompt. Rejected credentials, or the stream ending
// after credentials were sent, yield *errs.AuthenticationError; the device going silent or
// away beforehand yields *errs.ConnectionError.
func Login(ctx context.Context, e *Engine, cfg *LoginConfig) (*Result, error) {
	c := cfg.resolve()

	const (
		userIdx = iota
		passIdx
		firstOther
	)
	patterns := []Pattern{c.UsernamePrompt, c.PasswordPrompt}
	if c.SkipUsername {
		patterns[userIdx] = Pattern{}
	}
	patterns = append(patterns, c.Denials...)
	denialEnd := firstOther + len(c.Denials)
	patterns = append(patterns, c.Prompts...)

	var banner []string
	sentUser, sentPass := c.SkipUsername, false
	for {
		res, err := e.Expect(ctx, patterns, c.Timeout)
		if err != nil {
			var ce *errs.ConnectionError
			if sentPass && errors.As(err, &ce) {
				return nil, &errs.AuthenticationError{Target: e.cfg.Target, Username: c.Username, Err: err}
			}
			return nil, &errs.ConnectionError{Target: e.cfg.Target, Partial: append(banner, errs.PartialOutput(err)...), Err: errors.Wrap(err, "login")}
		}
		banner = append(banner, res.Lines...)

		switch {
		case res.Index == userIdx:
			if sentUser {
				return nil, &errs.AuthenticationError{Target: e.cfg.Target, Username: c.Username, Err: errors.New("username prompted again")}
			}
			sentUser = true
			if err := e.SendLine(c.Username); err != nil {
				return nil, err
			}
		case res.Index == passIdx:
			if sentPass || c.Password == "" {
				return nil, &errs.AuthenticationError{Target: e.cfg.Target, Username: c.Username, Err: errors.New("password rejected")}
			}
			sentPass = true
			if err := e.sendSecret(c.Password); err != nil {
				return nil, err
			}
		case res.Index < denialEnd:
			return nil, &errs.AuthenticationError{Target: e.cfg.Target, Username: c.Username, Err: errors.New(res.Match)}
		default:
			res.Lines = banner
			return res, nil
		}
	}
}
