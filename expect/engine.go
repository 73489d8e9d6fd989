// Package expect drives interactive device shells: it writes commands and collects
// output until one of a set of patterns appears, a quiet period passes, or a deadline expires.
package expect

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/damianoneill/nocexec/errs"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Config defines the engine behaviour.
type Config struct {
	// Terminator is appended to each command line.
	Terminator string
	// Timeout is the default overall wait for a request.
	Timeout time.Duration
	// ReadWait bounds a single wait for new data.
	ReadWait time.Duration
	// IdleTimeout is the quiet period that ends a request without patterns.
	IdleTimeout time.Duration
	// Encoding names the device character set, e.g. "windows-1251". Empty means UTF-8.
	Encoding string
	// Target labels errors with the device address.
	Target string
}

// DefaultConfig defines the default engine configuration.
var DefaultConfig = Config{
	Terminator:  "\n",
	Timeout:     10 * time.Second,
	ReadWait:    100 * time.Millisecond,
	IdleTimeout: time.Second,
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for command tracing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// Request is one command exchange.
type Request struct {
	// Command is written followed by the terminator. Empty writes nothing.
	Command string
	// Patterns end the exchange at the earliest match. None means wait for a quiet period.
	Patterns []Pattern
	// Timeout overrides the default overall wait.
	Timeout time.Duration
	// Secret keeps Command out of the logs, for passwords and enable secrets.
	Secret bool
}

// Result is the outcome of a request.
type Result struct {
	// Lines holds the output preceding the match, with the echoed command removed.
	Lines []string
	// Match is the text matched by the winning pattern.
	Match string
	// Pattern is the winning pattern.
	Pattern Pattern
	// Index is the position of Pattern in the request, or -1 when a wait without
	// patterns ended on a quiet period or the timeout.
	Index int
}

// Engine runs request/response exchanges over a byte stream.
// An Engine is not safe for concurrent use.
type Engine struct {
	cfg      *Config
	rw       io.ReadWriter
	encoding encoding.Encoding
	log      logrus.FieldLogger

	// Used to queue the inputs received from the device.
	inputs  chan []byte
	readErr error
	done    chan struct{}
	once    sync.Once

	buf []byte
}

// New starts an engine reading from rw. The engine does not own rw; closing rw
// stops the engine's reader.
func New(rw io.ReadWriter, cfg *Config, opts ...Option) (*Engine, error) {
	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultConfig)

	e := &Engine{
		cfg:    &resolved,
		rw:     rw,
		log:    logrus.StandardLogger(),
		inputs: make(chan []byte),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if name := resolved.Encoding; name != "" && !strings.EqualFold(name, "utf-8") && !strings.EqualFold(name, "utf8") {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, errors.Wrapf(err, "unsupported encoding %q", name)
		}
		e.encoding = enc
	}

	e.launchReader()
	return e, nil
}

// Close stops the reader from delivering further data.
func (e *Engine) Close() {
	e.once.Do(func() { close(e.done) })
}

// Send writes data to the device as is.
func (e *Engine) Send(data string) error {
	b := e.encode(data)
	if _, err := e.rw.Write(b); err != nil {
		return &errs.ConnectionError{Target: e.cfg.Target, Err: errors.Wrap(err, "failed to send")}
	}
	return nil
}

// SendLine writes line followed by the terminator.
func (e *Engine) SendLine(line string) error {
	e.log.WithField("command", line).Debug("send")
	return e.Send(line + e.cfg.Terminator)
}

// sendSecret is SendLine for credentials: the value is never logged.
func (e *Engine) sendSecret(secret string) error {
	e.log.Debug("send secret")
	return e.Send(secret + e.cfg.Terminator)
}

// Execute sends the request command and waits for its output.
func (e *Engine) Execute(ctx context.Context, req *Request) (*Result, error) {
	if req.Secret {
		// Devices do not echo secrets, so there is nothing to strip.
		if err := e.sendSecret(req.Command); err != nil {
			return nil, err
		}
		return e.wait(ctx, "", req.Patterns, req.Timeout)
	}
	if req.Command != "" {
		if err := e.SendLine(req.Command); err != nil {
			return nil, err
		}
	}
	return e.wait(ctx, req.Command, req.Patterns, req.Timeout)
}

// Expect waits for one of patterns without sending anything.
func (e *Engine) Expect(ctx context.Context, patterns []Pattern, timeout time.Duration) (*Result, error) {
	return e.wait(ctx, "", patterns, timeout)
}

func (e *Engine) wait(ctx context.Context, command string, patterns []Pattern, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = e.cfg.Timeout
	}
	log := e.log.WithField("patterns", describe(patterns))
	deadline := time.Now().Add(timeout)
	lastData := time.Now()

	for {
		if len(patterns) > 0 {
			if res := e.match(command, patterns); res != nil {
				log.WithField("match", res.Match).Debugf("matched after %d lines", len(res.Lines))
				return res, nil
			}
		} else if time.Since(lastData) >= e.cfg.IdleTimeout || !time.Now().Before(deadline) {
			return e.drain(command), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			partial := e.lines(e.take(len(e.buf)), command)
			log.WithField("timeout", timeout).Error("no pattern matched")
			return nil, &errs.TimeoutError{Op: "expect " + describe(patterns), Timeout: timeout, Partial: partial}
		}
		wait := e.cfg.ReadWait
		if len(patterns) == 0 {
			wait = e.cfg.IdleTimeout - time.Since(lastData)
		}
		if wait > remaining {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case chunk, ok := <-e.inputs:
			timer.Stop()
			if !ok {
				partial := e.lines(e.take(len(e.buf)), command)
				cause := e.readErr
				if cause == nil {
					cause = io.EOF
				}
				return nil, &errs.ConnectionError{Target: e.cfg.Target, Partial: partial, Err: cause}
			}
			e.buf = append(e.buf, chunk...)
			lastData = time.Now()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			partial := e.lines(e.take(len(e.buf)), command)
			return nil, &errs.TimeoutError{Op: "expect " + describe(patterns), Timeout: timeout, Partial: partial, Err: ctx.Err()}
		}
	}
}

// match finds the pattern matching earliest in the buffer; ties go to the first declared.
// On success the buffer is trimmed past the match.
func (e *Engine) match(command string, patterns []Pattern) *Result {
	best, bestStart, bestEnd := -1, 0, 0
	for i, p := range patterns {
		start, end := p.find(e.buf)
		if start < 0 {
			continue
		}
		if best < 0 || start < bestStart {
			best, bestStart, bestEnd = i, start, end
		}
	}
	if best < 0 {
		return nil
	}
	before := e.buf[:bestStart]
	res := &Result{
		Lines:   e.lines(before, command),
		Match:   e.decode(e.buf[bestStart:bestEnd]),
		Pattern: patterns[best],
		Index:   best,
	}
	e.take(bestEnd)
	return res
}

func (e *Engine) drain(command string) *Result {
	return &Result{Lines: e.lines(e.take(len(e.buf)), command), Index: -1}
}

// take removes and returns the first n buffered bytes.
func (e *Engine) take(n int) []byte {
	head := append([]byte(nil), e.buf[:n]...)
	e.buf = append(e.buf[:0], e.buf[n:]...)
	return head
}

func (e *Engine) lines(b []byte, command string) []string {
	return stripEcho(SplitLines(e.decode(b)), command)
}

func (e *Engine) decode(b []byte) string {
	if e.encoding == nil {
		return string(b)
	}
	out, err := e.encoding.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func (e *Engine) encode(s string) []byte {
	if e.encoding == nil {
		return []byte(s)
	}
	out, err := e.encoding.NewEncoder().String(s)
	if err != nil {
		return []byte(s)
	}
	return []byte(out)
}

func (e *Engine) launchReader() {
	go func() {
		defer close(e.inputs)
		for {
			const bufLength = 10000
			stdoutBuf := make([]byte, bufLength)
			byteCount, err := e.rw.Read(stdoutBuf)
			if byteCount > 0 {
				select {
				case e.inputs <- stdoutBuf[:byteCount]:
				case <-e.done:
					return
				}
			}
			if err != nil {
				e.readErr = err
				return
			}
		}
	}()
}

// SplitLines normalises line endings and splits s into lines. A trailing newline
// does not produce an empty final line.
func SplitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "")
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// stripEcho drops the first line when it is the echo of command, alone or typed
// after a prompt.
func stripEcho(lines []string, command string) []string {
	cmd := strings.TrimSpace(command)
	if cmd == "" || len(lines) == 0 {
		return lines
	}
	first := strings.TrimSpace(lines[0])
	if first == cmd {
		return lines[1:]
	}
	if head, ok := strings.CutSuffix(first, cmd); ok && endsWithPrompt(head) {
		return lines[1:]
	}
	return lines
}

// endsWithPrompt reports whether s ends in a usual prompt terminator.
func endsWithPrompt(s string) bool {
	s = strings.TrimSpace(s)
	return s != "" && strings.ContainsRune(">#$%", rune(s[len(s)-1]))
}

func describe(patterns []Pattern) string {
	if len(patterns) == 0 {
		return "<idle>"
	}
	parts := make([]string, len(patterns))
	for i, p := range patterns {
		parts[i] = p.String()
	}
	return strings.Join(parts, "|")
}
