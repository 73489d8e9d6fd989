package transport

import (
	"context"
	"net"
	"time"

	"github.com/imdario/mergo"
	"github.com/ziutek/telnet"
)

// TelnetConfig controls how a Telnet connection is opened.
type TelnetConfig struct {
	DialTimeout time.Duration
}

// DefaultTelnetConfig defines the default telnet dial timeout.
var DefaultTelnetConfig = TelnetConfig{
	DialTimeout: 5 * time.Second,
}

// NewTelnetTransport connects to the target over Telnet. Option negotiation is handled by
// the telnet connection, which accepts echo and suppress-go-ahead and refuses the rest;
// login is left to the caller.
func NewTelnetTransport(ctx context.Context, target string, cfg *TelnetConfig) (rt Transport, err error) {
	resolved := TelnetConfig{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultTelnetConfig)

	trace := ContextClientTrace(ctx)
	trace.DialStart(target)
	defer func(begin time.Time) {
		trace.DialDone(target, err, time.Since(begin))
		if err != nil {
			trace.Error("telnet connect", target, err)
		}
	}(time.Now())

	dialer := &net.Dialer{Timeout: resolved.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", target)
	if err != nil {
		return nil, classify(target, "", err)
	}
	tc, err := telnet.NewConn(conn)
	if err != nil {
		_ = conn.Close()
		return nil, classify(target, "", err)
	}
	return withTrace(tc, target, trace), nil
}
