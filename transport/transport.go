// Package transport provides the raw byte streams used to talk to network devices:
// an interactive SSH shell, an SSH subsystem (NETCONF) and Telnet.
package transport

import (
	"io"
	"strings"
	"time"

	"github.com/damianoneill/nocexec/errs"
)

//go:generate mockgen -destination=../mocks/mock_transport.go -package=mocks github.com/damianoneill/nocexec/transport Transport

// Transport is a bidirectional byte stream to a device. Reads block until data is
// available or the stream ends; callers impose their own deadlines.
type Transport interface {
	io.ReadWriteCloser
}

// Default ports.
const (
	SSHPort     = 22
	TelnetPort  = 23
	NetconfPort = 830
)

// traced reports the reads, writes and closure of a Transport to a ClientTrace.
type traced struct {
	Transport
	target string
	trace  *ClientTrace
}

func withTrace(t Transport, target string, trace *ClientTrace) Transport {
	return &traced{Transport: t, target: target, trace: trace}
}

func (t *traced) Read(p []byte) (int, error) {
	begin := time.Now()
	c, err := t.Transport.Read(p)
	t.trace.Received(t.target, p[:c], err, time.Since(begin))
	return c, err
}

func (t *traced) Write(p []byte) (int, error) {
	begin := time.Now()
	c, err := t.Transport.Write(p)
	t.trace.Sent(t.target, p[:c], err, time.Since(begin))
	return c, err
}

func (t *traced) Close() error {
	err := t.Transport.Close()
	t.trace.Closed(t.target, err)
	return err
}

// classify maps a dial or handshake failure onto the error taxonomy.
func classify(target, username string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "unable to authenticate") || strings.Contains(msg, "no supported methods remain") {
		return &errs.AuthenticationError{Target: target, Username: username, Err: err}
	}
	return &errs.ConnectionError{Target: target, Err: err}
}
