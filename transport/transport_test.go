package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damianoneill/nocexec/errs"
	"github.com/damianoneill/nocexec/netconf/rfc6242"
	"github.com/damianoneill/nocexec/testserver"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	assert "github.com/stretchr/testify/require"
)

func readUntil(t *testing.T, r io.Reader, sentinel string) string {
	var buf bytes.Buffer
	p := make([]byte, 1024)
	for !strings.Contains(buf.String(), sentinel) {
		n, err := r.Read(p)
		buf.Write(p[:n])
		assert.NoError(t, err, "read failed, received %q", buf.String())
	}
	return buf.String()
}

func sshServer(t *testing.T, h testserver.Handler) *testserver.SSHServer {
	cfg, err := testserver.PasswordConfig("admin", "secret")
	assert.NoError(t, err)
	server, err := testserver.NewSSHServer(cfg, func() testserver.Handler { return h })
	assert.NoError(t, err)
	t.Cleanup(server.Close)
	return server
}

func clientConfig(_ *testing.T, password string) *Credentials {
	return &Credentials{Username: "admin", Password: password}
}

func TestSSHShellTransport(t *testing.T) {
	handler := &testserver.ShellHandler{
		Banner: "Welcome\r\n",
		Prompt: "router#",
		Commands: map[string]testserver.Reply{
			"show clock": {Output: "12:00:00 UTC\r\n"},
		},
	}
	server := sshServer(t, handler)

	cc, err := clientConfig(t, "secret").ClientConfig(time.Second)
	assert.NoError(t, err)
	tr, err := NewSSHTransport(context.Background(), cc, server.Address(), nil)
	assert.NoError(t, err)
	defer tr.Close()

	assert.Contains(t, readUntil(t, tr, "router#"), "Welcome")

	_, err = tr.Write([]byte("show clock\n"))
	assert.NoError(t, err)
	assert.Contains(t, readUntil(t, tr, "router#"), "12:00:00 UTC")
	assert.Equal(t, []string{"show clock"}, handler.Received())
}

func TestSSHAuthenticationFailure(t *testing.T) {
	server := sshServer(t, &testserver.ShellHandler{Prompt: "#"})

	cc, err := clientConfig(t, "wrong").ClientConfig(time.Second)
	assert.NoError(t, err)
	_, err = NewSSHTransport(context.Background(), cc, server.Address(), nil)
	var ae *errs.AuthenticationError
	assert.True(t, errors.As(err, &ae), "got %v", err)
	assert.Equal(t, "admin", ae.Username)
}

func TestSSHConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	address := l.Addr().String()
	assert.NoError(t, l.Close())

	cc, err := clientConfig(t, "secret").ClientConfig(time.Second)
	assert.NoError(t, err)
	_, err = NewSSHTransport(context.Background(), cc, address, nil)
	var ce *errs.ConnectionError
	assert.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, address, ce.Target)
}

func TestNetconfTransport(t *testing.T) {
	server := sshServer(t, &testserver.NetconfHandler{SessionID: 42})

	cc, err := clientConfig(t, "secret").ClientConfig(time.Second)
	assert.NoError(t, err)
	tr, err := NewNetconfTransport(context.Background(), cc, server.Address())
	assert.NoError(t, err)
	defer tr.Close()

	msg, err := rfc6242.NewDecoder(tr).ReadMessage()
	assert.NoError(t, err)
	assert.Contains(t, string(msg), "<session-id>42</session-id>")
}

func TestClientTraceHooks(t *testing.T) {
	server := sshServer(t, &testserver.ShellHandler{Prompt: "router>"})

	var connects, writes, closes int32
	ctx := WithClientTrace(context.Background(), &ClientTrace{
		DialDone: func(target string, err error, d time.Duration) {
			atomic.AddInt32(&connects, 1)
		},
		Sent: func(target string, data []byte, err error, d time.Duration) {
			atomic.AddInt32(&writes, 1)
		},
		Closed: func(target string, err error) {
			atomic.AddInt32(&closes, 1)
		},
	})

	cc, err := clientConfig(t, "secret").ClientConfig(time.Second)
	assert.NoError(t, err)
	tr, err := NewSSHTransport(ctx, cc, server.Address(), nil)
	assert.NoError(t, err)
	readUntil(t, tr, "router>")
	_, err = tr.Write([]byte("\n"))
	assert.NoError(t, err)
	assert.NoError(t, tr.Close())

	assert.Equal(t, int32(1), atomic.LoadInt32(&connects))
	assert.Equal(t, int32(1), atomic.LoadInt32(&writes))
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestContextClientTraceDefaults(t *testing.T) {
	assert.Same(t, NoOpHooks, ContextClientTrace(context.Background()))

	hooks, err := TraceHooks(TraceErrors, nil)
	assert.NoError(t, err)
	trace := ContextClientTrace(WithClientTrace(context.Background(), hooks))
	assert.NotNil(t, trace.Received)
	assert.NotNil(t, trace.DialStart)
	assert.NotNil(t, trace.Error)
}

func TestTraceHooksLevels(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	off, err := TraceHooks(TraceOff, log)
	assert.NoError(t, err)
	assert.Same(t, NoOpHooks, off)

	diag, err := TraceHooks(TraceDiagnostic, log)
	assert.NoError(t, err)
	diag.Sent("r1:22", []byte("show version\n"), nil, time.Millisecond)
	assert.Equal(t, `>>> "show version\n"`, hook.LastEntry().Message)

	metrics, err := TraceHooks(TraceMetrics, log)
	assert.NoError(t, err)
	metrics.Received("r1:22", []byte("abc"), nil, time.Millisecond)
	assert.Equal(t, 3, hook.LastEntry().Data["bytes"])

	_, err = TraceHooks("verbose", log)
	assert.Error(t, err)
}

func TestCredentialsInvalidKey(t *testing.T) {
	_, err := (&Credentials{Username: "admin", PrivateKey: []byte("not a key")}).ClientConfig(time.Second)
	assert.Error(t, err)
}

func TestTelnetTransport(t *testing.T) {
	handler := &testserver.ShellHandler{
		Prompt: "switch>",
		Login:  &testserver.Login{Username: "admin", Password: "secret"},
	}
	server, err := testserver.NewTelnetServer(func() testserver.Handler { return handler })
	assert.NoError(t, err)
	defer server.Close()

	tr, err := NewTelnetTransport(context.Background(), server.Address(), nil)
	assert.NoError(t, err)
	defer tr.Close()

	out := readUntil(t, tr, "Username: ")
	assert.NotContains(t, out, "\xff")
	_, err = tr.Write([]byte("admin\n"))
	assert.NoError(t, err)
	readUntil(t, tr, "Password: ")
	_, err = tr.Write([]byte("secret\n"))
	assert.NoError(t, err)
	readUntil(t, tr, "switch>")
}

func TestTelnetNegotiation(t *testing.T) {
	const iac, wont, do = 255, 252, 253
	l, err := net.Listen("tcp", "127.0.0.1:0")
	assert.NoError(t, err)
	defer l.Close()

	replies := make(chan []byte, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte{iac, do, 99, 'a', iac, iac, 'b', '\n'})
		buf := make([]byte, 3)
		_, _ = io.ReadFull(conn, buf)
		replies <- buf
	}()

	tr, err := NewTelnetTransport(context.Background(), l.Addr().String(), nil)
	assert.NoError(t, err)
	defer tr.Close()

	out := readUntil(t, tr, "\n")
	assert.Equal(t, "a\xffb\n", out)
	assert.Equal(t, []byte{iac, wont, 99}, <-replies)
}
