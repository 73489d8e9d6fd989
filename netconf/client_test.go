package netconf

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/damianoneill/nocexec/errs"
	"github.com/damianoneill/nocexec/netconf/rfc6242"
	"github.com/damianoneill/nocexec/testserver"
	"github.com/pkg/errors"
	assert "github.com/stretchr/testify/require"
)

var base10Only = []string{testserver.CapBase10, testserver.CapCandidate, testserver.CapValidate11}

func connect(t *testing.T, h *testserver.NetconfHandler, cfg *Config) *Client {
	c := newTestClient(t, h, cfg)
	assert.NoError(t, c.Handshake(context.Background()))
	return c
}

func newTestClient(t *testing.T, h *testserver.NetconfHandler, cfg *Config) *Client {
	client, server := net.Pipe()
	go func() {
		h.Handle(server)
		_ = server.Close()
	}()
	c := NewClient(client, cfg)
	t.Cleanup(func() {
		c.Close()
		_ = client.Close()
	})
	return c
}

func TestHandshakeNegotiatesChunkedFraming(t *testing.T) {
	h := &testserver.NetconfHandler{SessionID: 4711}
	c := connect(t, h, nil)

	assert.Equal(t, uint64(4711), c.SessionID())
	assert.True(t, c.HasCapability(CapCandidate))
	assert.True(t, c.enc.ChunkedFraming)
	assert.True(t, c.dec.ChunkedFraming)

	_, err := c.Get(context.Background(), "")
	assert.NoError(t, err)
	assert.Equal(t, []string{"get"}, h.Operations())
	// The server records the hello before it reads any rpc, so a reply implies it is stored.
	assert.Contains(t, h.ClientHello(), CapBase11)
}

func TestHandshakeEndOfMessageFraming(t *testing.T) {
	c := connect(t, &testserver.NetconfHandler{Capabilities: base10Only}, nil)
	assert.False(t, c.enc.ChunkedFraming)

	_, err := c.GetConfig(context.Background(), Running, "<system/>")
	assert.NoError(t, err)
}

func TestHandshakeTwice(t *testing.T) {
	c := connect(t, &testserver.NetconfHandler{}, nil)
	var se *errs.StateError
	assert.True(t, errors.As(c.Handshake(context.Background()), &se))
}

func TestHandshakeTimeout(t *testing.T) {
	c := newTestClient(t, &testserver.NetconfHandler{NoHello: true}, &Config{HelloTimeout: 100 * time.Millisecond})
	err := c.Handshake(context.Background())
	var te *errs.TimeoutError
	assert.True(t, errors.As(err, &te), "got %v", err)
}

func TestHandshakeInvalidHello(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	go func() { _, _ = io.Copy(io.Discard, server) }()
	go func() { _ = rfc6242.NewEncoder(server).WriteMessage([]byte(`<rpc-reply message-id="1"/>`)) }()

	c := NewClient(client, nil)
	defer c.Close()
	err := c.Handshake(context.Background())
	var pe *errs.ProtocolError
	assert.True(t, errors.As(err, &pe), "got %v", err)
}

func TestRPCBeforeHandshake(t *testing.T) {
	c := newTestClient(t, &testserver.NetconfHandler{}, nil)
	_, err := c.Send(&getOp{})
	var se *errs.StateError
	assert.True(t, errors.As(err, &se))
}

func TestViewReturnsRawReply(t *testing.T) {
	h := &testserver.NetconfHandler{
		Capabilities: base10Only,
		Respond: func(req *testserver.RPCRequest) testserver.RPCResponse {
			return testserver.RPCResponse{Raw: `<rpc-reply message-id="1"><data/></rpc-reply>`}
		},
	}
	c := connect(t, h, nil)

	reply, err := c.View(context.Background(), "<get-system-information/>")
	assert.NoError(t, err)
	assert.Equal(t, `<rpc-reply message-id="1"><data/></rpc-reply>`, reply.String())
	assert.Equal(t, "data", reply.Payload().Tag)
	assert.Equal(t, []string{"get-system-information"}, h.Operations())
}

func TestViewCommand(t *testing.T) {
	h := &testserver.NetconfHandler{
		Respond: func(req *testserver.RPCRequest) testserver.RPCResponse {
			return testserver.RPCResponse{Body: `<output>
Current time: 2024-01-01 00:00:00 UTC
</output>`}
		},
	}
	c := connect(t, h, nil)

	reply, err := c.Command(context.Background(), "show system uptime", FormatText)
	assert.NoError(t, err)
	assert.Equal(t, "Current time: 2024-01-01 00:00:00 UTC", reply.Text())
	assert.Equal(t, `<command format="text">show system uptime</command>`, h.Requests()[0].Body)
}

func TestMessageIDMismatch(t *testing.T) {
	h := &testserver.NetconfHandler{
		Respond: func(req *testserver.RPCRequest) testserver.RPCResponse {
			return testserver.RPCResponse{MessageID: "99"}
		},
	}
	c := connect(t, h, nil)

	_, err := c.Get(context.Background(), "")
	var pe *errs.ProtocolError
	assert.True(t, errors.As(err, &pe), "got %v", err)
	assert.Contains(t, pe.Msg, "expected 1")
	assert.True(t, errs.IsFatal(err))
}

func TestSingleOutstandingRPC(t *testing.T) {
	c := connect(t, &testserver.NetconfHandler{}, nil)

	ex, err := c.Send(&getOp{})
	assert.NoError(t, err)
	_, err = c.Send(&getOp{})
	var se *errs.StateError
	assert.True(t, errors.As(err, &se))

	reply, err := c.Receive(context.Background(), ex, time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "1", reply.MessageID)

	_, err = c.Receive(context.Background(), ex, time.Second)
	assert.True(t, errors.As(err, &se))
}

func TestLateReplyDiscarded(t *testing.T) {
	h := &testserver.NetconfHandler{
		Respond: func(req *testserver.RPCRequest) testserver.RPCResponse {
			if req.MessageID == "1" {
				return testserver.RPCResponse{Delay: 300 * time.Millisecond, Body: "<data>late</data>"}
			}
			return testserver.RPCResponse{Body: "<data>fresh</data>"}
		},
	}
	c := connect(t, h, &Config{RPCTimeout: 100 * time.Millisecond})

	_, err := c.Get(context.Background(), "")
	var te *errs.TimeoutError
	assert.True(t, errors.As(err, &te), "got %v", err)
	assert.False(t, errs.IsFatal(err))

	ex, err := c.Send(&getOp{})
	assert.NoError(t, err)
	reply, err := c.Receive(context.Background(), ex, 2*time.Second)
	assert.NoError(t, err)
	assert.Equal(t, "2", reply.MessageID)
	assert.Contains(t, reply.Data, "fresh")
}

func TestConnectionLostDuringRPC(t *testing.T) {
	h := &testserver.NetconfHandler{
		Respond: func(req *testserver.RPCRequest) testserver.RPCResponse {
			return testserver.RPCResponse{Close: true}
		},
	}
	c := connect(t, h, nil)

	_, err := c.Get(context.Background(), "")
	var ce *errs.ConnectionError
	assert.True(t, errors.As(err, &ce), "got %v", err)

	// The failure is sticky.
	_, err = c.Get(context.Background(), "")
	assert.Error(t, err)
}

func TestWarningsAreNotFailures(t *testing.T) {
	h := &testserver.NetconfHandler{
		Respond: func(req *testserver.RPCRequest) testserver.RPCResponse {
			return testserver.RPCResponse{Body: `<rpc-error><error-severity>warning</error-severity><error-message>deprecated</error-message></rpc-error><ok/>`}
		},
	}
	c := connect(t, h, nil)
	reply, err := c.Get(context.Background(), "")
	assert.NoError(t, err)
	assert.Len(t, reply.Errors, 1)
}

func TestIgnoredErrors(t *testing.T) {
	h := &testserver.NetconfHandler{
		Respond: func(req *testserver.RPCRequest) testserver.RPCResponse {
			return testserver.RPCResponse{Body: `<rpc-error><error-severity>error</error-severity><error-message>statement not found: interfaces ge-0/0/9</error-message></rpc-error>`}
		},
	}
	c := connect(t, h, nil)

	_, err := c.View(context.Background(), "show interfaces ge-0/0/9")
	assert.NoError(t, err)

	_, err = c.Get(context.Background(), "")
	var re *ReplyError
	assert.True(t, errors.As(err, &re))
	assert.Contains(t, re.Error(), "statement not found")
}

func TestOperationName(t *testing.T) {
	assert.Equal(t, "get", operationName(&getOp{}))
	assert.Equal(t, "get-chassis-inventory", operationName("<get-chassis-inventory/>"))
	assert.Equal(t, "rpc", operationName("not xml"))
	assert.True(t, strings.HasPrefix(operationName(&lockOp{Target: datastore(Candidate)}), "lock"))
}
