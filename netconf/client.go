package netconf

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/damianoneill/nocexec/errs"
	"github.com/damianoneill/nocexec/netconf/rfc6242"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config defines properties that configure netconf client behaviour.
type Config struct {
	// HelloTimeout bounds the wait for the server hello.
	HelloTimeout time.Duration
	// RPCTimeout bounds the wait for each rpc-reply.
	RPCTimeout time.Duration
	// Capabilities are advertised in the client hello.
	Capabilities []string
	// IgnoreErrors lists rpc-error message fragments that view and edit treat as success.
	IgnoreErrors []string
	// MaxMessageSize bounds a received message. Zero means no limit.
	MaxMessageSize int
	// Target labels errors with the device address.
	Target string
}

// DefaultConfig defines the default configuration for a netconf client.
var DefaultConfig = Config{
	HelloTimeout: 10 * time.Second,
	RPCTimeout:   30 * time.Second,
	Capabilities: DefaultCapabilities,
	IgnoreErrors: []string{"statement not found", "no entry for"},
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used for rpc tracing.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Exchange is an rpc that has been sent and whose reply has not yet been read.
type Exchange struct {
	MessageID string
	Operation string
	sent      time.Time
}

type frame struct {
	data []byte
	err  error
}

var errFrameTimeout = errors.New("frame wait timed out")

// Client drives a half-duplex NETCONF conversation: at most one rpc is outstanding
// at a time, and each reply must carry the message-id of the outstanding rpc.
// A Client is not safe for concurrent use.
type Client struct {
	cfg *Config
	t   io.ReadWriter
	enc *rfc6242.Encoder
	dec *rfc6242.Decoder
	log logrus.FieldLogger

	// The reader goroutine decodes one message per request on want.
	want     chan struct{}
	frames   chan frame
	inFlight bool
	readErr  error
	stop     chan struct{}
	stopOnce sync.Once

	hello       *HelloMessage
	nextID      uint64
	outstanding *Exchange
	stale       map[string]struct{}

	pending bool
	locked  bool
}

// NewClient creates a client on t. The hello exchange is performed by Handshake.
// The client does not own t.
func NewClient(t io.ReadWriter, cfg *Config, opts ...Option) *Client {
	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	_ = mergo.Merge(&resolved, DefaultConfig)

	c := &Client{
		cfg:    &resolved,
		t:      t,
		enc:    rfc6242.NewEncoder(t),
		dec:    rfc6242.NewDecoder(t),
		log:    logrus.StandardLogger(),
		want:   make(chan struct{}, 1),
		frames: make(chan frame, 1),
		stop:   make(chan struct{}),
		stale:  make(map[string]struct{}),
	}
	c.dec.MaxMessageSize = resolved.MaxMessageSize
	for _, opt := range opts {
		opt(c)
	}
	go c.readFrames()
	return c
}

// Handshake exchanges hello messages and selects chunked framing when both peers
// advertise base:1.1.
func (c *Client) Handshake(ctx context.Context) error {
	if c.hello != nil {
		return &errs.StateError{Op: "hello", State: "established"}
	}
	c.prefetch()
	if err := c.writeMessage(&HelloMessage{Capabilities: c.cfg.Capabilities}); err != nil {
		return err
	}

	data, err := c.nextFrame(ctx, c.cfg.HelloTimeout)
	if err != nil {
		return c.readFailure("hello", c.cfg.HelloTimeout, err)
	}

	hello := &HelloMessage{}
	if err := xml.Unmarshal(data, hello); err != nil {
		return &errs.ProtocolError{Msg: "invalid hello", Fragment: string(data), Err: err}
	}
	if len(hello.Capabilities) == 0 {
		return &errs.ProtocolError{Msg: "hello without capabilities", Fragment: string(data)}
	}
	c.hello = hello

	if PeerSupportsChunkedFraming(c.cfg.Capabilities) && PeerSupportsChunkedFraming(hello.Capabilities) {
		rfc6242.SetChunkedFraming(c.enc, c.dec)
	}
	c.log.WithFields(logrus.Fields{"session-id": hello.SessionID, "chunked": c.enc.ChunkedFraming}).Debug("hello exchanged")
	return nil
}

// SessionID delivers the server-allocated id of the session.
func (c *Client) SessionID() uint64 {
	if c.hello == nil {
		return 0
	}
	return c.hello.SessionID
}

// ServerCapabilities delivers the server-supplied capabilities.
func (c *Client) ServerCapabilities() []string {
	if c.hello == nil {
		return nil
	}
	return c.hello.Capabilities
}

// HasCapability reports whether the server advertised capability.
func (c *Client) HasCapability(capability string) bool {
	return hasCapability(c.ServerCapabilities(), capability)
}

// Send writes an rpc wrapping body and returns the exchange awaiting its reply.
func (c *Client) Send(body Request) (*Exchange, error) {
	if c.hello == nil {
		return nil, &errs.StateError{Op: "rpc", State: "hello pending"}
	}
	if c.outstanding != nil {
		return nil, &errs.StateError{Op: "rpc", State: "awaiting reply to message-id " + c.outstanding.MessageID}
	}

	c.prefetch()
	c.nextID++
	ex := &Exchange{MessageID: strconv.FormatUint(c.nextID, 10), Operation: operationName(body), sent: time.Now()}
	if err := c.writeMessage(&RPCMessage{MessageID: ex.MessageID, Payload: NewPayload(body)}); err != nil {
		return nil, err
	}
	c.outstanding = ex
	c.log.WithFields(logrus.Fields{"message-id": ex.MessageID, "operation": ex.Operation}).Debug("rpc sent")
	return ex, nil
}

// Receive waits for the reply to ex. Replies to exchanges that previously timed out are
// discarded; any other message-id is a *errs.ProtocolError. On timeout the exchange is
// abandoned and its late reply will be discarded.
func (c *Client) Receive(ctx context.Context, ex *Exchange, timeout time.Duration) (*RPCReply, error) {
	if ex == nil || c.outstanding != ex {
		return nil, &errs.StateError{Op: "receive", State: "no such outstanding rpc"}
	}
	defer func() { c.outstanding = nil }()

	if timeout <= 0 {
		timeout = c.cfg.RPCTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		data, err := c.nextFrame(ctx, time.Until(deadline))
		if err != nil {
			if err == errFrameTimeout || ctx.Err() != nil {
				c.stale[ex.MessageID] = struct{}{}
			}
			return nil, c.readFailure("rpc "+ex.Operation, timeout, err)
		}

		reply, err := parseReply(data)
		if err != nil {
			return nil, err
		}
		if reply == nil {
			c.log.Debug("notification discarded")
			continue
		}
		if _, ok := c.stale[reply.MessageID]; ok {
			delete(c.stale, reply.MessageID)
			c.log.WithField("message-id", reply.MessageID).Info("late reply discarded")
			continue
		}
		if reply.MessageID != ex.MessageID {
			return nil, &errs.ProtocolError{
				Msg:      "message-id mismatch: expected " + ex.MessageID + ", received " + strconv.Quote(reply.MessageID),
				Fragment: reply.RawReply,
			}
		}
		c.log.WithFields(logrus.Fields{"message-id": ex.MessageID, "took": time.Since(ex.sent)}).Debug("rpc reply received")
		return reply, nil
	}
}

// Call sends body and waits for its reply. A reply carrying rpc-errors of severity
// "error" is returned together with a *ReplyError.
func (c *Client) Call(ctx context.Context, body Request) (*Reply, error) {
	ex, err := c.Send(body)
	if err != nil {
		return nil, err
	}
	return c.await(ctx, ex)
}

// await receives the reply to ex and converts failing rpc-errors to a *ReplyError.
func (c *Client) await(ctx context.Context, ex *Exchange) (*Reply, error) {
	raw, err := c.Receive(ctx, ex, c.cfg.RPCTimeout)
	if err != nil {
		return nil, err
	}
	reply, err := newReply(raw)
	if err != nil {
		return nil, err
	}
	if failures := raw.Failures(); len(failures) > 0 {
		return reply, &ReplyError{Reply: raw, Errors: failures}
	}
	return reply, nil
}

// Close stops the reader goroutine. The transport is left open.
func (c *Client) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) writeMessage(msg interface{}) error {
	b, err := xml.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "failed to encode message")
	}
	buf := append([]byte(xml.Header), b...)
	if err := c.enc.WriteMessage(buf); err != nil {
		return &errs.ConnectionError{Target: c.cfg.Target, Err: errors.Wrap(err, "failed to send message")}
	}
	return nil
}

func (c *Client) readFrames() {
	for {
		select {
		case <-c.want:
		case <-c.stop:
			return
		}
		data, err := c.dec.ReadMessage()
		select {
		case c.frames <- frame{data: data, err: err}:
		case <-c.stop:
			return
		}
		if err != nil {
			return
		}
	}
}

// nextFrame returns the next message, waiting at most timeout. A read abandoned by a
// timeout stays in flight and is collected by the next call.
func (c *Client) nextFrame(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	c.prefetch()
	if timeout <= 0 {
		return nil, errFrameTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case f := <-c.frames:
		c.inFlight = false
		if f.err != nil {
			c.readErr = f.err
		}
		return f.data, f.err
	case <-timer.C:
		return nil, errFrameTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// prefetch starts reading the next message, so the peer is never blocked writing
// while this side writes.
func (c *Client) prefetch() {
	if !c.inFlight && c.readErr == nil {
		c.want <- struct{}{}
		c.inFlight = true
	}
}

func (c *Client) readFailure(op string, timeout time.Duration, err error) error {
	switch {
	case err == errFrameTimeout:
		return &errs.TimeoutError{Op: op, Timeout: timeout}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return &errs.TimeoutError{Op: op, Timeout: timeout, Err: err}
	}
	var pe *errs.ProtocolError
	if errors.As(err, &pe) {
		return err
	}
	return &errs.ConnectionError{Target: c.cfg.Target, Err: errors.Wrap(err, op)}
}

// parseReply decodes an rpc-reply; notifications yield a nil reply.
func parseReply(data []byte) (*RPCReply, error) {
	root, err := rootElement(data)
	if err != nil {
		return nil, &errs.ProtocolError{Msg: "malformed message", Fragment: string(data), Err: err}
	}
	switch root.Local {
	case "notification":
		return nil, nil
	case "rpc-reply":
	default:
		return nil, &errs.ProtocolError{Msg: "unexpected message <" + root.Local + ">", Fragment: string(data)}
	}

	reply := &RPCReply{}
	if err := xml.Unmarshal(data, reply); err != nil {
		return nil, &errs.ProtocolError{Msg: "malformed rpc-reply", Fragment: string(data), Err: err}
	}
	reply.RawReply = string(data)
	return reply, nil
}

func rootElement(data []byte) (xml.Name, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return xml.Name{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name, nil
		}
	}
}

func operationName(body Request) string {
	if s, ok := body.(string); ok {
		if name, err := rootElement([]byte(s)); err == nil {
			return name.Local
		}
		return "rpc"
	}
	b, err := xml.Marshal(body)
	if err != nil {
		return "rpc"
	}
	if name, err := rootElement(b); err == nil {
		return name.Local
	}
	return "rpc"
}
