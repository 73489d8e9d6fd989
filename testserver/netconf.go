package testserver

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/damianoneill/nocexec/netconf/rfc6242"
)

// NETCONF capabilities advertised by default.
const (
	CapBase10     = "urn:ietf:params:netconf:base:1.0"
	CapBase11     = "urn:ietf:params:netconf:base:1.1"
	CapCandidate  = "urn:ietf:params:netconf:capability:candidate:1.0"
	CapValidate11 = "urn:ietf:params:netconf:capability:validate:1.1"
)

// DefaultCapabilities is advertised when a NetconfHandler has no Capabilities.
var DefaultCapabilities = []string{CapBase10, CapBase11, CapCandidate, CapValidate11}

// RPCRequest is an rpc received by the NetconfHandler.
type RPCRequest struct {
	MessageID string
	// Operation is the local name of the first element inside <rpc>.
	Operation string
	// Body is the inner XML of <rpc>.
	Body string
}

// RPCResponse scripts the answer to an rpc.
type RPCResponse struct {
	// Body is the inner XML of <rpc-reply>. Empty means <ok/>.
	Body string
	// Raw, when set, is sent as the complete message instead of a generated rpc-reply.
	Raw string
	// MessageID overrides the echoed message-id.
	MessageID string
	// Delay postpones the reply.
	Delay time.Duration
	// Drop suppresses the reply.
	Drop bool
	// Close ends the session without replying.
	Close bool
}

// NetconfHandler emulates a NETCONF agent.
type NetconfHandler struct {
	Capabilities []string
	SessionID    int
	// Respond answers each rpc; nil replies <ok/> to everything.
	Respond func(req *RPCRequest) RPCResponse
	// NoHello suppresses the server hello.
	NoHello bool

	mu          sync.Mutex
	requests    []*RPCRequest
	clientHello string
}

// Requests returns the rpcs received so far.
func (h *NetconfHandler) Requests() []*RPCRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*RPCRequest(nil), h.requests...)
}

// Operations returns the operation names of the rpcs received so far.
func (h *NetconfHandler) Operations() []string {
	var ops []string
	for _, r := range h.Requests() {
		ops = append(ops, r.Operation)
	}
	return ops
}

// ClientHello returns the hello message received from the client.
func (h *NetconfHandler) ClientHello() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clientHello
}

// Handle services a NETCONF session on ch.
func (h *NetconfHandler) Handle(ch io.ReadWriteCloser) {
	enc := rfc6242.NewEncoder(ch)
	dec := rfc6242.NewDecoder(ch)

	caps := h.Capabilities
	if len(caps) == 0 {
		caps = DefaultCapabilities
	}
	if !h.NoHello {
		if err := enc.WriteMessage([]byte(serverHello(caps, h.SessionID))); err != nil {
			return
		}
	}

	hello, err := dec.ReadMessage()
	if err != nil {
		return
	}
	h.mu.Lock()
	h.clientHello = string(hello)
	h.mu.Unlock()
	if contains(caps, CapBase11) && strings.Contains(string(hello), CapBase11) {
		rfc6242.SetChunkedFraming(enc, dec)
	}

	for {
		msg, err := dec.ReadMessage()
		if err != nil {
			return
		}
		req, err := parseRPC(msg)
		if err != nil {
			return
		}
		h.mu.Lock()
		h.requests = append(h.requests, req)
		h.mu.Unlock()

		resp := RPCResponse{}
		if h.Respond != nil {
			resp = h.Respond(req)
		}
		if resp.Close {
			return
		}
		if resp.Drop {
			continue
		}
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}
		if err := enc.WriteMessage([]byte(replyFor(req, &resp))); err != nil {
			return
		}
		if req.Operation == "close-session" {
			return
		}
	}
}

func replyFor(req *RPCRequest, resp *RPCResponse) string {
	if resp.Raw != "" {
		return resp.Raw
	}
	id := req.MessageID
	if resp.MessageID != "" {
		id = resp.MessageID
	}
	body := resp.Body
	if body == "" {
		body = "<ok/>"
	}
	return fmt.Sprintf(`<rpc-reply xmlns="urn:ietf:params:xml:ns:netconf:base:1.0" message-id="%s">%s</rpc-reply>`, id, body)
}

func serverHello(caps []string, sid int) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><hello xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><capabilities>`)
	for _, c := range caps {
		b.WriteString("<capability>" + c + "</capability>")
	}
	b.WriteString(fmt.Sprintf("</capabilities><session-id>%d</session-id></hello>", sid))
	return b.String()
}

type rpcEnvelope struct {
	XMLName   xml.Name
	MessageID string `xml:"message-id,attr"`
	Inner     string `xml:",innerxml"`
}

func parseRPC(msg []byte) (*RPCRequest, error) {
	var env rpcEnvelope
	if err := xml.Unmarshal(msg, &env); err != nil {
		return nil, err
	}
	req := &RPCRequest{MessageID: env.MessageID, Body: env.Inner}
	d := xml.NewDecoder(bytes.NewReader([]byte(env.Inner)))
	for {
		tok, err := d.Token()
		if err != nil {
			break
		}
		if se, ok := tok.(xml.StartElement); ok {
			req.Operation = se.Name.Local
			break
		}
	}
	return req, nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
