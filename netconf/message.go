// Package netconf implements a NETCONF (RFC 6241) client over an RFC 6242 framed
// byte stream: capability exchange, message-id correlated RPCs, and candidate
// datastore operations.
package netconf

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Capability URNs understood by the client.
const (
	NetconfNS     = "urn:ietf:params:xml:ns:netconf:base:1.0"
	CapBase10     = "urn:ietf:params:netconf:base:1.0"
	CapBase11     = "urn:ietf:params:netconf:base:1.1"
	CapCandidate  = "urn:ietf:params:netconf:capability:candidate:1.0"
	CapValidate10 = "urn:ietf:params:netconf:capability:validate:1.0"
	CapValidate11 = "urn:ietf:params:netconf:capability:validate:1.1"
)

// DefaultCapabilities are advertised in the client hello.
var DefaultCapabilities = []string{CapBase10, CapBase11}

// HelloMessage is exchanged by both peers when a session starts.
type HelloMessage struct {
	XMLName      xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 hello"`
	Capabilities []string `xml:"capabilities>capability"`
	SessionID    uint64   `xml:"session-id,omitempty"`
}

// Request is an rpc operation: a value with xml tags, or a string of verbatim XML.
type Request interface{}

// RPCMessage is the <rpc> envelope around an operation.
type RPCMessage struct {
	XMLName   xml.Name `xml:"urn:ietf:params:xml:ns:netconf:base:1.0 rpc"`
	MessageID string   `xml:"message-id,attr"`
	*Payload
}

// Payload is the content of an rpc: a value marshalled through its xml tags, or
// verbatim XML.
type Payload struct {
	Value interface{}
	XML   string `xml:",innerxml"`
}

// NewPayload wraps an operation. Strings are taken as verbatim XML.
func NewPayload(op interface{}) *Payload {
	if s, ok := op.(string); ok {
		return &Payload{XML: s}
	}
	return &Payload{Value: op}
}

// RPCReply is a decoded <rpc-reply>. RawReply keeps the message as received.
type RPCReply struct {
	XMLName   xml.Name   `xml:"rpc-reply"`
	MessageID string     `xml:"message-id,attr"`
	Errors    []RPCError `xml:"rpc-error,omitempty"`
	Data      string     `xml:",innerxml"`
	Ok        bool       `xml:",omitempty"`
	RawReply  string     `xml:"-"`
}

// Failures returns the rpc-errors that fail the call. Warnings are excluded.
func (r *RPCReply) Failures() []RPCError {
	var failed []RPCError
	for _, e := range r.Errors {
		if e.Severity != "warning" {
			failed = append(failed, e)
		}
	}
	return failed
}

// RPCError is one <rpc-error> of a reply.
type RPCError struct {
	Type     string `xml:"error-type"`
	Tag      string `xml:"error-tag"`
	Severity string `xml:"error-severity"`
	Path     string `xml:"error-path"`
	Message  string `xml:"error-message"`
	Info     string `xml:",innerxml"`
}

func (re *RPCError) Error() string {
	msg := strings.TrimSpace(re.Message)
	if msg == "" {
		msg = re.Tag
	}
	return fmt.Sprintf("rpc-error (%s): %s", re.Severity, msg)
}

// ReplyError is returned with a reply that carries failing rpc-errors.
type ReplyError struct {
	Reply  *RPCReply
	Errors []RPCError
}

func (e *ReplyError) Error() string {
	parts := make([]string, len(e.Errors))
	for i := range e.Errors {
		parts[i] = e.Errors[i].Error()
	}
	return strings.Join(parts, "; ")
}

func (e *ReplyError) errorList() []error {
	list := make([]error, len(e.Errors))
	for i := range e.Errors {
		list[i] = &e.Errors[i]
	}
	return list
}

// PeerSupportsChunkedFraming reports whether caps include base:1.1.
func PeerSupportsChunkedFraming(caps []string) bool {
	return hasCapability(caps, CapBase11)
}

// hasCapability compares capability URIs without their query parameters.
func hasCapability(caps []string, want string) bool {
	for _, c := range caps {
		c, _, _ = strings.Cut(c, "?")
		if strings.TrimSpace(c) == want {
			return true
		}
	}
	return false
}
