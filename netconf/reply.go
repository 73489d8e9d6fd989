package netconf

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/damianoneill/nocexec/errs"
)

// Reply is a parsed rpc-reply: the raw XML text plus its element tree.
type Reply struct {
	*RPCReply
	doc *etree.Document
}

func newReply(r *RPCReply) (*Reply, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(r.RawReply); err != nil {
		return nil, &errs.ProtocolError{Msg: "unparseable rpc-reply", Fragment: r.RawReply, Err: err}
	}
	return &Reply{RPCReply: r, doc: doc}, nil
}

// ParseReply parses a complete rpc-reply message, as received without framing.
func ParseReply(data []byte) (*Reply, error) {
	raw, err := parseReply(data)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, &errs.ProtocolError{Msg: "not an rpc-reply", Fragment: string(data)}
	}
	return newReply(raw)
}

// String returns the reply XML as received, without framing.
func (r *Reply) String() string {
	if r == nil || r.RPCReply == nil {
		return ""
	}
	return r.RawReply
}

// Document returns the reply element tree.
func (r *Reply) Document() *etree.Document {
	return r.doc
}

// Payload returns the first element inside rpc-reply, or nil for <ok/> style replies.
func (r *Reply) Payload() *etree.Element {
	root := r.doc.Root()
	if root == nil {
		return nil
	}
	for _, child := range root.ChildElements() {
		if child.Tag != "rpc-error" && child.Tag != "ok" {
			return child
		}
	}
	return nil
}

// FindElement returns the first element matching the etree path, searched from rpc-reply.
func (r *Reply) FindElement(path string) *etree.Element {
	root := r.doc.Root()
	if root == nil {
		return nil
	}
	return root.FindElement(path)
}

// FindElements returns all elements matching the etree path, searched from rpc-reply.
func (r *Reply) FindElements(path string) []*etree.Element {
	root := r.doc.Root()
	if root == nil {
		return nil
	}
	return root.FindElements(path)
}

// Text returns the text of the <output> element of a text formatted command reply,
// or the text content of the payload.
func (r *Reply) Text() string {
	if out := r.FindElement(".//output"); out != nil {
		return strings.TrimSpace(out.Text())
	}
	if p := r.Payload(); p != nil {
		return strings.TrimSpace(p.Text())
	}
	return ""
}
