// Package rfc6242 implements the NETCONF over SSH message framing of RFC 6242:
// end-of-message delimited framing for base:1.0 and chunked framing for base:1.1.
package rfc6242

// MaxChunkSize is the largest chunk size permitted by RFC 6242.
const MaxChunkSize uint32 = 4294967295

var (
	tokenEOM = []byte("]]>]]>")
	tokenEOC = []byte("\n##\n")
)

// Framer is implemented by Encoder and Decoder.
type Framer interface {
	setChunked(chunked bool)
}

// SetChunkedFraming switches each framer to chunked framing. Both peers switch after
// the hello exchange when both advertise base:1.1.
func SetChunkedFraming(framers ...Framer) {
	for _, f := range framers {
		f.setChunked(true)
	}
}

// ClearChunkedFraming switches each framer back to end-of-message framing.
func ClearChunkedFraming(framers ...Framer) {
	for _, f := range framers {
		f.setChunked(false)
	}
}

func (d *Decoder) setChunked(chunked bool) {
	if d != nil {
		d.ChunkedFraming = chunked
	}
}

func (e *Encoder) setChunked(chunked bool) {
	if e != nil {
		e.ChunkedFraming = chunked
	}
}
