package rfc6242

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/damianoneill/nocexec/errs"
)

const (
	defaultReaderBufferSize = 65536
	maxChunkHeaderDigits    = 10
)

// Decoder reads whole NETCONF messages from an RFC 6242 framed stream.
//
// Decoder is not safe for concurrent use.
type Decoder struct {
	// ChunkedFraming selects chunked framing (true) or end-of-message framing (false)
	// for the next call to ReadMessage.
	ChunkedFraming bool
	// MaxMessageSize bounds the size of a decoded message. Zero means no limit.
	MaxMessageSize int

	r *bufio.Reader
}

// NewDecoder returns a Decoder reading from input using end-of-message framing.
func NewDecoder(input io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReaderSize(input, defaultReaderBufferSize)}
}

// ReadMessage returns the next complete message with its framing removed and surrounding
// whitespace trimmed. A stream that ends cleanly between messages yields io.EOF; a stream
// that ends inside a message yields io.ErrUnexpectedEOF. Malformed framing yields an
// *errs.ProtocolError.
func (d *Decoder) ReadMessage() ([]byte, error) {
	if d.ChunkedFraming {
		return d.readChunked()
	}
	return d.readEndOfMessage()
}

func (d *Decoder) readEndOfMessage() ([]byte, error) {
	var msg bytes.Buffer
	for {
		part, err := d.r.ReadSlice(tokenEOM[len(tokenEOM)-1])
		msg.Write(part)
		if bytes.HasSuffix(msg.Bytes(), tokenEOM) {
			return bytes.TrimSpace(msg.Bytes()[:msg.Len()-len(tokenEOM)]), nil
		}
		if err := d.checkSize(msg.Len()); err != nil {
			return nil, err
		}
		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if len(bytes.TrimSpace(msg.Bytes())) == 0 {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		case err != nil:
			return nil, err
		}
	}
}

func (d *Decoder) readChunked() ([]byte, error) {
	var msg bytes.Buffer
	chunks := 0
	for {
		size, last, err := d.readChunkHeader(chunks == 0)
		if err != nil {
			return nil, err
		}
		if last {
			if chunks == 0 {
				return nil, &errs.ProtocolError{Msg: "end-of-chunks marker without any chunk"}
			}
			return bytes.TrimSpace(msg.Bytes()), nil
		}
		if err := d.checkSize(msg.Len() + int(size)); err != nil {
			return nil, err
		}
		if _, err := io.CopyN(&msg, d.r, int64(size)); err != nil {
			return nil, unexpected(err)
		}
		chunks++
	}
}

// readChunkHeader consumes "\n#<size>\n" or the end-of-chunks marker "\n##\n".
func (d *Decoder) readChunkHeader(first bool) (size uint64, last bool, err error) {
	b, err := d.r.ReadByte()
	if err != nil {
		if first && err == io.EOF {
			return 0, false, io.EOF
		}
		return 0, false, unexpected(err)
	}
	if b != '\n' {
		return 0, false, d.headerError("expected newline before chunk header", b)
	}
	if b, err = d.r.ReadByte(); err != nil {
		return 0, false, unexpected(err)
	}
	if b != '#' {
		return 0, false, d.headerError("expected '#' in chunk header", b)
	}
	if b, err = d.r.ReadByte(); err != nil {
		return 0, false, unexpected(err)
	}
	if b == '#' {
		if b, err = d.r.ReadByte(); err != nil {
			return 0, false, unexpected(err)
		}
		if b != '\n' {
			return 0, false, d.headerError("expected newline after end-of-chunks marker", b)
		}
		return 0, true, nil
	}

	digits := make([]byte, 0, maxChunkHeaderDigits)
	for b != '\n' {
		if b < '0' || b > '9' || (len(digits) == 0 && b == '0') || len(digits) == maxChunkHeaderDigits {
			return 0, false, d.headerError("invalid chunk size", b)
		}
		digits = append(digits, b)
		if b, err = d.r.ReadByte(); err != nil {
			return 0, false, unexpected(err)
		}
	}
	if len(digits) == 0 {
		return 0, false, &errs.ProtocolError{Msg: "empty chunk size"}
	}
	size, err = strconv.ParseUint(string(digits), 10, 64)
	if err != nil || size > uint64(MaxChunkSize) {
		return 0, false, &errs.ProtocolError{Msg: "chunk size out of range", Fragment: string(digits)}
	}
	return size, false, nil
}

func (d *Decoder) headerError(msg string, got byte) error {
	fragment := []byte{got}
	if peek, _ := d.r.Peek(32); len(peek) > 0 {
		fragment = append(fragment, peek...)
	}
	return &errs.ProtocolError{Msg: msg, Fragment: string(fragment)}
}

func (d *Decoder) checkSize(n int) error {
	if d.MaxMessageSize > 0 && n > d.MaxMessageSize {
		return &errs.ProtocolError{Msg: "message exceeds maximum size " + strconv.Itoa(d.MaxMessageSize)}
	}
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
