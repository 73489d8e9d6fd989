// Copyright 2018 Andrew Fort
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package rfc6242

import (
	"bytes"
	"io"
	"strconv"
)

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithMaximumChunkSize limits the size of the chunks written in chunked framing mode.
func WithMaximumChunkSize(size uint32) EncoderOption {
	return func(e *Encoder) {
		e.MaxChunkSize = size
	}
}

// Encoder writes whole NETCONF messages to an RFC 6242 framed stream. Each message
// reaches the underlying writer in a single Write.
//
// Encoder is not safe for concurrent use.
type Encoder struct {
	// ChunkedFraming selects chunked framing (true) or end-of-message framing (false)
	// for the next call to WriteMessage.
	ChunkedFraming bool
	// MaxChunkSize bounds the chunks written in chunked framing mode. Zero means
	// the whole message is one chunk.
	MaxChunkSize uint32

	w   io.Writer
	buf bytes.Buffer
}

// NewEncoder returns an Encoder writing to output using end-of-message framing.
func NewEncoder(output io.Writer, opts ...EncoderOption) *Encoder {
	e := &Encoder{w: output, MaxChunkSize: MaxChunkSize}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WriteMessage frames msg and writes it.
func (e *Encoder) WriteMessage(msg []byte) error {
	e.buf.Reset()
	if e.ChunkedFraming {
		e.frameChunked(msg)
	} else {
		e.buf.Write(msg)
		e.buf.Write(tokenEOM)
	}
	_, err := e.w.Write(e.buf.Bytes())
	return err
}

// frameChunked encodes msg as "\n#<size>\n<data>" chunks followed by the end-of-chunks marker.
func (e *Encoder) frameChunked(msg []byte) {
	for len(msg) > 0 {
		size := len(msg)
		if e.MaxChunkSize > 0 && uint64(size) > uint64(e.MaxChunkSize) {
			size = int(e.MaxChunkSize)
		}
		e.buf.WriteString("\n#")
		e.buf.WriteString(strconv.Itoa(size))
		e.buf.WriteByte('\n')
		e.buf.Write(msg[:size])
		msg = msg[size:]
	}
	e.buf.Write(tokenEOC)
}
