package rfc6242

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/damianoneill/nocexec/errs"
	"github.com/pkg/errors"
	assert "github.com/stretchr/testify/require"
)

func TestEndOfMessageFraming(t *testing.T) {
	d := NewDecoder(strings.NewReader(`<hello/>]]>]]>
<rpc-reply message-id="1"><ok/></rpc-reply>]]>]]>`))

	msg, err := d.ReadMessage()
	assert.NoError(t, err)
	assert.Equal(t, "<hello/>", string(msg))

	msg, err = d.ReadMessage()
	assert.NoError(t, err)
	assert.Equal(t, `<rpc-reply message-id="1"><ok/></rpc-reply>`, string(msg))

	_, err = d.ReadMessage()
	assert.Equal(t, io.EOF, err)
}

func TestEndOfMessageTokenSplitAcrossReads(t *testing.T) {
	d := NewDecoder(io.MultiReader(strings.NewReader("<a>]]"), strings.NewReader(">]]"), strings.NewReader(">")))
	msg, err := d.ReadMessage()
	assert.NoError(t, err)
	assert.Equal(t, "<a>", string(msg))
}

func TestEndOfMessageTruncated(t *testing.T) {
	d := NewDecoder(strings.NewReader("<rpc-reply>partial"))
	_, err := d.ReadMessage()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestChunkedFraming(t *testing.T) {
	d := NewDecoder(strings.NewReader("\n#4\n<rpc\n#18\n-reply><ok/></rpc-\n#6\nreply>\n##\n\n#3\n<a/\n#1\n>\n##\n"))
	d.ChunkedFraming = true

	msg, err := d.ReadMessage()
	assert.NoError(t, err)
	assert.Equal(t, "<rpc-reply><ok/></rpc-reply>", string(msg))

	msg, err = d.ReadMessage()
	assert.NoError(t, err)
	assert.Equal(t, "<a/>", string(msg))

	_, err = d.ReadMessage()
	assert.Equal(t, io.EOF, err)
}

func TestChunkedFramingErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing newline", "#4\n<rpc\n##\n"},
		{"missing hash", "\n4\n<rpc\n##\n"},
		{"leading zero", "\n#04\n<rpc\n##\n"},
		{"non digit", "\n#4x\n<rpc\n##\n"},
		{"too many digits", "\n#12345678901\n"},
		{"size too large", "\n#4294967296\n"},
		{"no chunks", "\n##\n"},
		{"bad end marker", "\n#1\na\n##x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDecoder(strings.NewReader(tc.input))
			d.ChunkedFraming = true
			_, err := d.ReadMessage()
			var pe *errs.ProtocolError
			assert.True(t, errors.As(err, &pe), "expected protocol error, got %v", err)
		})
	}
}

func TestChunkedFramingTruncated(t *testing.T) {
	d := NewDecoder(strings.NewReader("\n#10\n<rpc"))
	d.ChunkedFraming = true
	_, err := d.ReadMessage()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestMaxMessageSize(t *testing.T) {
	d := NewDecoder(strings.NewReader(strings.Repeat("x", 100) + "]]>]]>"))
	d.MaxMessageSize = 10
	_, err := d.ReadMessage()
	var pe *errs.ProtocolError
	assert.True(t, errors.As(err, &pe))
}

func TestEncoderDecoderChunked(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf, WithMaximumChunkSize(5))
	SetChunkedFraming(e)
	assert.NoError(t, e.WriteMessage([]byte("<rpc-reply/>")))
	assert.Equal(t, "\n#5\n<rpc-\n#5\nreply\n#2\n/>\n##\n", buf.String())

	d := NewDecoder(&buf)
	SetChunkedFraming(d)
	msg, err := d.ReadMessage()
	assert.NoError(t, err)
	assert.Equal(t, "<rpc-reply/>", string(msg))

	ClearChunkedFraming(e, d)
	assert.False(t, e.ChunkedFraming)
	assert.False(t, d.ChunkedFraming)
}

func TestEncoderEndOfMessage(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	assert.NoError(t, e.WriteMessage([]byte("<hello/>")))
	assert.Equal(t, "<hello/>]]>]]>", buf.String())
}
