package netconf

import (
	"errors"
	"testing"

	"github.com/damianoneill/nocexec/errs"
	assert "github.com/stretchr/testify/require"
)

func TestParseReplyText(t *testing.T) {
	r, err := ParseReply([]byte(`<rpc-reply message-id="1" xmlns="urn:ietf:params:xml:ns:netconf:base:1.0"><output>
Hostname: r1
</output></rpc-reply>`))
	assert.NoError(t, err)
	assert.Equal(t, "Hostname: r1", r.Text())
	assert.Equal(t, "output", r.Payload().Tag)
}

func TestParseReplyPayload(t *testing.T) {
	r, err := ParseReply([]byte(`<rpc-reply message-id="2"><data><vlans><vlan><name>users</name></vlan></vlans></data></rpc-reply>`))
	assert.NoError(t, err)
	assert.Equal(t, "data", r.Payload().Tag)
	assert.Len(t, r.FindElements(".//vlan"), 1)
	assert.Equal(t, "users", r.FindElement(".//vlan/name").Text())
}

func TestParseReplyOk(t *testing.T) {
	r, err := ParseReply([]byte(`<rpc-reply message-id="3"><ok/></rpc-reply>`))
	assert.NoError(t, err)
	assert.Nil(t, r.Payload())
	assert.Equal(t, "", r.Text())
}

func TestParseReplyRejects(t *testing.T) {
	for name, data := range map[string]string{
		"notification": `<notification><eventTime>now</eventTime></notification>`,
		"hello":        `<hello><capabilities/></hello>`,
		"malformed":    `<rpc-reply`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReply([]byte(data))
			var pe *errs.ProtocolError
			assert.True(t, errors.As(err, &pe))
		})
	}
}
