package testserver

import (
	"net"

	"github.com/ziutek/telnet"
)

// Telnet bytes used by the test server.
const (
	iac  byte = 255
	will byte = 251
)

// TelnetServer is a test Telnet server. Each connection opens with WILL ECHO and
// WILL SGA; the client's negotiation is answered and removed by the telnet connection.
type TelnetServer struct {
	*loopback
}

// NewTelnetServer listens on the loopback interface and serves each connection with a new Handler.
func NewTelnetServer(factory HandlerFactory) (*TelnetServer, error) {
	lb, err := listen(func(conn net.Conn) {
		defer conn.Close()
		if _, err := conn.Write([]byte{iac, will, 1, iac, will, 3}); err != nil {
			return
		}
		tc, err := telnet.NewConn(conn)
		if err != nil {
			return
		}
		factory().Handle(tc)
	})
	if err != nil {
		return nil, err
	}
	return &TelnetServer{loopback: lb}, nil
}
