// Package testserver provides in-process SSH and Telnet servers that emulate device
// CLIs and NETCONF agents for tests.
package testserver

import (
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
)

// Handler plays the device side of one channel until the conversation ends.
type Handler interface {
	Handle(ch io.ReadWriteCloser)
}

// HandlerFactory returns the Handler for a new channel.
type HandlerFactory func() Handler

// loopback accepts connections on 127.0.0.1 and passes each to serve on its own goroutine.
type loopback struct {
	listener net.Listener
}

func listen(serve func(net.Conn)) (*loopback, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go serve(conn)
		}
	}()
	return &loopback{listener: l}, nil
}

// Port returns the listening port.
func (lb *loopback) Port() int {
	return lb.listener.Addr().(*net.TCPAddr).Port
}

// Address returns the listening host:port.
func (lb *loopback) Address() string {
	return fmt.Sprintf("127.0.0.1:%d", lb.Port())
}

// Close stops accepting connections. Established conversations run to completion.
func (lb *loopback) Close() {
	_ = lb.listener.Close()
}

// SSHServer is a test SSH server. Each session channel is served by a new Handler;
// shell, pty and subsystem requests are all granted.
type SSHServer struct {
	*loopback
	cfg     *ssh.ServerConfig
	factory HandlerFactory
	log     logrus.FieldLogger
}

// NewSSHServer starts an SSHServer on the loopback interface.
func NewSSHServer(cfg *ssh.ServerConfig, factory HandlerFactory) (*SSHServer, error) {
	s := &SSHServer{cfg: cfg, factory: factory, log: logrus.WithField("component", "testserver-ssh")}
	lb, err := listen(s.serve)
	if err != nil {
		return nil, err
	}
	s.loopback = lb
	return s, nil
}

func (s *SSHServer) serve(conn net.Conn) {
	_, channels, requests, err := ssh.NewServerConn(conn, s.cfg)
	if err != nil {
		s.log.WithError(err).Debug("handshake failed")
		_ = conn.Close()
		return
	}
	go ssh.DiscardRequests(requests)

	for nc := range channels {
		if nc.ChannelType() != "session" {
			_ = nc.Reject(ssh.UnknownChannelType, "only session channels are served")
			continue
		}
		ch, reqs, err := nc.Accept()
		if err != nil {
			continue
		}
		go grantSessionRequests(reqs)
		go func() {
			defer ch.Close()
			s.factory().Handle(ch)
		}()
	}
}

func grantSessionRequests(reqs <-chan *ssh.Request) {
	for req := range reqs {
		switch req.Type {
		case "shell", "pty-req", "subsystem":
			_ = req.Reply(true, nil)
		default:
			_ = req.Reply(false, nil)
		}
	}
}
