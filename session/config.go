package session

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/damianoneill/nocexec/expect"
	"github.com/damianoneill/nocexec/netconf"
	"github.com/damianoneill/nocexec/transport"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// Protocol selects how a session reaches the device.
type Protocol int

const (
	// SSH opens an interactive shell over SSH.
	SSH Protocol = iota
	// Telnet opens an interactive shell over Telnet.
	Telnet
	// NETCONF opens the netconf subsystem over SSH.
	NETCONF
)

func (p Protocol) String() string {
	switch p {
	case SSH:
		return "ssh"
	case Telnet:
		return "telnet"
	case NETCONF:
		return "netconf"
	}
	return "protocol(" + strconv.Itoa(int(p)) + ")"
}

// ParseProtocol converts a protocol name to a Protocol.
func ParseProtocol(name string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "ssh":
		return SSH, nil
	case "telnet":
		return Telnet, nil
	case "netconf":
		return NETCONF, nil
	}
	return SSH, errors.Errorf("unknown protocol %q", name)
}

// Config defines a session to one device.
type Config struct {
	Protocol Protocol
	Host     string
	// Port defaults to the protocol's well known port.
	Port int

	Username   string
	Password   string
	PrivateKey []byte
	// HostKeyCallback verifies SSH host keys. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback

	// ConnectTimeout bounds dialing and the login or hello exchange.
	ConnectTimeout time.Duration
	// Timeout is the default wait for a command.
	Timeout time.Duration
	// Encoding names the device character set for shell sessions.
	Encoding string
	// Terminator ends each command line.
	Terminator string
	// Prompts signal a ready shell after login.
	Prompts []expect.Pattern

	// Exclusive locks the candidate datastore for the lifetime of a NETCONF session.
	Exclusive bool
	// Netconf configures the NETCONF client.
	Netconf netconf.Config
}

// DefaultConfig defines the default session configuration.
var DefaultConfig = Config{
	ConnectTimeout: 5 * time.Second,
	Timeout:        10 * time.Second,
	Terminator:     "\n",
}

// Address returns host:port, applying the protocol's default port.
func (c *Config) Address() string {
	port := c.Port
	if port == 0 {
		switch c.Protocol {
		case Telnet:
			port = transport.TelnetPort
		case NETCONF:
			port = transport.NetconfPort
		default:
			port = transport.SSHPort
		}
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

func (c *Config) credentials() *transport.Credentials {
	return &transport.Credentials{
		Username:        c.Username,
		Password:        c.Password,
		PrivateKey:      c.PrivateKey,
		HostKeyCallback: c.HostKeyCallback,
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s://%s@%s", c.Protocol, c.Username, c.Address())
}
