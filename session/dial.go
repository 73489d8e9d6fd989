package session

import (
	"context"

	"github.com/damianoneill/nocexec/transport"
)

// dial opens the transport appropriate to the configured protocol.
func dial(ctx context.Context, cfg *Config) (transport.Transport, error) {
	if cfg.Protocol == Telnet {
		return transport.NewTelnetTransport(ctx, cfg.Address(), &transport.TelnetConfig{DialTimeout: cfg.ConnectTimeout})
	}

	clientConfig, err := cfg.credentials().ClientConfig(cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	if cfg.Protocol == NETCONF {
		return transport.NewNetconfTransport(ctx, clientConfig, cfg.Address())
	}
	return transport.NewSSHTransport(ctx, clientConfig, cfg.Address(), nil)
}
