package transport

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// Credentials identify the user logging in to a device.
type Credentials struct {
	Username   string
	Password   string
	PrivateKey []byte
	// HostKeyCallback verifies the device host key. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback
}

// ClientConfig builds an SSH client configuration offering public key, password and
// keyboard-interactive authentication, in that order, for whichever secrets are set.
func (c *Credentials) ClientConfig(timeout time.Duration) (*ssh.ClientConfig, error) {
	var methods []ssh.AuthMethod
	if len(c.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(c.PrivateKey)
		if err != nil {
			return nil, errors.Wrap(err, "invalid private key")
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		password := c.Password
		methods = append(methods,
			ssh.Password(password),
			ssh.KeyboardInteractive(func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		)
	}

	hostKey := c.HostKeyCallback
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey() // nolint: gosec
	}

	return &ssh.ClientConfig{
		User:            c.Username,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         timeout,
	}, nil
}
