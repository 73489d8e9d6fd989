// Package config loads device and logging configuration for the command line tool
// from a YAML file, NOCEXEC_ environment variables and flags.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/damianoneill/nocexec/logging"
	"github.com/damianoneill/nocexec/netconf"
	"github.com/damianoneill/nocexec/session"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. NOCEXEC_DEVICE_HOST.
const EnvPrefix = "NOCEXEC"

// Config holds all tool configuration.
type Config struct {
	Device  DeviceConfig   `mapstructure:"device"`
	Netconf NetconfConfig  `mapstructure:"netconf"`
	Logging logging.Config `mapstructure:"logging"`
}

// DeviceConfig describes the device to connect to.
type DeviceConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Protocol string `mapstructure:"protocol"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// KeyFile is a PEM private key used for SSH public key authentication.
	KeyFile        string        `mapstructure:"key_file"`
	EnableSecret   string        `mapstructure:"enable_secret"`
	Encoding       string        `mapstructure:"encoding"`
	Timeout        time.Duration `mapstructure:"timeout"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// NetconfConfig tunes the NETCONF client.
type NetconfConfig struct {
	RPCTimeout   time.Duration `mapstructure:"rpc_timeout"`
	IgnoreErrors []string      `mapstructure:"ignore_errors"`
	Exclusive    bool          `mapstructure:"exclusive"`
}

// NewViper returns a viper instance with defaults and environment overrides set.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("device.driver", "")
	v.SetDefault("device.host", "")
	v.SetDefault("device.port", 0)
	v.SetDefault("device.protocol", "ssh")
	v.SetDefault("device.username", "")
	v.SetDefault("device.password", "")
	v.SetDefault("device.key_file", "")
	v.SetDefault("device.enable_secret", "")
	v.SetDefault("device.encoding", "")
	v.SetDefault("device.timeout", "10s")
	v.SetDefault("device.connect_timeout", "5s")

	v.SetDefault("netconf.rpc_timeout", netconf.DefaultConfig.RPCTimeout.String())
	v.SetDefault("netconf.ignore_errors", netconf.DefaultConfig.IgnoreErrors)
	v.SetDefault("netconf.exclusive", false)

	v.SetDefault("logging.level", logging.DefaultConfig.Level)
	v.SetDefault("logging.format", logging.DefaultConfig.Format)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.compress", false)
	v.SetDefault("logging.trace", "errors")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or nocexec.yaml from the working directory or ~/.nocexec when path
// is empty, into a Config. A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nocexec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.nocexec")
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, errors.Wrap(err, "read configuration")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode configuration")
	}
	return &cfg, nil
}

// Validate checks that a device can be reached with the configuration. The driver
// is checked when it is created.
func (c *Config) Validate() error {
	if c.Device.Host == "" {
		return errors.New("device host is required")
	}
	if _, err := session.ParseProtocol(c.Device.Protocol); err != nil {
		return err
	}
	return nil
}

// SessionConfig converts the device section to a session configuration.
func (c *Config) SessionConfig() (*session.Config, error) {
	protocol, err := session.ParseProtocol(c.Device.Protocol)
	if err != nil {
		return nil, err
	}
	sc := &session.Config{
		Protocol:       protocol,
		Host:           c.Device.Host,
		Port:           c.Device.Port,
		Username:       c.Device.Username,
		Password:       c.Device.Password,
		Encoding:       c.Device.Encoding,
		Timeout:        c.Device.Timeout,
		ConnectTimeout: c.Device.ConnectTimeout,
		Exclusive:      c.Netconf.Exclusive,
		Netconf: netconf.Config{
			RPCTimeout:   c.Netconf.RPCTimeout,
			IgnoreErrors: c.Netconf.IgnoreErrors,
		},
	}
	if c.Device.KeyFile != "" {
		key, err := os.ReadFile(c.Device.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "read key file")
		}
		sc.PrivateKey = key
	}
	return sc, nil
}
