package main

import (
	"context"
	"io"
	"strings"

	"github.com/damianoneill/nocexec/config"
	"github.com/damianoneill/nocexec/driver"
	"github.com/damianoneill/nocexec/logging"
	"github.com/damianoneill/nocexec/session"
	"github.com/damianoneill/nocexec/transport"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the loaded configuration and logger to subcommands.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *logrus.Logger
	trace   *transport.ClientTrace
	out     io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: config.NewViper(), out: out}

	root := &cobra.Command{
		Use:           "nocexec",
		Short:         "Run commands on network devices",
		Long:          `nocexec connects to Cisco IOS, Extreme XOS and Juniper JunOS devices over SSH, Telnet or NETCONF to run commands, apply configuration and read inventory.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./nocexec.yaml)")
	flags.String("driver", "", "device driver: "+strings.Join(driver.Names(), ", "))
	flags.String("host", "", "device address")
	flags.Int("port", 0, "device port (default: protocol port)")
	flags.String("protocol", "", "ssh, telnet or netconf")
	flags.StringP("user", "u", "", "username")
	flags.StringP("password", "p", "", "password")
	for key, flag := range map[string]string{
		"device.driver":   "driver",
		"device.host":     "host",
		"device.port":     "port",
		"device.protocol": "protocol",
		"device.username": "user",
		"device.password": "password",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	root.AddCommand(newRunCmd(a), newEditCmd(a), newInventoryCmd(a), newNetconfCmd(a), newVersionCmd(a))
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	trace, err := transport.TraceHooks(cfg.Logging.Trace, log)
	if err != nil {
		return err
	}
	a.cfg, a.log, a.trace = cfg, log, trace
	return nil
}

// context returns the command context carrying the configured transport trace.
func (a *app) context(cmd *cobra.Command) context.Context {
	return transport.WithClientTrace(cmd.Context(), a.trace)
}

func (a *app) sessionConfig() (*session.Config, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	return a.cfg.SessionConfig()
}

// withDriver connects the configured driver, runs fn and closes the driver.
func (a *app) withDriver(ctx context.Context, fn func(driver.Driver) error) (err error) {
	sc, err := a.sessionConfig()
	if err != nil {
		return err
	}
	d, err := driver.New(a.cfg.Device.Driver, sc,
		driver.WithLogger(a.log),
		driver.WithEnableSecret(a.cfg.Device.EnableSecret))
	if err != nil {
		return err
	}
	if err := d.Connect(ctx); err != nil {
		_ = d.Close()
		return errors.Wrapf(err, "connect %s", sc.Address())
	}
	defer func() {
		if cerr := d.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(d)
}

