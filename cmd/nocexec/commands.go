package main

import (
	"encoding/json"
	"fmt"

	"github.com/damianoneill/nocexec/driver"
	"github.com/damianoneill/nocexec/manager"
	"github.com/damianoneill/nocexec/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <command>...",
		Short: "Run view commands and print their output",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			return a.withDriver(ctx, func(d driver.Driver) error {
				for _, command := range args {
					lines, err := d.View(ctx, command)
					if err != nil {
						return err
					}
					a.printLines(lines)
				}
				return nil
			})
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "edit <command>...",
		Short: "Apply configuration commands",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.context(cmd)
			return a.withDriver(ctx, func(d driver.Driver) error {
				for _, command := range args {
					lines, err := d.Edit(ctx, command)
					if err != nil {
						return err
					}
					a.printLines(lines)
				}
				if !save {
					return nil
				}
				if err := d.Save(ctx); err != nil {
					return errors.Wrap(err, "save configuration")
				}
				fmt.Fprintf(a.out, "configuration saved on %s\n", d.Hostname())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "save the configuration after editing")
	return cmd
}

func newInventoryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "inventory ports|fdb|vlans",
		Short:     "Print device inventory as JSON",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"ports", "fdb", "vlans"},
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := a.context(cmd)
			sc, err := a.sessionConfig()
			if err != nil {
				return err
			}
			m, err := manager.New(a.cfg.Device.Driver, sc,
				manager.WithLogger(a.log),
				manager.WithDriverOptions(driver.WithEnableSecret(a.cfg.Device.EnableSecret)))
			if err != nil {
				return err
			}
			if err := m.Connect(ctx); err != nil {
				_ = m.Close()
				return err
			}
			defer func() {
				if cerr := m.Close(); err == nil {
					err = cerr
				}
			}()

			var result interface{}
			switch args[0] {
			case "ports":
				result, err = m.GetPorts(ctx)
			case "fdb":
				result, err = m.GetFDB(ctx)
			case "vlans":
				result, err = m.GetVLANs(ctx)
			}
			if err != nil {
				return err
			}
			return a.printJSON(result)
		},
	}
}

func newNetconfCmd(a *app) *cobra.Command {
	nc := &cobra.Command{
		Use:   "netconf",
		Short: "Raw NETCONF operations",
	}
	nc.AddCommand(&cobra.Command{
		Use:   "view <query>",
		Short: "Run a command or XML rpc and print the rpc-reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := a.sessionConfig()
			if err != nil {
				return err
			}
			sc.Protocol = session.NETCONF
			ctx := a.context(cmd)
			return session.With(ctx, sc, func(s *session.Session) error {
				reply, err := s.View(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, reply.String())
				return nil
			}, session.WithLogger(a.log))
		},
	})
	return nc
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.out, "Version: %s\n", version)
		},
	}
}

func (a *app) printLines(lines []string) {
	for _, line := range lines {
		fmt.Fprintln(a.out, line)
	}
}

func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
