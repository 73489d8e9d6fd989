// Package manager reads inventory (ports, forwarding table, VLANs) from a single
// device through its driver.
package manager

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/damianoneill/nocexec/driver"
	"github.com/damianoneill/nocexec/netconf"
	"github.com/damianoneill/nocexec/session"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds each inventory command.
const DefaultTimeout = 60 * time.Second

// Port is a switch or router interface.
type Port struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	AdminStatus bool   `json:"admin_status"`
	OperStatus  bool   `json:"oper_status"`
}

// FDBEntry is a learned MAC address.
type FDBEntry struct {
	MAC  string `json:"mac"`
	VLAN string `json:"vlan"`
	Port string `json:"port"`
}

// VLAN is a configured VLAN.
type VLAN struct {
	Tag  string `json:"tag"`
	Name string `json:"name"`
}

type xmlViewer interface {
	ViewXML(ctx context.Context, command string) (*netconf.Reply, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for the manager and its driver.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.timeout = d
	}
}

// WithCommands replaces the driver's inventory commands.
func WithCommands(c Commands) Option {
	return func(m *Manager) {
		m.commands = c
	}
}

// WithDriverOptions passes options to the driver.
func WithDriverOptions(opts ...driver.Option) Option {
	return func(m *Manager) {
		m.driverOpts = append(m.driverOpts, opts...)
	}
}

// Manager reads inventory from one device.
type Manager struct {
	name       string
	drv        driver.Driver
	commands   Commands
	timeout    time.Duration
	log        logrus.FieldLogger
	driverOpts []driver.Option
}

// New creates a manager using the named driver.
func New(name string, cfg *session.Config, opts ...Option) (*Manager, error) {
	commands, ok := DriverCommands[name]
	if !ok {
		return nil, errors.Errorf("driver %q not found", name)
	}
	m := &Manager{name: name, commands: commands, timeout: DefaultTimeout, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(m)
	}
	drv, err := driver.New(name, cfg, append([]driver.Option{driver.WithLogger(m.log)}, m.driverOpts...)...)
	if err != nil {
		return nil, err
	}
	m.drv = drv
	m.log = m.log.WithField("manager", name)
	return m, nil
}

// Driver returns the underlying driver.
func (m *Manager) Driver() driver.Driver { return m.drv }

// Connect connects the driver.
func (m *Manager) Connect(ctx context.Context) error {
	return m.drv.Connect(ctx)
}

// Close closes the driver.
func (m *Manager) Close() error {
	return m.drv.Close()
}

// GetPorts returns the device ports. Statuses "up", "E" and "A" read as true.
func (m *Manager) GetPorts(ctx context.Context) ([]Port, error) {
	rows, err := m.rows(ctx, m.commands.Ports)
	if err != nil {
		return nil, err
	}
	ports := make([]Port, 0, len(rows))
	for _, row := range rows {
		ports = append(ports, Port{
			Name:        row.get("name", "name"),
			Description: row.get("description", "description"),
			AdminStatus: isUp(row.get("admin_status", "admin-status")),
			OperStatus:  isUp(row.get("oper_status", "oper-status")),
		})
	}
	return ports, nil
}

// GetFDB returns the MAC forwarding table. Entries without a valid MAC are dropped.
func (m *Manager) GetFDB(ctx context.Context) ([]FDBEntry, error) {
	rows, err := m.rows(ctx, m.commands.FDB)
	if err != nil {
		return nil, err
	}
	var fdb []FDBEntry
	for _, row := range rows {
		mac, ok := UnixMAC(row.get("mac", "mac-address"))
		if !ok {
			continue
		}
		fdb = append(fdb, FDBEntry{
			MAC:  mac,
			VLAN: row.get("vlan", "mac-vlan"),
			Port: row.get("port", "mac-interfaces-list/mac-interfaces"),
		})
	}
	return fdb, nil
}

// GetVLANs returns the configured VLANs.
func (m *Manager) GetVLANs(ctx context.Context) ([]VLAN, error) {
	rows, err := m.rows(ctx, m.commands.VLANs)
	if err != nil {
		return nil, err
	}
	vlans := make([]VLAN, 0, len(rows))
	for _, row := range rows {
		vlans = append(vlans, VLAN{Tag: row.get("tag", "vlan-tag"), Name: row.get("name", "vlan-name")})
	}
	return vlans, nil
}

// row is one parsed record: regexp group values or an element map.
type row struct {
	groups map[string]string
	elem   map[string]interface{}
}

// get returns the regexp group or the element path value.
func (r row) get(group, path string) string {
	if r.elem != nil {
		return lookup(r.elem, path)
	}
	return strings.TrimSpace(r.groups[group])
}

func (m *Manager) rows(ctx context.Context, cmd Command) ([]row, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	log := m.log.WithField("command", cmd.Command)

	switch cmd.Kind {
	case Regexp:
		re, err := regexp.Compile(cmd.Parser)
		if err != nil {
			return nil, errors.Wrapf(err, "bad parser for %q", cmd.Command)
		}
		lines, err := m.drv.View(ctx, cmd.Command)
		if err != nil {
			return nil, err
		}
		rows := parseLines(re, lines)
		log.Debugf("%d of %d lines parsed", len(rows), len(lines))
		return rows, nil
	case Etree:
		viewer, ok := m.drv.(xmlViewer)
		if !ok {
			return nil, errors.Errorf("%s driver has no XML view", m.name)
		}
		reply, err := viewer.ViewXML(ctx, cmd.Command)
		if err != nil {
			return nil, err
		}
		rows := parseElements(reply.FindElements(cmd.Parser))
		log.Debugf("%d elements parsed", len(rows))
		return rows, nil
	}
	return nil, errors.Errorf("unknown parser kind %d", cmd.Kind)
}

func parseLines(re *regexp.Regexp, lines []string) []row {
	var rows []row
	names := re.SubexpNames()
	for _, line := range lines {
		match := re.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		groups := make(map[string]string)
		for i, name := range names {
			if name != "" {
				groups[name] = match[i]
			}
		}
		rows = append(rows, row{groups: groups})
	}
	return rows
}

func parseElements(elems []*etree.Element) []row {
	rows := make([]row, 0, len(elems))
	for _, e := range elems {
		rows = append(rows, row{elem: RPCToMap(e)})
	}
	return rows
}

func isUp(status string) bool {
	switch status {
	case "up", "E", "A":
		return true
	}
	return false
}
