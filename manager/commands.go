package manager

import (
	"github.com/damianoneill/nocexec/driver"
)

// ParserKind selects how command output is parsed.
type ParserKind int

const (
	// Regexp matches each output line against a pattern with named groups.
	Regexp ParserKind = iota
	// Etree selects elements of the XML reply by etree path.
	Etree
)

// Command is an inventory command and the parser for its output.
type Command struct {
	Command string
	Kind    ParserKind
	// Parser is the line pattern for Regexp, or the element path for Etree.
	Parser string
}

// Commands holds the inventory commands of one driver.
type Commands struct {
	Ports Command
	FDB   Command
	VLANs Command
}

// DriverCommands maps a driver name to its inventory commands. Regexp groups are
// named after the fields they fill: name, description, admin_status, oper_status,
// mac, vlan, port and tag.
var DriverCommands = map[string]Commands{
	driver.CiscoIOS: {
		Ports: Command{
			Command: "show interfaces description",
			Parser:  `^(?P<name>[A-Za-z]+[\d/.:]+)\s+(?P<admin_status>up|down|admin down)\s+(?P<oper_status>up|down)\s*(?P<description>.*)$`,
		},
		FDB: Command{
			Command: "show mac address-table",
			Parser:  `^\s*(?P<vlan>\d+)\s+(?P<mac>[0-9a-fA-F]{4}\.[0-9a-fA-F]{4}\.[0-9a-fA-F]{4})\s+\S+\s+(?P<port>\S+)`,
		},
		VLANs: Command{
			Command: "show vlan brief",
			Parser:  `^(?P<tag>\d+)\s+(?P<name>\S+)\s+(?:active|act/unsup|suspended)`,
		},
	},
	driver.ExtremeXOS: {
		Ports: Command{
			Command: "show ports no-refresh",
			Parser:  `^(?P<name>\d+(?::\d+)?)\s+(?P<admin_status>[ED])\s+(?P<oper_status>[ARNL])\s*(?P<description>.*)$`,
		},
		FDB: Command{
			Command: "show fdb",
			Parser:  `^(?P<mac>[0-9a-fA-F]{2}(?::[0-9a-fA-F]{2}){5})\s+\S*\((?P<vlan>\d+)\)\s+\d+\s+.*?\s(?P<port>\d+(?::\d+)?)\s*$`,
		},
		VLANs: Command{
			Command: "show vlan",
			Parser:  `^(?P<name>\S+)\s+(?P<tag>\d+)\s`,
		},
	},
	driver.JuniperJunOS: {
		Ports: Command{Command: "show interfaces descriptions", Kind: Etree, Parser: ".//physical-interface"},
		FDB:   Command{Command: "show ethernet-switching table", Kind: Etree, Parser: ".//mac-table-entry"},
		VLANs: Command{Command: "show vlans", Kind: Etree, Parser: ".//vlan"},
	},
}
