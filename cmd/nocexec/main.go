// Command nocexec runs commands and reads inventory on network devices over SSH,
// Telnet or NETCONF.
package main

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
