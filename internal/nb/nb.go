// Package nb registers the meshctl command set: domain commands for
// switches, ports and access rules, and the generic record commands that
// work on any table of the schema.
//
// Handlers are plain CRUD bodies over the execution context; all engine
// mechanics (transactions, retries, symbol bookkeeping) live elsewhere.
package nb

import (
	"github.com/roach88/meshctl/internal/ctl"
)

// Commands builds the verb registry.
func Commands() *ctl.Registry {
	reg := ctl.NewRegistry()
	registerSwitchCommands(reg)
	registerPortCommands(reg)
	registerRuleCommands(reg)
	registerDBCommands(reg)
	return reg
}
