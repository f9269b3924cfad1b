package nb

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/session"
)

func registerSwitchCommands(reg *ctl.Registry) {
	reg.Register(&ctl.Syntax{
		Name: "show", MinArgs: 0, MaxArgs: 1, Usage: "[SWITCH]",
		Mode: ctl.ReadOnly,
		Run:  cmdShow,
	})
	reg.Register(&ctl.Syntax{
		Name: "switch-add", MinArgs: 0, MaxArgs: 1, Usage: "[SWITCH]",
		Options: []string{"--may-exist", "--add-duplicate"},
		Mode:    ctl.ReadWrite,
		Run:     cmdSwitchAdd,
	})
	reg.Register(&ctl.Syntax{
		Name: "switch-del", MinArgs: 1, MaxArgs: 1, Usage: "SWITCH",
		Options: []string{"--if-exists"},
		Mode:    ctl.ReadWrite,
		Run:     cmdSwitchDel,
	})
	reg.Register(&ctl.Syntax{
		Name: "switch-list", MinArgs: 0, MaxArgs: 0,
		Mode: ctl.ReadOnly,
		Run:  cmdSwitchList,
	})
}

func printSwitch(c *ctl.Context, id uuid.UUID, row session.Row) {
	c.Printf("switch %s (%s)\n", id, row.String("name"))
	names := make([]string, 0)
	ports := make(map[string]session.Row)
	for _, pid := range row.Refs("ports") {
		if prow, ok := c.Row("port", pid); ok {
			name := displayName(pid, prow)
			names = append(names, name)
			ports[name] = prow
		}
	}
	sortNames(names)
	for _, name := range names {
		prow := ports[name]
		c.Printf("    port %s\n", name)
		if parent := prow.String("parent"); parent != "" {
			c.Printf("        parent: %s\n", parent)
		}
		if tag, ok := prow.Int("tag"); ok {
			c.Printf("        tag: %d\n", tag)
		}
		if addrs := prow.Strings("addresses"); len(addrs) > 0 {
			c.Printf("        addresses: %s\n", session.FormatValue(addrs))
		}
	}
}

func cmdShow(c *ctl.Context) error {
	if len(c.Cmd.Args) == 1 {
		id, row, err := switchByNameOrID(c, c.Cmd.Args[0], false)
		if err != nil {
			return err
		}
		if row != nil {
			printSwitch(c, id, row)
		}
		return nil
	}

	names := make([]string, 0)
	byName := make(map[string]uuid.UUID)
	for id, row := range c.Rows("switch") {
		key := displayName(id, row)
		names = append(names, key)
		byName[key] = id
	}
	sortNames(names)
	for _, name := range names {
		id := byName[name]
		row, _ := c.Row("switch", id)
		printSwitch(c, id, row)
	}
	return nil
}

func cmdSwitchAdd(c *ctl.Context) error {
	var name string
	if len(c.Cmd.Args) == 1 {
		name = c.Cmd.Args[0]
	}
	mayExist := c.Cmd.HasOption("--may-exist")
	addDuplicate := c.Cmd.HasOption("--add-duplicate")
	if mayExist && addDuplicate {
		return fmt.Errorf("--may-exist and --add-duplicate may not be used together")
	}

	switch {
	case name != "":
		if !addDuplicate {
			for _, row := range c.Rows("switch") {
				if row.String("name") == name {
					if mayExist {
						return nil
					}
					return fmt.Errorf("%s: a switch with this name already exists", name)
				}
			}
		}
	case mayExist:
		return fmt.Errorf("--may-exist requires specifying a name")
	case addDuplicate:
		return fmt.Errorf("--add-duplicate requires specifying a name")
	}

	row := session.Row{}
	if name != "" {
		row["name"] = name
	}
	c.Txn.Insert("switch", c.Session.RowID(), row)
	return nil
}

func cmdSwitchDel(c *ctl.Context) error {
	mustExist := !c.Cmd.HasOption("--if-exists")
	id, row, err := switchByNameOrID(c, c.Cmd.Args[0], mustExist)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}
	// Ports and rules reachable only through this switch disappear with it
	// through the store's garbage collection.
	c.Txn.Delete("switch", id)
	return nil
}

func cmdSwitchList(c *ctl.Context) error {
	lines := make([]string, 0)
	byName := make(map[string]string)
	for id, row := range c.Rows("switch") {
		key := displayName(id, row)
		byName[key] = fmt.Sprintf("%s (%s)", id, row.String("name"))
		lines = append(lines, key)
	}
	sortNames(lines)
	for _, key := range lines {
		c.Printf("%s\n", byName[key])
	}
	return nil
}
