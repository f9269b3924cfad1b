package nb

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/session"
)

func registerPortCommands(reg *ctl.Registry) {
	reg.Register(&ctl.Syntax{
		Name: "port-add", MinArgs: 2, MaxArgs: 4, Usage: "SWITCH PORT [PARENT TAG]",
		Options: []string{"--may-exist"},
		Mode:    ctl.ReadWrite,
		Run:     cmdPortAdd,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-del", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Options: []string{"--if-exists"},
		Mode:    ctl.ReadWrite,
		Run:     cmdPortDel,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-list", MinArgs: 1, MaxArgs: 1, Usage: "SWITCH",
		Mode: ctl.ReadOnly,
		Run:  cmdPortList,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-get-parent", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Mode: ctl.ReadOnly,
		Run:  cmdPortGetParent,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-get-tag", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Mode: ctl.ReadOnly,
		Run:  cmdPortGetTag,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-set-addresses", MinArgs: 1, MaxArgs: ctl.ManyArgs, Usage: "PORT [ADDRESS]...",
		Mode: ctl.ReadWrite,
		Run:  cmdPortSetAddresses,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-get-addresses", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Mode: ctl.ReadOnly,
		Run:  cmdPortGetAddresses,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-set-port-security", MinArgs: 1, MaxArgs: ctl.ManyArgs, Usage: "PORT [ADDRESS]...",
		Mode: ctl.ReadWrite,
		Run:  cmdPortSetPortSecurity,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-get-port-security", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Mode: ctl.ReadOnly,
		Run:  cmdPortGetPortSecurity,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-get-up", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Mode: ctl.ReadOnly,
		Run:  cmdPortGetUp,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-set-enabled", MinArgs: 2, MaxArgs: 2, Usage: "PORT STATE",
		Mode: ctl.ReadWrite,
		Run:  cmdPortSetEnabled,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-get-enabled", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Mode: ctl.ReadOnly,
		Run:  cmdPortGetEnabled,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-set-type", MinArgs: 2, MaxArgs: 2, Usage: "PORT TYPE",
		Mode: ctl.ReadWrite,
		Run:  cmdPortSetType,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-get-type", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Mode: ctl.ReadOnly,
		Run:  cmdPortGetType,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-set-options", MinArgs: 1, MaxArgs: ctl.ManyArgs, Usage: "PORT KEY=VALUE...",
		Mode: ctl.ReadWrite,
		Run:  cmdPortSetOptions,
	})
	reg.Register(&ctl.Syntax{
		Name: "port-get-options", MinArgs: 1, MaxArgs: 1, Usage: "PORT",
		Mode: ctl.ReadOnly,
		Run:  cmdPortGetOptions,
	})
}

func cmdPortAdd(c *ctl.Context) error {
	mayExist := c.Cmd.HasOption("--may-exist")

	swID, swRow, err := switchByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}

	var parent string
	tag := int64(-1)
	switch len(c.Cmd.Args) {
	case 2:
	case 4:
		parent = c.Cmd.Args[2]
		tag, err = strconv.ParseInt(c.Cmd.Args[3], 10, 64)
		if err != nil || tag < 0 || tag > 4095 {
			return fmt.Errorf("%s: invalid tag", c.Cmd.Args[3])
		}
	default:
		return fmt.Errorf("port-add with parent must also specify a tag")
	}

	portName := c.Cmd.Args[1]
	portID, portRow, err := portByNameOrID(c, portName, false)
	if err != nil {
		return err
	}
	if portRow != nil {
		if !mayExist {
			return fmt.Errorf("%s: a port with this name already exists", portName)
		}
		owner, ownerRow, ok := portOwner(c, portID)
		if !ok || owner != swID {
			ownerName := "no switch"
			if ok {
				ownerName = displayName(owner, ownerRow)
			}
			return fmt.Errorf("%s: port already exists but in switch %s", portName, ownerName)
		}
		if parent != "" {
			if portRow.String("parent") == "" {
				return fmt.Errorf("%s: port already exists but has no parent", portName)
			}
			if portRow.String("parent") != parent {
				return fmt.Errorf("%s: port already exists with different parent %s", portName, portRow.String("parent"))
			}
			existingTag, ok := portRow.Int("tag")
			if !ok {
				return fmt.Errorf("%s: port already exists but has no tag", portName)
			}
			if existingTag != tag {
				return fmt.Errorf("%s: port already exists with different tag %d", portName, existingTag)
			}
		} else if portRow.String("parent") != "" {
			return fmt.Errorf("%s: port already exists but has parent %s", portName, portRow.String("parent"))
		}
		return nil
	}

	row := session.Row{"name": portName}
	if parent != "" {
		row["parent"] = parent
		row["tag"] = tag
	}
	id := c.Session.RowID()
	c.Txn.Insert("port", id, row)
	appendRef(c, "switch", swID, swRow, "ports", id)
	return nil
}

func cmdPortDel(c *ctl.Context) error {
	mustExist := !c.Cmd.HasOption("--if-exists")
	id, row, err := portByNameOrID(c, c.Cmd.Args[0], mustExist)
	if err != nil {
		return err
	}
	if row == nil {
		return nil
	}
	owner, ownerRow, ok := portOwner(c, id)
	if !ok {
		return fmt.Errorf("port %s is not part of any switch", c.Cmd.Args[0])
	}
	removeRef(c, "switch", owner, ownerRow, "ports", id)
	c.Txn.Delete("port", id)
	return nil
}

func cmdPortList(c *ctl.Context) error {
	_, swRow, err := switchByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	lines := make([]string, 0)
	byName := make(map[string]string)
	for _, pid := range swRow.Refs("ports") {
		prow, ok := c.Row("port", pid)
		if !ok {
			continue
		}
		key := displayName(pid, prow)
		byName[key] = fmt.Sprintf("%s (%s)", pid, prow.String("name"))
		lines = append(lines, key)
	}
	sortNames(lines)
	for _, key := range lines {
		c.Printf("%s\n", byName[key])
	}
	return nil
}

func cmdPortGetParent(c *ctl.Context) error {
	_, row, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	if parent := row.String("parent"); parent != "" {
		c.Printf("%s\n", parent)
	}
	return nil
}

func cmdPortGetTag(c *ctl.Context) error {
	_, row, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	if tag, ok := row.Int("tag"); ok {
		c.Printf("%d\n", tag)
	}
	return nil
}

// validateAddresses checks each entry for the "unknown", "MAC", or
// "MAC IP" forms, where "MAC IP" is a single argument.
func validateAddresses(addrs []string) error {
	for _, addr := range addrs {
		if addr == "unknown" {
			continue
		}
		mac := addr
		if i := strings.IndexByte(addr, ' '); i >= 0 {
			mac = addr[:i]
		}
		if _, err := net.ParseMAC(mac); err != nil {
			return fmt.Errorf("%s: invalid address format; an Ethernet address must be listed before an IP address, together as a single argument", addr)
		}
	}
	return nil
}

func cmdPortSetAddresses(c *ctl.Context) error {
	id, _, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	addrs := c.Cmd.Args[1:]
	if err := validateAddresses(addrs); err != nil {
		return err
	}
	if len(addrs) == 0 {
		c.Txn.Update("port", id, "addresses", nil)
	} else {
		c.Txn.Update("port", id, "addresses", append([]string(nil), addrs...))
	}
	return nil
}

func cmdPortGetAddresses(c *ctl.Context) error {
	_, row, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	addrs := append([]string(nil), row.Strings("addresses")...)
	sortNames(addrs)
	for _, addr := range addrs {
		c.Printf("%s\n", addr)
	}
	return nil
}

func cmdPortSetPortSecurity(c *ctl.Context) error {
	id, _, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	addrs := c.Cmd.Args[1:]
	if err := validateAddresses(addrs); err != nil {
		return err
	}
	if len(addrs) == 0 {
		c.Txn.Update("port", id, "port_security", nil)
	} else {
		c.Txn.Update("port", id, "port_security", append([]string(nil), addrs...))
	}
	return nil
}

func cmdPortGetPortSecurity(c *ctl.Context) error {
	_, row, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	addrs := append([]string(nil), row.Strings("port_security")...)
	sortNames(addrs)
	for _, addr := range addrs {
		c.Printf("%s\n", addr)
	}
	return nil
}

func cmdPortGetUp(c *ctl.Context) error {
	_, row, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	if up, ok := row.Bool("up"); ok && up {
		c.Printf("up\n")
	} else {
		c.Printf("down\n")
	}
	return nil
}

func cmdPortSetEnabled(c *ctl.Context) error {
	id, _, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	switch strings.ToLower(c.Cmd.Args[1]) {
	case "enabled":
		c.Txn.Update("port", id, "enabled", true)
	case "disabled":
		c.Txn.Update("port", id, "enabled", false)
	default:
		return fmt.Errorf("%s: state must be \"enabled\" or \"disabled\"", c.Cmd.Args[1])
	}
	return nil
}

func cmdPortGetEnabled(c *ctl.Context) error {
	_, row, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	if enabled, ok := row.Bool("enabled"); ok && !enabled {
		c.Printf("disabled\n")
	} else {
		c.Printf("enabled\n")
	}
	return nil
}

func cmdPortSetType(c *ctl.Context) error {
	id, _, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	c.Txn.Update("port", id, "type", c.Cmd.Args[1])
	return nil
}

func cmdPortGetType(c *ctl.Context) error {
	_, row, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	c.Printf("%s\n", row.String("type"))
	return nil
}

func cmdPortSetOptions(c *ctl.Context) error {
	id, _, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	options := make(map[string]string)
	for _, pair := range c.Cmd.Args[1:] {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%s: option must be of the form KEY=VALUE", pair)
		}
		options[key] = value
	}
	if len(options) == 0 {
		c.Txn.Update("port", id, "options", nil)
	} else {
		c.Txn.Update("port", id, "options", options)
	}
	return nil
}

func cmdPortGetOptions(c *ctl.Context) error {
	_, row, err := portByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	options := row.Map("options")
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sortNames(keys)
	for _, k := range keys {
		c.Printf("%s=%s\n", k, options[k])
	}
	return nil
}
