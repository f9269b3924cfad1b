package nb

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/session"
)

func registerRuleCommands(reg *ctl.Registry) {
	reg.Register(&ctl.Syntax{
		Name: "rule-add", MinArgs: 5, MaxArgs: 5, Usage: "SWITCH DIRECTION PRIORITY MATCH ACTION",
		Options: []string{"--log"},
		Mode:    ctl.ReadWrite,
		Run:     cmdRuleAdd,
	})
	reg.Register(&ctl.Syntax{
		Name: "rule-del", MinArgs: 1, MaxArgs: 4, Usage: "SWITCH [DIRECTION [PRIORITY MATCH]]",
		Mode: ctl.ReadWrite,
		Run:  cmdRuleDel,
	})
	reg.Register(&ctl.Syntax{
		Name: "rule-list", MinArgs: 1, MaxArgs: 1, Usage: "SWITCH",
		Mode: ctl.ReadOnly,
		Run:  cmdRuleList,
	})
}

// parseDirection accepts the full spelling or its first letter.
func parseDirection(arg string) (string, error) {
	switch {
	case len(arg) > 0 && arg[0] == 't':
		return "to-port", nil
	case len(arg) > 0 && arg[0] == 'f':
		return "from-port", nil
	default:
		return "", fmt.Errorf("%s: direction must be \"to-port\" or \"from-port\"", arg)
	}
}

func parsePriority(arg string) (int64, error) {
	priority, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || priority < 0 || priority > 32767 {
		return 0, fmt.Errorf("%s: priority must be in range 0...32767", arg)
	}
	return priority, nil
}

func cmdRuleAdd(c *ctl.Context) error {
	swID, swRow, err := switchByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	direction, err := parseDirection(c.Cmd.Args[1])
	if err != nil {
		return err
	}
	priority, err := parsePriority(c.Cmd.Args[2])
	if err != nil {
		return err
	}
	action := c.Cmd.Args[4]
	switch action {
	case "allow", "allow-related", "drop", "reject":
	default:
		return fmt.Errorf("%s: action must be one of \"allow\", \"allow-related\", \"drop\", and \"reject\"", action)
	}

	row := session.Row{
		"direction": direction,
		"priority":  priority,
		"match":     c.Cmd.Args[3],
		"action":    action,
	}
	if c.Cmd.HasOption("--log") {
		row["log"] = true
	}
	id := c.Session.RowID()
	c.Txn.Insert("rule", id, row)
	appendRef(c, "switch", swID, swRow, "rules", id)
	return nil
}

func cmdRuleDel(c *ctl.Context) error {
	swID, swRow, err := switchByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	if len(c.Cmd.Args) == 4 {
		return fmt.Errorf("cannot specify priority without match")
	}

	if len(c.Cmd.Args) == 1 {
		// Deleting all references unhooks every rule; the store's garbage
		// collection removes the rows themselves.
		c.Txn.Update("switch", swID, "rules", nil)
		return nil
	}

	direction, err := parseDirection(c.Cmd.Args[1])
	if err != nil {
		return err
	}

	if len(c.Cmd.Args) == 2 {
		kept := make([]uuid.UUID, 0)
		for _, rid := range swRow.Refs("rules") {
			rrow, ok := c.Row("rule", rid)
			if ok && rrow.String("direction") == direction {
				continue
			}
			kept = append(kept, rid)
		}
		if len(kept) == 0 {
			c.Txn.Update("switch", swID, "rules", nil)
		} else {
			c.Txn.Update("switch", swID, "rules", kept)
		}
		return nil
	}

	priority, err := parsePriority(c.Cmd.Args[2])
	if err != nil {
		return err
	}
	match := c.Cmd.Args[3]
	for _, rid := range swRow.Refs("rules") {
		rrow, ok := c.Row("rule", rid)
		if !ok {
			continue
		}
		p, _ := rrow.Int("priority")
		if rrow.String("direction") == direction && p == priority && rrow.String("match") == match {
			removeRef(c, "switch", swID, swRow, "rules", rid)
			return nil
		}
	}
	return nil
}

func cmdRuleList(c *ctl.Context) error {
	_, swRow, err := switchByNameOrID(c, c.Cmd.Args[0], true)
	if err != nil {
		return err
	}
	rules := make([]session.Row, 0)
	for _, rid := range swRow.Refs("rules") {
		if rrow, ok := c.Row("rule", rid); ok {
			rules = append(rules, rrow)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		di, dj := rules[i].String("direction"), rules[j].String("direction")
		if di != dj {
			return di < dj
		}
		pi, _ := rules[i].Int("priority")
		pj, _ := rules[j].Int("priority")
		if pi != pj {
			return pi > pj
		}
		return rules[i].String("match") < rules[j].String("match")
	})
	for _, r := range rules {
		priority, _ := r.Int("priority")
		suffix := ""
		if log, ok := r.Bool("log"); ok && log {
			suffix = " log"
		}
		c.Printf("%10s %5d (%s) %s%s\n", r.String("direction"), priority, r.String("match"), r.String("action"), suffix)
	}
	return nil
}
