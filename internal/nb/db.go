package nb

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/schema"
	"github.com/roach88/meshctl/internal/session"
	"github.com/roach88/meshctl/internal/table"
)

func registerDBCommands(reg *ctl.Registry) {
	reg.Register(&ctl.Syntax{
		Name: "create", MinArgs: 1, MaxArgs: ctl.ManyArgs, Usage: "TABLE [COLUMN=VALUE]...",
		Options:       []string{"--id="},
		Mode:          ctl.ReadWrite,
		Prerequisites: preCreate,
		Run:           cmdCreate,
		Postprocess:   postCreate,
	})
	reg.Register(&ctl.Syntax{
		Name: "destroy", MinArgs: 1, MaxArgs: ctl.ManyArgs, Usage: "TABLE [RECORD]...",
		Options:       []string{"--if-exists"},
		Mode:          ctl.ReadWrite,
		Prerequisites: preTableOnly,
		Run:           cmdDestroy,
	})
	reg.Register(&ctl.Syntax{
		Name: "list", MinArgs: 1, MaxArgs: ctl.ManyArgs, Usage: "TABLE [RECORD]...",
		Mode:          ctl.ReadOnly,
		Prerequisites: preTableOnly,
		Run:           cmdList,
	})
	reg.Register(&ctl.Syntax{
		Name: "get", MinArgs: 3, MaxArgs: ctl.ManyArgs, Usage: "TABLE RECORD COLUMN[:KEY]...",
		Mode:          ctl.ReadOnly,
		Prerequisites: preColumns(2),
		Run:           cmdGet,
	})
	reg.Register(&ctl.Syntax{
		Name: "set", MinArgs: 3, MaxArgs: ctl.ManyArgs, Usage: "TABLE RECORD COLUMN[:KEY]=VALUE...",
		Mode:          ctl.ReadWrite,
		Prerequisites: preAssignments(2),
		Run:           cmdSet,
	})
	reg.Register(&ctl.Syntax{
		Name: "add", MinArgs: 4, MaxArgs: ctl.ManyArgs, Usage: "TABLE RECORD COLUMN VALUE...",
		Mode:          ctl.ReadWrite,
		Prerequisites: preColumnAt(2),
		Run:           cmdAdd,
	})
	reg.Register(&ctl.Syntax{
		Name: "remove", MinArgs: 4, MaxArgs: ctl.ManyArgs, Usage: "TABLE RECORD COLUMN VALUE...",
		Mode:          ctl.ReadWrite,
		Prerequisites: preColumnAt(2),
		Run:           cmdRemove,
	})
	reg.Register(&ctl.Syntax{
		Name: "clear", MinArgs: 3, MaxArgs: ctl.ManyArgs, Usage: "TABLE RECORD COLUMN...",
		Mode:          ctl.ReadWrite,
		Prerequisites: preColumns(2),
		Run:           cmdClear,
	})
	reg.Register(&ctl.Syntax{
		Name: "wait-until", MinArgs: 2, MaxArgs: ctl.ManyArgs, Usage: "TABLE RECORD [COLUMN[:KEY]=VALUE]...",
		Mode:          ctl.ReadOnly,
		Prerequisites: preAssignments(2),
		Run:           cmdWaitUntil,
	})
}

func tableByName(c *ctl.Context, name string) (*schema.Table, error) {
	ts, ok := c.Session.Schema().Table(name)
	if !ok {
		return nil, fmt.Errorf("no table %q", name)
	}
	return ts, nil
}

// parseColumnKey splits COLUMN[:KEY]. Keys are only meaningful on map
// columns.
func parseColumnKey(ts *schema.Table, spec string) (*schema.Column, string, error) {
	name, key, hasKey := strings.Cut(spec, ":")
	col, ok := ts.Column(name)
	if !ok {
		return nil, "", fmt.Errorf("table %s has no column %q", ts.Name, name)
	}
	if hasKey && col.Type != schema.TypeMap {
		return nil, "", fmt.Errorf("cannot specify key %q on non-map column %s", key, name)
	}
	return col, key, nil
}

// resolveRefToken resolves one element of a reference set: a @symbol, a
// UUID, or a value of the target table's "name" column. Symbol use records
// reference strength for the post-mutate consistency check.
func resolveRefToken(c *ctl.Context, col *schema.Column, token string) (uuid.UUID, error) {
	if strings.HasPrefix(token, "@") {
		sym := c.Symtab.Get(token[1:])
		if col.Strength == schema.RefWeak {
			sym.WeakRef = true
		} else {
			sym.StrongRef = true
		}
		return sym.ID, nil
	}
	id, _, err := recordByNameOrID(c, col.Ref, token, true)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// parseValue converts a user token into the column's value kind.
func parseValue(c *ctl.Context, col *schema.Column, token string) (any, error) {
	switch col.Type {
	case schema.TypeString:
		return token, nil
	case schema.TypeInteger:
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q: expected integer for column %s", token, col.Name)
		}
		return n, nil
	case schema.TypeBoolean:
		switch token {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, fmt.Errorf("%q: expected true or false for column %s", token, col.Name)
		}
	case schema.TypeSet:
		elems := splitSet(token)
		if col.IsRef() {
			refs := make([]uuid.UUID, 0, len(elems))
			for _, e := range elems {
				id, err := resolveRefToken(c, col, e)
				if err != nil {
					return nil, err
				}
				refs = append(refs, id)
			}
			if len(refs) == 0 {
				return nil, nil
			}
			return refs, nil
		}
		if len(elems) == 0 {
			return nil, nil
		}
		return elems, nil
	case schema.TypeMap:
		elems := splitSet(token)
		m := make(map[string]string, len(elems))
		for _, e := range elems {
			k, v, ok := strings.Cut(e, "=")
			if !ok {
				return nil, fmt.Errorf("%q: expected KEY=VALUE for map column %s", e, col.Name)
			}
			m[k] = v
		}
		if len(m) == 0 {
			return nil, nil
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown column type %q", col.Type)
	}
}

// splitSet parses "a,b,c", "[a, b]" or "[]" into elements.
func splitSet(token string) []string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "[") && strings.HasSuffix(token, "]") {
		token = token[1 : len(token)-1]
	}
	if token == "" {
		return nil
	}
	parts := strings.Split(token, ",")
	elems := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			elems = append(elems, p)
		}
	}
	return elems
}

// columnValue reads COLUMN[:KEY] out of a row, formatted for output.
func columnValue(row session.Row, col *schema.Column, key string) (string, error) {
	if key != "" {
		m := row.Map(col.Name)
		v, ok := m[key]
		if !ok {
			return "", fmt.Errorf("no key %q in column %s", key, col.Name)
		}
		return v, nil
	}
	return session.FormatValue(row[col.Name]), nil
}

// Prerequisite validators. These run before any transaction exists and
// check only what the schema can answer: table and column names. Missing
// records cannot be checked here because earlier commands of the same
// batch may create them.

func preTableOnly(c *ctl.Context) error {
	_, err := tableByName(c, c.Cmd.Args[0])
	return err
}

func preCreate(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}
	if id, ok := c.Cmd.OptionValue("--id"); ok && !strings.HasPrefix(id, "@") {
		return fmt.Errorf("row id %q must begin with \"@\"", id)
	}
	for _, pair := range c.Cmd.Args[1:] {
		spec, _, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%q: expected COLUMN=VALUE", pair)
		}
		if _, _, err := parseColumnKey(ts, spec); err != nil {
			return err
		}
	}
	return nil
}

// preColumns validates that every argument from position on names a real
// column of the table in argument 0.
func preColumns(position int) func(*ctl.Context) error {
	return func(c *ctl.Context) error {
		ts, err := tableByName(c, c.Cmd.Args[0])
		if err != nil {
			return err
		}
		for _, spec := range c.Cmd.Args[position:] {
			if _, _, err := parseColumnKey(ts, spec); err != nil {
				return err
			}
		}
		return nil
	}
}

// preColumnAt validates the single column argument at position; the
// arguments after it are values.
func preColumnAt(position int) func(*ctl.Context) error {
	return func(c *ctl.Context) error {
		ts, err := tableByName(c, c.Cmd.Args[0])
		if err != nil {
			return err
		}
		_, _, err = parseColumnKey(ts, c.Cmd.Args[position])
		return err
	}
}

// preAssignments validates COLUMN[:KEY]=VALUE arguments from position on.
func preAssignments(position int) func(*ctl.Context) error {
	return func(c *ctl.Context) error {
		ts, err := tableByName(c, c.Cmd.Args[0])
		if err != nil {
			return err
		}
		for _, pair := range c.Cmd.Args[position:] {
			spec, _, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("%q: expected COLUMN[:KEY]=VALUE", pair)
			}
			if _, _, err := parseColumnKey(ts, spec); err != nil {
				return err
			}
		}
		return nil
	}
}

func cmdCreate(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}

	id := c.Session.RowID()
	if symName, ok := c.Cmd.OptionValue("--id"); ok {
		if !strings.HasPrefix(symName, "@") {
			return fmt.Errorf("row id %q must begin with \"@\"", symName)
		}
		sym := c.Symtab.Get(symName[1:])
		if sym.Created {
			return fmt.Errorf("row id %q may only be created once", symName)
		}
		sym.Created = true
		id = sym.ID
	}

	row := session.Row{}
	for _, pair := range c.Cmd.Args[1:] {
		spec, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%q: expected COLUMN=VALUE", pair)
		}
		col, key, err := parseColumnKey(ts, spec)
		if err != nil {
			return err
		}
		if key != "" {
			m, _ := row[col.Name].(map[string]string)
			if m == nil {
				m = make(map[string]string)
				row[col.Name] = m
			}
			m[key] = value
			continue
		}
		v, err := parseValue(c, col, value)
		if err != nil {
			return err
		}
		if v != nil {
			row[col.Name] = v
		}
	}

	c.Txn.Insert(ts.Name, id, row)
	c.Cmd.Result = id
	return nil
}

// postCreate reports the identifier of the created row once the commit
// made it permanent.
func postCreate(c *ctl.Context) error {
	if id, ok := c.Cmd.Result.(uuid.UUID); ok {
		c.Printf("%s\n", id)
	}
	return nil
}

func cmdDestroy(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}
	mustExist := !c.Cmd.HasOption("--if-exists")
	for _, arg := range c.Cmd.Args[1:] {
		id, row, err := recordByNameOrID(c, ts.Name, arg, mustExist)
		if err != nil {
			return err
		}
		if row == nil {
			continue
		}
		c.Txn.Delete(ts.Name, id)
	}
	return nil
}

func cmdList(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}

	var ids []uuid.UUID
	if len(c.Cmd.Args) > 1 {
		for _, arg := range c.Cmd.Args[1:] {
			id, _, err := recordByNameOrID(c, ts.Name, arg, true)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
	} else {
		for id := range c.Rows(ts.Name) {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	}

	columns := append([]string{"_uuid"}, ts.ColumnNames()...)
	t := table.New(columns...)
	t.Caption = ts.Name
	for _, id := range ids {
		row, _ := c.Row(ts.Name, id)
		cells := make([]string, len(columns))
		cells[0] = id.String()
		for i, name := range columns[1:] {
			cells[i+1] = session.FormatValue(row[name])
		}
		t.AddRow(cells...)
	}
	c.SetTable(t)
	return nil
}

func cmdGet(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}
	_, row, err := recordByNameOrID(c, ts.Name, c.Cmd.Args[1], true)
	if err != nil {
		return err
	}
	for _, spec := range c.Cmd.Args[2:] {
		col, key, err := parseColumnKey(ts, spec)
		if err != nil {
			return err
		}
		v, err := columnValue(row, col, key)
		if err != nil {
			return err
		}
		c.Printf("%s\n", v)
	}
	return nil
}

func cmdSet(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}
	id, row, err := recordByNameOrID(c, ts.Name, c.Cmd.Args[1], true)
	if err != nil {
		return err
	}
	work := row.Clone()
	for _, pair := range c.Cmd.Args[2:] {
		spec, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%q: expected COLUMN[:KEY]=VALUE", pair)
		}
		col, key, err := parseColumnKey(ts, spec)
		if err != nil {
			return err
		}
		if key != "" {
			m := work.Map(col.Name)
			if m == nil {
				m = make(map[string]string)
			}
			m[key] = value
			work[col.Name] = m
			continue
		}
		v, err := parseValue(c, col, value)
		if err != nil {
			return err
		}
		if v == nil {
			delete(work, col.Name)
		} else {
			work[col.Name] = v
		}
	}
	for _, name := range ts.ColumnNames() {
		oldV, hadOld := row[name]
		newV, hasNew := work[name]
		if hadOld == hasNew && session.FormatValue(oldV) == session.FormatValue(newV) {
			continue
		}
		if !hasNew {
			c.Txn.Update(ts.Name, id, name, nil)
		} else {
			c.Txn.Update(ts.Name, id, name, newV)
		}
	}
	return nil
}

func cmdAdd(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}
	id, row, err := recordByNameOrID(c, ts.Name, c.Cmd.Args[1], true)
	if err != nil {
		return err
	}
	col, _, err := parseColumnKey(ts, c.Cmd.Args[2])
	if err != nil {
		return err
	}

	switch col.Type {
	case schema.TypeSet:
		if col.IsRef() {
			refs := append([]uuid.UUID(nil), row.Refs(col.Name)...)
			for _, arg := range c.Cmd.Args[3:] {
				for _, e := range splitSet(arg) {
					ref, err := resolveRefToken(c, col, e)
					if err != nil {
						return err
					}
					refs = append(refs, ref)
				}
			}
			c.Txn.Update(ts.Name, id, col.Name, refs)
			return nil
		}
		elems := append([]string(nil), row.Strings(col.Name)...)
		for _, arg := range c.Cmd.Args[3:] {
			elems = append(elems, splitSet(arg)...)
		}
		c.Txn.Update(ts.Name, id, col.Name, elems)
		return nil
	case schema.TypeMap:
		m := make(map[string]string)
		for k, v := range row.Map(col.Name) {
			m[k] = v
		}
		for _, arg := range c.Cmd.Args[3:] {
			for _, e := range splitSet(arg) {
				k, v, ok := strings.Cut(e, "=")
				if !ok {
					return fmt.Errorf("%q: expected KEY=VALUE for map column %s", e, col.Name)
				}
				m[k] = v
			}
		}
		c.Txn.Update(ts.Name, id, col.Name, m)
		return nil
	default:
		return fmt.Errorf("cannot add to non-set column %s", col.Name)
	}
}

func cmdRemove(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}
	id, row, err := recordByNameOrID(c, ts.Name, c.Cmd.Args[1], true)
	if err != nil {
		return err
	}
	col, _, err := parseColumnKey(ts, c.Cmd.Args[2])
	if err != nil {
		return err
	}

	switch col.Type {
	case schema.TypeSet:
		if col.IsRef() {
			drop := make(map[uuid.UUID]bool)
			for _, arg := range c.Cmd.Args[3:] {
				for _, e := range splitSet(arg) {
					ref, err := resolveRefToken(c, col, e)
					if err != nil {
						return err
					}
					drop[ref] = true
				}
			}
			kept := make([]uuid.UUID, 0)
			for _, ref := range row.Refs(col.Name) {
				if !drop[ref] {
					kept = append(kept, ref)
				}
			}
			if len(kept) == 0 {
				c.Txn.Update(ts.Name, id, col.Name, nil)
			} else {
				c.Txn.Update(ts.Name, id, col.Name, kept)
			}
			return nil
		}
		drop := make(map[string]bool)
		for _, arg := range c.Cmd.Args[3:] {
			for _, e := range splitSet(arg) {
				drop[e] = true
			}
		}
		kept := make([]string, 0)
		for _, e := range row.Strings(col.Name) {
			if !drop[e] {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			c.Txn.Update(ts.Name, id, col.Name, nil)
		} else {
			c.Txn.Update(ts.Name, id, col.Name, kept)
		}
		return nil
	case schema.TypeMap:
		m := make(map[string]string)
		for k, v := range row.Map(col.Name) {
			m[k] = v
		}
		for _, arg := range c.Cmd.Args[3:] {
			for _, e := range splitSet(arg) {
				key, _, _ := strings.Cut(e, "=")
				delete(m, key)
			}
		}
		if len(m) == 0 {
			c.Txn.Update(ts.Name, id, col.Name, nil)
		} else {
			c.Txn.Update(ts.Name, id, col.Name, m)
		}
		return nil
	default:
		return fmt.Errorf("cannot remove from non-set column %s", col.Name)
	}
}

func cmdClear(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}
	id, _, err := recordByNameOrID(c, ts.Name, c.Cmd.Args[1], true)
	if err != nil {
		return err
	}
	for _, spec := range c.Cmd.Args[2:] {
		col, _, err := parseColumnKey(ts, spec)
		if err != nil {
			return err
		}
		c.Txn.Update(ts.Name, id, col.Name, nil)
	}
	return nil
}

// cmdWaitUntil requests a retry until the record exists and every
// condition holds. The retry is invisible to the user beyond the delay.
func cmdWaitUntil(c *ctl.Context) error {
	ts, err := tableByName(c, c.Cmd.Args[0])
	if err != nil {
		return err
	}
	_, row, err := recordByNameOrID(c, ts.Name, c.Cmd.Args[1], false)
	if err != nil {
		return err
	}
	if row == nil {
		c.TryAgain = true
		return nil
	}
	for _, pair := range c.Cmd.Args[2:] {
		spec, want, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("%q: expected COLUMN[:KEY]=VALUE", pair)
		}
		col, key, err := parseColumnKey(ts, spec)
		if err != nil {
			return err
		}
		var got string
		if key != "" {
			got = row.Map(col.Name)[key]
		} else {
			got = session.FormatValue(row[col.Name])
		}
		if got != want {
			c.TryAgain = true
			return nil
		}
	}
	return nil
}
