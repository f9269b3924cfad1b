package nb

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/session"
)

// collator orders user-visible name listings.
var collator = collate.New(language.Und)

func sortNames(names []string) {
	collator.SortStrings(names)
}

// recordByNameOrID resolves a record argument: a UUID, or a value of the
// table's "name" column. With mustExist false a missing record returns
// uuid.Nil and no error.
func recordByNameOrID(c *ctl.Context, table, id string, mustExist bool) (uuid.UUID, session.Row, error) {
	if parsed, err := uuid.Parse(id); err == nil {
		if row, ok := c.Row(table, parsed); ok {
			return parsed, row, nil
		}
		if mustExist {
			return uuid.Nil, nil, fmt.Errorf("no row %q in table %s", id, table)
		}
		return uuid.Nil, nil, nil
	}

	var found uuid.UUID
	var foundRow session.Row
	for rid, row := range c.Rows(table) {
		if row.String("name") != id {
			continue
		}
		if foundRow != nil {
			return uuid.Nil, nil, fmt.Errorf("multiple rows in %s named %q, use a UUID", table, id)
		}
		found, foundRow = rid, row
	}
	if foundRow == nil {
		if mustExist {
			return uuid.Nil, nil, fmt.Errorf("no row %q in table %s", id, table)
		}
		return uuid.Nil, nil, nil
	}
	return found, foundRow, nil
}

// switchByNameOrID is recordByNameOrID on the switch table with the
// original diagnostic wording.
func switchByNameOrID(c *ctl.Context, id string, mustExist bool) (uuid.UUID, session.Row, error) {
	sw, row, err := recordByNameOrID(c, "switch", id, false)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if row == nil && mustExist {
		return uuid.Nil, nil, fmt.Errorf("%s: switch not found", id)
	}
	return sw, row, nil
}

func portByNameOrID(c *ctl.Context, id string, mustExist bool) (uuid.UUID, session.Row, error) {
	p, row, err := recordByNameOrID(c, "port", id, false)
	if err != nil {
		return uuid.Nil, nil, err
	}
	if row == nil && mustExist {
		return uuid.Nil, nil, fmt.Errorf("%s: port not found", id)
	}
	return p, row, nil
}

// portOwner finds the switch whose ports column holds the port.
func portOwner(c *ctl.Context, port uuid.UUID) (uuid.UUID, session.Row, bool) {
	for sid, row := range c.Rows("switch") {
		if row.HasRef("ports", port) {
			return sid, row, true
		}
	}
	return uuid.Nil, nil, false
}

// displayName prefers the name column and falls back to the UUID.
func displayName(id uuid.UUID, row session.Row) string {
	if name := row.String("name"); name != "" {
		return name
	}
	return id.String()
}

// appendRef queues adding id to a reference set column of an existing row.
func appendRef(c *ctl.Context, table string, owner uuid.UUID, row session.Row, column string, id uuid.UUID) {
	refs := append(append([]uuid.UUID(nil), row.Refs(column)...), id)
	c.Txn.Update(table, owner, column, refs)
}

// removeRef queues removal of id from a reference set column.
func removeRef(c *ctl.Context, table string, owner uuid.UUID, row session.Row, column string, id uuid.UUID) {
	refs := make([]uuid.UUID, 0, len(row.Refs(column)))
	for _, ref := range row.Refs(column) {
		if ref != id {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		c.Txn.Update(table, owner, column, nil)
	} else {
		c.Txn.Update(table, owner, column, refs)
	}
}
