// Package table holds the structured result a command may produce instead of
// plain text output, together with the rendering styles the CLI can be
// configured with.
package table

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Style selects how a Table is rendered.
type Style string

const (
	// StyleList renders one "column : value" block per row, blank line
	// separated. This is the default style.
	StyleList Style = "list"

	// StyleTable renders an aligned column grid with a heading row.
	StyleTable Style = "table"

	// StyleCSV renders RFC 4180 CSV with a heading row.
	StyleCSV Style = "csv"

	// StyleJSON renders a single JSON object with headings and data.
	StyleJSON Style = "json"
)

// ValidStyles lists the accepted --format values.
var ValidStyles = []Style{StyleList, StyleTable, StyleCSV, StyleJSON}

// ParseStyle validates a user-supplied style name.
func ParseStyle(s string) (Style, error) {
	for _, v := range ValidStyles {
		if Style(s) == v {
			return v, nil
		}
	}
	names := make([]string, len(ValidStyles))
	for i, v := range ValidStyles {
		names[i] = string(v)
	}
	return "", fmt.Errorf("unknown table format %q (use one of %s)", s, strings.Join(names, "|"))
}

// Table is an ordered grid of string cells with named columns.
type Table struct {
	Caption string
	columns []string
	rows    [][]string
}

// New creates a table with the given column headings.
func New(columns ...string) *Table {
	return &Table{columns: columns}
}

// Columns returns the column headings in declaration order.
func (t *Table) Columns() []string { return t.columns }

// AddRow appends a row. The number of cells must match the column count.
func (t *Table) AddRow(cells ...string) {
	if len(cells) != len(t.columns) {
		panic(fmt.Sprintf("table: row has %d cells, want %d", len(cells), len(t.columns)))
	}
	t.rows = append(t.rows, cells)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table to w in the given style.
func (t *Table) Render(w io.Writer, style Style) error {
	switch style {
	case StyleList:
		return t.renderList(w)
	case StyleTable:
		return t.renderTable(w)
	case StyleCSV:
		return t.renderCSV(w)
	case StyleJSON:
		return t.renderJSON(w)
	default:
		return fmt.Errorf("unknown table format %q", style)
	}
}

func (t *Table) renderList(w io.Writer) error {
	width := 0
	for _, c := range t.columns {
		if len(c) > width {
			width = len(c)
		}
	}
	for i, row := range t.rows {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		for j, c := range t.columns {
			if _, err := fmt.Fprintf(w, "%-*s : %s\n", width, c, row[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *Table) renderTable(w io.Writer) error {
	widths := make([]int, len(t.columns))
	for i, c := range t.columns {
		widths[i] = len(c)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	if t.Caption != "" {
		if _, err := fmt.Fprintln(w, t.Caption); err != nil {
			return err
		}
	}
	writeRow := func(cells []string) error {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = fmt.Sprintf("%-*s", widths[i], cell)
		}
		_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, " "), " "))
		return err
	}
	if err := writeRow(t.columns); err != nil {
		return err
	}
	rules := make([]string, len(t.columns))
	for i := range rules {
		rules[i] = strings.Repeat("-", widths[i])
	}
	if _, err := fmt.Fprintln(w, strings.Join(rules, " ")); err != nil {
		return err
	}
	for _, row := range t.rows {
		if err := writeRow(row); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) renderCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.columns); err != nil {
		return err
	}
	for _, row := range t.rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t *Table) renderJSON(w io.Writer) error {
	doc := struct {
		Caption  string     `json:"caption,omitempty"`
		Headings []string   `json:"headings"`
		Data     [][]string `json:"data"`
	}{
		Caption:  t.Caption,
		Headings: t.columns,
		Data:     t.rows,
	}
	if doc.Data == nil {
		doc.Data = [][]string{}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(doc)
}
