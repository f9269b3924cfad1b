package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/roach88/meshctl/internal/ctl"
	"github.com/roach88/meshctl/internal/table"
)

// Dispatch writes the output of every command, in batch order, after a
// successful commit. Structured tables render in the selected style; plain
// output is either passed through verbatim or folded to one line per
// command.
func Dispatch(w io.Writer, cmds []*ctl.Command, style table.Style, oneline bool) error {
	for _, cmd := range cmds {
		if cmd.Table != nil {
			if err := cmd.Table.Render(w, style); err != nil {
				return err
			}
			continue
		}
		out := cmd.Output.String()
		if oneline {
			if _, err := io.WriteString(w, onelineFold(out)); err != nil {
				return err
			}
			continue
		}
		if _, err := io.WriteString(w, out); err != nil {
			return err
		}
	}
	return nil
}

// onelineFold renders one command's output as exactly one line: the final
// trailing newline is dropped, every backslash doubles, and every interior
// newline becomes the two characters backslash-n. The folding is
// reversible.
func onelineFold(out string) string {
	out = strings.TrimSuffix(out, "\n")
	var b strings.Builder
	b.Grow(len(out) + 1)
	for _, r := range out {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('\n')
	return b.String()
}

// PrintCommands writes one line per registered verb with its usage and
// command-local options, in sorted order.
func PrintCommands(w io.Writer, reg *ctl.Registry) {
	for _, name := range reg.Names() {
		s, _ := reg.Lookup(name)
		line := name
		if s.Usage != "" {
			line += " " + s.Usage
		}
		for _, opt := range s.Options {
			line += " [" + opt + "]"
		}
		fmt.Fprintln(w, line)
	}
}

// Diagnostic prints the single failure line every non-zero exit carries.
func Diagnostic(w io.Writer, err error) {
	fmt.Fprintf(w, "meshctl: %v\n", err)
}
