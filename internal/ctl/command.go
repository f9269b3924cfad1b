package ctl

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/roach88/meshctl/internal/table"
)

// Command is one parsed command of a batch. The parse result (verb, args,
// options) is immutable across retry attempts; Output and Table are reset
// at the start of every attempt.
type Command struct {
	Syntax  *Syntax
	Args    []string          // positional arguments, verb excluded
	Options map[string]string // present options; "" for valueless ones

	Output bytes.Buffer
	Table  *table.Table

	// Result is handler scratch carried from the mutate phase to the
	// postprocess phase of the same attempt.
	Result any
}

// HasOption reports whether the option (spelled with leading dashes) was
// given.
func (c *Command) HasOption(name string) bool {
	_, ok := c.Options[name]
	return ok
}

// OptionValue returns the option's value and whether the option was given.
func (c *Command) OptionValue(name string) (string, bool) {
	v, ok := c.Options[name]
	return v, ok
}

// Reset clears per-attempt state.
func (c *Command) Reset() {
	c.Output.Reset()
	c.Table = nil
	c.Result = nil
}

// ParseBatch splits argv into "--"-separated command groups and parses each
// against the registry. Within a group, tokens starting with "--" are
// command-local options wherever they appear; the first other token is the
// verb and the rest are positional arguments.
func ParseBatch(reg *Registry, argv []string) ([]*Command, error) {
	var groups [][]string
	group := []string{}
	for _, arg := range argv {
		if arg == "--" {
			groups = append(groups, group)
			group = []string{}
			continue
		}
		group = append(group, arg)
	}
	groups = append(groups, group)

	cmds := make([]*Command, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		cmd, err := parseCommand(reg, g)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 {
		return nil, fmt.Errorf("missing command name (use --help for help)")
	}
	return cmds, nil
}

func parseCommand(reg *Registry, tokens []string) (*Command, error) {
	var verb string
	var args []string
	options := make(map[string]string)
	var optTokens []string

	for _, tok := range tokens {
		if strings.HasPrefix(tok, "--") {
			optTokens = append(optTokens, tok)
			continue
		}
		if verb == "" {
			verb = tok
			continue
		}
		args = append(args, tok)
	}
	if verb == "" {
		return nil, fmt.Errorf("missing command name (use --help for help)")
	}

	syntax, ok := reg.Lookup(verb)
	if !ok {
		return nil, fmt.Errorf("unknown command '%s'; use --help for help", verb)
	}

	for _, tok := range optTokens {
		name := tok
		value := ""
		hasValue := false
		if i := strings.Index(tok, "="); i >= 0 {
			name, value = tok[:i], tok[i+1:]
			hasValue = true
		}
		spec, found := "", false
		for _, s := range syntax.Options {
			if n, _ := splitOptionSpec(s); n == name {
				spec, found = s, true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("'%s' command has no '%s' option", verb, name)
		}
		_, wantsValue := splitOptionSpec(spec)
		if wantsValue && !hasValue {
			return nil, fmt.Errorf("'%s' option on '%s' requires an argument", name, verb)
		}
		if !wantsValue && hasValue {
			return nil, fmt.Errorf("'%s' option on '%s' does not accept an argument", name, verb)
		}
		if _, dup := options[name]; dup {
			return nil, fmt.Errorf("'%s' option specified multiple times", name)
		}
		options[name] = value
	}

	if len(args) < syntax.MinArgs {
		return nil, fmt.Errorf("'%s' command requires at least %d arguments", verb, syntax.MinArgs)
	}
	if len(args) > syntax.MaxArgs {
		return nil, fmt.Errorf("'%s' command takes at most %d arguments", verb, syntax.MaxArgs)
	}

	return &Command{Syntax: syntax, Args: args, Options: options}, nil
}

// MightWrite reports whether any command of the batch is classified
// read-write.
func MightWrite(cmds []*Command) bool {
	for _, c := range cmds {
		if c.Syntax.Mode == ReadWrite {
			return true
		}
	}
	return false
}

// EscapeArgs renders argv as a single shell-style string for the
// transaction history comment.
func EscapeArgs(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		if arg == "" || strings.ContainsAny(arg, " \t\n\"'\\") {
			parts[i] = fmt.Sprintf("%q", arg)
		} else {
			parts[i] = arg
		}
	}
	return strings.Join(parts, " ")
}
