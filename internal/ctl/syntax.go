// Package ctl defines the command model: verb syntax descriptors, the
// parsed command batch, and the execution context threaded through every
// command phase.
package ctl

import (
	"fmt"
	"sort"
	"strings"
)

// Mode classifies a verb as pure read or read-write. The engine logs
// batches that may write at a higher level and may skip transaction
// machinery for pure reads.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// ManyArgs marks verbs with no upper arity bound.
const ManyArgs = int(^uint(0) >> 1)

// Syntax describes one verb: its arity bounds, the command-local options
// it recognizes, and its phase functions.
//
// Options are spelled the way the user types them. A trailing '=' marks an
// option that requires a value: "--id=" accepts only --id=@name, while
// "--may-exist" accepts no value.
//
// Prerequisites runs before any transaction exists, with no transaction
// and no symbol table on the context; it must not produce output. Run is
// the mutate phase, executed once per attempt. Postprocess runs after a
// successful commit to pick up server-assigned values.
type Syntax struct {
	Name          string
	MinArgs       int
	MaxArgs       int
	Usage         string
	Options       []string
	Mode          Mode
	Prerequisites func(*Context) error
	Run           func(*Context) error
	Postprocess   func(*Context) error
}

// splitOptionSpec splits a recognized option spelling into name and
// whether it requires a value.
func splitOptionSpec(spec string) (name string, wantsValue bool) {
	if strings.HasSuffix(spec, "=") {
		return strings.TrimSuffix(spec, "="), true
	}
	return spec, false
}

// Registry maps verb names to their syntax, looked up once during parsing.
type Registry struct {
	verbs map[string]*Syntax
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{verbs: make(map[string]*Syntax)}
}

// Register adds a verb. Registering the same name twice is a programming
// error and panics.
func (r *Registry) Register(s *Syntax) {
	if _, dup := r.verbs[s.Name]; dup {
		panic(fmt.Sprintf("ctl: duplicate verb %q", s.Name))
	}
	r.verbs[s.Name] = s
}

// Lookup finds a verb's syntax.
func (r *Registry) Lookup(name string) (*Syntax, bool) {
	s, ok := r.verbs[name]
	return s, ok
}

// Names returns all registered verb names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.verbs))
	for name := range r.verbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
