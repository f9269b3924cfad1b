package session

import (
	"sort"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Symbol tracks one symbolic row name for the duration of a single
// transaction attempt.
//
// A symbol comes into existence the first time its name is mentioned.
// Created records that some command actually produced a row for the name.
// StrongRef and WeakRef record that the name was inserted into a mandatory
// or optional reference column of some other row. The consistency check
// after the mutate phases relies on exactly these three flags.
type Symbol struct {
	ID        uuid.UUID
	Created   bool
	StrongRef bool
	WeakRef   bool
}

// SymbolTable maps user-chosen symbolic names to their symbols. A fresh
// table is created for every transaction attempt; nothing survives a retry.
type SymbolTable struct {
	gen  IDGenerator
	syms map[string]*Symbol
}

// NewSymbolTable creates an empty symbol table. New symbols receive row IDs
// from gen.
func NewSymbolTable(gen IDGenerator) *SymbolTable {
	return &SymbolTable{gen: gen, syms: make(map[string]*Symbol)}
}

// Get returns the symbol for name, creating it with a fresh row ID on first
// use. Names are NFC-normalized so visually identical spellings share one
// symbol.
func (st *SymbolTable) Get(name string) *Symbol {
	name = norm.NFC.String(name)
	sym, ok := st.syms[name]
	if !ok {
		sym = &Symbol{ID: st.gen.NewID()}
		st.syms[name] = sym
	}
	return sym
}

// Len returns the number of symbols ever mentioned.
func (st *SymbolTable) Len() int { return len(st.syms) }

// ForEach visits every symbol in sorted name order. Deterministic order
// keeps diagnostics and warnings stable across runs.
func (st *SymbolTable) ForEach(fn func(name string, sym *Symbol)) {
	names := make([]string, 0, len(st.syms))
	for name := range st.syms {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn(name, st.syms[name])
	}
}
