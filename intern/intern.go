// Package intern assigns stable small-integer identities to
// byte-identical strings. Identities are dense, append-only, and never
// invalidated: a string interned once keeps the same ID for the life
// of the Interner.
package intern

import (
	"github.com/dolthub/swiss"
	"github.com/josharian/intern"
)

// ID is an opaque identity for an interned string. Two IDs compare
// equal iff they were produced by the same Interner for byte-equal
// strings.
type ID int

// Interner owns the backing storage for every string it has seen.
type Interner struct {
	vals   []string
	lookup *swiss.Map[string, ID]
}

// New creates an empty Interner.
func New() *Interner {
	return &Interner{
		lookup: swiss.NewMap[string, ID](64),
	}
}

// Intern returns s's ID, assigning a new one the first time s (by
// content) is seen. Interning is idempotent.
func (in *Interner) Intern(s string) ID {
	// Collapse equal strings from distinct allocations onto one string
	// header before it ever reaches the table.
	s = intern.String(s)

	if id, ok := in.lookup.Get(s); ok {
		return id
	}

	id := ID(len(in.vals))
	in.vals = append(in.vals, s)
	in.lookup.Put(s, id)
	return id
}

// Lookup returns the string denoted by id. id must have been produced
// by this Interner.
func (in *Interner) Lookup(id ID) string {
	return in.vals[id]
}

// Len reports how many distinct strings have been interned so far.
func (in *Interner) Len() int {
	return len(in.vals)
}
