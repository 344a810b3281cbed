package vm

import (
	"bytes"
	"math"
	"unsafe"
)

// ---------------------------------------------------------------------------
// Symbol: interned, permanently resident identifiers
// ---------------------------------------------------------------------------

// Symbol is a unique, immutable identifier. Two symbols are equal exactly
// when they are the same pointer; a Symbol is never freed or moved once it
// has been published, so holders may compare and keep them indefinitely.
//
// The left and right slots are the only fields that change after
// publication, each going from empty to occupied at most once.
type Symbol struct {
	hash  uint64
	left  slot
	right slot
	name  []byte // name bytes followed by a single 0 terminator
}

// symbolOverhead is the fixed per-symbol cost outside the name bytes.
const symbolOverhead = int(unsafe.Sizeof(Symbol{}))

// MaxNameLen is the longest name a Symbol can carry on this platform.
const MaxNameLen = math.MaxInt - symbolOverhead - 1

// Name returns the symbol's name. The string shares the symbol's storage.
func (s *Symbol) Name() string {
	return unsafe.String(&s.name[0], len(s.name)-1)
}

// Len returns the length of the name, excluding the terminator.
func (s *Symbol) Len() int {
	return len(s.name) - 1
}

// Hash returns the hash computed when the symbol was interned.
func (s *Symbol) Hash() uint64 {
	return s.hash
}

// CString returns the name including its 0 terminator. Callers must not
// modify the returned slice.
func (s *Symbol) CString() []byte {
	return s.name[:len(s.name):len(s.name)]
}

// Left returns the left child in the intern tree, or nil.
func (s *Symbol) Left() *Symbol {
	return s.left.load()
}

// Right returns the right child in the intern tree, or nil.
func (s *Symbol) Right() *Symbol {
	return s.right.load()
}

// String prints the symbol the way the runtime's printer does.
func (s *Symbol) String() string {
	return "#" + s.Name()
}

// IsGensym reports whether the name lies in the reserved "##" namespace.
func (s *Symbol) IsGensym() bool {
	return len(s.name) > 2 && s.name[0] == '#' && s.name[1] == '#'
}

// compareName orders a query against a stored, terminated name. The result
// follows a strncmp bounded to len(q): when q is a proper prefix of stored
// the comparison yields 0 without matching. match is true only when the
// stored name has exactly len(q) bytes.
func compareName(q, stored []byte) (cmp int, match bool) {
	n := len(stored) - 1
	if len(q) <= n {
		cmp = bytes.Compare(q, stored[:len(q)])
		return cmp, cmp == 0 && stored[len(q)] == 0
	}
	if cmp = bytes.Compare(q[:n], stored[:n]); cmp != 0 {
		return cmp, false
	}
	// q continues where stored hits its terminator.
	if q[n] == 0 {
		return 0, false
	}
	return 1, false
}
