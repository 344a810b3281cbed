package vm

import "sync/atomic"

// slot is a child reference in the intern tree. It supports exactly the
// operations the tree needs: an acquire load, a single-writer release
// publish of an empty slot, and a snapshot for introspection.
type slot struct {
	p atomic.Pointer[Symbol]
}

func (s *slot) load() *Symbol {
	return s.p.Load()
}

// publish stores sym into an empty slot. The caller holds the writer lock
// and sym must be fully initialized. A slot is filled at most once.
func (s *slot) publish(sym *Symbol) {
	if !s.p.CompareAndSwap(nil, sym) {
		panic("vm: intern tree slot published twice")
	}
}

func (s *slot) snapshot() *Symbol {
	return s.p.Load()
}
