package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// internTree: hash-ordered binary tree of symbols
// ---------------------------------------------------------------------------

// internTree orders symbols by hash, breaking ties by name. Readers walk it
// without locking; writers serialize on mu and only ever fill empty slots,
// so a published node is never moved, changed or removed. There is no
// rebalancing: shape depends only on insertion order and hashes.
type internTree struct {
	mu    sync.Mutex
	root  slot
	alloc Allocator
	hash  func([]byte) uint64
	count atomic.Int64
}

// lookup searches for name starting at from. It returns the matching
// symbol and the slot holding it, or nil and the empty slot where the
// symbol would be inserted.
func (t *internTree) lookup(from *slot, name []byte, h uint64) (*Symbol, *slot) {
	ptree := from
	node := ptree.load()
	for node != nil {
		x := int64(h - node.hash)
		if x == 0 {
			cmp, match := compareName(name, node.name)
			if match {
				return node, ptree
			}
			x = int64(cmp)
		}
		if x < 0 {
			ptree = &node.left
		} else {
			ptree = &node.right
		}
		node = ptree.load()
	}
	return nil, ptree
}

// intern returns the symbol for name, inserting it if absent. The caller
// has already validated name.
func (t *internTree) intern(name []byte) *Symbol {
	h := t.hash(name)
	node, s := t.lookup(&t.root, name, h)
	if node != nil {
		return node
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another writer may have filled the slot since the unlocked lookup.
	if s.load() != nil {
		if node, s = t.lookup(s, name, h); node != nil {
			return node
		}
	}

	sym := t.alloc.AllocSymbol(len(name))
	sym.hash = h
	copy(sym.name, name)
	sym.name[len(name)] = 0
	s.publish(sym)
	t.count.Add(1)
	return sym
}

// walk visits every symbol in pre-order with its depth (root is 0).
// Replaying names in this order rebuilds a tree of the same shape.
// Returning false from fn stops the walk.
func (t *internTree) walk(fn func(sym *Symbol, depth int) bool) {
	type frame struct {
		sym   *Symbol
		depth int
	}
	root := t.root.snapshot()
	if root == nil {
		return
	}
	stack := []frame{{root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(f.sym, f.depth) {
			return
		}
		if r := f.sym.right.load(); r != nil {
			stack = append(stack, frame{r, f.depth + 1})
		}
		if l := f.sym.left.load(); l != nil {
			stack = append(stack, frame{l, f.depth + 1})
		}
	}
}

// check verifies the structural invariants of the tree: every node holds
// a terminated name whose hash matches, and every node is found by its
// own search path, which is what keeps the order consistent.
func (t *internTree) check() error {
	var err error
	seen := 0
	t.walk(func(sym *Symbol, depth int) bool {
		seen++
		n := len(sym.name) - 1
		if n < 0 || sym.name[n] != 0 {
			err = fmt.Errorf("symbol at depth %d: missing terminator", depth)
			return false
		}
		name := sym.name[:n]
		if h := t.hash(name); h != sym.hash {
			err = fmt.Errorf("symbol %q: stored hash %#x, computed %#x", name, sym.hash, h)
			return false
		}
		if found, _ := t.lookup(&t.root, name, sym.hash); found != sym {
			err = fmt.Errorf("symbol %q at depth %d is not on its search path", name, depth)
			return false
		}
		return true
	})
	if err != nil {
		return err
	}
	if c := t.count.Load(); int64(seen) < c {
		return fmt.Errorf("walked %d symbols, table reports %d", seen, c)
	}
	return nil
}
