package vm

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/sync/errgroup"
)

// countingAllocator wraps an Arena and counts allocations.
type countingAllocator struct {
	arena *Arena
	n     atomic.Int64
}

func (c *countingAllocator) AllocSymbol(nameLen int) *Symbol {
	c.n.Add(1)
	return c.arena.AllocSymbol(nameLen)
}

func constHash([]byte) uint64 { return 42 }

// ---------------------------------------------------------------------------
// Lookup and insert
// ---------------------------------------------------------------------------

func TestInternDeduplicates(t *testing.T) {
	st := NewSymbolTable(Options{})
	a1, _ := st.InternString("alpha")
	b, _ := st.InternString("beta")
	a2, _ := st.Intern([]byte("alpha"))

	if a1 != a2 {
		t.Error("interning alpha twice returned different symbols")
	}
	if a1 == b {
		t.Error("alpha and beta share a symbol")
	}
	if st.Len() != 2 {
		t.Errorf("Len() = %d, want 2", st.Len())
	}
}

func TestInternCopiesName(t *testing.T) {
	st := NewSymbolTable(Options{})
	buf := []byte("mutable")
	sym, _ := st.Intern(buf)
	copy(buf, "XXXXXXX")
	if sym.Name() != "mutable" {
		t.Errorf("symbol name changed with caller buffer: %q", sym.Name())
	}
}

func TestLookupIsReadOnly(t *testing.T) {
	st := NewSymbolTable(Options{})
	st.InternString("present")

	if sym, ok := st.LookupString("absent"); ok || sym != nil {
		t.Fatalf("LookupString(absent) = %v, %v", sym, ok)
	}
	if st.Len() != 1 {
		t.Fatalf("lookup inserted a symbol: Len() = %d", st.Len())
	}

	interned, _ := st.InternString("absent")
	found, ok := st.LookupString("absent")
	if !ok || found != interned {
		t.Errorf("LookupString after intern = %v, %v; want %v", found, ok, interned)
	}
}

func TestLookupStopsAtTerminator(t *testing.T) {
	st := NewSymbolTable(Options{})
	want, _ := st.InternString("foo")
	got, ok := st.Lookup([]byte("foo\x00bar"))
	if !ok || got != want {
		t.Errorf("Lookup(foo\\0bar) = %v, %v; want %v", got, ok, want)
	}
}

func TestRootSnapshot(t *testing.T) {
	st := NewSymbolTable(Options{})
	if st.Root() != nil {
		t.Fatal("empty table has a root")
	}
	first, _ := st.InternString("first")
	st.InternString("second")
	st.InternString("third")
	if st.Root() != first {
		t.Errorf("Root() = %v, want first inserted symbol", st.Root())
	}
}

// ---------------------------------------------------------------------------
// Ordering
// ---------------------------------------------------------------------------

func TestTreeOrderConsistent(t *testing.T) {
	st := NewSymbolTable(Options{})
	for i := 0; i < 2000; i++ {
		st.InternString(fmt.Sprintf("name-%d", i))
	}
	if err := st.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}

	// Every left descendant compares below its ancestor by hash, or ties
	// and compares below by name; right descendants never compare below.
	var verify func(node *Symbol, ancestors []*Symbol, dirs []int)
	verify = func(node *Symbol, ancestors []*Symbol, dirs []int) {
		if node == nil {
			return
		}
		q := node.name[:node.Len()]
		for i, anc := range ancestors {
			x := int64(node.hash - anc.hash)
			if x == 0 {
				cmp, _ := compareName(q, anc.name)
				x = int64(cmp)
			}
			if (x < 0) != (dirs[i] < 0) {
				t.Fatalf("%q sits on the wrong side of %q", node.Name(), anc.Name())
			}
		}
		verify(node.Left(), append(ancestors[:len(ancestors):len(ancestors)], node), append(dirs[:len(dirs):len(dirs)], -1))
		verify(node.Right(), append(ancestors[:len(ancestors):len(ancestors)], node), append(dirs[:len(dirs):len(dirs)], 1))
	}
	verify(st.Root(), nil, nil)
}

func TestHashCollisionsFallBackToNames(t *testing.T) {
	st := NewSymbolTable(Options{Hash: constHash})
	names := []string{"m", "ab", "a", "abc", "b", "", "z", "abd", "ab"}
	syms := make(map[string]*Symbol)
	for _, name := range names {
		sym, err := st.InternString(name)
		if err != nil {
			t.Fatal(err)
		}
		if prev, ok := syms[name]; ok && prev != sym {
			t.Errorf("%q interned to two symbols", name)
		}
		syms[name] = sym
	}
	if st.Len() != 8 {
		t.Errorf("Len() = %d, want 8", st.Len())
	}
	for name, sym := range syms {
		if got, ok := st.LookupString(name); !ok || got != sym {
			t.Errorf("LookupString(%q) = %v, %v", name, got, ok)
		}
		if sym.Name() != name {
			t.Errorf("symbol for %q is named %q", name, sym.Name())
		}
	}
	if err := st.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestHashDifferenceWraps(t *testing.T) {
	// Hashes at both ends of the range exercise the signed wrapping
	// comparison.
	hashes := map[string]uint64{
		"zero": 0,
		"max":  ^uint64(0),
		"mid":  1 << 63,
		"one":  1,
		"high": 1<<63 + 1,
	}
	st := NewSymbolTable(Options{Hash: func(b []byte) uint64 { return hashes[string(b)] }})
	order := []string{"mid", "zero", "max", "one", "high"}
	for _, name := range order {
		st.InternString(name)
	}
	for _, name := range order {
		if _, ok := st.LookupString(name); !ok {
			t.Errorf("%q not found", name)
		}
	}
	if err := st.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestWalkPreOrderRebuildsShape(t *testing.T) {
	src := NewSymbolTable(Options{})
	for i := 0; i < 300; i++ {
		src.InternString(fmt.Sprintf("sym%03d", i*7%300))
	}

	var names []string
	src.Walk(func(sym *Symbol) bool {
		names = append(names, sym.Name())
		return true
	})
	if len(names) != src.Len() {
		t.Fatalf("Walk visited %d symbols, want %d", len(names), src.Len())
	}

	dst := NewSymbolTable(Options{})
	for _, name := range names {
		dst.InternString(name)
	}
	var same func(a, b *Symbol) bool
	same = func(a, b *Symbol) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Name() == b.Name() && same(a.Left(), b.Left()) && same(a.Right(), b.Right())
	}
	if !same(src.Root(), dst.Root()) {
		t.Error("replaying pre-order names produced a different tree")
	}
}

func TestWalkStops(t *testing.T) {
	st := NewSymbolTable(Options{})
	for i := 0; i < 10; i++ {
		st.InternString(fmt.Sprint(i))
	}
	n := 0
	st.Walk(func(*Symbol) bool {
		n++
		return n < 3
	})
	if n != 3 {
		t.Errorf("Walk visited %d symbols after stopping, want 3", n)
	}
}

func TestStats(t *testing.T) {
	st := NewSymbolTable(Options{Hash: constHash})
	// With a constant hash, ascending names form a right spine.
	for _, name := range []string{"a", "b", "c", "d"} {
		st.InternString(name)
	}
	stats := st.Stats()
	if stats.Symbols != 4 {
		t.Errorf("Symbols = %d, want 4", stats.Symbols)
	}
	if stats.MaxDepth != 4 {
		t.Errorf("MaxDepth = %d, want 4", stats.MaxDepth)
	}
	if stats.Arena == nil {
		t.Error("Arena stats missing for default allocator")
	}
}

func TestSlotPublishTwicePanics(t *testing.T) {
	var s slot
	s.publish(&Symbol{name: []byte{0}})
	defer func() {
		if recover() == nil {
			t.Error("second publish did not panic")
		}
	}()
	s.publish(&Symbol{name: []byte{0}})
}

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestConcurrentInternSameNames(t *testing.T) {
	const workers = 32
	const distinct = 64

	alloc := &countingAllocator{arena: NewArena(16)}
	st := NewSymbolTable(Options{Allocator: alloc})

	results := make([][]*Symbol, workers)
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			out := make([]*Symbol, distinct)
			for i := 0; i < distinct; i++ {
				// Each worker starts at a different offset so inserts race.
				k := (i + w) % distinct
				sym, err := st.InternString(fmt.Sprintf("shared-%d", k))
				if err != nil {
					return err
				}
				out[k] = sym
			}
			results[w] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if st.Len() != distinct {
		t.Errorf("Len() = %d, want %d", st.Len(), distinct)
	}
	if n := alloc.n.Load(); n != distinct {
		t.Errorf("allocated %d symbols, want %d", n, distinct)
	}
	for w := 1; w < workers; w++ {
		for k := 0; k < distinct; k++ {
			if results[w][k] != results[0][k] {
				t.Fatalf("worker %d saw a different symbol for shared-%d", w, k)
			}
		}
	}
	if err := st.Check(); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestConcurrentReadersDuringInserts(t *testing.T) {
	st := NewSymbolTable(Options{})
	seed, _ := st.InternString("seed")

	var wg sync.WaitGroup
	stop := make(chan struct{})
	var missing atomic.Int64
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if sym, ok := st.LookupString("seed"); !ok || sym != seed {
					missing.Add(1)
				}
				st.Walk(func(sym *Symbol) bool {
					// A published node is always complete.
					if sym.name[len(sym.name)-1] != 0 || sym.hash != HashName([]byte(sym.Name())) {
						missing.Add(1)
					}
					return true
				})
			}
		}()
	}

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		g.Go(func() error {
			for i := 0; i < 500; i++ {
				if _, err := st.InternString(fmt.Sprintf("w%d-%d", w, i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	close(stop)
	wg.Wait()

	if n := missing.Load(); n != 0 {
		t.Errorf("readers observed %d inconsistent states", n)
	}
	if st.Len() != 2001 {
		t.Errorf("Len() = %d, want 2001", st.Len())
	}
}
