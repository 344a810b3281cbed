package vm

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/tliron/commonlog"
)

var logger = commonlog.GetLogger("symtab.vm")

// ---------------------------------------------------------------------------
// SymbolTable: interning and gensym entry points
// ---------------------------------------------------------------------------

// MinNameLen is the smallest maximum name length a table accepts; it
// leaves room for every generated name.
const MinNameLen = taggedOverhead

// Options configure a SymbolTable. Zero values select defaults.
type Options struct {
	// MaxNameLen bounds name length. 0 means the platform limit,
	// MaxNameLen; values below MinNameLen are raised to it.
	MaxNameLen int

	// ArenaBlock is the slab size of the default arena.
	ArenaBlock int

	// Allocator supplies permanent symbol storage. nil selects a new Arena.
	Allocator Allocator

	// Hash replaces HashName. Only tests should set it.
	Hash func([]byte) uint64

	// Counter is the initial gensym counter value.
	Counter uint32
}

// SymbolTable interns names into unique Symbols and generates fresh ones.
// All methods are safe for concurrent use. Lookups never block; inserts
// are serialized by a single writer lock.
type SymbolTable struct {
	tree    internTree
	counter GensymCounter
	maxLen  int
}

// TableStats describes a symbol table.
type TableStats struct {
	Symbols  int64
	MaxDepth int
	Counter  uint32
	Arena    *ArenaStats // nil unless the table uses an *Arena
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable(opts Options) *SymbolTable {
	st := &SymbolTable{maxLen: opts.MaxNameLen}
	if st.maxLen == 0 || st.maxLen > MaxNameLen {
		st.maxLen = MaxNameLen
	}
	if st.maxLen < MinNameLen {
		st.maxLen = MinNameLen
	}
	st.tree.alloc = opts.Allocator
	if st.tree.alloc == nil {
		st.tree.alloc = NewArena(opts.ArenaBlock)
	}
	st.tree.hash = opts.Hash
	if st.tree.hash == nil {
		st.tree.hash = HashName
	}
	st.counter.Set(opts.Counter)
	return st
}

// MaxNameLen returns the longest name this table accepts.
func (st *SymbolTable) MaxNameLen() int {
	return st.maxLen
}

func (st *SymbolTable) checkLen(n int) error {
	if n > st.maxLen {
		return fmt.Errorf("%w: %d bytes, max %d", ErrNameTooLong, n, st.maxLen)
	}
	return nil
}

// Hash returns the hash this table assigns to name.
func (st *SymbolTable) Hash(name []byte) uint64 {
	return st.tree.hash(name)
}

// Intern returns the unique Symbol for name, creating it on first use.
// name must not contain a 0 byte; use InternChecked for untrusted input.
func (st *SymbolTable) Intern(name []byte) (*Symbol, error) {
	if err := st.checkLen(len(name)); err != nil {
		return nil, err
	}
	return st.tree.intern(name), nil
}

// InternChecked is Intern for names that may contain a 0 byte, which is
// rejected with ErrNulByte.
func (st *SymbolTable) InternChecked(name []byte) (*Symbol, error) {
	if i := bytes.IndexByte(name, 0); i >= 0 {
		return nil, fmt.Errorf("%w: at offset %d", ErrNulByte, i)
	}
	return st.Intern(name)
}

// InternCString interns the bytes of cstr up to its first 0 byte, or all of
// cstr if it has none.
func (st *SymbolTable) InternCString(cstr []byte) (*Symbol, error) {
	return st.Intern(cstrBytes(cstr))
}

// InternString interns s without copying it first.
func (st *SymbolTable) InternString(s string) (*Symbol, error) {
	return st.Intern(stringBytes(s))
}

// Lookup returns the Symbol for cstr, up to its first 0 byte, if it has
// already been interned. It never inserts and never takes the writer lock.
func (st *SymbolTable) Lookup(cstr []byte) (*Symbol, bool) {
	name := cstrBytes(cstr)
	sym, _ := st.tree.lookup(&st.tree.root, name, st.tree.hash(name))
	return sym, sym != nil
}

// LookupString is Lookup for a Go string.
func (st *SymbolTable) LookupString(s string) (*Symbol, bool) {
	return st.Lookup(stringBytes(s))
}

// Root returns the current root of the intern tree, or nil if the table
// is empty.
func (st *SymbolTable) Root() *Symbol {
	return st.tree.root.snapshot()
}

// Len returns the number of interned symbols.
func (st *SymbolTable) Len() int {
	return int(st.tree.count.Load())
}

// Gensym returns a fresh symbol named "##<n>".
func (st *SymbolTable) Gensym() *Symbol {
	var scratch [len(GensymPrefix) + maxCounterDigits]byte
	name := appendGensym(scratch[:0], st.counter.Next())
	return st.tree.intern(name)
}

// TaggedGensym returns a fresh symbol named "##<tag>#<n>". The length
// check assumes the widest counter value, and it runs before the counter
// advances.
func (st *SymbolTable) TaggedGensym(tag []byte) (*Symbol, error) {
	if i := bytes.IndexByte(tag, 0); i >= 0 {
		return nil, fmt.Errorf("%w: tag byte %d", ErrNulByte, i)
	}
	if len(tag) > st.maxLen-taggedOverhead {
		return nil, fmt.Errorf("%w: tag of %d bytes, max %d", ErrNameTooLong, len(tag), st.maxLen-taggedOverhead)
	}

	var scratch [64]byte
	var buf []byte
	if n := len(tag) + taggedOverhead; n <= len(scratch) {
		buf = scratch[:0]
	} else {
		buf = make([]byte, 0, n)
	}
	name := appendTaggedGensym(buf, tag, st.counter.Next())
	return st.tree.intern(name), nil
}

// TaggedGensymString is TaggedGensym for a Go string.
func (st *SymbolTable) TaggedGensymString(tag string) (*Symbol, error) {
	return st.TaggedGensym(stringBytes(tag))
}

// Counter returns the gensym counter.
func (st *SymbolTable) Counter() uint32 {
	return st.counter.Get()
}

// SetCounter restores the gensym counter, typically from a saved image.
func (st *SymbolTable) SetCounter(v uint32) {
	if cur := st.counter.Get(); v < cur {
		logger.Warningf("gensym counter rewound from %d to %d", cur, v)
	}
	st.counter.Set(v)
}

// Walk visits every symbol in pre-order until fn returns false. Interning
// the visited names in order into an empty table rebuilds the same tree.
func (st *SymbolTable) Walk(fn func(sym *Symbol) bool) {
	st.tree.walk(func(sym *Symbol, _ int) bool {
		return fn(sym)
	})
}

// Stats reports the size and shape of the table.
func (st *SymbolTable) Stats() TableStats {
	stats := TableStats{
		Symbols: st.tree.count.Load(),
		Counter: st.counter.Get(),
	}
	st.tree.walk(func(_ *Symbol, depth int) bool {
		if depth+1 > stats.MaxDepth {
			stats.MaxDepth = depth + 1
		}
		return true
	})
	if a, ok := st.tree.alloc.(*Arena); ok {
		as := a.Stats()
		stats.Arena = &as
	}
	return stats
}

// Check verifies the tree's structural invariants. Results are only exact
// while no other goroutine is interning.
func (st *SymbolTable) Check() error {
	return st.tree.check()
}

func cstrBytes(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

func stringBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// ---------------------------------------------------------------------------
// Process symbol table
// ---------------------------------------------------------------------------

var (
	processMu    sync.Mutex
	processTable atomic.Pointer[SymbolTable]
)

// InitSymbols creates the process symbol table from opts. It fails with
// ErrAlreadyInitialized once the table exists, including after a call to
// Symbols.
func InitSymbols(opts Options) (*SymbolTable, error) {
	processMu.Lock()
	defer processMu.Unlock()
	if processTable.Load() != nil {
		return nil, ErrAlreadyInitialized
	}
	st := NewSymbolTable(opts)
	processTable.Store(st)
	logger.Infof("symbol table initialized (max name length %d, gensym counter %d)", st.maxLen, st.Counter())
	return st, nil
}

// Symbols returns the process symbol table, creating it with default
// options if InitSymbols has not run.
func Symbols() *SymbolTable {
	if st := processTable.Load(); st != nil {
		return st
	}
	processMu.Lock()
	defer processMu.Unlock()
	if st := processTable.Load(); st != nil {
		return st
	}
	st := NewSymbolTable(Options{})
	processTable.Store(st)
	logger.Debugf("symbol table initialized with defaults")
	return st
}
