package vm

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Arena: permanent storage for symbols
// ---------------------------------------------------------------------------

// Allocator provides storage for new symbols. Storage it returns must stay
// valid and unmoved for the life of the process.
type Allocator interface {
	// AllocSymbol returns a zeroed Symbol whose name buffer holds
	// nameLen+1 bytes.
	AllocSymbol(nameLen int) *Symbol
}

// DefaultArenaBlock is the number of symbols per arena slab.
const DefaultArenaBlock = 4096

// nameAlign rounds name buffers so consecutive names stay word aligned.
const nameAlign = 8

// Arena is the default Allocator. Symbols are carved from slabs and names
// from byte blocks; every slab is retained for the life of the arena, so
// nothing it hands out is ever collected or reused.
type Arena struct {
	mu sync.Mutex

	blockSize int
	syms      []Symbol // current slab, len is the number handed out
	names     []byte   // current name block, len is the bytes handed out

	slabs  [][]Symbol
	blocks [][]byte

	nSymbols   atomic.Int64
	nNameBytes atomic.Int64
	nBlocks    atomic.Int64
}

// ArenaStats describes arena usage.
type ArenaStats struct {
	Symbols   int64
	NameBytes int64
	Blocks    int64
}

// NewArena creates an arena that allocates blockSize symbols per slab.
// A non-positive blockSize selects DefaultArenaBlock.
func NewArena(blockSize int) *Arena {
	if blockSize <= 0 {
		blockSize = DefaultArenaBlock
	}
	return &Arena{blockSize: blockSize}
}

// AllocSymbol implements Allocator.
func (a *Arena) AllocSymbol(nameLen int) *Symbol {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.syms) == cap(a.syms) {
		a.syms = make([]Symbol, 0, a.blockSize)
		a.slabs = append(a.slabs, a.syms[:cap(a.syms)])
		a.nBlocks.Add(1)
	}
	a.syms = a.syms[:len(a.syms)+1]
	sym := &a.syms[len(a.syms)-1]
	sym.name = a.nameBuf(nameLen + 1)

	a.nSymbols.Add(1)
	a.nNameBytes.Add(int64(nameLen))
	return sym
}

// nameBuf returns n zeroed bytes with capacity capped at n.
func (a *Arena) nameBuf(n int) []byte {
	rounded := (n + nameAlign - 1) &^ (nameAlign - 1)
	nameBlock := a.blockSize * 16

	// Large names get a block of their own.
	if rounded > nameBlock/4 {
		buf := make([]byte, n)
		a.blocks = append(a.blocks, buf)
		a.nBlocks.Add(1)
		return buf
	}
	if cap(a.names)-len(a.names) < rounded {
		a.names = make([]byte, 0, nameBlock)
		a.blocks = append(a.blocks, a.names[:cap(a.names)])
		a.nBlocks.Add(1)
	}
	off := len(a.names)
	a.names = a.names[:off+rounded]
	return a.names[off : off+n : off+n]
}

// Stats returns a snapshot of arena usage.
func (a *Arena) Stats() ArenaStats {
	return ArenaStats{
		Symbols:   a.nSymbols.Load(),
		NameBytes: a.nNameBytes.Load(),
		Blocks:    a.nBlocks.Load(),
	}
}
