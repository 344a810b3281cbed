// Package image saves and restores symbol table state. A snapshot records
// the gensym counter and every interned name in tree pre-order, so that
// restoring it into an empty table reproduces the captured tree and
// continues its gensym sequence.
package image

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/chazu/symtab/vm"
)

var log = commonlog.GetLogger("symtab.image")

// SnapshotVersion is the current snapshot format.
// v1: counter and names
// v2: stored symbol hashes
const SnapshotVersion uint8 = 2

var (
	// ErrBadSnapshot indicates a snapshot that cannot be decoded or is
	// internally inconsistent.
	ErrBadSnapshot = errors.New("bad snapshot")

	// ErrHashMismatch indicates that a stored hash differs from the one the
	// table computes, so data depending on stored hashes would break.
	ErrHashMismatch = errors.New("snapshot hash mismatch")
)

// Snapshot is the persisted state of a symbol table.
type Snapshot struct {
	Version uint8    `cbor:"1,keyasint"`
	ID      string   `cbor:"2,keyasint"`
	Created int64    `cbor:"3,keyasint"` // unix nanoseconds
	Counter uint32   `cbor:"4,keyasint"`
	Names   []string `cbor:"5,keyasint,omitempty"`
	Hashes  []uint64 `cbor:"6,keyasint,omitempty"` // parallel to Names
}

// Capture records the current state of st. Symbols interned while the
// capture runs may or may not be included.
func Capture(st *vm.SymbolTable) *Snapshot {
	s := &Snapshot{
		Version: SnapshotVersion,
		ID:      uuid.NewString(),
		Created: time.Now().UnixNano(),
		Counter: st.Counter(),
	}
	st.Walk(func(sym *vm.Symbol) bool {
		s.Names = append(s.Names, sym.Name())
		s.Hashes = append(s.Hashes, sym.Hash())
		return true
	})
	log.Debugf("captured snapshot %s: %d symbols, counter %d", s.ID, len(s.Names), s.Counter)
	return s
}

// Validate checks s against the hash function of st without modifying it.
func (s *Snapshot) Validate(st *vm.SymbolTable) error {
	if s.Version == 0 || s.Version > SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadSnapshot, s.Version)
	}
	if len(s.Hashes) != 0 && len(s.Hashes) != len(s.Names) {
		return fmt.Errorf("%w: %d hashes for %d names", ErrBadSnapshot, len(s.Hashes), len(s.Names))
	}
	for i, name := range s.Names {
		if len(name) > st.MaxNameLen() {
			return fmt.Errorf("%w: name %d: %w", ErrBadSnapshot, i, vm.ErrNameTooLong)
		}
		if j := strings.IndexByte(name, 0); j >= 0 {
			return fmt.Errorf("%w: name %d: %w at offset %d", ErrBadSnapshot, i, vm.ErrNulByte, j)
		}
		if len(s.Hashes) == 0 {
			continue
		}
		if h := st.Hash([]byte(name)); h != s.Hashes[i] {
			return fmt.Errorf("%w: %q stored %#x, computed %#x", ErrHashMismatch, name, s.Hashes[i], h)
		}
	}
	return nil
}

// Restore interns every name in s into st and sets its gensym counter.
// The snapshot is validated first; on error st is unchanged.
func Restore(st *vm.SymbolTable, s *Snapshot) error {
	if err := s.Validate(st); err != nil {
		return err
	}
	for _, name := range s.Names {
		if _, err := st.InternChecked([]byte(name)); err != nil {
			return fmt.Errorf("restore %q: %w", name, err)
		}
	}
	st.SetCounter(s.Counter)
	log.Infof("restored snapshot %s: %d symbols, counter %d", s.ID, len(s.Names), s.Counter)
	return nil
}
