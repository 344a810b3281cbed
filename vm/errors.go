package vm

import "errors"

// Symbol table errors. Both input errors are reported before the table or
// the gensym counter is touched.
var (
	// ErrNameTooLong indicates that a name, or a synthesized gensym name,
	// exceeds the table's maximum name length.
	ErrNameTooLong = errors.New("symbol name too long")

	// ErrNulByte indicates an embedded 0 byte in a name that must not
	// contain one.
	ErrNulByte = errors.New("symbol name may not contain \\0")

	// ErrAlreadyInitialized indicates that the process symbol table was
	// configured after it had already been created.
	ErrAlreadyInitialized = errors.New("symbol table already initialized")
)
