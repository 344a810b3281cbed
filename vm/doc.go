// Package vm implements the runtime's symbol table.
//
// This package contains:
//   - Symbol, the permanently resident interned identifier
//   - The hash-ordered intern tree with lock-free lookups
//   - Arena, the permanent allocator backing symbols
//   - Gensym generation in the reserved "##" namespace
//   - The process-wide SymbolTable
package vm
