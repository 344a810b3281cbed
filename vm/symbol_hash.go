package vm

import "github.com/zeebo/xxh3"

// legacyHashSalt is XORed into the content hash before the final mix. It
// reproduces the historical convention of hashing 3h - objectid(sym), so
// values stored by older images keep their meaning.
const legacyHashSalt = ^uint64(0) / 3 * 2

// HashName returns the symbol hash for name. The result is stable across
// processes and releases; tree shape and persisted images depend on it.
func HashName(name []byte) uint64 {
	oid := xxh3.Hash(name) ^ legacyHashSalt
	return mixHash(-oid)
}

// mixHash is Thomas Wang's 64-bit integer mix. The constants are frozen.
func mixHash(key uint64) uint64 {
	key = ^key + (key << 21)
	key ^= key >> 24
	key = (key + (key << 3)) + (key << 8)
	key ^= key >> 14
	key = (key + (key << 2)) + (key << 4)
	key ^= key >> 28
	key += key << 31
	return key
}
