package vm

import (
	"strconv"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// Gensym: fresh names in the reserved "##" namespace
// ---------------------------------------------------------------------------

// GensymPrefix starts every generated name. User identifiers never begin
// with it, so generated names cannot collide with them.
const GensymPrefix = "##"

// maxCounterDigits is the decimal width of the largest uint32.
const maxCounterDigits = 10

// taggedOverhead is the space a tagged gensym adds around its tag.
const taggedOverhead = len(GensymPrefix) + 1 + maxCounterDigits

// GensymCounter is a process-wide monotonic counter. Values only need to
// be unique, so all accesses are plain atomics with no ordering
// relationship to other memory.
type GensymCounter struct {
	n atomic.Uint32
}

// Next returns the current value and advances the counter.
func (c *GensymCounter) Next() uint32 {
	return c.n.Add(1) - 1
}

// Get returns the value the next call to Next will return.
func (c *GensymCounter) Get() uint32 {
	return c.n.Load()
}

// Set overwrites the counter. Setting a value below one already issued
// lets earlier names be generated again.
func (c *GensymCounter) Set(v uint32) {
	c.n.Store(v)
}

// appendGensym appends "##<n>" to buf.
func appendGensym(buf []byte, n uint32) []byte {
	buf = append(buf, GensymPrefix...)
	return strconv.AppendUint(buf, uint64(n), 10)
}

// appendTaggedGensym appends "##<tag>#<n>" to buf.
func appendTaggedGensym(buf, tag []byte, n uint32) []byte {
	buf = append(buf, GensymPrefix...)
	buf = append(buf, tag...)
	buf = append(buf, '#')
	return strconv.AppendUint(buf, uint64(n), 10)
}
