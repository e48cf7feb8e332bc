package relevance

import (
	"github.com/cespare/xxhash/v2"
)

// array is a boolean relevance array. Index i answers "is the i-th name
// relevant"; the name enumeration lives on the owning Relevance.
type array []bool

// clone returns a fresh copy of a.
func (a array) clone() array {
	out := make(array, len(a))
	copy(out, a)

	return out
}

// anyTrue reports whether a has at least one true entry.
func (a array) anyTrue() bool {
	for _, v := range a {
		if v {
			return true
		}
	}

	return false
}

// orInto unions src into dst in place. Lengths must already agree.
func orInto(dst, src array) {
	for i, v := range src {
		if v {
			dst[i] = true
		}
	}
}

// andInto intersects src into dst in place. Lengths must already agree.
func andInto(dst, src array) {
	for i := range dst {
		dst[i] = dst[i] && src[i]
	}
}

// equalArrays reports element-wise equality.
func equalArrays(a, b array) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if v != b[i] {
			return false
		}
	}

	return true
}

// arrayCache deduplicates relevance arrays by content so equal seed
// combinations share one array instance. Seed scopes flip between a handful
// of distinct arrays thousands of times per run; content addressing keeps
// the working set proportional to the number of distinct relevance states
// rather than the number of scope switches.
//
// The cache is owned by a single Relevance instance and is not safe for
// concurrent use.
type arrayCache struct {
	entries map[uint64][]array // content hash → arrays (collision bucket)
	scratch []byte             // reusable hash encoding buffer
}

// newArrayCache returns an empty cache.
func newArrayCache() *arrayCache {
	return &arrayCache{entries: make(map[uint64][]array)}
}

// canonical returns the cached instance equal to a, registering a as the
// canonical instance if no equal array is cached yet. Callers must not
// mutate an array after passing it in.
func (c *arrayCache) canonical(a array) array {
	h := c.hash(a)
	for _, cand := range c.entries[h] {
		if equalArrays(cand, a) {
			return cand
		}
	}
	c.entries[h] = append(c.entries[h], a)

	return a
}

// hash computes the content hash of a via a reused byte encoding.
func (c *arrayCache) hash(a array) uint64 {
	if cap(c.scratch) < len(a) {
		c.scratch = make([]byte, len(a))
	}
	buf := c.scratch[:len(a)]
	for i, v := range a {
		if v {
			buf[i] = 1
		} else {
			buf[i] = 0
		}
	}

	return xxhash.Sum64(buf)
}
