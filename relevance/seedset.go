package relevance

import (
	"sort"
	"strings"
)

// seedSep joins canonical seed names into cache keys. Variable names are
// dotted identifiers, so a control character can never collide.
const seedSep = "\x1f"

// SeedSet is an immutable, canonical set of seed variable names.
//
// Construction sorts and deduplicates, so any two sets holding the same
// names share one Key. A single name and the one-element set containing it
// are therefore the same cache key. The zero value is the empty set.
type SeedSet struct {
	names []string // sorted, deduplicated; never mutated after construction
	key   string
}

// NewSeedSet builds the canonical set of names.
func NewSeedSet(names ...string) SeedSet {
	if len(names) == 0 {
		return SeedSet{}
	}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	j := 0
	for i, n := range sorted {
		if i == 0 || n != sorted[i-1] {
			sorted[j] = n
			j++
		}
	}
	sorted = sorted[:j]

	return SeedSet{names: sorted, key: strings.Join(sorted, seedSep)}
}

// Key returns the canonical cache key: member names joined in sorted order.
func (s SeedSet) Key() string { return s.key }

// Names returns a copy of the member names, sorted ascending.
func (s SeedSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)

	return out
}

// Len returns the member count.
func (s SeedSet) Len() int { return len(s.names) }

// Empty reports whether the set has no members.
func (s SeedSet) Empty() bool { return len(s.names) == 0 }

// Contains reports membership of name.
func (s SeedSet) Contains(name string) bool {
	i := sort.SearchStrings(s.names, name)

	return i < len(s.names) && s.names[i] == name
}

// Equal reports whether s and o hold the same members.
func (s SeedSet) Equal(o SeedSet) bool { return s.key == o.key }

// String renders the set for diagnostics.
func (s SeedSet) String() string {
	return "{" + strings.Join(s.names, ", ") + "}"
}
