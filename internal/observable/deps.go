package observable

import "sort"

// DependencySet is the set of top-level keys a subscriber watches.
// An empty set is a wildcard: the subscriber is notified on every update.
type DependencySet map[string]struct{}

// NewDependencySet builds a set from keys. Duplicates collapse.
func NewDependencySet(keys ...string) DependencySet {
	set := make(DependencySet, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Has reports whether key is in the set.
func (s DependencySet) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Matches reports whether a subscriber watching s should be notified of a
// change touching the keys in changed. Matching is by exact key name.
func (s DependencySet) Matches(changed DependencySet) bool {
	if len(s) == 0 {
		return true
	}
	// Iterate the smaller set.
	small, large := s, changed
	if len(large) < len(small) {
		small, large = large, small
	}
	for k := range small {
		if _, ok := large[k]; ok {
			return true
		}
	}
	return false
}

// Sorted returns the keys in lexical order.
func (s DependencySet) Sorted() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
