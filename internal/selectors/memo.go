package selectors

import "sync"

// maxEntries bounds each memo. When it is reached the memo starts over.
const maxEntries = 1024

type memoEntry[V any] struct {
	dep   any
	value V
}

// memo caches one value per key together with the dependency it was
// computed from. A cached value is reused only while the dependency is
// unchanged (compared with ==), so dependencies should be pointers to
// immutable state.
type memo[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]memoEntry[V]
	hits    uint64
	misses  uint64
}

func newMemo[K comparable, V any]() *memo[K, V] {
	return &memo[K, V]{entries: make(map[K]memoEntry[V])}
}

func (m *memo[K, V]) get(key K, dep any, compute func() V) V {
	return m.getIf(key, dep, nil, compute)
}

// getIf is get with an extra check on the cached value, for dependencies
// that cannot be captured by a single comparable value.
func (m *memo[K, V]) getIf(key K, dep any, valid func(V) bool, compute func() V) V {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && e.dep == dep && (valid == nil || valid(e.value)) {
		m.hits++
		return e.value
	}
	m.misses++
	v := compute()
	if len(m.entries) >= maxEntries {
		clear(m.entries)
	}
	m.entries[key] = memoEntry[V]{dep: dep, value: v}
	return v
}

func (m *memo[K, V]) stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}
