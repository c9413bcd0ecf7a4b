package controller

import "github.com/cespare/xxhash/v2"

// memo caches derived values for one render pass.
type memo struct {
	entries map[uint64]any
	hits    int
}

func newMemo() *memo {
	return &memo{entries: make(map[uint64]any)}
}

func memoKey(parts ...string) uint64 {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

func remember[T any](m *memo, compute func() T, parts ...string) T {
	key := memoKey(parts...)
	if v, ok := m.entries[key]; ok {
		if typed, ok := v.(T); ok {
			m.hits++
			return typed
		}
	}
	v := compute()
	m.entries[key] = v
	return v
}
