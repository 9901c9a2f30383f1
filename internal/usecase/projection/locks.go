package projection

import (
	"hash/fnv"
	"sync"
)

// keyLocks serializes work per key over a fixed set of mutexes.
// Distinct keys may share a stripe; the same key always does.
type keyLocks struct {
	stripes []sync.Mutex
}

func newKeyLocks(n int) *keyLocks {
	return &keyLocks{stripes: make([]sync.Mutex, max(n, 1))}
}

func (l *keyLocks) lock(key string) (unlock func()) {
	m := &l.stripes[partitionOf(key, len(l.stripes))]
	m.Lock()
	return m.Unlock
}

// partitionOf maps key to [0, n).
func partitionOf(key string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n)) //nolint:gosec // n is a small positive count
}
