package coordinator

import (
	"hash/fnv"
	"sync"
)

const defaultStripes = 256

// keyLock serializes work per fingerprint with a fixed set of mutex stripes.
// Distinct keys may share a stripe; that only costs parallelism.
type keyLock struct {
	stripes []sync.Mutex
}

func newKeyLock(n int) *keyLock {
	if n <= 0 {
		n = defaultStripes
	}
	return &keyLock{stripes: make([]sync.Mutex, n)}
}

func (k *keyLock) lock(key string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	m := &k.stripes[h.Sum32()%uint32(len(k.stripes))]
	m.Lock()
	return m.Unlock
}
