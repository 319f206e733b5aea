// Package store provides the chat settings stores and update deduplication.
package store

import (
	"encoding/binary"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DedupStore remembers recently processed update IDs so redelivered updates are
// ignored. The Bloom filter short-circuits lookups for IDs never seen; the LRU
// bounds memory and decides which IDs are forgotten first.
type DedupStore struct {
	ids   map[int64]struct{}
	bloom *bloom.BloomFilter
	lru   *lru.Cache[int64, struct{}]
	mutex sync.Mutex
}

// NewDedupStore creates a store holding at most capacity IDs.
func NewDedupStore(capacity int, bloomFalsePositiveRate float64) *DedupStore {
	if capacity <= 0 {
		panic("dedup capacity must be positive")
	}

	ds := &DedupStore{
		ids:   make(map[int64]struct{}),
		bloom: bloom.NewWithEstimates(uint(capacity), bloomFalsePositiveRate),
	}
	// Runs under ds.mutex, from inside lru.Add
	ds.lru, _ = lru.NewWithEvict(capacity, func(id int64, _ struct{}) {
		delete(ds.ids, id)
	})
	return ds
}

func idKey(id int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(id))
	return buf[:]
}

func (ds *DedupStore) has(id int64) bool {
	if !ds.bloom.Test(idKey(id)) {
		return false
	}
	_, exists := ds.ids[id]
	return exists
}

// Seen records id and reports whether it had already been recorded.
// The check and the insert happen atomically.
func (ds *DedupStore) Seen(id int64) bool {
	ds.mutex.Lock()
	defer ds.mutex.Unlock()

	if ds.has(id) {
		return true
	}

	ds.ids[id] = struct{}{}
	ds.bloom.Add(idKey(id))
	ds.lru.Add(id, struct{}{})
	return false
}
