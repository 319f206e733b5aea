package store

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestDedupStore_Seen(t *testing.T) {
	store := NewDedupStore(100, 0.001)

	if store.Seen(10) {
		t.Error("First delivery should not be reported as seen")
	}
	if !store.Seen(10) {
		t.Error("Redelivery should be reported as seen")
	}
	if store.Seen(11) {
		t.Error("Different update should not be reported as seen")
	}
	if store.Seen(-3) {
		t.Error("Negative update IDs should be tracked like any other")
	}
	if len(store.ids) != 3 {
		t.Errorf("Store should remember 3 updates, got %d", len(store.ids))
	}
}

func TestDedupStore_SeenConcurrent(t *testing.T) {
	store := NewDedupStore(100, 0.001)

	var fresh atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !store.Seen(77) {
				fresh.Add(1)
			}
		}()
	}
	wg.Wait()

	if fresh.Load() != 1 {
		t.Errorf("Exactly one concurrent delivery should be processed, got %d", fresh.Load())
	}
}

func TestDedupStore_MaxCapacity(t *testing.T) {
	capacity := 5
	store := NewDedupStore(capacity, 0.001)

	for i := int64(0); i < int64(capacity)+3; i++ {
		store.Seen(i)
	}

	if len(store.ids) != capacity {
		t.Errorf("Store should hold exactly %d updates, got %d", capacity, len(store.ids))
	}
	if store.lru.Len() != capacity {
		t.Errorf("LRU should hold exactly %d updates, got %d", capacity, store.lru.Len())
	}

	for _, id := range []int64{3, 4, 5, 6, 7} {
		if !store.has(id) {
			t.Errorf("Store should have recent update %d", id)
		}
	}
	for _, id := range []int64{0, 1, 2} {
		if store.has(id) {
			t.Errorf("Old update %d should have been evicted", id)
		}
	}
}

func TestDedupStore_LongRunEviction(t *testing.T) {
	store := NewDedupStore(5, 0.001)

	for i := int64(0); i < 1000; i++ {
		if store.Seen(i) {
			t.Fatalf("Update %d reported as seen on first delivery", i)
		}
	}

	if len(store.ids) != 5 || store.lru.Len() != 5 {
		t.Errorf("Expected 5 remembered updates, got ids=%d lru=%d", len(store.ids), store.lru.Len())
	}
	for id := int64(995); id < 1000; id++ {
		if !store.Seen(id) {
			t.Errorf("Recent update %d should still be reported as seen", id)
		}
	}
	// Evicted IDs are forgotten, so a late redelivery is processed again
	if store.Seen(0) {
		t.Error("Evicted update 0 should no longer be remembered")
	}
}

func TestDedupStore_BloomFilterEffectiveness(t *testing.T) {
	store := NewDedupStore(1000, 0.001)

	numIDs := int64(500)
	for i := int64(0); i < numIDs; i++ {
		store.Seen(i)
	}

	for i := int64(0); i < numIDs; i++ {
		if !store.has(i) {
			t.Errorf("Store should have update %d", i)
		}
	}

	// Lookups are exact: the map backs every Bloom filter hit
	for i := numIDs; i < numIDs+1000; i++ {
		if store.has(i) {
			t.Errorf("Store should not have update %d", i)
		}
	}
}

func BenchmarkDedupStore_Seen(b *testing.B) {
	store := NewDedupStore(10000, 0.001)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		store.Seen(int64(i))
	}
}
