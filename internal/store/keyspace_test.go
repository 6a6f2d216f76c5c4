package store

import (
	"testing"
	"time"
)

func TestKeyspace_ExpireInvariant(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("k", NewString([]byte("v")))
	if !ks.Expire("k", 1000) {
		t.Fatalf("expected Expire to succeed on existing key")
	}
	ttl := ks.TTLMillis("k")
	if ttl < 0 || ttl > 1000 {
		t.Fatalf("TTL out of range: %d", ttl)
	}
}

func TestKeyspace_DelThenExists(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("k", NewString([]byte("v")))
	if !ks.Remove("k") {
		t.Fatalf("expected removal")
	}
	if ks.Exists("k") {
		t.Fatalf("expected key gone after DEL")
	}
}

func TestKeyspace_LazyExpiry(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("k", NewString([]byte("v")))
	ks.expire["k"] = nowMs() - 1 // already past due

	if _, ok := ks.Get("k"); ok {
		t.Fatalf("expected lazily-expired key to read as missing")
	}
	if ks.Exists("k") {
		t.Fatalf("expected lazily-expired key to not exist")
	}
	if _, ok := ks.expire["k"]; ok {
		t.Fatalf("expected expiry entry purged alongside the key")
	}
}

func TestKeyspace_SweepExpired(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("a", NewString([]byte("1")))
	ks.Insert("b", NewString([]byte("2")))
	ks.expire["a"] = nowMs() - 1

	removed := ks.SweepExpired()
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if ks.Exists("a") {
		t.Fatalf("expected a removed")
	}
	if !ks.Exists("b") {
		t.Fatalf("expected b untouched")
	}
}

func TestKeyspace_Clear(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("k", NewString([]byte("v")))
	ks.Expire("k", 10000)
	ks.Clear()
	if ks.Len() != 0 {
		t.Fatalf("expected empty keyspace after Clear")
	}
	if ks.Exists("k") {
		t.Fatalf("expected k gone after Clear")
	}
}

func TestKeyspace_KeysGlob(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("hello", NewString([]byte("1")))
	ks.Insert("help", NewString([]byte("1")))
	ks.Insert("world", NewString([]byte("1")))

	got := ks.Keys("hel?o")
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("unexpected match for hel?o: %v", got)
	}

	got = ks.Keys("hel*")
	if len(got) != 2 {
		t.Fatalf("expected 2 matches for hel*, got %v", got)
	}
}

func TestKeyspace_KeysNegatedClass(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("cat", NewString([]byte("1")))
	ks.Insert("bat", NewString([]byte("1")))
	ks.Insert("rat", NewString([]byte("1")))

	got := ks.Keys("[^c]at")
	if len(got) != 2 {
		t.Fatalf("expected bat+rat, got %v", got)
	}
}

func TestKeyspace_PersistClearsTTL(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("k", NewString([]byte("v")))
	ks.Expire("k", 10000)
	if !ks.Persist("k") {
		t.Fatalf("expected Persist to report a cleared TTL")
	}
	if ks.TTLMillis("k") != -1 {
		t.Fatalf("expected no-expiry after PERSIST")
	}
}

func TestKeyspace_RandomKeyUniformOverLiveKeys(t *testing.T) {
	ks := NewKeyspace()
	for _, k := range []string{"a", "b", "c"} {
		ks.Insert(k, NewString([]byte("1")))
	}
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		k, ok := ks.RandomKey()
		if !ok {
			t.Fatalf("expected a random key")
		}
		seen[k] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected to see all 3 keys over 100 draws, saw %v", seen)
	}
}

func TestSortedSet_RankAndOrder(t *testing.T) {
	z := NewSortedSet()
	z.Add("a", 1)
	z.Add("b", 2)
	z.Add("c", 1.5)

	if z.Rank("a") != 0 || z.Rank("c") != 1 || z.Rank("b") != 2 {
		t.Fatalf("unexpected ranks: a=%d c=%d b=%d", z.Rank("a"), z.Rank("c"), z.Rank("b"))
	}
}

func TestVectorCollection_DimMismatch(t *testing.T) {
	v := NewVectorCollection()
	if err := v.Add("1", []float64{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := v.Add("2", []float64{1, 2}); err != ErrDimMismatch {
		t.Fatalf("expected dimension mismatch error, got %v", err)
	}
}

func TestVectorCollection_SearchEmpty(t *testing.T) {
	v := NewVectorCollection()
	results, err := v.Search([]float64{1, 2, 3}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results on empty collection")
	}
}

func TestVectorCollection_SearchOrdering(t *testing.T) {
	v := NewVectorCollection()
	_ = v.Add("same", []float64{1, 0})
	_ = v.Add("orth", []float64{0, 1})
	_ = v.Add("opposite", []float64{-1, 0})

	results, err := v.Search([]float64{1, 0}, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].ID != "same" {
		t.Fatalf("expected 'same' to rank first, got %v", results)
	}
	if results[len(results)-1].ID != "opposite" {
		t.Fatalf("expected 'opposite' to rank last, got %v", results)
	}
}

func TestVectorCollection_ZeroNormSimilarityIsZero(t *testing.T) {
	v := NewVectorCollection()
	_ = v.Add("zero", []float64{0, 0})
	results, err := v.Search([]float64{1, 1}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results[0].Score != 0 {
		t.Fatalf("expected zero similarity for zero-norm vector, got %f", results[0].Score)
	}
}

func TestKeyspace_ExpireAtPastDeletesImmediately(t *testing.T) {
	ks := NewKeyspace()
	ks.Insert("k", NewString([]byte("v")))
	if !ks.ExpireAt("k", time.Now().Add(-time.Second).UnixMilli()) {
		t.Fatalf("expected ExpireAt to report success")
	}
	if ks.Exists("k") {
		t.Fatalf("expected key deleted by a past ExpireAt")
	}
}
