package persistence

import (
	"bytes"
	"path/filepath"
	"testing"

	"myredis/internal/store"
)

func TestSnapshotRoundTripViaWriter(t *testing.T) {
	snap := Snapshot{
		LastSaveUnixMs:  12345,
		LastSaveChanges: 7,
		Databases: map[int][]Entry{
			0: {
				{Key: "s", Type: TypeString, String: []byte("v")},
				{Key: "l", Type: TypeList, List: [][]byte{[]byte("a"), []byte("b")}},
				{Key: "z", Type: TypeZSet, ZSet: []store.ZMember{{Member: "m", Score: 1.5}}},
			},
			1: {
				{Key: "vec", Type: TypeVector, Vector: []store.VecEntry{{ID: "x", Vector: []float64{1, 2, 3}}}},
			},
		},
	}

	var buf bytes.Buffer
	if err := SaveToWriter(&buf, snap); err != nil {
		t.Fatalf("SaveToWriter: %v", err)
	}

	got, err := LoadFromReader(&buf)
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if got.LastSaveChanges != 7 || got.LastSaveUnixMs != 12345 {
		t.Fatalf("header mismatch: %+v", got)
	}
	if len(got.Databases[0]) != 3 || len(got.Databases[1]) != 1 {
		t.Fatalf("unexpected database entry counts: %+v", got.Databases)
	}
}

func TestSnapshotSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	filename := filepath.Join(dir, "dump.rdb")

	snap := Snapshot{Databases: map[int][]Entry{
		0: {{Key: "k", Type: TypeString, String: []byte("v")}},
	}}
	if err := Save(filename, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(filename)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Databases[0]) != 1 || got.Databases[0][0].Key != "k" {
		t.Fatalf("unexpected loaded entries: %+v", got.Databases)
	}
}

func TestEntriesFromKeyspaceRoundTrip(t *testing.T) {
	ks := store.NewKeyspace()
	ks.Insert("s", store.NewString([]byte("v")))
	ks.Expire("s", 60000)

	data, expire := ks.Snapshot()
	entries := EntriesFromKeyspace(data, expire)

	ks2 := store.NewKeyspace()
	RestoreKeyspace(ks2, entries)

	v, ok := ks2.Get("s")
	if !ok || string(v.Str) != "v" {
		t.Fatalf("expected restored string value, got %v %v", v, ok)
	}
	if ttl := ks2.TTLMillis("s"); ttl <= 0 {
		t.Fatalf("expected TTL preserved across restore, got %d", ttl)
	}
}
