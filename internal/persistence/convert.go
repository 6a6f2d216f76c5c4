package persistence

import "myredis/internal/store"

// EntriesFromKeyspace converts a point-in-time keyspace view (as returned
// by dbactor.SnapshotMsg) into the Entry list a single database's
// snapshot section holds.
func EntriesFromKeyspace(data map[string]*store.Value, expire map[string]int64) []Entry {
	entries := make([]Entry, 0, len(data))
	for key, v := range data {
		e := Entry{Key: key, ExpireAtUnixMs: expire[key]}
		switch v.Kind {
		case store.KindString:
			e.Type = TypeString
			e.String = v.Str
		case store.KindList:
			e.Type = TypeList
			for el := v.List.Front(); el != nil; el = el.Next() {
				e.List = append(e.List, el.Value.([]byte))
			}
		case store.KindHash:
			e.Type = TypeHash
			e.Hash = v.Hash
		case store.KindSet:
			e.Type = TypeSet
			for m := range v.Set {
				e.Set = append(e.Set, m)
			}
		case store.KindZSet:
			e.Type = TypeZSet
			e.ZSet = v.ZSet.Members()
		case store.KindVector:
			e.Type = TypeVector
			e.Vector = v.Vec.Entries()
		}
		entries = append(entries, e)
	}
	return entries
}

// RestoreKeyspace replays entries into ks, restoring each value's native
// representation and its absolute expiry.
func RestoreKeyspace(ks *store.Keyspace, entries []Entry) {
	data := make(map[string]*store.Value, len(entries))
	expire := make(map[string]int64, len(entries))

	for _, e := range entries {
		var v *store.Value
		switch e.Type {
		case TypeString:
			v = store.NewString(e.String)
		case TypeList:
			v = store.NewList()
			for _, b := range e.List {
				v.List.PushBack(b)
			}
		case TypeHash:
			v = store.NewHash()
			for k, val := range e.Hash {
				v.Hash[k] = val
			}
		case TypeSet:
			v = store.NewSet()
			for _, m := range e.Set {
				v.Set[m] = struct{}{}
			}
		case TypeZSet:
			v = store.NewZSet()
			for _, zm := range e.ZSet {
				v.ZSet.Add(zm.Member, zm.Score)
			}
		case TypeVector:
			v = store.NewVector()
			for _, ve := range e.Vector {
				v.Vec.LoadVector(ve.ID, ve.Vector)
			}
		default:
			continue
		}
		data[e.Key] = v
		if e.ExpireAtUnixMs > 0 {
			expire[e.Key] = e.ExpireAtUnixMs
		}
	}

	ks.Restore(data, expire)
}
