// Set commands. Grounded on db/set.go's sadd/srem/smembers, extended
// with SINTER/SUNION/SUNIONSTORE/SPOP/SISMEMBER from original_source's
// src/cmds/set/**.rs.
package command

import (
	"math/rand"

	"myredis/internal/resp"
	"myredis/internal/store"
)

func init() {
	registerWrite("sadd", cmdSAdd)
	registerWrite("srem", cmdSRem)
	registerRead("smembers", cmdSMembers)
	registerRead("scard", cmdSCard)
	registerRead("sinter", cmdSInter)
	registerRead("sunion", cmdSUnion)
	registerWrite("sunionstore", cmdSUnionStore)
	registerWrite("spop", cmdSPop)
	registerRead("sismember", cmdSIsMember)
}

func getSet(ks *store.Keyspace, key string) (map[string]struct{}, bool, resp.Reply) {
	v, ok := ks.Get(key)
	if !ok {
		return nil, false, nil
	}
	if v.Kind != store.KindSet {
		return nil, false, errWrongType()
	}
	return v.Set, true, nil
}

func cmdSAdd(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 3 {
		return errArity("sadd"), false
	}
	key := string(args[1])
	s, ok, errReply := getSet(ks, key)
	if errReply != nil {
		return errReply, false
	}
	if !ok {
		v := store.NewSet()
		s = v.Set
		ks.Insert(key, v)
	}
	added := int64(0)
	for _, a := range args[2:] {
		m := string(a)
		if _, exists := s[m]; !exists {
			s[m] = struct{}{}
			added++
		}
	}
	return resp.MakeIntReply(added), added > 0
}

func cmdSRem(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 3 {
		return errArity("srem"), false
	}
	key := string(args[1])
	s, ok, errReply := getSet(ks, key)
	if errReply != nil {
		return errReply, false
	}
	if !ok {
		return resp.MakeIntReply(0), false
	}
	removed := int64(0)
	for _, a := range args[2:] {
		m := string(a)
		if _, exists := s[m]; exists {
			delete(s, m)
			removed++
		}
	}
	if len(s) == 0 {
		ks.Remove(key)
	}
	return resp.MakeIntReply(removed), removed > 0
}

func cmdSMembers(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("smembers")
	}
	s, ok, errReply := getSet(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	out := make([][]byte, 0, len(s))
	if ok {
		for m := range s {
			out = append(out, []byte(m))
		}
	}
	return resp.MakeMultiBulkReply(out)
}

func cmdSCard(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("scard")
	}
	s, ok, errReply := getSet(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeIntReply(0)
	}
	return resp.MakeIntReply(int64(len(s)))
}

func cmdSIsMember(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 3 {
		return errArity("sismember")
	}
	s, ok, errReply := getSet(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeIntReply(0)
	}
	if _, exists := s[string(args[2])]; exists {
		return resp.MakeIntReply(1)
	}
	return resp.MakeIntReply(0)
}

func loadSets(ks *store.Keyspace, keys [][]byte) ([]map[string]struct{}, resp.Reply) {
	sets := make([]map[string]struct{}, 0, len(keys))
	for _, k := range keys {
		s, ok, errReply := getSet(ks, string(k))
		if errReply != nil {
			return nil, errReply
		}
		if !ok {
			s = map[string]struct{}{}
		}
		sets = append(sets, s)
	}
	return sets, nil
}

func cmdSInter(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) < 2 {
		return errArity("sinter")
	}
	sets, errReply := loadSets(ks, args[1:])
	if errReply != nil {
		return errReply
	}
	out := make([][]byte, 0)
	for m := range sets[0] {
		inAll := true
		for _, s := range sets[1:] {
			if _, exists := s[m]; !exists {
				inAll = false
				break
			}
		}
		if inAll {
			out = append(out, []byte(m))
		}
	}
	return resp.MakeMultiBulkReply(out)
}

func unionSets(sets []map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for _, s := range sets {
		for m := range s {
			out[m] = struct{}{}
		}
	}
	return out
}

func cmdSUnion(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) < 2 {
		return errArity("sunion")
	}
	sets, errReply := loadSets(ks, args[1:])
	if errReply != nil {
		return errReply
	}
	union := unionSets(sets)
	out := make([][]byte, 0, len(union))
	for m := range union {
		out = append(out, []byte(m))
	}
	return resp.MakeMultiBulkReply(out)
}

func cmdSUnionStore(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 3 {
		return errArity("sunionstore"), false
	}
	dst := string(args[1])
	sets, errReply := loadSets(ks, args[2:])
	if errReply != nil {
		return errReply, false
	}
	union := unionSets(sets)
	if len(union) == 0 {
		removed := ks.Remove(dst)
		return resp.MakeIntReply(0), removed
	}
	v := store.NewSet()
	v.Set = union
	ks.Insert(dst, v)
	return resp.MakeIntReply(int64(len(union))), true
}

func cmdSPop(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 2 {
		return errArity("spop"), false
	}
	key := string(args[1])
	s, ok, errReply := getSet(ks, key)
	if errReply != nil {
		return errReply, false
	}
	if !ok || len(s) == 0 {
		return resp.NullBulkReply, false
	}
	idx := rand.Intn(len(s))
	i := 0
	var picked string
	for m := range s {
		if i == idx {
			picked = m
			break
		}
		i++
	}
	delete(s, picked)
	if len(s) == 0 {
		ks.Remove(key)
	}
	return resp.MakeBulkReply([]byte(picked)), true
}
