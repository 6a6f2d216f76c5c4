// Sorted-set commands, not present in the Go reference; grounded on
// original_source's src/cmd/sorted_set/**.rs (zadd.rs, zscore.rs,
// zcard.rs, zcount.rs, zrank.rs, zrem.rs).
package command

import (
	"strconv"

	"myredis/internal/resp"
	"myredis/internal/store"
)

func init() {
	registerWrite("zadd", cmdZAdd)
	registerRead("zscore", cmdZScore)
	registerRead("zcard", cmdZCard)
	registerRead("zcount", cmdZCount)
	registerRead("zrank", cmdZRank)
	registerWrite("zrem", cmdZRem)
}

func getZSet(ks *store.Keyspace, key string) (*store.SortedSet, bool, resp.Reply) {
	v, ok := ks.Get(key)
	if !ok {
		return nil, false, nil
	}
	if v.Kind != store.KindZSet {
		return nil, false, errWrongType()
	}
	return v.ZSet, true, nil
}

func cmdZAdd(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 4 || len(args)%2 != 0 {
		return errArity("zadd"), false
	}
	key := string(args[1])
	z, ok, errReply := getZSet(ks, key)
	if errReply != nil {
		return errReply, false
	}
	if !ok {
		v := store.NewZSet()
		z = v.ZSet
		ks.Insert(key, v)
	}
	added := int64(0)
	mutated := false
	for i := 2; i < len(args); i += 2 {
		score, err := strconv.ParseFloat(string(args[i]), 64)
		if err != nil {
			return errNotFloat(), false
		}
		isNew, changed := z.Add(string(args[i+1]), score)
		if isNew {
			added++
		}
		if changed {
			mutated = true
		}
	}
	return resp.MakeIntReply(added), mutated
}

func cmdZScore(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 3 {
		return errArity("zscore")
	}
	z, ok, errReply := getZSet(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.NullBulkReply
	}
	score, exists := z.Score(string(args[2]))
	if !exists {
		return resp.NullBulkReply
	}
	return resp.MakeBulkReply([]byte(formatFloat(score)))
}

func cmdZCard(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("zcard")
	}
	z, ok, errReply := getZSet(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeIntReply(0)
	}
	return resp.MakeIntReply(int64(z.Len()))
}

func cmdZCount(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 4 {
		return errArity("zcount")
	}
	z, ok, errReply := getZSet(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeIntReply(0)
	}
	min, err1 := strconv.ParseFloat(string(args[2]), 64)
	max, err2 := strconv.ParseFloat(string(args[3]), 64)
	if err1 != nil || err2 != nil {
		return errNotFloat()
	}
	return resp.MakeIntReply(int64(z.CountRange(min, max)))
}

func cmdZRank(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 3 {
		return errArity("zrank")
	}
	z, ok, errReply := getZSet(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.NullBulkReply
	}
	rank := z.Rank(string(args[2]))
	if rank < 0 {
		return resp.NullBulkReply
	}
	return resp.MakeIntReply(int64(rank))
}

func cmdZRem(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 3 {
		return errArity("zrem"), false
	}
	key := string(args[1])
	z, ok, errReply := getZSet(ks, key)
	if errReply != nil {
		return errReply, false
	}
	if !ok {
		return resp.MakeIntReply(0), false
	}
	removed := int64(0)
	for _, a := range args[2:] {
		if z.Remove(string(a)) {
			removed++
		}
	}
	if z.Len() == 0 {
		ks.Remove(key)
	}
	return resp.MakeIntReply(removed), removed > 0
}
