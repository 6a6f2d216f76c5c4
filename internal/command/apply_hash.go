// Hash commands. Grounded on db/hash.go, extended with HSETNX/HVALS/
// HEXISTS from original_source's src/cmds/hash/**.rs.
package command

import (
	"myredis/internal/resp"
	"myredis/internal/store"
)

func init() {
	registerWrite("hset", cmdHSet)
	registerRead("hget", cmdHGet)
	registerWrite("hdel", cmdHDel)
	registerWrite("hmset", cmdHMSet)
	registerRead("hmget", cmdHMGet)
	registerRead("hgetall", cmdHGetAll)
	registerRead("hlen", cmdHLen)
	registerWrite("hsetnx", cmdHSetNX)
	registerRead("hvals", cmdHVals)
	registerRead("hexists", cmdHExists)
}

func getHash(ks *store.Keyspace, key string) (map[string][]byte, bool, resp.Reply) {
	v, ok := ks.Get(key)
	if !ok {
		return nil, false, nil
	}
	if v.Kind != store.KindHash {
		return nil, false, errWrongType()
	}
	return v.Hash, true, nil
}

func getOrCreateHash(ks *store.Keyspace, key string) (map[string][]byte, resp.Reply) {
	h, ok, errReply := getHash(ks, key)
	if errReply != nil {
		return nil, errReply
	}
	if !ok {
		v := store.NewHash()
		h = v.Hash
		ks.Insert(key, v)
	}
	return h, nil
}

func cmdHSet(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 4 || len(args)%2 != 0 {
		return errArity("hset"), false
	}
	h, errReply := getOrCreateHash(ks, string(args[1]))
	if errReply != nil {
		return errReply, false
	}
	added := int64(0)
	for i := 2; i < len(args); i += 2 {
		field := string(args[i])
		if _, exists := h[field]; !exists {
			added++
		}
		h[field] = append([]byte(nil), args[i+1]...)
	}
	return resp.MakeIntReply(added), true
}

func cmdHGet(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 3 {
		return errArity("hget")
	}
	h, ok, errReply := getHash(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.NullBulkReply
	}
	v, exists := h[string(args[2])]
	if !exists {
		return resp.NullBulkReply
	}
	return resp.MakeBulkReply(v)
}

func cmdHDel(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 3 {
		return errArity("hdel"), false
	}
	h, ok, errReply := getHash(ks, string(args[1]))
	if errReply != nil {
		return errReply, false
	}
	if !ok {
		return resp.MakeIntReply(0), false
	}
	removed := int64(0)
	for _, a := range args[2:] {
		field := string(a)
		if _, exists := h[field]; exists {
			delete(h, field)
			removed++
		}
	}
	if len(h) == 0 {
		ks.Remove(string(args[1]))
	}
	return resp.MakeIntReply(removed), removed > 0
}

func cmdHMSet(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 4 || len(args)%2 != 0 {
		return errArity("hmset"), false
	}
	h, errReply := getOrCreateHash(ks, string(args[1]))
	if errReply != nil {
		return errReply, false
	}
	for i := 2; i < len(args); i += 2 {
		h[string(args[i])] = append([]byte(nil), args[i+1]...)
	}
	return resp.OkReply, true
}

func cmdHMGet(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) < 3 {
		return errArity("hmget")
	}
	h, ok, errReply := getHash(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	out := make([][]byte, 0, len(args)-2)
	for _, a := range args[2:] {
		if !ok {
			out = append(out, nil)
			continue
		}
		v, exists := h[string(a)]
		if !exists {
			out = append(out, nil)
			continue
		}
		out = append(out, v)
	}
	return resp.MakeMultiBulkReply(out)
}

func cmdHGetAll(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("hgetall")
	}
	h, ok, errReply := getHash(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	out := make([][]byte, 0, len(h)*2)
	if ok {
		for k, v := range h {
			out = append(out, []byte(k), v)
		}
	}
	return resp.MakeMultiBulkReply(out)
}

func cmdHLen(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("hlen")
	}
	h, ok, errReply := getHash(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeIntReply(0)
	}
	return resp.MakeIntReply(int64(len(h)))
}

func cmdHSetNX(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 4 {
		return errArity("hsetnx"), false
	}
	h, errReply := getOrCreateHash(ks, string(args[1]))
	if errReply != nil {
		return errReply, false
	}
	field := string(args[2])
	if _, exists := h[field]; exists {
		return resp.MakeIntReply(0), false
	}
	h[field] = append([]byte(nil), args[3]...)
	return resp.MakeIntReply(1), true
}

func cmdHVals(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("hvals")
	}
	h, ok, errReply := getHash(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	out := make([][]byte, 0, len(h))
	if ok {
		for _, v := range h {
			out = append(out, v)
		}
	}
	return resp.MakeMultiBulkReply(out)
}

func cmdHExists(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 3 {
		return errArity("hexists")
	}
	h, ok, errReply := getHash(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeIntReply(0)
	}
	if _, exists := h[string(args[2])]; exists {
		return resp.MakeIntReply(1)
	}
	return resp.MakeIntReply(0)
}
