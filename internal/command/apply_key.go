// Key-space commands that don't belong to one value type: DEL, EXISTS,
// TTL family, TYPE, KEYS, RANDOMKEY, DBSIZE, RENAME/RENAMENX, FLUSHDB.
// Grounded on db/ttl.go and db/basic.go's del, generalized to the
// Keyspace type and extended with the commands original_source's
// src/cmd/key/** and src/cmds/key/** implement that the table adds.
package command

import (
	"strconv"

	"myredis/internal/resp"
	"myredis/internal/store"
)

func init() {
	registerWrite("del", cmdDel)
	registerRead("exists", cmdExists)
	registerWrite("expire", cmdExpire)
	registerWrite("pexpire", cmdPExpire)
	registerWrite("pexpireat", cmdPExpireAt)
	registerRead("ttl", cmdTTL)
	registerRead("pttl", cmdPTTL)
	registerWrite("persist", cmdPersist)
	registerRead("type", cmdType)
	registerRead("keys", cmdKeys)
	registerRead("randomkey", cmdRandomKey)
	registerRead("dbsize", cmdDBSize)
	registerWrite("rename", cmdRename)
	registerWrite("renamenx", cmdRenameNX)
	registerWrite("flushdb", cmdFlushDB)
}

func cmdDel(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 2 {
		return errArity("del"), false
	}
	deleted := 0
	for _, a := range args[1:] {
		if ks.Remove(string(a)) {
			deleted++
		}
	}
	return resp.MakeIntReply(int64(deleted)), deleted > 0
}

func cmdExists(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) < 2 {
		return errArity("exists")
	}
	n := int64(0)
	for _, a := range args[1:] {
		if ks.Exists(string(a)) {
			n++
		}
	}
	return resp.MakeIntReply(n)
}

func cmdExpire(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("expire"), false
	}
	seconds, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return errNotInt(), false
	}
	if !ks.Expire(string(args[1]), seconds*1000) {
		return resp.MakeIntReply(0), false
	}
	return resp.MakeIntReply(1), true
}

func cmdPExpire(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("pexpire"), false
	}
	ms, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return errNotInt(), false
	}
	if !ks.Expire(string(args[1]), ms) {
		return resp.MakeIntReply(0), false
	}
	return resp.MakeIntReply(1), true
}

func cmdPExpireAt(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("pexpireat"), false
	}
	ms, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return errNotInt(), false
	}
	if !ks.ExpireAt(string(args[1]), ms) {
		return resp.MakeIntReply(0), false
	}
	return resp.MakeIntReply(1), true
}

func cmdTTL(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("ttl")
	}
	ms := ks.TTLMillis(string(args[1]))
	if ms < 0 {
		return resp.MakeIntReply(ms)
	}
	return resp.MakeIntReply((ms + 999) / 1000)
}

func cmdPTTL(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("pttl")
	}
	return resp.MakeIntReply(ks.TTLMillis(string(args[1])))
}

func cmdPersist(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 2 {
		return errArity("persist"), false
	}
	if ks.Persist(string(args[1])) {
		return resp.MakeIntReply(1), true
	}
	return resp.MakeIntReply(0), false
}

func cmdType(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("type")
	}
	v, ok := ks.Get(string(args[1]))
	if !ok {
		return resp.MakeStatusReply("none")
	}
	return resp.MakeStatusReply(v.Kind.String())
}

func cmdKeys(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("keys")
	}
	matches := ks.Keys(string(args[1]))
	out := make([][]byte, len(matches))
	for i, k := range matches {
		out[i] = []byte(k)
	}
	return resp.MakeMultiBulkReply(out)
}

func cmdRandomKey(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 1 {
		return errArity("randomkey")
	}
	k, ok := ks.RandomKey()
	if !ok {
		return resp.NullBulkReply
	}
	return resp.MakeBulkReply([]byte(k))
}

func cmdDBSize(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 1 {
		return errArity("dbsize")
	}
	return resp.MakeIntReply(int64(ks.Len()))
}

func cmdRename(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("rename"), false
	}
	src := string(args[1])
	dst := string(args[2])
	v, ok := ks.Get(src)
	if !ok {
		return resp.MakeErrReply("ERR no such key"), false
	}
	at, hasTTL := ks.ExpireAtMs(src)
	ks.Remove(src)
	ks.Insert(dst, v)
	if hasTTL {
		ks.ExpireAt(dst, at)
	} else {
		ks.Persist(dst)
	}
	return resp.OkReply, true
}

func cmdRenameNX(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("renamenx"), false
	}
	src := string(args[1])
	dst := string(args[2])
	if _, ok := ks.Get(src); !ok {
		return resp.MakeErrReply("ERR no such key"), false
	}
	if ks.Exists(dst) {
		return resp.MakeIntReply(0), false
	}
	v, _ := ks.Get(src)
	at, hasTTL := ks.ExpireAtMs(src)
	ks.Remove(src)
	ks.Insert(dst, v)
	if hasTTL {
		ks.ExpireAt(dst, at)
	}
	return resp.MakeIntReply(1), true
}

func cmdFlushDB(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 1 {
		return errArity("flushdb"), false
	}
	ks.Clear()
	return resp.OkReply, true
}
