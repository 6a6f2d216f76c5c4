// String commands: SET/GET/APPEND/INCR family/MSET/MGET/GETSET/STRLEN/
// GETRANGE. Grounded on db/basic.go's set/get/del plus
// original_source/src/cmd/string/**.rs for the arithmetic and range
// commands beyond those.
package command

import (
	"strconv"
	"strings"

	"myredis/internal/resp"
	"myredis/internal/store"
)

func init() {
	registerWrite("set", cmdSet)
	registerRead("get", cmdGet)
	registerWrite("append", cmdAppend)
	registerWrite("incr", cmdIncr)
	registerWrite("decr", cmdDecr)
	registerWrite("incrby", cmdIncrBy)
	registerWrite("decrby", cmdDecrBy)
	registerWrite("incrbyfloat", cmdIncrByFloat)
	registerWrite("mset", cmdMSet)
	registerRead("mget", cmdMGet)
	registerWrite("getset", cmdGetSet)
	registerRead("strlen", cmdStrlen)
	registerRead("getrange", cmdGetRange)
}

func getString(ks *store.Keyspace, key string) ([]byte, bool, resp.Reply) {
	v, ok := ks.Get(key)
	if !ok {
		return nil, false, nil
	}
	if v.Kind != store.KindString {
		return nil, false, errWrongType()
	}
	return v.Str, true, nil
}

// SET key value [EX s|PX ms] [NX|XX]
func cmdSet(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 3 {
		return errArity("set"), false
	}
	key := string(args[1])
	val := args[2]

	var ttlMs int64 = -1
	nx, xx := false, false

	i := 3
	for i < len(args) {
		opt := strings.ToUpper(string(args[i]))
		switch opt {
		case "EX", "PX":
			if i+1 >= len(args) {
				return errSyntax(), false
			}
			n, err := strconv.ParseInt(string(args[i+1]), 10, 64)
			if err != nil {
				return errNotInt(), false
			}
			if opt == "EX" {
				ttlMs = n * 1000
			} else {
				ttlMs = n
			}
			i += 2
		case "NX":
			nx = true
			i++
		case "XX":
			xx = true
			i++
		default:
			return errSyntax(), false
		}
	}
	if nx && xx {
		return errSyntax(), false
	}

	exists := ks.Exists(key)
	if nx && exists {
		return resp.NullBulkReply, false
	}
	if xx && !exists {
		return resp.NullBulkReply, false
	}

	ks.Insert(key, store.NewString(append([]byte(nil), val...)))
	ks.Persist(key) // SET clears any prior TTL unless the caller asked for one
	if ttlMs >= 0 {
		ks.Expire(key, ttlMs)
	}
	return resp.OkReply, true
}

func cmdGet(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("get")
	}
	b, ok, errReply := getString(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.NullBulkReply
	}
	return resp.MakeBulkReply(b)
}

func cmdAppend(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("append"), false
	}
	key := string(args[1])
	b, ok, errReply := getString(ks, key)
	if errReply != nil {
		return errReply, false
	}
	var newVal []byte
	if ok {
		newVal = append(append([]byte(nil), b...), args[2]...)
	} else {
		newVal = append([]byte(nil), args[2]...)
	}
	at, hasTTL := ks.ExpireAtMs(key)
	ks.Insert(key, store.NewString(newVal))
	if hasTTL {
		ks.ExpireAt(key, at)
	}
	return resp.MakeIntReply(int64(len(newVal))), true
}

func incrByHelper(ks *store.Keyspace, key string, delta int64) (resp.Reply, bool) {
	b, ok, errReply := getString(ks, key)
	if errReply != nil {
		return errReply, false
	}
	var n int64
	if ok {
		parsed, err := strconv.ParseInt(string(b), 10, 64)
		if err != nil {
			return errNotInt(), false
		}
		n = parsed
	}
	n += delta
	at, hasTTL := ks.ExpireAtMs(key)
	ks.Insert(key, store.NewString([]byte(strconv.FormatInt(n, 10))))
	if hasTTL {
		ks.ExpireAt(key, at)
	}
	return resp.MakeIntReply(n), true
}

func cmdIncr(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 2 {
		return errArity("incr"), false
	}
	return incrByHelper(ks, string(args[1]), 1)
}

func cmdDecr(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 2 {
		return errArity("decr"), false
	}
	return incrByHelper(ks, string(args[1]), -1)
}

func cmdIncrBy(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("incrby"), false
	}
	delta, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return errNotInt(), false
	}
	return incrByHelper(ks, string(args[1]), delta)
}

func cmdDecrBy(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("decrby"), false
	}
	delta, err := strconv.ParseInt(string(args[2]), 10, 64)
	if err != nil {
		return errNotInt(), false
	}
	return incrByHelper(ks, string(args[1]), -delta)
}

func cmdIncrByFloat(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("incrbyfloat"), false
	}
	key := string(args[1])
	delta, err := strconv.ParseFloat(string(args[2]), 64)
	if err != nil {
		return errNotFloat(), false
	}
	b, ok, errReply := getString(ks, key)
	if errReply != nil {
		return errReply, false
	}
	var n float64
	if ok {
		parsed, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return errNotFloat(), false
		}
		n = parsed
	}
	n += delta
	at, hasTTL := ks.ExpireAtMs(key)
	formatted := formatFloat(n)
	ks.Insert(key, store.NewString([]byte(formatted)))
	if hasTTL {
		ks.ExpireAt(key, at)
	}
	return resp.MakeBulkReply([]byte(formatted)), true
}

func cmdMSet(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) < 3 || len(args)%2 != 1 {
		return errArity("mset"), false
	}
	for i := 1; i < len(args); i += 2 {
		key := string(args[i])
		ks.Insert(key, store.NewString(append([]byte(nil), args[i+1]...)))
		ks.Persist(key)
	}
	return resp.OkReply, true
}

func cmdMGet(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) < 2 {
		return errArity("mget")
	}
	out := make([][]byte, 0, len(args)-1)
	for _, a := range args[1:] {
		b, ok, errReply := getString(ks, string(a))
		if errReply != nil || !ok {
			out = append(out, nil)
			continue
		}
		out = append(out, b)
	}
	return resp.MakeMultiBulkReply(out)
}

func cmdGetSet(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 3 {
		return errArity("getset"), false
	}
	key := string(args[1])
	old, ok, errReply := getString(ks, key)
	if errReply != nil {
		return errReply, false
	}
	ks.Insert(key, store.NewString(append([]byte(nil), args[2]...)))
	ks.Persist(key)
	if !ok {
		return resp.NullBulkReply, true
	}
	return resp.MakeBulkReply(old), true
}

func cmdStrlen(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("strlen")
	}
	b, ok, errReply := getString(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeIntReply(0)
	}
	return resp.MakeIntReply(int64(len(b)))
}

func cmdGetRange(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 4 {
		return errArity("getrange")
	}
	b, ok, errReply := getString(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeBulkReply([]byte{})
	}
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	if err1 != nil || err2 != nil {
		return errNotInt()
	}
	size := len(b)
	start = clampIndex(start, size)
	stop = clampIndex(stop, size)
	if start > stop || size == 0 {
		return resp.MakeBulkReply([]byte{})
	}
	if stop >= size {
		stop = size - 1
	}
	return resp.MakeBulkReply(b[start : stop+1])
}

func clampIndex(i, size int) int {
	if i < 0 {
		i = size + i
	}
	if i < 0 {
		i = 0
	}
	return i
}
