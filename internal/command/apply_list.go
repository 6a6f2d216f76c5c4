// List commands. Grounded on db/list.go's push/pop/range, extended with
// LPUSHX/RPUSHX/LSET/LINDEX from original_source's src/cmds/list/**.rs.
package command

import (
	"container/list"
	"strconv"

	"myredis/internal/resp"
	"myredis/internal/store"
)

func init() {
	registerWrite("lpush", cmdLPush)
	registerWrite("rpush", cmdRPush)
	registerWrite("lpushx", cmdLPushX)
	registerWrite("rpushx", cmdRPushX)
	registerWrite("lpop", cmdLPop)
	registerWrite("rpop", cmdRPop)
	registerRead("lrange", cmdLRange)
	registerRead("llen", cmdLLen)
	registerWrite("lset", cmdLSet)
	registerRead("lindex", cmdLIndex)
}

func getList(ks *store.Keyspace, key string) (*list.List, bool, resp.Reply) {
	v, ok := ks.Get(key)
	if !ok {
		return nil, false, nil
	}
	if v.Kind != store.KindList {
		return nil, false, errWrongType()
	}
	return v.List, true, nil
}

func pushHelper(ks *store.Keyspace, args [][]byte, name string, front bool, requireExisting bool) (resp.Reply, bool) {
	if len(args) < 3 {
		return errArity(name), false
	}
	key := string(args[1])
	l, ok, errReply := getList(ks, key)
	if errReply != nil {
		return errReply, false
	}
	if !ok {
		if requireExisting {
			return resp.MakeIntReply(0), false
		}
		v := store.NewList()
		l = v.List
		ks.Insert(key, v)
	}
	for _, a := range args[2:] {
		item := append([]byte(nil), a...)
		if front {
			l.PushFront(item)
		} else {
			l.PushBack(item)
		}
	}
	return resp.MakeIntReply(int64(l.Len())), true
}

func cmdLPush(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	return pushHelper(ks, args, "lpush", true, false)
}

func cmdRPush(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	return pushHelper(ks, args, "rpush", false, false)
}

func cmdLPushX(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	return pushHelper(ks, args, "lpushx", true, true)
}

func cmdRPushX(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	return pushHelper(ks, args, "rpushx", false, true)
}

func popHelper(ks *store.Keyspace, args [][]byte, name string, front bool) (resp.Reply, bool) {
	if len(args) != 2 {
		return errArity(name), false
	}
	key := string(args[1])
	l, ok, errReply := getList(ks, key)
	if errReply != nil {
		return errReply, false
	}
	if !ok || l.Len() == 0 {
		return resp.NullBulkReply, false
	}
	var e *list.Element
	if front {
		e = l.Front()
	} else {
		e = l.Back()
	}
	l.Remove(e)
	if l.Len() == 0 {
		ks.Remove(key)
	}
	return resp.MakeBulkReply(e.Value.([]byte)), true
}

func cmdLPop(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	return popHelper(ks, args, "lpop", true)
}

func cmdRPop(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	return popHelper(ks, args, "rpop", false)
}

func cmdLRange(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 4 {
		return errArity("lrange")
	}
	l, ok, errReply := getList(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeMultiBulkReply(nil)
	}
	start, err1 := strconv.Atoi(string(args[2]))
	stop, err2 := strconv.Atoi(string(args[3]))
	if err1 != nil || err2 != nil {
		return errNotInt()
	}
	size := l.Len()
	start = clampIndex(start, size)
	stop = clampIndex(stop, size)
	if stop >= size {
		stop = size - 1
	}
	if start > stop || size == 0 {
		return resp.MakeMultiBulkReply(nil)
	}

	out := make([][]byte, 0, stop-start+1)
	i := 0
	for e := l.Front(); e != nil; e = e.Next() {
		if i >= start && i <= stop {
			out = append(out, e.Value.([]byte))
		}
		i++
	}
	return resp.MakeMultiBulkReply(out)
}

func cmdLLen(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 2 {
		return errArity("llen")
	}
	l, ok, errReply := getList(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.MakeIntReply(0)
	}
	return resp.MakeIntReply(int64(l.Len()))
}

func cmdLSet(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) != 4 {
		return errArity("lset"), false
	}
	l, ok, errReply := getList(ks, string(args[1]))
	if errReply != nil {
		return errReply, false
	}
	if !ok {
		return resp.MakeErrReply("ERR no such key"), false
	}
	idx, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return errNotInt(), false
	}
	size := l.Len()
	if idx < 0 {
		idx = size + idx
	}
	if idx < 0 || idx >= size {
		return resp.MakeErrReply("ERR index out of range"), false
	}
	e := l.Front()
	for i := 0; i < idx; i++ {
		e = e.Next()
	}
	e.Value = append([]byte(nil), args[3]...)
	return resp.OkReply, true
}

func cmdLIndex(ks *store.Keyspace, args [][]byte) resp.Reply {
	if len(args) != 3 {
		return errArity("lindex")
	}
	l, ok, errReply := getList(ks, string(args[1]))
	if errReply != nil {
		return errReply
	}
	if !ok {
		return resp.NullBulkReply
	}
	idx, err := strconv.Atoi(string(args[2]))
	if err != nil {
		return errNotInt()
	}
	size := l.Len()
	if idx < 0 {
		idx = size + idx
	}
	if idx < 0 || idx >= size {
		return resp.NullBulkReply
	}
	e := l.Front()
	for i := 0; i < idx; i++ {
		e = e.Next()
	}
	return resp.MakeBulkReply(e.Value.([]byte))
}
