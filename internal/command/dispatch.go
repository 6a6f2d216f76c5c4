// Package command implements command parsing and single-keyspace apply
// logic (C7 in spec.md §4.6). Commands that need more than one keyspace
// (MOVE) are not here — they are mediated by the session/connection layer
// talking to two dbactor.Actor instances, per spec.md §9's design note.
package command

import (
	"strings"

	"myredis/internal/resp"
	"myredis/internal/store"
)

// Dispatch applies a single command to ks. It returns the reply to send
// back to the client and whether the command actually mutated ks — only
// that second value should bump the change counter, get appended to the
// log, and get forwarded to replicas. A write command whose guard fails
// (SET NX on an existing key, DEL of a missing key, RENAMENX onto an
// existing name, ...) reports false even though it dispatched through
// writeTable. Parse and apply are not split into two public functions the
// way spec.md §4.6 frames them conceptually — each handler below does
// arity/type validation (the "parse" step, which never touches ks) before
// touching shared state (the "apply" step), exactly as the contract
// requires, just without a separate exported Cmd type per command; this
// mirrors db/*.go's one-function-per-command layout.
func Dispatch(ks *store.Keyspace, args [][]byte) (resp.Reply, bool) {
	if len(args) == 0 {
		return nil, false
	}
	name := strings.ToLower(string(args[0]))

	if handler, ok := writeTable[name]; ok {
		return handler(ks, args)
	}
	if handler, ok := readTable[name]; ok {
		return handler(ks, args), false
	}
	return unknownCommand(args), false
}

// IsKnown reports whether name is implemented, used by the connection
// handler (via dbmanager.IsKnownCommand) to decide whether a command
// should be routed to an actor at all.
func IsKnown(name string) bool {
	name = strings.ToLower(name)
	_, w := writeTable[name]
	_, r := readTable[name]
	return w || r
}

// IsWrite reports whether name mutates state, used by the AOF writer and
// the replication sink to decide whether an applied command should be
// logged/forwarded.
func IsWrite(name string) bool {
	_, ok := writeTable[strings.ToLower(name)]
	return ok
}

type handlerFunc func(ks *store.Keyspace, args [][]byte) resp.Reply

// writeHandlerFunc additionally reports whether the call mutated ks, since
// a write-table command can still be a no-op at runtime.
type writeHandlerFunc func(ks *store.Keyspace, args [][]byte) (resp.Reply, bool)

// writeTable and readTable are populated by each apply_*.go file's init(),
// one entry per command name, keeping the per-type command logic
// physically separate the way db/basic.go, db/list.go, db/set.go,
// db/hash.go, db/ttl.go split theirs.
var writeTable = map[string]writeHandlerFunc{}
var readTable = map[string]handlerFunc{}

func registerWrite(name string, h writeHandlerFunc) { writeTable[name] = h }
func registerRead(name string, h handlerFunc)       { readTable[name] = h }

func unknownCommand(args [][]byte) resp.Reply {
	name := string(args[0])
	rest := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		rest = append(rest, "'"+string(a)+"'")
	}
	msg := "ERR unknown command '" + name + "', with args beginning with: "
	if len(rest) > 0 {
		msg += strings.Join(rest, ", ") + ", "
	}
	return resp.MakeErrReply(msg)
}

func errArity(name string) resp.Reply {
	return resp.MakeErrReply("ERR wrong number of arguments for '" + name + "' command")
}

func errWrongType() resp.Reply {
	return resp.MakeErrReply("WRONGTYPE Operation against a key holding the wrong kind of value")
}

func errSyntax() resp.Reply {
	return resp.MakeErrReply("ERR syntax error")
}

func errNotInt() resp.Reply {
	return resp.MakeErrReply("ERR value is not an integer or out of range")
}

func errNotFloat() resp.Reply {
	return resp.MakeErrReply("ERR value is not a valid float")
}
