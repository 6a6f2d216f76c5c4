package dbactor

import (
	"myredis/internal/persistence"
	"myredis/internal/resp"
	"myredis/internal/store"
)

// Message is the mailbox input type for an Actor. Every variant below
// corresponds to a row of spec.md §4.3's message table save MoveOut/MoveIn,
// which exist purely so MOVE (spec.md §9) can read-then-write-then-delete
// across two actors without either actor ever holding a reference to the
// other — they travel through the same ops channel as everything else, so
// FIFO-per-actor still holds.
type Message interface {
	isMessage()
}

// CommandMsg asks the actor to apply cmd and send the reply on Reply.
// NoAof suppresses append-log recording and replica forwarding (used when
// replaying the log, where re-logging would duplicate every line).
type CommandMsg struct {
	Cmd   [][]byte
	Reply chan resp.Reply
	NoAof bool
}

func (CommandMsg) isMessage() {}

// CleanExpiredMsg asks the actor to sweep its expiration index.
type CleanExpiredMsg struct {
	Done chan int
}

func (CleanExpiredMsg) isMessage() {}

// SnapshotMsg asks for a point-in-time view of keyspace+expiry.
type SnapshotMsg struct {
	Reply chan SnapshotResult
}

func (SnapshotMsg) isMessage() {}

type SnapshotResult struct {
	Data   map[string]*store.Value
	Expire map[string]int64
}

// ChangesMsg asks for the current change counter.
type ChangesMsg struct {
	Reply chan int64
}

func (ChangesMsg) isMessage() {}

// ResetChangesMsg resets the change counter to zero.
type ResetChangesMsg struct {
	Done chan struct{}
}

func (ResetChangesMsg) isMessage() {}

// ReplicateMsg registers sink to receive every subsequently-applied
// write's wire-form frame.
type ReplicateMsg struct {
	Sink ReplicaSink
}

func (ReplicateMsg) isMessage() {}

// ReplicaSink receives the wire-form frame of every write this actor
// applies, once registered via ReplicateMsg.
type ReplicaSink interface {
	SendWrite(frame []byte)
}

// MoveOutMsg atomically reads and removes key, for the source side of
// MOVE. Reply.Found is false if key does not exist (lazy expiry included).
type MoveOutMsg struct {
	Key   string
	Reply chan MoveOutResult
}

func (MoveOutMsg) isMessage() {}

type MoveOutResult struct {
	Found    bool
	Value    *store.Value
	ExpireAt int64 // -1 if no expiry
}

// MoveInMsg inserts Value under Key unless the key already exists on the
// destination actor (Redis MOVE semantics: fails if the destination
// already holds that key).
type MoveInMsg struct {
	Key      string
	Value    *store.Value
	ExpireAt int64
	Reply    chan bool
}

func (MoveInMsg) isMessage() {}

// RestoreMsg replaces the actor's entire keyspace with entries, used once
// at startup to load this database's slice of a loaded snapshot file
// before the server accepts connections.
type RestoreMsg struct {
	Entries []persistence.Entry
	Done    chan struct{}
}

func (RestoreMsg) isMessage() {}
