// Package dbactor implements the single-threaded per-database actor:
// every read and write against one store.Keyspace is serialized through
// a mailbox, exactly the way db/db.go's StandaloneDB.background() serializes
// access to its cache — generalized here to N independent actors (one per
// logical database) with no per-actor ticker; active expiration and save-rule
// evaluation are driven centrally by dbmanager.Manager instead.
package dbactor

import (
	"strconv"
	"strings"
	"sync"

	"myredis/internal/command"
	"myredis/internal/persistence"
	"myredis/internal/resp"
	"myredis/internal/store"
)

// Actor owns one store.Keyspace and applies every CommandMsg against it
// sequentially in its own goroutine, giving lock-free sequential
// consistency the way StandaloneDB.background() does for the whole
// teacher database.
type Actor struct {
	Index int // 0-based database index, used by SELECT/MOVE/persistence

	ks *store.Keyspace

	ops       chan Message
	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	changes int64
	sinks   []ReplicaSink
}

// NewActor starts the actor's goroutine and returns immediately.
func NewActor(index int) *Actor {
	a := &Actor{
		Index:   index,
		ks:      store.NewKeyspace(),
		ops:     make(chan Message, 1024),
		closing: make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()
	return a
}

// Send enqueues msg on the buffered mailbox, blocking only while the
// mailbox is full (or until the actor is closing). It never waits for the
// message to be processed; callers block on whatever reply channel the
// message carries instead.
func (a *Actor) Send(msg Message) {
	select {
	case a.ops <- msg:
	case <-a.closing:
	}
}

// Close stops the actor's goroutine after draining whatever is already in
// the mailbox, mirroring StandaloneDB.Close()'s graceful-drain behavior.
func (a *Actor) Close() {
	a.closeOnce.Do(func() {
		close(a.closing)
		a.wg.Wait()
	})
}

func (a *Actor) run() {
	defer a.wg.Done()
	for {
		select {
		case msg := <-a.ops:
			a.handle(msg)
		case <-a.closing:
			a.drain()
			return
		}
	}
}

func (a *Actor) drain() {
	for {
		select {
		case msg := <-a.ops:
			a.handle(msg)
		default:
			return
		}
	}
}

func (a *Actor) handle(msg Message) {
	switch m := msg.(type) {
	case CommandMsg:
		a.handleCommand(m)
	case CleanExpiredMsg:
		n := a.ks.SweepExpired()
		if m.Done != nil {
			m.Done <- n
		}
	case SnapshotMsg:
		data, expire := a.ks.Snapshot()
		if m.Reply != nil {
			m.Reply <- SnapshotResult{Data: data, Expire: expire}
		}
	case ChangesMsg:
		if m.Reply != nil {
			m.Reply <- a.changes
		}
	case ResetChangesMsg:
		a.changes = 0
		if m.Done != nil {
			m.Done <- struct{}{}
		}
	case ReplicateMsg:
		if m.Sink != nil {
			a.sinks = append(a.sinks, m.Sink)
		}
	case MoveOutMsg:
		a.handleMoveOut(m)
	case MoveInMsg:
		a.handleMoveIn(m)
	case RestoreMsg:
		persistence.RestoreKeyspace(a.ks, m.Entries)
		if m.Done != nil {
			m.Done <- struct{}{}
		}
	}
}

func (a *Actor) handleCommand(m CommandMsg) {
	reply, mutated := command.Dispatch(a.ks, m.Cmd)
	if mutated && !isErrorReply(reply) {
		a.changes++
		if !m.NoAof {
			a.broadcast(aofFrame(m.Cmd, reply, a.ks))
		}
	}
	if m.Reply != nil {
		m.Reply <- reply
	}
}

func (a *Actor) handleMoveOut(m MoveOutMsg) {
	v, ok := a.ks.Get(m.Key)
	if !ok {
		if m.Reply != nil {
			m.Reply <- MoveOutResult{Found: false}
		}
		return
	}
	expireAt, hasTTL := a.ks.ExpireAtMs(m.Key)
	if !hasTTL {
		expireAt = -1
	}
	a.ks.Remove(m.Key)
	a.changes++
	a.broadcast(aofFrame([][]byte{[]byte("DEL"), []byte(m.Key)}, resp.MakeIntReply(1), a.ks))
	if m.Reply != nil {
		m.Reply <- MoveOutResult{Found: true, Value: v, ExpireAt: expireAt}
	}
}

func (a *Actor) handleMoveIn(m MoveInMsg) {
	if a.ks.Exists(m.Key) {
		if m.Reply != nil {
			m.Reply <- false
		}
		return
	}
	a.ks.Insert(m.Key, m.Value)
	if m.ExpireAt >= 0 {
		a.ks.ExpireAt(m.Key, m.ExpireAt)
	}
	a.changes++
	if m.Reply != nil {
		m.Reply <- true
	}
}

// broadcast forwards frame to every replica sink registered via
// ReplicateMsg, the fan-out half of C6 (internal/replication).
func (a *Actor) broadcast(frame []byte) {
	if frame == nil {
		return
	}
	for _, s := range a.sinks {
		s.SendWrite(frame)
	}
}

func isErrorReply(r resp.Reply) bool {
	_, ok := r.(*resp.ErrorReply)
	return ok
}

// aofFrame renders cmd into its replicated wire form, rewriting EXPIRE/
// PEXPIRE into an absolute PEXPIREAT the way db/db.go's appendAof does —
// a restart or a freshly-synced replica must never see a TTL extended by
// time already spent waiting for the write to land.
func aofFrame(cmd [][]byte, res resp.Reply, ks *store.Keyspace) []byte {
	if len(cmd) == 0 || isErrorReply(res) {
		return nil
	}
	name := strings.ToLower(string(cmd[0]))
	switch name {
	case "expire", "pexpire":
		intReply, ok := res.(*resp.IntReply)
		if !ok || intReply.Code != 1 || len(cmd) < 2 {
			return nil
		}
		key := string(cmd[1])
		at, hasTTL := ks.ExpireAtMs(key)
		if hasTTL {
			return resp.MakeMultiBulkReply([][]byte{
				[]byte("PEXPIREAT"),
				[]byte(key),
				[]byte(strconv.FormatInt(at, 10)),
			}).ToBytes()
		}
		return resp.MakeMultiBulkReply([][]byte{[]byte("DEL"), []byte(key)}).ToBytes()
	case "persist":
		intReply, ok := res.(*resp.IntReply)
		if !ok || intReply.Code != 1 {
			return nil
		}
		return resp.MakeMultiBulkReply(cmd).ToBytes()
	default:
		if !command.IsWrite(name) {
			return nil
		}
		return resp.MakeMultiBulkReply(cmd).ToBytes()
	}
}
