package dbactor

import (
	"testing"
	"time"

	"myredis/internal/resp"
)

func sendCommand(t *testing.T, a *Actor, cmd ...string) resp.Reply {
	t.Helper()
	args := make([][]byte, len(cmd))
	for i, c := range cmd {
		args[i] = []byte(c)
	}
	reply := make(chan resp.Reply, 1)
	a.Send(CommandMsg{Cmd: args, Reply: reply})
	select {
	case r := <-reply:
		return r
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for reply to %v", cmd)
		return nil
	}
}

func TestActorSetGet(t *testing.T) {
	a := NewActor(0)
	defer a.Close()

	sendCommand(t, a, "SET", "k", "v")
	r := sendCommand(t, a, "GET", "k")
	if string(r.ToBytes()) != "$1\r\nv\r\n" {
		t.Fatalf("unexpected reply: %q", r.ToBytes())
	}
}

func TestActorChangesCounterTracksWrites(t *testing.T) {
	a := NewActor(0)
	defer a.Close()

	sendCommand(t, a, "SET", "k", "v")
	sendCommand(t, a, "GET", "k") // reads don't bump the counter

	reply := make(chan int64, 1)
	a.Send(ChangesMsg{Reply: reply})
	if n := <-reply; n != 1 {
		t.Fatalf("expected 1 change, got %d", n)
	}

	done := make(chan struct{}, 1)
	a.Send(ResetChangesMsg{Done: done})
	<-done

	a.Send(ChangesMsg{Reply: reply})
	if n := <-reply; n != 0 {
		t.Fatalf("expected reset counter to read 0, got %d", n)
	}
}

func TestActorChangesCounterIgnoresNoOpWrites(t *testing.T) {
	a := NewActor(0)
	defer a.Close()

	sendCommand(t, a, "SET", "k", "v")
	sendCommand(t, a, "SADD", "s", "m")
	sendCommand(t, a, "ZADD", "z", "1", "m")

	reply := make(chan int64, 1)
	a.Send(ChangesMsg{Reply: reply})
	baseline := <-reply

	// Every one of these dispatches through a write-table handler but
	// mutates nothing: SET NX on an existing key, DEL/SREM/ZREM of an
	// absent key or member, a failed RENAMENX, and a PERSIST returning 0.
	sendCommand(t, a, "SET", "k", "v2", "NX")
	sendCommand(t, a, "DEL", "missing")
	sendCommand(t, a, "SREM", "s", "absent")
	sendCommand(t, a, "ZREM", "z", "absent")
	sendCommand(t, a, "RENAMENX", "k", "s")
	sendCommand(t, a, "PERSIST", "k")

	a.Send(ChangesMsg{Reply: reply})
	if n := <-reply; n != baseline {
		t.Fatalf("expected no-op writes to leave the change counter at %d, got %d", baseline, n)
	}
}

func TestActorMoveOutMoveIn(t *testing.T) {
	src := NewActor(0)
	dst := NewActor(1)
	defer src.Close()
	defer dst.Close()

	sendCommand(t, src, "SET", "k", "v")

	outReply := make(chan MoveOutResult, 1)
	src.Send(MoveOutMsg{Key: "k", Reply: outReply})
	out := <-outReply
	if !out.Found {
		t.Fatalf("expected MoveOut to find the key")
	}

	inReply := make(chan bool, 1)
	dst.Send(MoveInMsg{Key: "k", Value: out.Value, ExpireAt: out.ExpireAt, Reply: inReply})
	if ok := <-inReply; !ok {
		t.Fatalf("expected MoveIn to succeed on a fresh destination")
	}

	r := sendCommand(t, dst, "GET", "k")
	if string(r.ToBytes()) != "$1\r\nv\r\n" {
		t.Fatalf("unexpected reply on destination actor: %q", r.ToBytes())
	}
	r = sendCommand(t, src, "EXISTS", "k")
	if string(r.ToBytes()) != ":0\r\n" {
		t.Fatalf("expected key gone from source actor after MoveOut: %q", r.ToBytes())
	}
}

func TestActorCleanExpired(t *testing.T) {
	a := NewActor(0)
	defer a.Close()

	sendCommand(t, a, "SET", "k", "v")
	sendCommand(t, a, "PEXPIRE", "k", "1")
	time.Sleep(5 * time.Millisecond)

	done := make(chan int, 1)
	a.Send(CleanExpiredMsg{Done: done})
	if n := <-done; n != 1 {
		t.Fatalf("expected 1 key swept, got %d", n)
	}
}

func TestActorSnapshot(t *testing.T) {
	a := NewActor(0)
	defer a.Close()

	sendCommand(t, a, "SET", "a", "1")
	sendCommand(t, a, "SET", "b", "2")

	reply := make(chan SnapshotResult, 1)
	a.Send(SnapshotMsg{Reply: reply})
	snap := <-reply
	if len(snap.Data) != 2 {
		t.Fatalf("expected 2 keys in snapshot, got %d", len(snap.Data))
	}
}
