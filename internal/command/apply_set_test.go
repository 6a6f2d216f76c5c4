package command

import (
	"myredis/internal/store"
	"testing"
)

func TestSetAddRemMembers(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("SADD"), []byte("s"), []byte("a"), []byte("b"), []byte("a")})
	r, _ := Dispatch(ks, [][]byte{[]byte("SCARD"), []byte("s")})
	if mustReply(t, r) != ":2\r\n" {
		t.Fatalf("unexpected SCARD reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("SISMEMBER"), []byte("s"), []byte("a")})
	if mustReply(t, r) != ":1\r\n" {
		t.Fatalf("unexpected SISMEMBER reply: %q", mustReply(t, r))
	}
	Dispatch(ks, [][]byte{[]byte("SREM"), []byte("s"), []byte("a"), []byte("b")})
	if ks.Exists("s") {
		t.Fatalf("expected set removed once empty")
	}
}

func TestSetInterUnion(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("SADD"), []byte("s1"), []byte("a"), []byte("b"), []byte("c")})
	Dispatch(ks, [][]byte{[]byte("SADD"), []byte("s2"), []byte("b"), []byte("c"), []byte("d")})

	r, _ := Dispatch(ks, [][]byte{[]byte("SINTER"), []byte("s1"), []byte("s2")})
	mb := r.(interface{ ToBytes() []byte })
	out := string(mb.ToBytes())
	if out != "*2\r\n$1\r\nb\r\n$1\r\nc\r\n" && out != "*2\r\n$1\r\nc\r\n$1\r\nb\r\n" {
		t.Fatalf("unexpected SINTER reply: %q", out)
	}

	r, _ = Dispatch(ks, [][]byte{[]byte("SUNIONSTORE"), []byte("dst"), []byte("s1"), []byte("s2")})
	if mustReply(t, r) != ":4\r\n" {
		t.Fatalf("unexpected SUNIONSTORE reply: %q", mustReply(t, r))
	}
}

func TestSetPop(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("SADD"), []byte("s"), []byte("only")})
	r, _ := Dispatch(ks, [][]byte{[]byte("SPOP"), []byte("s")})
	if mustReply(t, r) != "$4\r\nonly\r\n" {
		t.Fatalf("unexpected SPOP reply: %q", mustReply(t, r))
	}
	if ks.Exists("s") {
		t.Fatalf("expected set removed once empty after SPOP")
	}
}
