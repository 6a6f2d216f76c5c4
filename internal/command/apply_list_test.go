package command

import (
	"myredis/internal/store"
	"testing"
)

func TestListPushPop(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("RPUSH"), []byte("l"), []byte("a"), []byte("b"), []byte("c")})
	r, _ := Dispatch(ks, [][]byte{[]byte("LLEN"), []byte("l")})
	if mustReply(t, r) != ":3\r\n" {
		t.Fatalf("unexpected LLEN reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("LPOP"), []byte("l")})
	if mustReply(t, r) != "$1\r\na\r\n" {
		t.Fatalf("unexpected LPOP reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("RPOP"), []byte("l")})
	if mustReply(t, r) != "$1\r\nc\r\n" {
		t.Fatalf("unexpected RPOP reply: %q", mustReply(t, r))
	}
}

func TestListPushXOnMissingKey(t *testing.T) {
	ks := store.NewKeyspace()
	r, _ := Dispatch(ks, [][]byte{[]byte("LPUSHX"), []byte("missing"), []byte("a")})
	if mustReply(t, r) != ":0\r\n" {
		t.Fatalf("expected LPUSHX on missing key to be a no-op, got %q", mustReply(t, r))
	}
	if ks.Exists("missing") {
		t.Fatalf("expected LPUSHX to not create the key")
	}
}

func TestListRange(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("RPUSH"), []byte("l"), []byte("a"), []byte("b"), []byte("c"), []byte("d")})
	r, _ := Dispatch(ks, [][]byte{[]byte("LRANGE"), []byte("l"), []byte("1"), []byte("-2")})
	if mustReply(t, r) != "*2\r\n$1\r\nb\r\n$1\r\nc\r\n" {
		t.Fatalf("unexpected LRANGE reply: %q", mustReply(t, r))
	}
}

func TestListSetAndIndex(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("RPUSH"), []byte("l"), []byte("a"), []byte("b")})
	Dispatch(ks, [][]byte{[]byte("LSET"), []byte("l"), []byte("0"), []byte("z")})
	r, _ := Dispatch(ks, [][]byte{[]byte("LINDEX"), []byte("l"), []byte("0")})
	if mustReply(t, r) != "$1\r\nz\r\n" {
		t.Fatalf("unexpected LINDEX reply after LSET: %q", mustReply(t, r))
	}
}

func TestListPopEmptiesKey(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("RPUSH"), []byte("l"), []byte("a")})
	Dispatch(ks, [][]byte{[]byte("LPOP"), []byte("l")})
	if ks.Exists("l") {
		t.Fatalf("expected key removed once list becomes empty")
	}
}
