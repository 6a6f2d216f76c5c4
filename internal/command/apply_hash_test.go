package command

import (
	"myredis/internal/store"
	"testing"
)

func TestHashSetGetDel(t *testing.T) {
	ks := store.NewKeyspace()
	r, _ := Dispatch(ks, [][]byte{[]byte("HSET"), []byte("h"), []byte("f1"), []byte("v1")})
	if mustReply(t, r) != ":1\r\n" {
		t.Fatalf("unexpected HSET reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("HGET"), []byte("h"), []byte("f1")})
	if mustReply(t, r) != "$2\r\nv1\r\n" {
		t.Fatalf("unexpected HGET reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("HDEL"), []byte("h"), []byte("f1")})
	if mustReply(t, r) != ":1\r\n" {
		t.Fatalf("unexpected HDEL reply: %q", mustReply(t, r))
	}
	if ks.Exists("h") {
		t.Fatalf("expected hash removed once empty")
	}
}

func TestHSetNX(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("HSET"), []byte("h"), []byte("f"), []byte("v1")})
	r, _ := Dispatch(ks, [][]byte{[]byte("HSETNX"), []byte("h"), []byte("f"), []byte("v2")})
	if mustReply(t, r) != ":0\r\n" {
		t.Fatalf("expected HSETNX to refuse overwrite, got %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("HGET"), []byte("h"), []byte("f")})
	if mustReply(t, r) != "$2\r\nv1\r\n" {
		t.Fatalf("expected original value preserved, got %q", mustReply(t, r))
	}
}

func TestHExistsHLen(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("HSET"), []byte("h"), []byte("a"), []byte("1"), []byte("b"), []byte("2")})
	r, _ := Dispatch(ks, [][]byte{[]byte("HLEN"), []byte("h")})
	if mustReply(t, r) != ":2\r\n" {
		t.Fatalf("unexpected HLEN reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("HEXISTS"), []byte("h"), []byte("a")})
	if mustReply(t, r) != ":1\r\n" {
		t.Fatalf("unexpected HEXISTS reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("HEXISTS"), []byte("h"), []byte("missing")})
	if mustReply(t, r) != ":0\r\n" {
		t.Fatalf("unexpected HEXISTS reply for missing field: %q", mustReply(t, r))
	}
}
