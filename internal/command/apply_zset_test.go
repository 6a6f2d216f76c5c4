package command

import (
	"myredis/internal/store"
	"testing"
)

func TestZAddScoreRank(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("ZADD"), []byte("z"), []byte("1"), []byte("a"), []byte("2"), []byte("b")})
	r, _ := Dispatch(ks, [][]byte{[]byte("ZSCORE"), []byte("z"), []byte("a")})
	if mustReply(t, r) != "$1\r\n1\r\n" {
		t.Fatalf("unexpected ZSCORE reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("ZRANK"), []byte("z"), []byte("b")})
	if mustReply(t, r) != ":1\r\n" {
		t.Fatalf("unexpected ZRANK reply: %q", mustReply(t, r))
	}
}

func TestZCountAndRem(t *testing.T) {
	ks := store.NewKeyspace()
	Dispatch(ks, [][]byte{[]byte("ZADD"), []byte("z"), []byte("1"), []byte("a"), []byte("2"), []byte("b"), []byte("3"), []byte("c")})
	r, _ := Dispatch(ks, [][]byte{[]byte("ZCOUNT"), []byte("z"), []byte("2"), []byte("3")})
	if mustReply(t, r) != ":2\r\n" {
		t.Fatalf("unexpected ZCOUNT reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("ZREM"), []byte("z"), []byte("a")})
	if mustReply(t, r) != ":1\r\n" {
		t.Fatalf("unexpected ZREM reply: %q", mustReply(t, r))
	}
	r, _ = Dispatch(ks, [][]byte{[]byte("ZCARD"), []byte("z")})
	if mustReply(t, r) != ":2\r\n" {
		t.Fatalf("unexpected ZCARD reply: %q", mustReply(t, r))
	}
}
