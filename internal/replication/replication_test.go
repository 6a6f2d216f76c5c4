package replication

import (
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"myredis/internal/dbmanager"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestFollowerSyncsSnapshotAndLiveWrites(t *testing.T) {
	primaryMgr := dbmanager.New(dbmanager.Config{Databases: 2, Hz: 1000}, testLogger())
	defer primaryMgr.Close()
	primaryMgr.ExecOn(0, [][]byte{[]byte("SET"), []byte("k"), []byte("v1")})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	primary := NewPrimary(primaryMgr, testLogger())
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		primary.HandleConn(conn)
	}()

	followerMgr := dbmanager.New(dbmanager.Config{Databases: 2, Hz: 1000}, testLogger())
	defer followerMgr.Close()

	follower := NewFollower(ln.Addr().String(), 0, followerMgr, testLogger())
	go follower.Run()
	defer follower.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r := followerMgr.ExecOn(0, [][]byte{[]byte("GET"), []byte("k")})
		if string(r.ToBytes()) == "$2\r\nv1\r\n" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	r := followerMgr.ExecOn(0, [][]byte{[]byte("GET"), []byte("k")})
	if string(r.ToBytes()) != "$2\r\nv1\r\n" {
		t.Fatalf("expected snapshot to replicate initial value, got %q", r.ToBytes())
	}

	primaryMgr.ExecOn(1, [][]byte{[]byte("SET"), []byte("k2"), []byte("v2")})

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		r := followerMgr.ExecOn(1, [][]byte{[]byte("GET"), []byte("k2")})
		if string(r.ToBytes()) == "$2\r\nv2\r\n" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected live write to replicate to follower's db 1")
}
