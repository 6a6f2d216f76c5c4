package dbmanager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func TestManagerExecOnRoutesToCorrectActor(t *testing.T) {
	m := New(Config{Databases: 2, Hz: 10}, testLogger())
	defer m.Close()

	m.ExecOn(0, [][]byte{[]byte("SET"), []byte("k"), []byte("a")})
	m.ExecOn(1, [][]byte{[]byte("SET"), []byte("k"), []byte("b")})

	r0 := m.ExecOn(0, [][]byte{[]byte("GET"), []byte("k")})
	r1 := m.ExecOn(1, [][]byte{[]byte("GET"), []byte("k")})
	if string(r0.ToBytes()) != "$1\r\na\r\n" || string(r1.ToBytes()) != "$1\r\nb\r\n" {
		t.Fatalf("expected isolated per-db state, got %q / %q", r0.ToBytes(), r1.ToBytes())
	}
}

func TestManagerSnapshotSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	snapPath := filepath.Join(dir, "dump.rdb")

	m := New(Config{
		Databases:    2,
		Hz:           1000, // fast tick so the test doesn't need to sleep long
		SnapshotPath: snapPath,
		SaveRules:    []SaveRule{{Seconds: 0, Changes: 1}},
	}, testLogger())
	m.ExecOn(0, [][]byte{[]byte("SET"), []byte("k"), []byte("v")})
	m.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(snapPath); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	m.Close()

	m2 := New(Config{Databases: 2, Hz: 10, SnapshotPath: snapPath}, testLogger())
	defer m2.Close()
	if err := m2.LoadSnapshot(); err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	r := m2.ExecOn(0, [][]byte{[]byte("GET"), []byte("k")})
	if string(r.ToBytes()) != "$1\r\nv\r\n" {
		t.Fatalf("expected restored value, got %q", r.ToBytes())
	}
}
