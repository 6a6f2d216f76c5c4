package session

import (
	"net"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"myredis/internal/dbmanager"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func newTestPair(t *testing.T, mgr *dbmanager.Manager, requirePass string) (net.Conn, *Connection) {
	t.Helper()
	client, server := net.Pipe()
	c := NewConnection(server, mgr, requirePass, nil, nil, testLogger())
	go c.Serve()
	t.Cleanup(func() { client.Close() })
	return client, c
}

func TestAuthGateBlocksUntilAuthenticated(t *testing.T) {
	mgr := dbmanager.New(dbmanager.Config{Databases: 2, Hz: 10}, testLogger())
	defer mgr.Close()

	client, _ := newTestPair(t, mgr, "secret")
	write(t, client, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")
	expectPrefix(t, client, "-NOAUTH")

	write(t, client, "*2\r\n$4\r\nAUTH\r\n$6\r\nsecret\r\n")
	expectPrefix(t, client, "+OK")

	write(t, client, "*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")
	expectPrefix(t, client, "$-1")
}

func TestMultiExecQueuesAndRuns(t *testing.T) {
	mgr := dbmanager.New(dbmanager.Config{Databases: 2, Hz: 10}, testLogger())
	defer mgr.Close()

	client, _ := newTestPair(t, mgr, "")
	write(t, client, "*1\r\n$5\r\nMULTI\r\n")
	expectPrefix(t, client, "+OK")

	write(t, client, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n")
	expectPrefix(t, client, "+QUEUED")

	write(t, client, "*1\r\n$4\r\nEXEC\r\n")
	expectPrefix(t, client, "*1")
}

func TestExecWithoutMultiErrors(t *testing.T) {
	mgr := dbmanager.New(dbmanager.Config{Databases: 2, Hz: 10}, testLogger())
	defer mgr.Close()

	client, _ := newTestPair(t, mgr, "")
	write(t, client, "*1\r\n$4\r\nEXEC\r\n")
	expectPrefix(t, client, "-ERR EXEC without MULTI")
}

func TestInfoHonorsSectionArgument(t *testing.T) {
	mgr := dbmanager.New(dbmanager.Config{Databases: 2, Hz: 10}, testLogger())
	defer mgr.Close()

	client, _ := newTestPair(t, mgr, "")

	write(t, client, "*1\r\n$4\r\nINFO\r\n")
	body := readBulk(t, client)
	for _, want := range []string{"# Server", "# Replication", "# Persistence"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected default INFO to contain %q, got %q", want, body)
		}
	}

	write(t, client, "*2\r\n$4\r\nINFO\r\n$11\r\nreplication\r\n")
	body = readBulk(t, client)
	if !strings.Contains(body, "# Replication") || strings.Contains(body, "# Server") {
		t.Fatalf("expected INFO replication to contain only the replication section, got %q", body)
	}
	if !strings.Contains(body, "role:master") {
		t.Fatalf("expected a standalone node to report role:master, got %q", body)
	}
}

func readBulk(t *testing.T, conn net.Conn) string {
	t.Helper()
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(buf[:n])
}

func write(t *testing.T, conn net.Conn, s string) {
	t.Helper()
	if _, err := conn.Write([]byte(s)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func expectPrefix(t *testing.T, conn net.Conn, prefix string) {
	t.Helper()
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	got := string(buf[:n])
	if len(got) < len(prefix) || got[:len(prefix)] != prefix {
		t.Fatalf("expected reply starting %q, got %q", prefix, got)
	}
}
