package session

import (
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"myredis/internal/dbmanager"
	"myredis/internal/replication"
)

// Manager accepts connections and enforces maxclients, grounded on
// server/server.go's conns map + connsMu — a single lock used only for
// create/destroy, never on the per-command hot path (spec.md §5).
type Manager struct {
	mgr         *dbmanager.Manager
	requirePass string
	primary     *replication.Primary
	follower    *replication.Follower
	log         *logrus.Logger

	maxClients int

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

func NewManager(mgr *dbmanager.Manager, requirePass string, maxClients int, primary *replication.Primary, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		mgr:         mgr,
		requirePass: requirePass,
		maxClients:  maxClients,
		primary:     primary,
		log:         log,
		conns:       make(map[net.Conn]struct{}),
	}
}

// SetFollower records the node's replication-follower state, once Start
// creates it — it doesn't exist yet when New builds the session manager,
// since ReplicaOf-driven follower construction happens at Start time.
func (m *Manager) SetFollower(f *replication.Follower) { m.follower = f }

// Accept admits conn or rejects it with spec.md §5's admission-control
// reply, then runs its Connection to completion. Intended to be called
// from its own goroutine per accepted connection.
func (m *Manager) Accept(conn net.Conn) {
	if !m.track(conn) {
		_, _ = conn.Write([]byte("-ERR max number of clients reached\r\n"))
		_ = conn.Close()
		return
	}
	defer m.untrack(conn)

	c := NewConnection(conn, m.mgr, m.requirePass, m.primary, m.follower, m.log)
	c.Serve()
}

func (m *Manager) track(conn net.Conn) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxClients > 0 && len(m.conns) >= m.maxClients {
		return false
	}
	m.conns[conn] = struct{}{}
	return true
}

func (m *Manager) untrack(conn net.Conn) {
	m.mu.Lock()
	delete(m.conns, conn)
	m.mu.Unlock()
}

// CloseAll force-closes every tracked connection, used during server
// shutdown to unblock each Connection.Serve's blocking socket read.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.conns {
		_ = c.Close()
	}
}

func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}
