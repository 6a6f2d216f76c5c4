package replication

import (
	"bytes"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"myredis/internal/dbactor"
	"myredis/internal/dbmanager"
	"myredis/internal/persistence"
	"myredis/internal/resp"
)

// Primary answers a follower's handshake on an already-accepted
// connection and then fans out every write the manager's actors apply,
// one goroutine per actor registered as a dbactor.ReplicaSink. Grounded
// on cluster/peer_client.go's connection handling, generalized from a
// client dialing peers to a server answering a dialed-in follower.
type Primary struct {
	mgr *dbmanager.Manager
	log *logrus.Logger

	connected atomic.Int64
}

func NewPrimary(mgr *dbmanager.Manager, log *logrus.Logger) *Primary {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Primary{mgr: mgr, log: log}
}

// ConnectedReplicas reports how many followers are currently attached
// via PSYNC, for the INFO replication section.
func (p *Primary) ConnectedReplicas() int64 { return p.connected.Load() }

// HandleConn performs the PING/REPLCONF/PSYNC handshake on conn, which
// the session layer recognizes and hands off once it sees a PSYNC
// command — after that point conn is no longer a request/reply client
// connection, it is a standing replication stream.
func (p *Primary) HandleConn(conn net.Conn) {
	defer conn.Close()
	parser := resp.NewStreamParser(conn)

	for {
		reply, err := parser.ReadReply()
		if err != nil {
			return
		}
		mb, ok := reply.(*resp.MultiBulkReply)
		if !ok || len(mb.Args) == 0 {
			continue
		}
		name := strings.ToUpper(string(mb.Args[0]))
		switch name {
		case "PING":
			if _, err := conn.Write(resp.MakeStatusReply("PONG").ToBytes()); err != nil {
				return
			}
		case "REPLCONF":
			if _, err := conn.Write(resp.OkReply.ToBytes()); err != nil {
				return
			}
		case "PSYNC":
			p.servePsync(conn)
			return
		default:
			if _, err := conn.Write(resp.MakeErrReply("ERR unexpected command during replication handshake").ToBytes()); err != nil {
				return
			}
		}
	}
}

// servePsync sends the consolidated multi-db snapshot blob, then
// registers a ReplicaSink on every actor and streams writes to conn
// until it breaks, the full-resync-on-every-reconnect model spec.md
// §4.7 specifies: the primary never tracks a follower's replication
// offset.
func (p *Primary) servePsync(conn net.Conn) {
	snap := persistence.Snapshot{
		Databases: make(map[int][]persistence.Entry, p.mgr.NumDatabases()),
	}
	results := make([]chan dbactor.SnapshotResult, p.mgr.NumDatabases())
	for i := 0; i < p.mgr.NumDatabases(); i++ {
		actor := p.mgr.Actor(i)
		reply := make(chan dbactor.SnapshotResult, 1)
		actor.Send(dbactor.SnapshotMsg{Reply: reply})
		results[i] = reply
	}
	for i, reply := range results {
		res := <-reply
		snap.Databases[i] = persistence.EntriesFromKeyspace(res.Data, res.Expire)
	}

	var buf bytes.Buffer
	if err := persistence.SaveToWriter(&buf, snap); err != nil {
		p.log.WithError(err).Error("replication: failed to serialize snapshot for PSYNC")
		return
	}
	if _, err := conn.Write(resp.MakeSnapshotReply(buf.Bytes()).ToBytes()); err != nil {
		return
	}

	sink := &streamSink{conn: conn, done: make(chan struct{})}
	for i := 0; i < p.mgr.NumDatabases(); i++ {
		p.mgr.Actor(i).Send(dbactor.ReplicateMsg{Sink: &dbSink{dbIndex: i, sink: sink}})
	}
	p.log.WithField("addr", conn.RemoteAddr()).Info("replica attached")
	p.connected.Add(1)
	defer p.connected.Add(-1)

	<-sink.done
}

// dbSink wraps a shared streamSink with the source actor's index so
// every forwarded frame is preceded by a SELECT, mirroring the
// append-log's scheme for reconstructing which database a write
// belongs to over a single shared stream.
type dbSink struct {
	dbIndex int
	sink    *streamSink
}

func (s *dbSink) SendWrite(frame []byte) {
	sel := resp.MakeMultiBulkReply([][]byte{[]byte("SELECT"), []byte(fmt.Sprintf("%d", s.dbIndex))}).ToBytes()
	s.sink.write(sel)
	s.sink.write(frame)
}

// streamSink serializes concurrent writes from multiple actor
// goroutines onto the one underlying connection and detects a dead
// follower so the attached actors stop paying to format frames for it.
type streamSink struct {
	conn net.Conn
	mu   sync.Mutex
	done chan struct{}
	dead bool
}

func (s *streamSink) write(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := s.conn.Write(b); err != nil {
		s.dead = true
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
}
