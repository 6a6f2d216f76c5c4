// Package replication implements the primary/follower handshake (C6 in
// spec.md §4.7). Grounded on cluster/peer_client.go's PeerClient: a
// single pooled TCP connection doing request/reply with RESP frames,
// generalized here from an n-to-n transparent-forwarding pool to a
// single long-lived connection per follower that, once PSYNC'd,
// switches from request/reply into live one-way apply.
package replication

import (
	"bytes"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"myredis/internal/dbactor"
	"myredis/internal/dbmanager"
	"myredis/internal/persistence"
	"myredis/internal/resp"
)

type FollowerState int

const (
	Disconnected FollowerState = iota
	Connecting
	WaitPsync
	ReceivingRdb
	Connected
)

func (s FollowerState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case WaitPsync:
		return "wait_psync"
	case ReceivingRdb:
		return "receiving_rdb"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Follower connects to a primary, bootstraps from its snapshot, then
// applies every subsequent write frame to mgr.
type Follower struct {
	primaryAddr   string
	listeningPort int
	mgr           *dbmanager.Manager
	log           *logrus.Logger

	state   FollowerState
	closing chan struct{}
}

func NewFollower(primaryAddr string, listeningPort int, mgr *dbmanager.Manager, log *logrus.Logger) *Follower {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Follower{
		primaryAddr:   primaryAddr,
		listeningPort: listeningPort,
		mgr:           mgr,
		log:           log,
		closing:       make(chan struct{}),
		state:         Disconnected,
	}
}

func (f *Follower) State() FollowerState { return f.state }

// PrimaryAddr returns the "host:port" this follower replicates from, for
// the INFO replication section.
func (f *Follower) PrimaryAddr() string { return f.primaryAddr }

// Run drives the handshake and live-apply loop until Stop is called,
// retrying with a bounded backoff on any failure — the state machine
// spec.md §4.7 names: any I/O or parse failure returns to Disconnected.
func (f *Follower) Run() {
	backoff := time.Second
	for {
		select {
		case <-f.closing:
			return
		default:
		}

		if err := f.connectAndSync(); err != nil {
			f.log.WithError(err).WithField("primary", f.primaryAddr).Warn("replication handshake failed, retrying")
			f.state = Disconnected
			select {
			case <-time.After(backoff):
			case <-f.closing:
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (f *Follower) Stop() { close(f.closing) }

func (f *Follower) connectAndSync() error {
	f.state = Connecting
	conn, err := net.DialTimeout("tcp", f.primaryAddr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	parser := resp.NewStreamParser(conn)

	if err := f.step(conn, parser, [][]byte{[]byte("PING")}, "PONG"); err != nil {
		return err
	}

	f.state = WaitPsync
	replconf := [][]byte{
		[]byte("REPLCONF"), []byte("listening-port"), []byte(strconv.Itoa(f.listeningPort)),
		[]byte("ip-address"), []byte("0.0.0.0"),
	}
	if err := f.step(conn, parser, replconf, "OK"); err != nil {
		return err
	}

	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write(resp.MakeMultiBulkReply([][]byte{[]byte("PSYNC")}).ToBytes()); err != nil {
		return err
	}

	f.state = ReceivingRdb
	reply, err := parser.ReadReply()
	if err != nil {
		return err
	}
	snapReply, ok := reply.(*resp.SnapshotReply)
	if !ok {
		return errors.New("replication: expected snapshot blob frame for PSYNC")
	}
	snap, err := persistence.LoadFromReader(bytes.NewReader(snapReply.Payload))
	if err != nil {
		return err
	}
	for dbID, entries := range snap.Databases {
		actor := f.mgr.Actor(dbID)
		if actor == nil {
			continue
		}
		done := make(chan struct{}, 1)
		actor.Send(dbactor.RestoreMsg{Entries: entries, Done: done})
		<-done
	}
	_ = conn.SetDeadline(time.Time{})

	f.state = Connected
	f.log.WithField("primary", f.primaryAddr).Info("replication sync complete, entering live-apply")
	return f.liveApply(parser)
}

func (f *Follower) step(conn net.Conn, parser *resp.StreamParser, cmd [][]byte, want string) error {
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write(resp.MakeMultiBulkReply(cmd).ToBytes()); err != nil {
		return err
	}
	reply, err := parser.ReadReply()
	if err != nil {
		return err
	}
	status, ok := reply.(*resp.StatusReply)
	if !ok || status.Status != want {
		return errors.New("replication: unexpected reply during handshake")
	}
	return nil
}

// liveApply parses every subsequent frame from the primary as a write
// command and applies it to the currently selected database (SELECT
// frames switch it), the minimal scheme spec.md §9 accepts as
// non-wire-compatible but sufficient.
func (f *Follower) liveApply(parser *resp.StreamParser) error {
	current := 0
	for {
		select {
		case <-f.closing:
			return nil
		default:
		}
		reply, err := parser.ReadReply()
		if err != nil {
			return err
		}
		mb, ok := reply.(*resp.MultiBulkReply)
		if !ok || len(mb.Args) == 0 {
			continue
		}
		if len(mb.Args) == 2 && string(mb.Args[0]) == "SELECT" {
			if n, err := strconv.Atoi(string(mb.Args[1])); err == nil {
				current = n
			}
			continue
		}
		actor := f.mgr.Actor(current)
		if actor == nil {
			continue
		}
		replyCh := make(chan resp.Reply, 1)
		actor.Send(dbactor.CommandMsg{Cmd: mb.Args, Reply: replyCh, NoAof: false})
		<-replyCh
	}
}
