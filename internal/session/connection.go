// Package session implements the connection handler (C8) and session
// manager (C9): one task per accepted connection, reading frames via
// internal/resp, tracking per-connection auth/db/transaction state,
// and routing commands to internal/dbmanager. Grounded on
// server/server.go's handleConnection generalized to a multi-db,
// authenticated, transactional session.
package session

import (
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"myredis/internal/dbactor"
	"myredis/internal/dbmanager"
	"myredis/internal/replication"
	"myredis/internal/resp"
)

// Connection is one client's task: state, not behavior shared with
// any other connection.
type Connection struct {
	conn net.Conn
	mgr  *dbmanager.Manager
	log  *logrus.Logger

	requirePass string
	authed      bool

	dbIndex int

	inMulti bool
	queue   [][][]byte

	primary  *replication.Primary  // non-nil when this node can serve PSYNC
	follower *replication.Follower // non-nil when this node replicates from another
}

func NewConnection(conn net.Conn, mgr *dbmanager.Manager, requirePass string, primary *replication.Primary, follower *replication.Follower, log *logrus.Logger) *Connection {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Connection{
		conn:        conn,
		mgr:         mgr,
		log:         log,
		requirePass: requirePass,
		authed:      requirePass == "",
		primary:     primary,
		follower:    follower,
	}
}

// Serve runs the read/dispatch/write loop until the connection closes.
func (c *Connection) Serve() {
	defer c.conn.Close()
	payloads := resp.ParseStream(c.conn)

	for payload := range payloads {
		if payload == nil {
			continue
		}
		if payload.Err != nil {
			if payload.Err != io.EOF {
				c.log.WithError(payload.Err).Debug("connection read error")
			}
			return // framing and read errors close the connection with no reply
		}
		if payload.Data == nil {
			continue
		}
		mb, ok := payload.Data.(*resp.MultiBulkReply)
		if !ok || len(mb.Args) == 0 {
			_, _ = c.conn.Write(resp.MakeErrReply("ERR protocol error: expected array").ToBytes())
			continue
		}

		handled, handedOff := c.dispatchPsync(mb.Args)
		if handedOff {
			return // handed off to internal/replication.Primary, own this conn now
		}
		if handled {
			continue
		}

		reply := c.handleFrame(mb.Args)
		if reply != nil {
			if _, err := c.conn.Write(reply.ToBytes()); err != nil {
				return
			}
		}
	}
}

// dispatchPsync recognizes the replication handshake commands REPLCONF
// and PSYNC (a handshake PING is answered by handleFrame like any other
// PING). handled reports that the frame has already been answered;
// handedOff reports that, on PSYNC, the raw connection went to
// internal/replication.Primary — from that point on it is a standing
// stream, not a request/reply client connection.
func (c *Connection) dispatchPsync(args [][]byte) (handled, handedOff bool) {
	name := strings.ToUpper(string(args[0]))
	if name != "REPLCONF" && name != "PSYNC" {
		return false, false
	}
	if c.primary == nil {
		_, _ = c.conn.Write(resp.MakeErrReply("ERR this instance has no replica support enabled").ToBytes())
		return true, false
	}
	if name == "PSYNC" {
		c.primary.HandleConn(c.conn)
		return true, true
	}
	// REPLCONF during a handshake this connection hasn't committed to
	// yet: answer locally and keep reading.
	_, _ = c.conn.Write(resp.OkReply.ToBytes())
	return true, false
}

func (c *Connection) handleFrame(args [][]byte) resp.Reply {
	name := strings.ToUpper(string(args[0]))

	if c.requirePass != "" && !c.authed && name != "AUTH" {
		return resp.MakeErrReply("NOAUTH Authentication required.")
	}

	switch name {
	case "AUTH":
		return c.cmdAuth(args)
	case "SELECT":
		return c.cmdSelect(args)
	case "PING":
		return c.cmdPing(args)
	case "ECHO":
		return c.cmdEcho(args)
	case "CLIENT":
		return resp.OkReply
	case "MULTI":
		return c.cmdMulti()
	case "EXEC":
		return c.cmdExec()
	case "DISCARD":
		return c.cmdDiscard()
	case "FLUSHALL":
		return c.cmdFlushAll()
	case "INFO":
		return c.cmdInfo(args)
	case "MOVE":
		return c.cmdMove(args)
	}

	if c.inMulti {
		c.queue = append(c.queue, args)
		return resp.QueuedReply
	}

	if !dbmanager.IsKnownCommand(name) {
		return resp.MakeErrReply("ERR unknown command '" + string(args[0]) + "'")
	}
	return c.mgr.ExecOn(c.dbIndex, args)
}

func (c *Connection) cmdAuth(args [][]byte) resp.Reply {
	if len(args) != 2 {
		return resp.MakeErrReply("ERR wrong number of arguments for 'auth' command")
	}
	if c.requirePass == "" {
		return resp.MakeErrReply("ERR Client sent AUTH, but no password is set.")
	}
	if string(args[1]) != c.requirePass {
		return resp.MakeErrReply("ERR invalid password")
	}
	c.authed = true
	return resp.OkReply
}

func (c *Connection) cmdSelect(args [][]byte) resp.Reply {
	if len(args) != 2 {
		return resp.MakeErrReply("ERR wrong number of arguments for 'select' command")
	}
	n, err := strconv.Atoi(string(args[1]))
	if err != nil || n < 0 || n >= c.mgr.NumDatabases() {
		return resp.MakeErrReply("ERR DB index is out of range")
	}
	c.dbIndex = n
	return resp.OkReply
}

func (c *Connection) cmdPing(args [][]byte) resp.Reply {
	if len(args) > 2 {
		return resp.MakeErrReply("ERR wrong number of arguments for 'ping' command")
	}
	if len(args) == 2 {
		return resp.MakeBulkReply(args[1])
	}
	return resp.PongReply
}

func (c *Connection) cmdEcho(args [][]byte) resp.Reply {
	if len(args) != 2 {
		return resp.MakeErrReply("ERR wrong number of arguments for 'echo' command")
	}
	return resp.MakeBulkReply(args[1])
}

func (c *Connection) cmdMulti() resp.Reply {
	c.inMulti = true
	c.queue = c.queue[:0]
	return resp.OkReply
}

func (c *Connection) cmdDiscard() resp.Reply {
	if !c.inMulti {
		return resp.MakeErrReply("ERR DISCARD without MULTI")
	}
	c.inMulti = false
	c.queue = nil
	return resp.OkReply
}

func (c *Connection) cmdExec() resp.Reply {
	if !c.inMulti {
		return resp.MakeErrReply("ERR EXEC without MULTI")
	}
	c.inMulti = false
	queued := c.queue
	c.queue = nil

	replies := make([]resp.Reply, 0, len(queued))
	for _, cmd := range queued {
		name := strings.ToUpper(string(cmd[0]))
		if !dbmanager.IsKnownCommand(name) {
			replies = append(replies, resp.MakeErrReply("ERR unknown command '"+string(cmd[0])+"'"))
			continue
		}
		replies = append(replies, c.mgr.ExecOn(c.dbIndex, cmd))
	}
	return resp.MakeMultiReply(replies)
}

func (c *Connection) cmdFlushAll() resp.Reply {
	for i := 0; i < c.mgr.NumDatabases(); i++ {
		c.mgr.ExecOn(i, [][]byte{[]byte("FLUSHDB")})
	}
	return resp.OkReply
}

// cmdInfo builds a CRLF-delimited section report the way info.rs's
// generate_info does: an optional section name in args[1] selects one
// section, "all"/"default"/no argument selects the sections this server
// actually has real data for. Unlike info.rs, commandstats and a byte-
// accurate memory section aren't modeled here, so they're left out
// rather than reported as zeroes.
func (c *Connection) cmdInfo(args [][]byte) resp.Reply {
	section := "default"
	if len(args) >= 2 {
		section = strings.ToLower(string(args[1]))
	}
	showAll := section == "all"
	showDefault := showAll || section == "default"

	var b strings.Builder
	writeSection := func(name string, lines ...string) {
		if !showAll && !showDefault && section != name {
			return
		}
		b.WriteString("# " + capitalize(name) + "\r\n")
		for _, line := range lines {
			b.WriteString(line + "\r\n")
		}
		b.WriteString("\r\n")
	}

	writeSection("server",
		"redis_version:7.0.0-myredis",
		"tcp_port:"+strconv.Itoa(c.localPort()),
		"run_id:"+runID,
	)
	writeSection("persistence",
		"aof_enabled:"+boolToFlag(c.mgr.AppendOnlyEnabled()),
	)
	writeSection("replication", c.replicationLines()...)
	writeSection("keyspace", c.keyspaceLines()...)

	return resp.MakeBulkReply([]byte(b.String()))
}

// replicationLines reports role:master/role:slave the way real Redis
// does, plus whatever this connection knows about its counterpart: a
// master reports how many replicas are attached, a slave reports the
// master it syncs from and its link state.
func (c *Connection) replicationLines() []string {
	if c.follower != nil {
		return []string{
			"role:slave",
			"master_host_port:" + c.follower.PrimaryAddr(),
			"master_link_status:" + c.follower.State().String(),
		}
	}
	lines := []string{"role:master"}
	if c.primary != nil {
		lines = append(lines, "connected_slaves:"+strconv.FormatInt(c.primary.ConnectedReplicas(), 10))
	} else {
		lines = append(lines, "connected_slaves:0")
	}
	return lines
}

// keyspaceLines reports one dbN:keys=... line per non-empty logical
// database, the same shape real Redis's keyspace section uses.
func (c *Connection) keyspaceLines() []string {
	var lines []string
	for i := 0; i < c.mgr.NumDatabases(); i++ {
		reply := c.mgr.ExecOn(i, [][]byte{[]byte("DBSIZE")})
		n, ok := reply.(*resp.IntReply)
		if !ok || n.Code == 0 {
			continue
		}
		lines = append(lines, "db"+strconv.Itoa(i)+":keys="+strconv.FormatInt(n.Code, 10))
	}
	return lines
}

func (c *Connection) localPort() int {
	if addr, ok := c.conn.LocalAddr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func boolToFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// runID is a process-lifetime identifier, not persisted and not meant to
// survive a restart — real Redis generates one the same way at startup.
var runID = randomRunID()

func randomRunID() string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 40)
	seed := time.Now().UnixNano()
	for i := range buf {
		seed = seed*6364136223846793005 + 1442695040888963407
		buf[i] = hex[(seed>>uint(i%16))&0xf]
	}
	return string(buf)
}

// cmdMove implements the three-step handler-mediated MOVE spec.md §9
// requires: read (and remove) from the source actor, then write to
// the destination, with no direct actor-to-actor reference.
func (c *Connection) cmdMove(args [][]byte) resp.Reply {
	if len(args) != 3 {
		return resp.MakeErrReply("ERR wrong number of arguments for 'move' command")
	}
	dst, err := strconv.Atoi(string(args[2]))
	if err != nil || dst < 0 || dst >= c.mgr.NumDatabases() {
		return resp.MakeErrReply("ERR DB index is out of range")
	}
	if dst == c.dbIndex {
		return resp.MakeErrReply("ERR source and destination objects are the same")
	}
	key := string(args[1])

	src := c.mgr.Actor(c.dbIndex)
	dest := c.mgr.Actor(dst)
	if src == nil || dest == nil {
		return resp.MakeErrReply("ERR DB index is out of range")
	}

	outReply := make(chan dbactor.MoveOutResult, 1)
	src.Send(dbactor.MoveOutMsg{Key: key, Reply: outReply})
	out := <-outReply
	if !out.Found {
		return resp.MakeIntReply(0)
	}

	inReply := make(chan bool, 1)
	dest.Send(dbactor.MoveInMsg{Key: key, Value: out.Value, ExpireAt: out.ExpireAt, Reply: inReply})
	if !<-inReply {
		// Destination already has this key: put it back on the source
		// rather than silently drop the value spec.md §8 example 5
		// never exercises this path (fresh key), but losing data on a
		// failed MOVE would still be wrong.
		backReply := make(chan bool, 1)
		src.Send(dbactor.MoveInMsg{Key: key, Value: out.Value, ExpireAt: out.ExpireAt, Reply: backReply})
		<-backReply
		return resp.MakeIntReply(0)
	}
	return resp.MakeIntReply(1)
}
