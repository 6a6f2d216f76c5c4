// Package dbmanager implements the database manager (C4 in spec.md
// §4.4): owns every dbactor.Actor, drives the single periodic tick that
// replaces the per-instance ticker db/db.go used, and evaluates the
// save-rule engine that decides when to snapshot. Grounded on
// db/db.go's time.NewTicker idiom and aof/aof.go's handleAof() fsync
// ticker, generalized from one StandaloneDB to N actors driven by one
// shared clock.
package dbmanager

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"myredis/internal/command"
	"myredis/internal/dbactor"
	"myredis/internal/persistence"
	"myredis/internal/resp"
)

// SaveRule is one (seconds, changes) threshold: a snapshot is due once
// both now-last_save >= Seconds and the aggregate change count since the
// last save is >= Changes.
type SaveRule struct {
	Seconds int64
	Changes int64
}

// Config holds the manager's persistence-relevant settings, a subset of
// internal/config.Config so this package doesn't need to import it.
type Config struct {
	Databases      int
	Hz             int
	SnapshotPath   string
	SaveRules      []SaveRule
	AppendOnly     bool
	AppendLogPath  string
	AppendFsync    persistence.Fsync
}

// Manager owns the actor array and the background tick.
type Manager struct {
	cfg    Config
	actors []*dbactor.Actor
	log    *logrus.Logger

	appendLog *persistence.AppendLog

	lastSaveUnixMs  int64
	lastSaveChanges int64

	running atomic.Bool
	closing chan struct{}
	wg      sync.WaitGroup
}

// New creates N actors (spec.md §4.4: "spawns each actor at startup
// after loading the snapshot" — callers call LoadSnapshot/LoadAppendLog
// before Start so recovered state exists before the tick or any
// connection touches it).
func New(cfg Config, log *logrus.Logger) *Manager {
	if cfg.Databases <= 0 {
		cfg.Databases = 16
	}
	if cfg.Hz <= 0 {
		cfg.Hz = 10
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Manager{
		cfg:     cfg,
		actors:  make([]*dbactor.Actor, cfg.Databases),
		log:     log,
		closing: make(chan struct{}),
	}
	for i := range m.actors {
		m.actors[i] = dbactor.NewActor(i)
	}
	return m
}

// Actor returns the actor for database index i, or nil if out of range.
func (m *Manager) Actor(i int) *dbactor.Actor {
	if i < 0 || i >= len(m.actors) {
		return nil
	}
	return m.actors[i]
}

func (m *Manager) NumDatabases() int { return len(m.actors) }

// AppendOnlyEnabled reports whether this manager was configured for
// append-log persistence, for the INFO persistence section.
func (m *Manager) AppendOnlyEnabled() bool { return m.cfg.AppendOnly }

// LoadSnapshot reads cfg.SnapshotPath, if it exists, and restores each
// database's slice of entries into the matching actor. Per spec.md
// §4.5's recovery precedence, callers should skip this when append-log
// recovery will run instead.
func (m *Manager) LoadSnapshot() error {
	if m.cfg.SnapshotPath == "" {
		return nil
	}
	snap, err := persistence.Load(m.cfg.SnapshotPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	m.lastSaveUnixMs = snap.LastSaveUnixMs
	// Every actor's change counter starts at zero after RestoreMsg, so
	// the baseline for the next save-rule evaluation is zero too, not
	// the cumulative total this snapshot was saved with.
	m.lastSaveChanges = 0

	for dbID, entries := range snap.Databases {
		actor := m.Actor(dbID)
		if actor == nil {
			continue
		}
		done := make(chan struct{}, 1)
		actor.Send(dbactor.RestoreMsg{Entries: entries, Done: done})
		<-done
	}
	m.log.WithField("databases", len(snap.Databases)).Info("loaded snapshot")
	return nil
}

// LoadAppendLog replays cfg.AppendLogPath through the same dispatcher as
// live traffic, tracking SELECT the way a real session would so writes
// land on the right actor, and opens the append log for subsequent live
// writes. Per spec.md §4.5, when append-log mode is enabled it takes
// precedence over the snapshot entirely.
func (m *Manager) LoadAppendLog() error {
	if !m.cfg.AppendOnly || m.cfg.AppendLogPath == "" {
		return nil
	}

	current := 0
	replayed := 0
	err := persistence.ReplayLines(m.cfg.AppendLogPath, func(frame []byte) error {
		frames, _, err := resp.DecodeFrames(frame)
		if err != nil || len(frames) == 0 {
			return nil
		}
		mb, ok := frames[0].(*resp.MultiBulkReply)
		if !ok {
			return nil
		}
		if strings.EqualFold(string(mb.Args[0]), "select") && len(mb.Args) == 2 {
			if n := parseDBIndex(mb.Args[1]); n >= 0 && n < len(m.actors) {
				current = n
			}
			return nil
		}
		actor := m.Actor(current)
		if actor == nil {
			return nil
		}
		reply := make(chan resp.Reply, 1)
		actor.Send(dbactor.CommandMsg{Cmd: mb.Args, Reply: reply, NoAof: true})
		<-reply
		replayed++
		return nil
	})
	if err != nil {
		return err
	}
	m.log.WithField("commands", replayed).Info("replayed append log")

	appendLog, err := persistence.OpenAppendLog(m.cfg.AppendLogPath, m.cfg.AppendFsync, m.log)
	if err != nil {
		return err
	}
	m.appendLog = appendLog

	for i, actor := range m.actors {
		idx := i
		actor.Send(dbactor.ReplicateMsg{Sink: &appendLogSink{m: m, dbIndex: idx}})
	}
	return nil
}

// appendLogSink adapts the manager's append log to dbactor.ReplicaSink,
// prefixing every write with a SELECT so replay can reconstruct which
// database each line belonged to.
type appendLogSink struct {
	m       *Manager
	dbIndex int
}

func (s *appendLogSink) SendWrite(frame []byte) {
	if s.m.appendLog == nil {
		return
	}
	sel := resp.MakeMultiBulkReply([][]byte{[]byte("SELECT"), []byte(itoa(s.dbIndex))}).ToBytes()
	_ = s.m.appendLog.Append(sel)
	_ = s.m.appendLog.Append(frame)
}

// Start launches the periodic tick goroutine at the configured hz.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.tickLoop()
}

// Close stops the tick loop and closes every actor and the append log.
func (m *Manager) Close() {
	close(m.closing)
	m.wg.Wait()
	for _, a := range m.actors {
		a.Close()
	}
	if m.appendLog != nil {
		m.appendLog.Close()
	}
}

func (m *Manager) tickLoop() {
	defer m.wg.Done()
	interval := time.Second / time.Duration(m.cfg.Hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Never overlap two ticks — a tick that runs long is allowed
			// to make the next one a no-op.
			if !m.running.CompareAndSwap(false, true) {
				continue
			}
			m.tick()
			m.running.Store(false)
		case <-m.closing:
			return
		}
	}
}

func (m *Manager) tick() {
	totalChanges := int64(0)
	for _, a := range m.actors {
		done := make(chan int, 1)
		a.Send(dbactor.CleanExpiredMsg{Done: done})
		<-done

		reply := make(chan int64, 1)
		a.Send(dbactor.ChangesMsg{Reply: reply})
		totalChanges += <-reply
	}

	if m.cfg.SnapshotPath == "" || len(m.cfg.SaveRules) == 0 {
		return
	}

	now := time.Now().UnixMilli()
	sinceLast := (now - m.lastSaveUnixMs) / 1000
	deltaChanges := totalChanges - m.lastSaveChanges

	due := false
	for _, rule := range m.cfg.SaveRules {
		if sinceLast >= rule.Seconds && deltaChanges >= rule.Changes {
			due = true
			break
		}
	}
	if !due {
		return
	}

	m.saveSnapshot(now, totalChanges)
}

func (m *Manager) saveSnapshot(now, totalChanges int64) {
	snap := persistence.Snapshot{
		LastSaveUnixMs:  now,
		LastSaveChanges: totalChanges,
		Databases:       make(map[int][]persistence.Entry, len(m.actors)),
	}
	for i, a := range m.actors {
		reply := make(chan dbactor.SnapshotResult, 1)
		a.Send(dbactor.SnapshotMsg{Reply: reply})
		res := <-reply
		snap.Databases[i] = persistence.EntriesFromKeyspace(res.Data, res.Expire)
	}

	if err := persistence.Save(m.cfg.SnapshotPath, snap); err != nil {
		m.log.WithError(err).Error("snapshot save failed")
		return
	}

	m.lastSaveUnixMs = now
	for _, a := range m.actors {
		done := make(chan struct{}, 1)
		a.Send(dbactor.ResetChangesMsg{Done: done})
		<-done
	}
	// Every actor's counter was just reset to zero, so the next tick's
	// aggregate starts from zero too — baselining against totalChanges
	// here would make deltaChanges go negative and suppress the next
	// save until the aggregate climbs back past this snapshot's total.
	m.lastSaveChanges = 0
	m.log.WithField("changes", totalChanges).Info("snapshot saved")
}

// ExecOn dispatches cmd on database index i, the entry point the
// session/connection layer uses for every command that targets exactly
// one keyspace.
func (m *Manager) ExecOn(i int, cmd [][]byte) resp.Reply {
	actor := m.Actor(i)
	if actor == nil {
		return resp.MakeErrReply("ERR invalid DB index")
	}
	reply := make(chan resp.Reply, 1)
	actor.Send(dbactor.CommandMsg{Cmd: cmd, Reply: reply})
	return <-reply
}

// IsKnownCommand exposes command.IsKnown so the session layer can reject
// names that no actor implements without importing internal/command
// directly for that one check. Commands the session handles itself
// (SELECT, AUTH, MULTI, ...) are not in the command table and report false.
func IsKnownCommand(name string) bool { return command.IsKnown(name) }

func parseDBIndex(b []byte) int {
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
