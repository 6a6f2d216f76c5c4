// Package server wires together the database manager, replication,
// and the session layer behind one TCP listener. Grounded on
// server/server.go's Server almost verbatim in control flow (closing
// channel, sync.Once shutdown, wg.Wait drain bounded by a context),
// adapted to own a dbmanager.Manager and start the tick/replication
// goroutines alongside the listener instead of a single db.DB.
package server

import (
	"context"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"myredis/internal/dbmanager"
	"myredis/internal/replication"
	"myredis/internal/session"
)

type Config struct {
	Addr        string
	RequirePass string
	MaxClients  int

	// ReplicaOf is "host:port" of a primary, empty if this node is a
	// primary itself.
	ReplicaOf     string
	ListeningPort int
}

type Server struct {
	cfg Config
	mgr *dbmanager.Manager
	log *logrus.Logger

	sessions *session.Manager
	primary  *replication.Primary
	follower *replication.Follower

	listener net.Listener

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func New(cfg Config, mgr *dbmanager.Manager, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{
		cfg:     cfg,
		mgr:     mgr,
		log:     log,
		closing: make(chan struct{}),
	}
	if cfg.ReplicaOf == "" {
		s.primary = replication.NewPrimary(mgr, log)
	}
	s.sessions = session.NewManager(mgr, cfg.RequirePass, cfg.MaxClients, s.primary, log)
	return s
}

// Start launches the manager's tick, an optional follower goroutine,
// and the accept loop. It blocks until the listener stops.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.log.WithField("addr", s.cfg.Addr).Info("myredis listening")

	s.mgr.Start()

	if s.cfg.ReplicaOf != "" {
		s.follower = replication.NewFollower(s.cfg.ReplicaOf, s.cfg.ListeningPort, s.mgr, s.log)
		s.sessions.SetFollower(s.follower)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.follower.Run()
		}()
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.closing:
				return nil
			default:
			}
			s.log.WithError(err).Warn("accept error")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sessions.Accept(conn)
		}()
	}
}

// Shutdown stops accepting, closes every tracked connection, stops
// replication and the tick loop, and lets the manager drain its
// append log — the same accept-then-connections-then-db ordering the
// teacher's Shutdown uses so AOF drain+fsync always completes last.
func (s *Server) Shutdown(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.follower != nil {
			s.follower.Stop()
		}
		s.sessions.CloseAll()
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
	}

	s.mgr.Close()
	return ctx.Err()
}
