// myredis-server is the single executable spec.md §6 names. Exit
// codes: 0 normal, 1 configuration error, 2 bind failure. Grounded on
// cmd/main.go's flag-parsing-then-Start-then-signal-triggered-Shutdown
// shape, adapted from a single StandaloneDB to a dbmanager.Manager
// plus optional replication.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"myredis/internal/config"
	"myredis/internal/dbmanager"
	"myredis/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	confFile := ""
	args := os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		confFile = args[0]
		args = args[1:]
	}

	cfg, err := config.Load(confFile, args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return 1
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	mgr := dbmanager.New(dbmanager.Config{
		Databases:     cfg.Databases,
		Hz:            cfg.Hz,
		SnapshotPath:  filepath.Join(cfg.Dir, cfg.DBFilename),
		SaveRules:     cfg.Save,
		AppendOnly:    cfg.AppendOnly,
		AppendLogPath: filepath.Join(cfg.Dir, cfg.AppendFilename),
		AppendFsync:   cfg.AppendFsync,
	}, log)

	// Recovery precedence per spec.md §4.5: append-log replay takes
	// over from the snapshot entirely when enabled.
	if cfg.AppendOnly {
		if err := mgr.LoadAppendLog(); err != nil {
			log.WithError(err).Error("append log load failed")
			return 1
		}
	} else {
		if err := mgr.LoadSnapshot(); err != nil {
			log.WithError(err).Error("snapshot load failed")
			return 1
		}
	}

	srv := server.New(server.Config{
		Addr:          cfg.Bind + ":" + strconv.Itoa(cfg.Port),
		RequirePass:   cfg.RequirePass,
		MaxClients:    cfg.MaxClients,
		ReplicaOf:     parseReplicaOf(cfg.ReplicaOf),
		ListeningPort: cfg.Port,
	}, mgr, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Start(); err != nil {
		log.WithError(err).Error("bind failed")
		return 2
	}
	return 0
}

// parseReplicaOf splits spec.md §6's "host port" replicaof value into
// a dial address, or returns "" if unset (primary mode).
func parseReplicaOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return ""
	}
	if _, err := strconv.Atoi(fields[1]); err != nil {
		return ""
	}
	return fields[0] + ":" + fields[1]
}
