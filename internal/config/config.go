// Package config resolves the options spec.md §6 names, layering
// defaults, an optional properties-style file, and CLI flags (CLI
// overrides file overrides defaults). Grounded on cmd/main.go's flag
// set, generalized from a handful of cluster/eviction flags to the
// full option table.
package config

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"myredis/internal/dbmanager"
	"myredis/internal/persistence"
)

type SaveRule = dbmanager.SaveRule

type Config struct {
	Bind        string
	Port        int
	RequirePass string
	Databases   int
	Hz          int
	Dir         string
	DBFilename  string
	Save        []SaveRule

	AppendOnly     bool
	AppendFilename string
	AppendFsync    persistence.Fsync

	ReplicaOf string // "host port" or empty

	LogLevel   string
	MaxClients int
}

func Default() Config {
	return Config{
		Bind:           "127.0.0.1",
		Port:           6379,
		Databases:      16,
		Hz:             10,
		Dir:            "./",
		DBFilename:     "dump.rdb",
		AppendOnly:     false,
		AppendFilename: "dump.aof",
		AppendFsync:    persistence.FsyncAlways,
		LogLevel:       "info",
		MaxClients:     0,
	}
}

// Load builds the final Config from defaults, an optional properties
// file at filePath (skipped silently if empty or missing), and the
// CLI flags in args (os.Args[1:] in production, a slice in tests).
func Load(filePath string, args []string) (Config, error) {
	cfg := Default()

	if filePath != "" {
		if err := applyFile(&cfg, filePath); err != nil {
			return cfg, err
		}
	}

	fs := flag.NewFlagSet("myredis-server", flag.ContinueOnError)
	bind := fs.String("bind", cfg.Bind, "listener address")
	port := fs.Int("port", cfg.Port, "listener port")
	requirepass := fs.String("requirepass", cfg.RequirePass, "if set, gates all non-AUTH commands")
	databases := fs.Int("databases", cfg.Databases, "number of logical databases")
	hz := fs.Int("hz", cfg.Hz, "tick frequency in Hz")
	dir := fs.String("dir", cfg.Dir, "directory for snapshot and append-log files")
	dbfilename := fs.String("dbfilename", cfg.DBFilename, "snapshot filename")
	save := fs.String("save", "", "whitespace-separated list of seconds,changes rules")
	appendonly := fs.Bool("appendonly", cfg.AppendOnly, "enable append-log persistence")
	appendfilename := fs.String("appendfilename", cfg.AppendFilename, "append-log filename")
	appendfsync := fs.String("appendfsync", fsyncString(cfg.AppendFsync), "one of always, everysec, no")
	replicaof := fs.String("replicaof", cfg.ReplicaOf, "\"host port\"; if set, run as follower")
	loglevel := fs.String("loglevel", cfg.LogLevel, "logger verbosity")
	maxclients := fs.Int("maxclients", cfg.MaxClients, "admission cap, 0 for no cap")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	cfg.Bind = *bind
	cfg.Port = *port
	cfg.RequirePass = *requirepass
	cfg.Databases = *databases
	cfg.Hz = *hz
	cfg.Dir = *dir
	cfg.DBFilename = *dbfilename
	if *save != "" {
		rules, err := parseSaveRules(*save)
		if err != nil {
			return cfg, err
		}
		cfg.Save = rules
	}
	cfg.AppendOnly = *appendonly
	cfg.AppendFilename = *appendfilename
	fsyncVal, err := parseFsync(*appendfsync)
	if err != nil {
		return cfg, err
	}
	cfg.AppendFsync = fsyncVal
	cfg.ReplicaOf = *replicaof
	cfg.LogLevel = *loglevel
	cfg.MaxClients = *maxclients

	return cfg, nil
}

// applyFile parses a properties-style file: "key value" per line,
// whitespace-separated, '#' starts a comment to end of line. Options
// not present keep their current value.
func applyFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}
		key := strings.ToLower(fields[0])
		val := strings.Join(fields[1:], " ")

		switch key {
		case "bind":
			cfg.Bind = val
		case "port":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Port = n
			}
		case "requirepass":
			cfg.RequirePass = val
		case "databases":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Databases = n
			}
		case "hz":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.Hz = n
			}
		case "dir":
			cfg.Dir = val
		case "dbfilename":
			cfg.DBFilename = val
		case "save":
			if rules, err := parseSaveRules(val); err == nil {
				cfg.Save = rules
			}
		case "appendonly":
			cfg.AppendOnly = strings.EqualFold(val, "yes") || strings.EqualFold(val, "true")
		case "appendfilename":
			cfg.AppendFilename = val
		case "appendfsync":
			if fv, err := parseFsync(val); err == nil {
				cfg.AppendFsync = fv
			}
		case "replicaof":
			cfg.ReplicaOf = val
		case "loglevel":
			cfg.LogLevel = val
		case "maxclients":
			if n, err := strconv.Atoi(val); err == nil {
				cfg.MaxClients = n
			}
		}
	}
	return scanner.Err()
}

func parseSaveRules(s string) ([]SaveRule, error) {
	fields := strings.Fields(s)
	rules := make([]SaveRule, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid save rule %q, want seconds,changes", f)
		}
		seconds, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid save rule %q: %w", f, err)
		}
		changes, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid save rule %q: %w", f, err)
		}
		rules = append(rules, SaveRule{Seconds: seconds, Changes: changes})
	}
	return rules, nil
}

func parseFsync(s string) (persistence.Fsync, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always":
		return persistence.FsyncAlways, nil
	case "everysec":
		return persistence.FsyncEverysec, nil
	case "no":
		return persistence.FsyncNo, nil
	default:
		return persistence.FsyncAlways, fmt.Errorf("invalid appendfsync %q, want always|everysec|no", s)
	}
}

func fsyncString(f persistence.Fsync) string {
	switch f {
	case persistence.FsyncEverysec:
		return "everysec"
	case persistence.FsyncNo:
		return "no"
	default:
		return "always"
	}
}
