package config

import (
	"os"
	"path/filepath"
	"testing"

	"myredis/internal/persistence"
)

func TestDefaultsMatchSpec(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Bind != "127.0.0.1" || cfg.Port != 6379 || cfg.Databases != 16 || cfg.Hz != 10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AppendFsync != persistence.FsyncAlways {
		t.Fatalf("expected default appendfsync always, got %v", cfg.AppendFsync)
	}
}

func TestFileOverridesDefaultsAndCLIOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "myredis.conf")
	content := "# comment\nport 7000\nrequirepass filepass\nsave 60,1 300,100\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write conf: %v", err)
	}

	cfg, err := Load(path, []string{"-port", "7001"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7001 {
		t.Fatalf("expected CLI to override file port, got %d", cfg.Port)
	}
	if cfg.RequirePass != "filepass" {
		t.Fatalf("expected file value to survive, got %q", cfg.RequirePass)
	}
	if len(cfg.Save) != 2 || cfg.Save[0].Seconds != 60 || cfg.Save[1].Changes != 100 {
		t.Fatalf("unexpected save rules: %+v", cfg.Save)
	}
}

func TestInvalidAppendFsyncErrors(t *testing.T) {
	if _, err := Load("", []string{"-appendfsync", "bogus"}); err == nil {
		t.Fatal("expected error for invalid appendfsync")
	}
}
