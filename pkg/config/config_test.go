package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != DefaultPort || cfg.Parallelism != DefaultParallelism {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prognos.yaml")
	data := "port: \"9090\"\nparallelism: 8\ndegradation_window: 15\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" || cfg.Parallelism != 8 || cfg.Window != 15 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	// Unset file fields keep defaults.
	if cfg.DataDir != DefaultDataDir {
		t.Fatalf("data dir lost its default: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prognos.yaml")
	if err := os.WriteFile(path, []byte("port: \"9090\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PROGNOS_PORT", "7070")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Fatalf("env override ignored: %+v", cfg)
	}
}

func TestInvalidParallelismEnv(t *testing.T) {
	t.Setenv("PROGNOS_PARALLELISM", "zero")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric parallelism")
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
