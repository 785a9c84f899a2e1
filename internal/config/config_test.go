package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GUIDEBOOK_DB_PATH", "")
	t.Setenv("GUIDEBOOK_LOCK_TIMEOUT", "")
	t.Setenv("GUIDEBOOK_GEOM_TOLERANCE", "")
	cfg := Load()
	if cfg.DBPath != "guidebook.sqlite" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("LockTimeout = %v", cfg.LockTimeout)
	}
	if cfg.GeomTolerance != 0.5 {
		t.Errorf("GeomTolerance = %v", cfg.GeomTolerance)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GUIDEBOOK_DB_PATH", "/tmp/test.sqlite")
	t.Setenv("GUIDEBOOK_LOCK_TIMEOUT", "250ms")
	t.Setenv("GUIDEBOOK_GEOM_TOLERANCE", "1.5")
	cfg := Load()
	if cfg.DBPath != "/tmp/test.sqlite" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.LockTimeout != 250*time.Millisecond {
		t.Errorf("LockTimeout = %v", cfg.LockTimeout)
	}
	if cfg.GeomTolerance != 1.5 {
		t.Errorf("GeomTolerance = %v", cfg.GeomTolerance)
	}
}

func TestLoadBadValuesFallBack(t *testing.T) {
	t.Setenv("GUIDEBOOK_LOCK_TIMEOUT", "soon")
	t.Setenv("GUIDEBOOK_GEOM_TOLERANCE", "-3")
	cfg := Load()
	if cfg.LockTimeout != 5*time.Second {
		t.Errorf("LockTimeout = %v", cfg.LockTimeout)
	}
	if cfg.GeomTolerance != 0.5 {
		t.Errorf("GeomTolerance = %v", cfg.GeomTolerance)
	}
}
