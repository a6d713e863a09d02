package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigCreatesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); err != nil {
		t.Errorf("config.json was not written: %v", err)
	}
	if cfg.RconSecretStorage != SecretPlain {
		t.Errorf("RconSecretStorage = %q, want plain", cfg.RconSecretStorage)
	}
	if cfg.CleanupOnFailure != CleanupLeave {
		t.Errorf("CleanupOnFailure = %q, want leave", cfg.CleanupOnFailure)
	}
	if cfg.DatabasePath != filepath.Join(dir, "sqp_plus.db") {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}

	again, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("second LoadConfig failed: %v", err)
	}
	if *again != *cfg {
		t.Errorf("Config did not persist: got %+v, want %+v", again, cfg)
	}
}

func TestLoadConfigPartialFile(t *testing.T) {
	dir := t.TempDir()
	data := []byte(`{"cleanup_on_failure": "clean", "rcon_secret_storage": "bcrypt", "port": 9000}`)
	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.CleanupOnFailure != CleanupClean || cfg.RconSecretStorage != SecretBcrypt || cfg.Port != 9000 {
		t.Errorf("Unexpected values: %+v", cfg)
	}
	if cfg.SteamCMDURL != DefaultSteamCMDURL {
		t.Errorf("SteamCMDURL default not applied: %q", cfg.SteamCMDURL)
	}
}

func TestLoadConfigRejectsUnknownPolicy(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"cleanup_on_failure": "maybe"}`), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfig(dir); err == nil {
		t.Error("Expected error for unknown cleanup policy")
	}
}

func TestGetPort(t *testing.T) {
	t.Setenv("SQPPLUS_PORT", "")
	if GetPort() != defaultPort {
		t.Errorf("GetPort() = %d, want %d", GetPort(), defaultPort)
	}

	t.Setenv("SQPPLUS_PORT", "4000")
	if GetPort() != 4000 {
		t.Errorf("GetPort() = %d, want 4000", GetPort())
	}

	t.Setenv("SQPPLUS_PORT", "nope")
	if GetPort() != defaultPort {
		t.Errorf("GetPort() with bad value = %d, want default", GetPort())
	}
}

func TestListenPort(t *testing.T) {
	cfg := &Config{Port: 24000}

	t.Setenv("SQPPLUS_PORT", "")
	if cfg.ListenPort() != 24000 {
		t.Errorf("ListenPort() = %d, want configured 24000", cfg.ListenPort())
	}

	t.Setenv("SQPPLUS_PORT", "25000")
	if cfg.ListenPort() != 25000 {
		t.Errorf("ListenPort() = %d, want env 25000", cfg.ListenPort())
	}

	t.Setenv("SQPPLUS_PORT", "nope")
	if cfg.ListenPort() != 24000 {
		t.Errorf("ListenPort() with bad value = %d, want configured 24000", cfg.ListenPort())
	}

	t.Setenv("SQPPLUS_PORT", "-1")
	if (&Config{}).ListenPort() != defaultPort {
		t.Errorf("ListenPort() without config = %d, want default", (&Config{}).ListenPort())
	}
}
