package config

import (
	"os"
	"path/filepath"
	"testing"
)

func patchConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig := configDirOverride
	configDirOverride = dir
	t.Cleanup(func() { configDirOverride = orig })
	t.Setenv("STACKDASH_SERVER", "")
	t.Setenv("STACKDASH_TOKEN", "")
	return dir
}

func TestLoadClientConfig_Missing(t *testing.T) {
	patchConfigDir(t)

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server != DefaultServerURL {
		t.Errorf("Server = %q, want %q", cfg.Server, DefaultServerURL)
	}
	if cfg.Token != "" {
		t.Errorf("Token = %q, want empty", cfg.Token)
	}
}

func TestSaveAndLoadClientConfig(t *testing.T) {
	dir := patchConfigDir(t)

	if err := SaveClientConfig(&ClientConfig{Server: "http://10.0.0.5:3000/", Token: "abc"}); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, "client.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("client.yaml mode = %v, want 0600", info.Mode().Perm())
	}

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server != "http://10.0.0.5:3000" {
		t.Errorf("Server = %q, trailing slash should be trimmed", cfg.Server)
	}
	if cfg.Token != "abc" {
		t.Errorf("Token = %q", cfg.Token)
	}
}

func TestLoadClientConfig_EnvOverrides(t *testing.T) {
	patchConfigDir(t)
	if err := SaveClientConfig(&ClientConfig{Server: "http://file:3000", Token: "file-token"}); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STACKDASH_SERVER", "https://dash.example.com")
	t.Setenv("STACKDASH_TOKEN", "env-token")

	cfg, err := LoadClientConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server != "https://dash.example.com" || cfg.Token != "env-token" {
		t.Errorf("env should win, got %+v", cfg)
	}
}

func TestLoadClientConfig_BadScheme(t *testing.T) {
	patchConfigDir(t)
	t.Setenv("STACKDASH_SERVER", "dash.example.com")

	if _, err := LoadClientConfig(); err == nil {
		t.Error("expected error for server without scheme")
	}
}
