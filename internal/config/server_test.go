package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var serverEnvKeys = []string{
	"BIND", "SCAN_KIND", "SCAN_ROOT", "REFRESH_INTERVAL", "LICENSE_ENV", "LICENSE_PATH",
	"GROUPS_PATH", "RUN_INTERVAL", "RUN_BUFFER", "TOKEN", "LOG_DIR", "LOG_LEVEL",
}

// clearServerEnv unsets every DDUI_* key for the duration of the test.
func clearServerEnv(t *testing.T) {
	t.Helper()
	for _, k := range serverEnvKeys {
		key := EnvPrefix + "_" + k
		if old, ok := os.LookupEnv(key); ok {
			os.Unsetenv(key)
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func writeServerConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadServerConfig_Defaults(t *testing.T) {
	clearServerEnv(t)

	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bind != "0.0.0.0:3000" {
		t.Errorf("Bind = %q", cfg.Bind)
	}
	if cfg.ScanKind != "local" {
		t.Errorf("ScanKind = %q", cfg.ScanKind)
	}
	if cfg.RefreshInterval != 10*time.Minute {
		t.Errorf("RefreshInterval = %v", cfg.RefreshInterval)
	}
	if cfg.RunInterval != 200*time.Millisecond {
		t.Errorf("RunInterval = %v", cfg.RunInterval)
	}
	if cfg.GroupsPath != "/opt/docker/ant-parade/groups.yaml" {
		t.Errorf("GroupsPath = %q", cfg.GroupsPath)
	}
	if cfg.LicenseEnv != "DDUI_LICENSE" || cfg.LicensePath != "/run/secrets/ddui_license" {
		t.Errorf("license defaults wrong: %q %q", cfg.LicenseEnv, cfg.LicensePath)
	}
}

func TestLoadServerConfig_File(t *testing.T) {
	clearServerEnv(t)
	path := writeServerConfig(t, `
bind: 127.0.0.1:8080
scan_kind: repo
scan_root: /srv/stacks
run_interval: 50ms
run_buffer: 4
token: s3cret
`)
	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bind != "127.0.0.1:8080" || cfg.ScanKind != "repo" || cfg.ScanRoot != "/srv/stacks" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.RunInterval != 50*time.Millisecond || cfg.RunBuffer != 4 {
		t.Errorf("run settings not applied: %v %d", cfg.RunInterval, cfg.RunBuffer)
	}
	if cfg.Token != "s3cret" {
		t.Errorf("Token = %q", cfg.Token)
	}
}

func TestLoadServerConfig_EnvWins(t *testing.T) {
	clearServerEnv(t)
	path := writeServerConfig(t, "scan_root: /srv/stacks\n")
	t.Setenv("DDUI_SCAN_ROOT", "/data/compose")
	t.Setenv("DDUI_RUN_INTERVAL", "1s")

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ScanRoot != "/data/compose" {
		t.Errorf("ScanRoot = %q, env should override file", cfg.ScanRoot)
	}
	if cfg.RunInterval != time.Second {
		t.Errorf("RunInterval = %v", cfg.RunInterval)
	}
}

func TestLoadServerConfig_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"scan kind", map[string]string{"DDUI_SCAN_KIND": "s3"}},
		{"bind", map[string]string{"DDUI_BIND": "not-an-address"}},
		{"buffer", map[string]string{"DDUI_RUN_BUFFER": "0"}},
		{"log level", map[string]string{"DDUI_LOG_LEVEL": "chatty"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			clearServerEnv(t)
			for k, v := range c.env {
				t.Setenv(k, v)
			}
			if _, err := LoadServerConfig(""); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadServerConfig_BadYAML(t *testing.T) {
	clearServerEnv(t)
	path := writeServerConfig(t, "bind: [oops\n")
	if _, err := LoadServerConfig(path); err == nil {
		t.Error("expected parse error")
	}
}
