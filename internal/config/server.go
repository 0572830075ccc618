package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every server setting read from the environment,
// e.g. DDUI_SCAN_ROOT.
const EnvPrefix = "DDUI"

// DefaultServerConfigPath is where stackdashd looks for its config file.
const DefaultServerConfigPath = "/etc/stackdash/server.yaml"

// ServerConfig is the daemon configuration. Every field can come from
// server.yaml or from a DDUI_* environment variable; the environment wins.
type ServerConfig struct {
	Bind            string        `mapstructure:"bind" yaml:"bind"`
	ScanKind        string        `mapstructure:"scan_kind" yaml:"scan_kind"`
	ScanRoot        string        `mapstructure:"scan_root" yaml:"scan_root"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	LicenseEnv      string        `mapstructure:"license_env" yaml:"license_env"`
	LicensePath     string        `mapstructure:"license_path" yaml:"license_path"`
	GroupsPath      string        `mapstructure:"groups_path" yaml:"groups_path,omitempty"`
	RunInterval     time.Duration `mapstructure:"run_interval" yaml:"run_interval"`
	RunBuffer       int           `mapstructure:"run_buffer" yaml:"run_buffer"`
	Token           string        `mapstructure:"token" yaml:"token,omitempty"`
	LogDir          string        `mapstructure:"log_dir" yaml:"log_dir,omitempty"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultServerConfig returns the settings used when nothing is configured.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Bind:            "0.0.0.0:3000",
		ScanKind:        "local",
		ScanRoot:        "/opt/docker/ant-parade/docker-compose",
		RefreshInterval: 10 * time.Minute,
		LicenseEnv:      "DDUI_LICENSE",
		LicensePath:     "/run/secrets/ddui_license",
		RunInterval:     200 * time.Millisecond,
		RunBuffer:       16,
		LogLevel:        "info",
	}
}

// LoadServerConfig reads path (if it exists), applies DDUI_* overrides and
// validates the result. An empty path skips the file.
func LoadServerConfig(path string) (*ServerConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults := DefaultServerConfig()
	v.SetDefault("bind", defaults.Bind)
	v.SetDefault("scan_kind", defaults.ScanKind)
	v.SetDefault("scan_root", defaults.ScanRoot)
	v.SetDefault("refresh_interval", defaults.RefreshInterval)
	v.SetDefault("license_env", defaults.LicenseEnv)
	v.SetDefault("license_path", defaults.LicensePath)
	v.SetDefault("groups_path", "")
	v.SetDefault("run_interval", defaults.RunInterval)
	v.SetDefault("run_buffer", defaults.RunBuffer)
	v.SetDefault("token", "")
	v.SetDefault("log_dir", "")
	v.SetDefault("log_level", defaults.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("cannot parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.GroupsPath == "" {
		cfg.GroupsPath = filepath.Join(filepath.Dir(filepath.Clean(cfg.ScanRoot)), "groups.yaml")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the daemon cannot start with.
func (c *ServerConfig) Validate() error {
	if c.ScanKind != "local" && c.ScanKind != "repo" {
		return fmt.Errorf("%s_SCAN_KIND must be 'local' or 'repo', got %q", EnvPrefix, c.ScanKind)
	}
	if _, _, err := net.SplitHostPort(c.Bind); err != nil {
		return fmt.Errorf("invalid bind address %q: %w", c.Bind, err)
	}
	if strings.TrimSpace(c.ScanRoot) == "" {
		return fmt.Errorf("'scan_root' is required")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("'refresh_interval' must be positive")
	}
	if c.RunInterval < 0 {
		return fmt.Errorf("'run_interval' cannot be negative")
	}
	if c.RunBuffer < 1 {
		return fmt.Errorf("'run_buffer' must be at least 1")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return nil
}
