package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultServerURL is used by the CLI when no server is configured.
const DefaultServerURL = "http://localhost:3000"

// ClientConfig holds how the CLI reaches a stackdashd.
// Stored in ~/.config/stackdash/client.yaml.
type ClientConfig struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
}

// configDirOverride lets tests redirect the config directory.
var configDirOverride string

func globalConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "stackdash"), nil
}

func clientConfigPath() (string, error) {
	dir, err := globalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "client.yaml"), nil
}

// LoadClientConfig reads ~/.config/stackdash/client.yaml. A missing file is
// not an error. STACKDASH_SERVER and STACKDASH_TOKEN override the file.
func LoadClientConfig() (*ClientConfig, error) {
	var cfg ClientConfig

	path, err := clientConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading client config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing client config: %w", err)
		}
	}

	if s := os.Getenv("STACKDASH_SERVER"); s != "" {
		cfg.Server = s
	}
	if t := os.Getenv("STACKDASH_TOKEN"); t != "" {
		cfg.Token = t
	}

	if cfg.Server == "" {
		cfg.Server = DefaultServerURL
	}
	cfg.Server = strings.TrimRight(cfg.Server, "/")
	if !strings.HasPrefix(cfg.Server, "http://") && !strings.HasPrefix(cfg.Server, "https://") {
		return nil, fmt.Errorf("%s: server must start with http:// or https://", path)
	}
	return &cfg, nil
}

// SaveClientConfig writes the config to ~/.config/stackdash/client.yaml.
func SaveClientConfig(cfg *ClientConfig) error {
	dir, err := globalConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "client.yaml"), data, 0600)
}
