// Package config resolves conman settings.
//
// Values are layered, later layers winning: built-in defaults, the YAML file
// (config.yaml in the config directory, or --config), a .env file in the
// working directory, CONMAN_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appDir = "conman"

// Environment variable names.
const (
	EnvConfig   = "CONMAN_CONFIG"
	EnvDir      = "CONMAN_DIR"
	EnvData     = "CONMAN_DATA_FILE"
	EnvKey      = "CONMAN_KEY_FILE"
	EnvCipher   = "CONMAN_CIPHER"
	EnvLogLevel = "CONMAN_LOG_LEVEL"
	EnvHTTPAddr = "CONMAN_HTTP_ADDR"
	EnvTerminal = "CONMAN_TERMINAL"
)

// Config holds every setting.
type Config struct {
	// Dir holds the default locations of all other files.
	Dir       string `yaml:"dir"`
	DataFile  string `yaml:"data_file"`
	KeyFile   string `yaml:"key_file"`
	AuditFile string `yaml:"audit_file"`
	AuthFile  string `yaml:"auth_file"`
	// Cipher is used only when a new key file is generated: xchacha or age.
	Cipher   string `yaml:"cipher"`
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
	// Terminal opens detached ssh and custom sessions on Linux and BSD, e.g. "alacritty".
	// It must accept -e. Empty means x-terminal-emulator.
	Terminal string `yaml:"terminal"`
}

// Default returns the settings used when nothing is configured.
// Dir is os.UserConfigDir()/conman, e.g. ~/.config/conman on Linux.
func Default() (*Config, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		Dir:      filepath.Join(base, appDir),
		Cipher:   "xchacha",
		LogLevel: "info",
		HTTPAddr: "127.0.0.1:21008",
	}, nil
}

// Load builds the settings from defaults, the YAML file and the environment.
// path may be empty; then CONMAN_CONFIG or <dir>/config.yaml is used if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if dir := os.Getenv(EnvDir); dir != "" {
		cfg.Dir = dir
	}

	explicit := path != ""
	if !explicit {
		if p := os.Getenv(EnvConfig); p != "" {
			path, explicit = p, true
		} else {
			path = filepath.Join(cfg.Dir, "config.yaml")
		}
	}
	if err := cfg.readFile(path, explicit); err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.fillPaths()
	return cfg, nil
}

func (c *Config) readFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Dir, EnvDir)
	set(&c.DataFile, EnvData)
	set(&c.KeyFile, EnvKey)
	set(&c.Cipher, EnvCipher)
	set(&c.LogLevel, EnvLogLevel)
	set(&c.HTTPAddr, EnvHTTPAddr)
	set(&c.Terminal, EnvTerminal)
}

func (c *Config) fillPaths() {
	def := func(dst *string, name string) {
		if *dst == "" {
			*dst = filepath.Join(c.Dir, name)
		}
	}
	def(&c.DataFile, "connections.json")
	def(&c.KeyFile, "key.key")
	def(&c.AuditFile, "access.log")
	def(&c.AuthFile, ".auth_hash")
}
