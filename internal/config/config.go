package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	defaultConfigName     = "config.json"
	defaultDatabaseFile   = "sqp_plus.db"
	defaultServersDir     = "servers"
	defaultPort           = 23008
	defaultCommandTimeout = 600
	DefaultSteamCMDURL    = "https://steamcdn-a.akamaihd.net/client/installer/steamcmd_linux.tar.gz"
)

const (
	SecretPlain  = "plain"
	SecretBcrypt = "bcrypt"

	CleanupLeave = "leave"
	CleanupClean = "clean"
)

type Config struct {
	DatabasePath    string `json:"database_path"`
	DefaultBasePath string `json:"default_base_path"`
	Port            int    `json:"port"`
	// RconSecretStorage is "plain" (stored as entered) or "bcrypt".
	RconSecretStorage string `json:"rcon_secret_storage"`
	// CleanupOnFailure is "leave" or "clean".
	CleanupOnFailure      string `json:"cleanup_on_failure"`
	CommandTimeoutSeconds int    `json:"command_timeout_seconds"`
	SteamCMDURL           string `json:"steamcmd_url"`
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutSeconds) * time.Second
}

func IsDev() bool {
	return os.Getenv("SQPPLUS_ENV") == "dev"
}

// GetPort returns SQPPLUS_PORT when set to a valid number, else the default.
func GetPort() int {
	return portFromEnv(defaultPort)
}

// ListenPort is SQPPLUS_PORT when set to a valid number, otherwise the
// configured port.
func (c *Config) ListenPort() int {
	if c.Port > 0 {
		return portFromEnv(c.Port)
	}
	return portFromEnv(defaultPort)
}

func portFromEnv(fallback int) int {
	if p, err := strconv.Atoi(os.Getenv("SQPPLUS_PORT")); err == nil && p > 0 {
		return p
	}
	return fallback
}

// DefaultServersPath is the base path used when none is configured or
// given on the command line. It is empty when no user config directory
// exists.
func DefaultServersPath() string {
	dir, err := Dir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, defaultServersDir)
}

// Dir is the per-user directory holding config.json and the catalog.
func Dir() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	appName := "sqpplus"
	if IsDev() {
		appName = "sqpplus-dev"
	}
	return filepath.Join(userConfigDir, appName), nil
}

func LoadConfig(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	configPath := filepath.Join(configDir, defaultConfigName)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return createDefaultConfig(configPath, configDir)
	}

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg, configDir)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.RconSecretStorage {
	case SecretPlain, SecretBcrypt:
	default:
		return fmt.Errorf("rcon_secret_storage must be %q or %q, got %q", SecretPlain, SecretBcrypt, c.RconSecretStorage)
	}
	switch c.CleanupOnFailure {
	case CleanupLeave, CleanupClean:
	default:
		return fmt.Errorf("cleanup_on_failure must be %q or %q, got %q", CleanupLeave, CleanupClean, c.CleanupOnFailure)
	}
	if c.CommandTimeoutSeconds < 0 {
		return fmt.Errorf("command_timeout_seconds must not be negative")
	}
	return nil
}

func applyDefaults(cfg *Config, configDir string) {
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(configDir, defaultDatabaseFile)
	}
	if cfg.DefaultBasePath == "" {
		cfg.DefaultBasePath = filepath.Join(configDir, defaultServersDir)
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.RconSecretStorage == "" {
		cfg.RconSecretStorage = SecretPlain
	}
	if cfg.CleanupOnFailure == "" {
		cfg.CleanupOnFailure = CleanupLeave
	}
	if cfg.CommandTimeoutSeconds == 0 {
		cfg.CommandTimeoutSeconds = defaultCommandTimeout
	}
	if cfg.SteamCMDURL == "" {
		cfg.SteamCMDURL = DefaultSteamCMDURL
	}
}

func createDefaultConfig(configPath, configDir string) (*Config, error) {
	var cfg Config
	applyDefaults(&cfg, configDir)

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return nil, err
	}

	return &cfg, nil
}
