// Package config resolves settings from defaults, an optional YAML file
// and the environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultLrclibGetURL = "https://lrclib.net/api/get"
	PollInterval        = time.Second

	configDirName  = "lyrisync"
	configFileName = "config.yaml"
)

var DefaultProviders = []string{"lrclib", "musixmatch"}

type Config struct {
	Pipe      bool     `yaml:"pipe"`
	Database  string   `yaml:"database"`
	Block     []string `yaml:"block"`
	DebugLog  bool     `yaml:"debug_log"`
	Providers []string `yaml:"providers"`
	Karaoke   bool     `yaml:"karaoke"`

	LrclibURL       string `yaml:"lrclib_url"`
	MusixmatchToken string `yaml:"musixmatch_token"`

	// display
	SyncOffset       float64 `yaml:"sync_offset"`
	HideHeader       bool    `yaml:"hide_header"`
	UseKittyGraphics bool    `yaml:"kitty_graphics"`

	path string
}

func defaultConfig() *Config {
	return &Config{
		Karaoke:   true,
		LrclibURL: DefaultLrclibGetURL,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/lyrisync/config.yaml.
func DefaultPath() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, configDirName, configFileName), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", configDirName, configFileName), nil
}

// Load reads path, or the default location when path is empty. a missing
// file leaves the defaults in place.
func Load(path string) (*Config, error) {
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path: %w", err)
		}
		path = defaultPath
	}

	cfg := defaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.Normalize()

	return cfg, nil
}

func (c *Config) Path() string {
	return c.path
}

func (c *Config) applyEnv() {
	if len(c.Providers) == 0 {
		if raw := getEnvOrDefault("LYRIC_PROVIDERS", ""); raw != "" {
			c.Providers = strings.Split(raw, ",")
		}
	}

	c.MusixmatchToken = getEnvOrDefault("MUSIXMATCH_USERTOKEN", c.MusixmatchToken)
	c.LrclibURL = getEnvOrDefault("LRCLIB_GET_URL", c.LrclibURL)

	if raw := getEnvOrDefault("SYNC_OFFSET", ""); raw != "" {
		if offset, err := strconv.ParseFloat(raw, 64); err == nil {
			c.SyncOffset = offset
		}
	}

	c.HideHeader = parseBool(getEnvOrDefault("HIDE_HEADER", ""), c.HideHeader)
	c.UseKittyGraphics = parseBool(getEnvOrDefault("LYRISYNC_USE_KITTY_GRAPHICS", ""), c.UseKittyGraphics)
}

// Normalize lower-cases and dedupes provider names and drops blank block
// entries. an empty provider list falls back to the defaults.
func (c *Config) Normalize() {
	providers := lo.Map(c.Providers, func(name string, _ int) string {
		return strings.ToLower(strings.TrimSpace(name))
	})
	providers = lo.Uniq(lo.Compact(providers))
	if len(providers) == 0 {
		providers = append([]string(nil), DefaultProviders...)
	}
	c.Providers = providers

	c.Block = lo.Compact(lo.Map(c.Block, func(entry string, _ int) string {
		return strings.TrimSpace(entry)
	}))

	if c.LrclibURL == "" {
		c.LrclibURL = DefaultLrclibGetURL
	}
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}

func getEnvOrDefault(key string, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
