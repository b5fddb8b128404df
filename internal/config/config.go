// Package config handles configuration file loading and parsing.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// AppName is the directory name used under the XDG config and cache homes.
const AppName = "gotify-dunst"

// Default configuration values.
const (
	PlaceholderDomain   = "push.example.com"
	DefaultBackend      = BackendDunstify
	DefaultNotifyCmd    = "dunstify"
	DefaultAppName      = "Gotify"
	DefaultDesktopEntry = "gotify-dunst"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultBackoff      = 1 * time.Second
	DefaultMaxBackoff   = 60 * time.Second
	DefaultHandshake    = 10 * time.Second
	SessionFileName     = ".dbus_session"
)

// Notifier backends.
const (
	BackendDunstify = "dunstify"
	BackendDBus     = "dbus"
)

// Configuration errors.
var (
	ErrMissingDomain     = errors.New("server domain is not set")
	ErrPlaceholderDomain = errors.New("server domain is still the placeholder " + PlaceholderDomain)
	ErrUnknownBackend    = errors.New("unknown notify backend")
)

// Config represents the gotify-dunst configuration.
type Config struct {
	Server  ServerConfig        `toml:"server"`
	Notify  NotifyConfig        `toml:"notify"`
	Session SessionConfig       `toml:"session"`
	Actions map[string][]string `toml:"actions"`
	HTTP    HTTPConfig          `toml:"http"`
	Stream  StreamConfig        `toml:"stream"`
	Log     LogConfig           `toml:"log"`
}

// ServerConfig identifies the Gotify server.
type ServerConfig struct {
	Domain string `toml:"domain"`
	Token  string `toml:"token"` // Client token
	SSL    bool   `toml:"ssl"`
}

// NotifyConfig controls how notifications reach the desktop.
type NotifyConfig struct {
	Backend      string `toml:"backend"` // dunstify, dbus
	Command      string `toml:"command"` // Only used by the dunstify backend
	AppName      string `toml:"app_name"`
	DesktopEntry string `toml:"desktop_entry"`
	Status       bool   `toml:"status"` // Notify about config reloads
}

// SessionConfig holds the D-Bus session provisioning command.
type SessionConfig struct {
	LaunchCommand []string `toml:"launch_command"`
}

// HTTPConfig holds settings for requests to the server REST API.
type HTTPConfig struct {
	Timeout Duration `toml:"timeout"` // 0 = no timeout
}

// StreamConfig holds websocket reconnect settings.
type StreamConfig struct {
	Reconnect        bool     `toml:"reconnect"`
	InitialBackoff   Duration `toml:"initial_backoff"`
	MaxBackoff       Duration `toml:"max_backoff"`
	HandshakeTimeout Duration `toml:"handshake_timeout"`
}

// LogConfig holds the optional log file sink.
type LogConfig struct {
	File string `toml:"file"` // Appended to in addition to stderr
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Domain: PlaceholderDomain,
			Token:  "",
			SSL:    false,
		},
		Notify: NotifyConfig{
			Backend:      DefaultBackend,
			Command:      DefaultNotifyCmd,
			AppName:      DefaultAppName,
			DesktopEntry: DefaultDesktopEntry,
			Status:       true,
		},
		Session: SessionConfig{
			LaunchCommand: []string{"dbus-launch", "--sh-syntax", "--exit-with-session"},
		},
		Actions: DefaultActions(),
		HTTP: HTTPConfig{
			Timeout: Duration(DefaultHTTPTimeout),
		},
		Stream: StreamConfig{
			Reconnect:        true,
			InitialBackoff:   Duration(DefaultBackoff),
			MaxBackoff:       Duration(DefaultMaxBackoff),
			HandshakeTimeout: Duration(DefaultHandshake),
		},
	}
}

// DefaultActions returns the built-in action routes, one script per key
// under the actions directory.
func DefaultActions() map[string][]string {
	dir := ActionsDir()
	return map[string][]string{
		"install": {filepath.Join(dir, "install.sh")},
		"ignore":  {filepath.Join(dir, "ignore.sh")},
	}
}

// ConfigDir returns the gotify-dunst config directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config.
func ConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, AppName)
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// ActionsDir returns the directory holding the default action scripts.
func ActionsDir() string {
	return filepath.Join(ConfigDir(), "actions")
}

// CacheDir returns the icon cache directory.
// Uses XDG_CACHE_HOME if set, otherwise ~/.cache.
func CacheDir() string {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, AppName)
}

// SessionFilePath returns where the D-Bus session record lives.
// In local mode the record is kept in the current working directory.
func SessionFilePath(local bool) string {
	if local {
		wd, err := os.Getwd()
		if err != nil {
			return SessionFileName
		}
		return filepath.Join(wd, SessionFileName)
	}
	return filepath.Join(ConfigDir(), SessionFileName)
}

// LoadConfig loads configuration from the specified path.
// If path is empty, uses the default config path.
// Returns default config if file doesn't exist.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	// A user-supplied [actions] table replaces the defaults entirely
	cfg.Actions = nil
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.Actions == nil {
		cfg.Actions = DefaultActions()
	}

	return cfg, nil
}

// EnsureConfig writes the default configuration to path if no file exists.
// Returns true if a new file was created.
func EnsureConfig(path string) (bool, error) {
	if path == "" {
		path = ConfigPath()
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := DefaultConfig().Save(path); err != nil {
		return false, err
	}
	return true, nil
}

// Save writes the configuration to the specified path.
// Creates parent directories if needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = ConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return err
	}

	// The token is a credential
	return os.WriteFile(path, data, 0600)
}

// Validate checks the settings that must be fixed before any session or
// stream work starts.
func (c *Config) Validate() error {
	domain := strings.TrimSpace(c.Server.Domain)
	switch domain {
	case "":
		return ErrMissingDomain
	case PlaceholderDomain:
		return ErrPlaceholderDomain
	}

	switch c.Notify.Backend {
	case BackendDunstify, BackendDBus:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Notify.Backend)
	}

	if len(c.Session.LaunchCommand) == 0 {
		return errors.New("session launch_command is empty")
	}
	return nil
}

// BaseURL returns the http(s) base URL of the server, without a trailing slash.
func (s ServerConfig) BaseURL() string {
	scheme := "http"
	if s.SSL {
		scheme = "https"
	}
	return scheme + "://" + s.host()
}

// StreamURL returns the websocket URL of the message stream, token included.
func (s ServerConfig) StreamURL() string {
	scheme := "ws"
	if s.SSL {
		scheme = "wss"
	}
	return scheme + "://" + s.host() + "/stream?token=" + url.QueryEscape(s.Token)
}

// host returns the domain as written into URLs.
func (s ServerConfig) host() string {
	return strings.TrimSuffix(strings.TrimSpace(s.Domain), "/")
}
