package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Server     ServerSettings     `json:"server"`
	Database   DatabaseSettings   `json:"database"`
	Redis      RedisSettings      `json:"redis"`
	Resolver   ResolverSettings   `json:"resolver"`
	Encryption EncryptionSettings `json:"encryption"`
	LinkCheck  LinkCheckSettings  `json:"linkCheck"`
	Log        LogConfig          `json:"log"`
}

type ServerSettings struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseSettings defines the sqlite database location.
type DatabaseSettings struct {
	Path string `json:"path"`
}

// RedisSettings defines the result cache backend. When disabled the service
// falls back to an in-process cache.
type RedisSettings struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
	DB      int    `json:"db"`
}

// ResolverSettings tunes the upstream resolution pipeline.
type ResolverSettings struct {
	CacheTTLHours   int `json:"cacheTtlHours"`
	FetchTimeoutSec int `json:"fetchTimeoutSec"`
}

// EncryptionSettings defines where the RSA private key lives.
type EncryptionSettings struct {
	KeyFile string `json:"keyFile"`
}

// LinkCheckSettings tunes the background link prober.
type LinkCheckSettings struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"intervalMinutes"`
	Concurrency     int  `json:"concurrency"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	File       string `json:"file"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

func DefaultSettings() Settings {
	return Settings{
		Server:   ServerSettings{Host: "0.0.0.0", Port: 8880},
		Database: DatabaseSettings{Path: "data/cinelink.db"},
		Redis:    RedisSettings{Enabled: false, Addr: "localhost:6379", DB: 0},
		Resolver: ResolverSettings{
			CacheTTLHours:   48,
			FetchTimeoutSec: 10,
		},
		Encryption: EncryptionSettings{KeyFile: "data/private_key.pem"},
		LinkCheck: LinkCheckSettings{
			Enabled:         false,
			IntervalMinutes: 30,
			Concurrency:     4,
		},
		Log: LogConfig{
			File:       "data/cinelink.log",
			MaxSize:    50,
			MaxAge:     14,
			MaxBackups: 3,
			Compress:   true,
		},
	}
}

// CacheTTL returns the resolver cache lifetime as a duration.
func (s ResolverSettings) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLHours) * time.Hour
}

// FetchTimeout returns the per-fetch timeout as a duration.
func (s ResolverSettings) FetchTimeout() time.Duration {
	return time.Duration(s.FetchTimeoutSec) * time.Second
}

// Interval returns the probe interval as a duration.
func (s LinkCheckSettings) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// Manager loads and persists Settings at a fixed path.
type Manager struct {
	path string
}

func NewManager(configPath string) *Manager {
	return &Manager{path: configPath}
}

// EnsureDir creates the directory for the config file if needed.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// Load reads the settings file, creating it with defaults when absent.
// Missing sections are backfilled with defaults so older files keep working.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := os.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		// create with defaults
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	f, err := os.Open(m.path)
	if err != nil {
		return Settings{}, err
	}
	defer f.Close()

	settings := DefaultSettings()
	if err := json.NewDecoder(f).Decode(&settings); err != nil {
		return Settings{}, err
	}
	applyFallbacks(&settings)
	return settings, nil
}

func applyFallbacks(s *Settings) {
	defaults := DefaultSettings()
	if s.Server.Port == 0 {
		s.Server.Port = defaults.Server.Port
	}
	if s.Server.Host == "" {
		s.Server.Host = defaults.Server.Host
	}
	if s.Database.Path == "" {
		s.Database.Path = defaults.Database.Path
	}
	if s.Redis.Addr == "" {
		s.Redis.Addr = defaults.Redis.Addr
	}
	if s.Resolver.CacheTTLHours <= 0 {
		s.Resolver.CacheTTLHours = defaults.Resolver.CacheTTLHours
	}
	if s.Resolver.FetchTimeoutSec <= 0 {
		s.Resolver.FetchTimeoutSec = defaults.Resolver.FetchTimeoutSec
	}
	if s.Encryption.KeyFile == "" {
		s.Encryption.KeyFile = defaults.Encryption.KeyFile
	}
	if s.LinkCheck.IntervalMinutes <= 0 {
		s.LinkCheck.IntervalMinutes = defaults.LinkCheck.IntervalMinutes
	}
	if s.LinkCheck.Concurrency <= 0 {
		s.LinkCheck.Concurrency = defaults.LinkCheck.Concurrency
	}
	if s.Log.File == "" {
		s.Log.File = defaults.Log.File
	}
	if s.Log.MaxSize <= 0 {
		s.Log.MaxSize = defaults.Log.MaxSize
	}
	if s.Log.MaxAge <= 0 {
		s.Log.MaxAge = defaults.Log.MaxAge
	}
	if s.Log.MaxBackups <= 0 {
		s.Log.MaxBackups = defaults.Log.MaxBackups
	}
}

// Save writes the settings atomically via a temp file rename.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, m.path)
}
