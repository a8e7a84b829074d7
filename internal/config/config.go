// Package config loads and saves the ncopds configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"

	"github.com/ncopds/ncopds/internal/constants"
)

// Environment overrides. They may also come from a .env file.
const (
	EnvConfigPath    = "NCOPDS_CONFIG"
	EnvDownloadDir   = "NCOPDS_DOWNLOAD_DIR"
	EnvWorkers       = "NCOPDS_WORKERS"
	EnvLogLevel      = "NCOPDS_LOG_LEVEL"
	EnvProxyPassword = "NCOPDS_PROXY_PASSWORD"
)

// Proxy modes accepted in [proxy] mode.
const (
	ProxyModeNone   = "no-proxy"
	ProxyModeSystem = "system"
	ProxyModeBasic  = "basic"
	ProxyModeNTLM   = "ntlm"
)

// Connection is a named catalog server. Immutable once added.
type Connection struct {
	Name     string
	URL      string
	Username string
}

// Validate checks that the connection has a name and an absolute http(s) URL.
func (c Connection) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrMissingConnectionName
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: %s", ErrMissingConnectionURL, c.Name)
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidConnectionURL, c.URL)
	}
	return nil
}

// ProxyConfig describes how catalog requests reach the network.
type ProxyConfig struct {
	Mode string
	Host string
	Port int
	User string
	// Password is never written to disk; it comes from NCOPDS_PROXY_PASSWORD
	// or an interactive prompt.
	Password string
	NoProxy  string
}

// Config is the full application configuration.
//
// INI format:
//
//	[general]
//	download_directory = ~/Downloads/ncopds
//	workers = 4
//	requests_per_second = 0
//	notifications = true
//	refresh_interval = 0
//	log_level = info
//
//	[proxy]
//	mode = no-proxy
//
//	[connection "gutenberg"]
//	url = https://www.gutenberg.org/ebooks.opds/
//	username =
type Config struct {
	DownloadDirectory string
	Workers           int
	RequestsPerSecond float64
	Notifications     bool
	RefreshInterval   time.Duration
	LogLevel          string
	Proxy             ProxyConfig
	Connections       []Connection
}

// Validation errors
var (
	ErrInvalidWorkers        = fmt.Errorf("workers must be between %d and %d", constants.MinWorkers, constants.MaxWorkers)
	ErrInvalidRate           = errors.New("requests_per_second must not be negative")
	ErrMissingDownloadDir    = errors.New("download_directory is required")
	ErrMissingConnectionName = errors.New("connection name is required")
	ErrMissingConnectionURL  = errors.New("connection url is required")
	ErrInvalidConnectionURL  = errors.New("connection url must be an absolute http(s) URL")
	ErrDuplicateConnection   = errors.New("duplicate connection name")
	ErrUnknownConnection     = errors.New("unknown connection")
	ErrInvalidProxyMode      = errors.New("proxy mode must be one of no-proxy, system, basic, ntlm")
	ErrMissingProxyHost      = errors.New("proxy host is required for basic and ntlm modes")
)

// New returns a configuration with default values.
func New() *Config {
	return &Config{
		DownloadDirectory: DefaultDownloadDirectory(),
		Workers:           constants.DefaultWorkers,
		Notifications:     true,
		LogLevel:          "info",
		Proxy:             ProxyConfig{Mode: ProxyModeNone},
	}
}

// Load reads the INI file at path (DefaultConfigPath when empty) and applies
// environment overrides. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := New()

	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			cfg.applyEnv()
			return cfg, nil
		}
	}

	if _, err := os.Stat(path); err == nil {
		iniFile, err := ini.Load(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.readINI(iniFile); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config: %w", err)
	}

	cfg.applyEnv()
	cfg.DownloadDirectory = ExpandHome(cfg.DownloadDirectory)
	return cfg, nil
}

func (cfg *Config) readINI(f *ini.File) error {
	general := f.Section("general")
	cfg.DownloadDirectory = general.Key("download_directory").MustString(cfg.DownloadDirectory)
	cfg.Workers = general.Key("workers").MustInt(cfg.Workers)
	cfg.RequestsPerSecond = general.Key("requests_per_second").MustFloat64(0)
	cfg.Notifications = general.Key("notifications").MustBool(true)
	cfg.RefreshInterval = time.Duration(general.Key("refresh_interval").MustInt(0)) * time.Second
	cfg.LogLevel = general.Key("log_level").MustString(cfg.LogLevel)

	proxy := f.Section("proxy")
	cfg.Proxy.Mode = strings.ToLower(proxy.Key("mode").MustString(ProxyModeNone))
	cfg.Proxy.Host = proxy.Key("host").String()
	cfg.Proxy.Port = proxy.Key("port").MustInt(0)
	cfg.Proxy.User = proxy.Key("user").String()
	cfg.Proxy.NoProxy = proxy.Key("no_proxy").String()

	for _, section := range f.Sections() {
		name, ok := connectionName(section.Name())
		if !ok {
			continue
		}
		cfg.Connections = append(cfg.Connections, Connection{
			Name:     name,
			URL:      strings.TrimSpace(section.Key("url").String()),
			Username: strings.TrimSpace(section.Key("username").String()),
		})
	}
	return nil
}

func connectionSection(name string) string {
	return `connection "` + name + `"`
}

func connectionName(section string) (string, bool) {
	const prefix = `connection "`
	if !strings.HasPrefix(section, prefix) || !strings.HasSuffix(section, `"`) || len(section) <= len(prefix) {
		return "", false
	}
	return section[len(prefix) : len(section)-1], true
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvDownloadDir); v != "" {
		cfg.DownloadDirectory = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvProxyPassword); v != "" {
		cfg.Proxy.Password = v
	}
}

// LoadEnvFiles loads .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Save writes cfg to path (DefaultConfigPath when empty) atomically with
// owner-only permissions.
func Save(cfg *Config, path string) error {
	if path == "" {
		var err error
		path, err = DefaultConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	iniFile := ini.Empty()

	general, err := iniFile.NewSection("general")
	if err != nil {
		return fmt.Errorf("failed to create general section: %w", err)
	}
	general.Key("download_directory").SetValue(cfg.DownloadDirectory)
	general.Key("workers").SetValue(strconv.Itoa(cfg.Workers))
	general.Key("requests_per_second").SetValue(strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64))
	general.Key("notifications").SetValue(strconv.FormatBool(cfg.Notifications))
	general.Key("refresh_interval").SetValue(strconv.Itoa(int(cfg.RefreshInterval / time.Second)))
	general.Key("log_level").SetValue(cfg.LogLevel)

	proxy, err := iniFile.NewSection("proxy")
	if err != nil {
		return fmt.Errorf("failed to create proxy section: %w", err)
	}
	proxy.Key("mode").SetValue(cfg.Proxy.Mode)
	if cfg.Proxy.Host != "" {
		proxy.Key("host").SetValue(cfg.Proxy.Host)
		proxy.Key("port").SetValue(strconv.Itoa(cfg.Proxy.Port))
	}
	if cfg.Proxy.User != "" {
		proxy.Key("user").SetValue(cfg.Proxy.User)
	}
	if cfg.Proxy.NoProxy != "" {
		proxy.Key("no_proxy").SetValue(cfg.Proxy.NoProxy)
	}

	for _, c := range cfg.Connections {
		section, err := iniFile.NewSection(connectionSection(c.Name))
		if err != nil {
			return fmt.Errorf("failed to create connection section %s: %w", c.Name, err)
		}
		section.Key("url").SetValue(c.URL)
		if c.Username != "" {
			section.Key("username").SetValue(c.Username)
		}
	}

	tmpPath := path + ".tmp"
	if err := iniFile.SaveTo(tmpPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(tmpPath, 0600); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("failed to set config permissions: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

// Validate checks the whole configuration.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.DownloadDirectory) == "" {
		return ErrMissingDownloadDir
	}
	if cfg.Workers < constants.MinWorkers || cfg.Workers > constants.MaxWorkers {
		return ErrInvalidWorkers
	}
	if cfg.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}

	switch cfg.Proxy.Mode {
	case ProxyModeNone, ProxyModeSystem, "":
	case ProxyModeBasic, ProxyModeNTLM:
		if cfg.Proxy.Host == "" {
			return ErrMissingProxyHost
		}
	default:
		return ErrInvalidProxyMode
	}

	seen := make(map[string]bool, len(cfg.Connections))
	for _, c := range cfg.Connections {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateConnection, c.Name)
		}
		seen[c.Name] = true
	}
	return nil
}

// Connection looks up a connection by name.
func (cfg *Config) Connection(name string) (Connection, bool) {
	for _, c := range cfg.Connections {
		if c.Name == name {
			return c, true
		}
	}
	return Connection{}, false
}

// AddConnection appends a validated connection with a unique name.
func (cfg *Config) AddConnection(c Connection) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if _, exists := cfg.Connection(c.Name); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConnection, c.Name)
	}
	cfg.Connections = append(cfg.Connections, c)
	return nil
}

// RemoveConnection deletes a connection by name.
func (cfg *Config) RemoveConnection(name string) error {
	for i, c := range cfg.Connections {
		if c.Name == name {
			cfg.Connections = append(cfg.Connections[:i], cfg.Connections[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownConnection, name)
}

// NeedsProxyPassword reports whether an authenticated proxy is configured
// without a password, so the CLI should prompt for one.
func (cfg *Config) NeedsProxyPassword() bool {
	mode := cfg.Proxy.Mode
	if mode != ProxyModeBasic && mode != ProxyModeNTLM {
		return false
	}
	return cfg.Proxy.User != "" && cfg.Proxy.Password == ""
}
