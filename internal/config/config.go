package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"evcal/internal/model"
	"evcal/internal/store"
)

// Environment variables that override file values.
const (
	EnvConfig      = "EVCAL_CONFIG"
	EnvListen      = "EVCAL_LISTEN"
	EnvLogLevel    = "EVCAL_LOG_LEVEL"
	EnvStoreDriver = "EVCAL_STORE_DRIVER"
	EnvStorePath   = "EVCAL_STORE_PATH"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	// URL is the ICS endpoint; file:// is accepted for local exports.
	URL string `yaml:"url" json:"url"`
	// ID is used in logs and error reports.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StoreConfig selects the event store backend.
type StoreConfig struct {
	// Driver is "memory" (default) or "sqlite".
	Driver string `yaml:"driver" json:"driver"`
	// Path is the sqlite database file.
	Path string `yaml:"path" json:"path"`
}

type ScreenConfig struct {
	// ClearSelectionOnDelete drops the selection when the selected event is
	// deleted. Off by default: the stale selection stays and the next
	// submit becomes a no-op update.
	ClearSelectionOnDelete bool `yaml:"clear_selection_on_delete" json:"clear_selection_on_delete"`
}

// ImportConfig controls the scheduled ICS import.
type ImportConfig struct {
	// Cron is a standard 5-field schedule (e.g. "*/30 * * * *").
	Cron         string `yaml:"cron" json:"cron"`
	HorizonDays  int    `yaml:"horizon_days" json:"horizon_days"`
	BackfillDays int    `yaml:"backfill_days" json:"backfill_days"`
	// CacheDir keeps the last good body of each feed.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// ExportConfig describes the published /calendar.ics feed.
type ExportConfig struct {
	// Name is shown by subscribing clients.
	Name string `yaml:"name" json:"name"`
	// Domain scopes event UIDs. Changing it makes clients see new events.
	Domain string `yaml:"domain" json:"domain"`
}

// CaptureConfig controls the PNG preview of the screen page.
type CaptureConfig struct {
	// URL defaults to the local listen address.
	URL    string `yaml:"url" json:"url"`
	Output string `yaml:"output" json:"output"`
	Width  int    `yaml:"width" json:"width"`
	Height int    `yaml:"height" json:"height"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used for "today" and imported
	// occurrences (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Store  StoreConfig  `yaml:"store" json:"store"`
	Screen ScreenConfig `yaml:"screen" json:"screen"`

	// Seed is loaded into an empty store at startup.
	Seed []model.Draft `yaml:"seed" json:"seed"`

	// ICS is the list of subscribed ICS sources.
	ICS    []ICSConfig  `yaml:"ics" json:"ics"`
	Import ImportConfig `yaml:"import" json:"import"`

	Export  ExportConfig  `yaml:"export" json:"export"`
	Capture CaptureConfig `yaml:"capture" json:"capture"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cfg := &Config{
		Listen:    "127.0.0.1:8080",
		Timezone:  "Asia/Seoul",
		WeekStart: "monday",
		LogLevel:  "info",
		Store: StoreConfig{
			Driver: DriverMemory,
			Path:   "evcal.db",
		},
		Seed: store.DefaultSeed(),
		ICS: []ICSConfig{},
		Import: ImportConfig{
			Cron:        "*/30 * * * *",
			HorizonDays: 30,
		},
		Capture: CaptureConfig{
			Output: "preview.png",
		},
	}
	cfg.Normalize()
	return cfg
}

// Normalize replaces unknown or zero values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Seoul"
	}
	switch c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart)); c.WeekStart {
	case "monday", "sunday":
	default:
		c.WeekStart = "monday"
	}
	switch c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel)); c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}

	switch c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver)); c.Store.Driver {
	case DriverMemory, DriverSQLite:
	default:
		c.Store.Driver = DriverMemory
	}
	if c.Store.Path == "" {
		c.Store.Path = "evcal.db"
	}

	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = fmt.Sprintf("ics-%d", i+1)
		}
	}

	if c.Import.Cron == "" {
		c.Import.Cron = "*/30 * * * *"
	}
	if c.Import.HorizonDays <= 0 {
		c.Import.HorizonDays = 30
	}
	if c.Import.BackfillDays < 0 {
		c.Import.BackfillDays = 0
	}

	if c.Export.Name == "" {
		c.Export.Name = "evcal"
	}
	if c.Export.Domain == "" {
		c.Export.Domain = "evcal.local"
	}

	if c.Capture.URL == "" {
		c.Capture.URL = "http://" + localAddr(c.Listen) + "/"
	}
	if c.Capture.Output == "" {
		c.Capture.Output = "preview.png"
	}
}

// localAddr turns a listen address like ":8080" or "0.0.0.0:8080" into one a
// local client can dial.
func localAddr(listen string) string {
	host, port, ok := strings.Cut(listen, ":")
	if !ok {
		return listen
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return host + ":" + port
}

// SetListen changes the listen address. A capture URL derived from the old
// address follows the new one.
func (c *Config) SetListen(listen string) {
	if c.Capture.URL == "http://"+localAddr(c.Listen)+"/" {
		c.Capture.URL = ""
	}
	c.Listen = listen
	c.Normalize()
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// LoadEnv reads a .env file into the process environment when present.
// Variables already set in the environment win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// ApplyEnv overrides file values with EVCAL_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.SetListen(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	c.Normalize()
}

// Load reads the YAML file at path. On first run the file does not exist
// yet; the defaults are written there (0600) and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether an unwritable default is fatal.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename) with 0600
// permissions, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".evcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
