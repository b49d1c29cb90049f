package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/pelletier/go-toml/v2"

	"github.com/licitaflow/stagegate/internal/domain"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths holds filesystem locations.
type Paths struct {
	DBPath string `toml:"db_path"`
	LogDir string `toml:"log_dir"`
}

// Server holds HTTP API settings.
type Server struct {
	ListenAddr string `toml:"listen_addr"`

	// RateLimitPerMinute caps mutations per caller; 0 disables the limit.
	RateLimitPerMinute int `toml:"rate_limit_per_minute"`
}

// Logging holds logger settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Access lists the units with workflow-editing rights.
type Access struct {
	AllowedUnits []string `toml:"allowed_units"`
}

// Tools points at an optional tool catalog override.
type Tools struct {
	CatalogPath string `toml:"catalog_path"`
}

// Calendar holds the timezone used for civil dates.
type Calendar struct {
	Timezone string `toml:"timezone"`
}

// Config holds the runtime configuration.
type Config struct {
	Paths    Paths    `toml:"paths"`
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
	Access   Access   `toml:"access"`
	Tools    Tools    `toml:"tools"`
	Calendar Calendar `toml:"calendar"`
}

// DefaultAllowedUnits are the units with edit rights when none are configured.
var DefaultAllowedUnits = []string{
	"Gerência de Planejamento e Contratações",
	"Gerência de Licitações",
	"Gerência de Contratos",
	"Gerência de Administração",
}

// Default returns a configuration populated with defaults.
func Default() Config {
	units := make([]string, len(DefaultAllowedUnits))
	copy(units, DefaultAllowedUnits)
	return Config{
		Paths: Paths{
			DBPath: "~/.local/share/stagegate/stagegate.db",
			LogDir: "",
		},
		Server:   Server{ListenAddr: "127.0.0.1:9800", RateLimitPerMinute: 120},
		Logging:  Logging{Level: "info", Format: "console"},
		Access:   Access{AllowedUnits: units},
		Calendar: Calendar{Timezone: "America/Sao_Paulo"},
	}
}

// DefaultConfigPath returns the default location of the configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/stagegate/config.toml")
}

// Load reads a TOML config file over the defaults, normalizes and validates
// it. A missing file at an explicit path is not an error; the defaults are
// used. An empty path selects DefaultConfigPath.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return nil, err
		}
	}
	resolved, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config file: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DBPath, err = expandPath(strings.TrimSpace(c.Paths.DBPath)); err != nil {
		return fmt.Errorf("paths.db_path: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Tools.CatalogPath, err = expandPath(strings.TrimSpace(c.Tools.CatalogPath)); err != nil {
		return fmt.Errorf("tools.catalog_path: %w", err)
	}

	c.Server.ListenAddr = strings.TrimSpace(c.Server.ListenAddr)
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:9800"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Calendar.Timezone = strings.TrimSpace(c.Calendar.Timezone)
	if c.Calendar.Timezone == "" {
		c.Calendar.Timezone = "America/Sao_Paulo"
	}

	units := c.Access.AllowedUnits[:0]
	for _, u := range c.Access.AllowedUnits {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}
	c.Access.AllowedUnits = units
	return nil
}

func (c *Config) validate() error {
	var problems []string

	if c.Paths.DBPath == "" {
		problems = append(problems, "paths.db_path is required")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q is not console or json", c.Logging.Format))
	}
	if c.Server.RateLimitPerMinute < 0 {
		problems = append(problems, "server.rate_limit_per_minute must not be negative")
	}
	if len(c.Access.AllowedUnits) == 0 {
		problems = append(problems, "access.allowed_units must list at least one unit")
	}
	if _, err := time.LoadLocation(c.Calendar.Timezone); err != nil {
		problems = append(problems, fmt.Sprintf("calendar.timezone %q is not a known IANA zone", c.Calendar.Timezone))
	}

	if len(problems) > 0 {
		return &domain.EngineError{
			Code:    domain.ErrConfigInvalid.Code,
			Message: fmt.Sprintf("%s: %v", domain.ErrConfigInvalid.Message, problems),
		}
	}
	return nil
}

// CreateSample writes the sample configuration file to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(value string) (string, error) {
	if value == "" {
		return value, nil
	}
	if strings.HasPrefix(value, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if value == "~" {
			value = home
		} else if len(value) > 1 && (value[1] == '/' || value[1] == '\\') {
			value = filepath.Join(home, value[2:])
		}
	}
	abs, err := filepath.Abs(filepath.Clean(value))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", value, err)
	}
	return abs, nil
}
