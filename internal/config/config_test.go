package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/licitaflow/stagegate/internal/domain"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Valid(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "stagegate.db")
	path := writeConfig(t, dir, `
[paths]
db_path = "`+filepath.ToSlash(dbPath)+`"

[server]
listen_addr = ":9900"

[logging]
level = "DEBUG"
format = "json"

[access]
allowed_units = ["  Gerência de Licitações  ", ""]

[calendar]
timezone = "UTC"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Paths.DBPath != dbPath {
		t.Errorf("DBPath = %q, want %q", cfg.Paths.DBPath, dbPath)
	}
	if cfg.Server.ListenAddr != ":9900" {
		t.Errorf("ListenAddr = %q, want :9900", cfg.Server.ListenAddr)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if len(cfg.Access.AllowedUnits) != 1 || cfg.Access.AllowedUnits[0] != "Gerência de Licitações" {
		t.Errorf("AllowedUnits = %q", cfg.Access.AllowedUnits)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Calendar.Timezone != "America/Sao_Paulo" {
		t.Errorf("Timezone = %q", cfg.Calendar.Timezone)
	}
	if cfg.Server.RateLimitPerMinute != 120 {
		t.Errorf("RateLimitPerMinute = %d, want 120", cfg.Server.RateLimitPerMinute)
	}
	if len(cfg.Access.AllowedUnits) != len(DefaultAllowedUnits) {
		t.Errorf("AllowedUnits = %q", cfg.Access.AllowedUnits)
	}
	if !filepath.IsAbs(cfg.Paths.DBPath) {
		t.Errorf("DBPath %q is not absolute", cfg.Paths.DBPath)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `[paths`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoad_ValidationProblems(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad level", "[logging]\nlevel = \"verbose\"\n", "logging.level"},
		{"bad format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"no units", "[access]\nallowed_units = []\n", "access.allowed_units"},
		{"negative rate limit", "[server]\nrate_limit_per_minute = -1\n", "server.rate_limit_per_minute"},
		{"bad timezone", "[calendar]\ntimezone = \"Mars/Olympus\"\n", "calendar.timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			if !errors.Is(err, domain.ErrConfigInvalid) {
				t.Fatalf("expected ErrConfigInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}

	var cfg Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("sample does not decode: %v", err)
	}
	if len(cfg.Access.AllowedUnits) != 4 {
		t.Errorf("sample lists %d units, want 4", len(cfg.Access.AllowedUnits))
	}

	if _, err := Load(path); err != nil {
		t.Errorf("sample does not validate: %v", err)
	}
}
