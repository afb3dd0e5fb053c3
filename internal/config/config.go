package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/hylla/metricops/internal/domain"
)

// Backend names one record log implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
)

// Config holds the full runtime configuration.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
	Identity IdentityConfig `toml:"identity"`
	Logging  LoggingConfig  `toml:"logging"`
}

type DatabaseConfig struct {
	Path    string  `toml:"path"`
	Backend Backend `toml:"backend"`
}

type ServerConfig struct {
	HTTPBind    string `toml:"http_bind"`
	APIEndpoint string `toml:"api_endpoint"`
	MCPEndpoint string `toml:"mcp_endpoint"`
}

// IdentityConfig supplies the CLI actor when no --actor flag is given.
type IdentityConfig struct {
	DefaultActor string `toml:"default_actor"`
	DefaultRole  string `toml:"default_role"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

// DevFileConfig controls the logfmt file sink used in dev mode.
type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

// Default returns the baseline configuration for one database path.
func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path:    dbPath,
			Backend: BackendSQLite,
		},
		Server: ServerConfig{
			HTTPBind:    "127.0.0.1:8080",
			APIEndpoint: "/api/v1",
			MCPEndpoint: "/mcp",
		},
		Identity: IdentityConfig{
			DefaultRole: string(domain.RoleContributor),
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".metricops/log",
			},
		},
	}
}

// Load reads path over defaults; a missing or empty file keeps the defaults.
func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Database.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database path is required")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid database.backend: %q", c.Database.Backend)
	}

	if strings.TrimSpace(c.Server.HTTPBind) == "" {
		return errors.New("server.http_bind is required")
	}
	api := "/" + strings.Trim(strings.TrimSpace(c.Server.APIEndpoint), "/")
	mcp := "/" + strings.Trim(strings.TrimSpace(c.Server.MCPEndpoint), "/")
	if api == mcp {
		return fmt.Errorf("server.api_endpoint and server.mcp_endpoint must differ: %q", api)
	}

	if _, err := domain.NewActor("config", domain.Role(c.Identity.DefaultRole)); err != nil {
		return fmt.Errorf("invalid identity.default_role: %q", c.Identity.DefaultRole)
	}

	if _, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(c.Logging.Level))); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}
	if c.Logging.DevFile.Enabled && strings.TrimSpace(c.Logging.DevFile.Dir) == "" {
		return errors.New("logging.dev_file.dir is required when enabled")
	}

	return nil
}

// ApplyEnv overlays METRICOPS_DB_PATH onto the loaded configuration.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("METRICOPS_DB_PATH")); v != "" {
		c.Database.Path = v
	}
}

// DevFileDir resolves the dev log directory relative to the working directory.
func (c Config) DevFileDir(workDir string) string {
	dir := strings.TrimSpace(c.Logging.DevFile.Dir)
	if dir == "" || filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(workDir, dir)
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
