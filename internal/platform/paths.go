// Package platform resolves per-user config and data locations.
package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// AppName is the directory and database stem used for every platform path.
const AppName = "metricops"

// Environment variables that override resolved locations.
const (
	EnvConfigPath = "METRICOPS_CONFIG"
	EnvDBPath     = "METRICOPS_DB_PATH"
	EnvDevMode    = "METRICOPS_DEV_MODE"
)

// Paths holds the resolved config file, data directory, and database file.
type Paths struct {
	ConfigPath string `json:"config_path" yaml:"config_path"`
	DataDir    string `json:"data_dir" yaml:"data_dir"`
	DBPath     string `json:"db_path" yaml:"db_path"`
}

// Options selects the app directory; DevMode appends a "-dev" suffix.
type Options struct {
	AppName string
	DevMode bool
}

// DefaultPaths returns production paths for the current user.
func DefaultPaths() (Paths, error) {
	return DefaultPathsWithOptions(Options{AppName: AppName})
}

// DefaultPathsWithOptions resolves paths from the OS user dirs and XDG-style env vars.
func DefaultPathsWithOptions(opts Options) (Paths, error) {
	appName := appDirName(opts)

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("user config dir: %w", err)
	}
	dataDir := configDir
	switch runtime.GOOS {
	case "linux":
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return Paths{}, fmt.Errorf("user home dir: %w", homeErr)
		}
		dataDir = filepath.Join(home, ".local", "share")
	case "windows":
		if v := strings.TrimSpace(os.Getenv("LOCALAPPDATA")); v != "" {
			dataDir = v
		}
	}

	env := map[string]string{
		"XDG_CONFIG_HOME": os.Getenv("XDG_CONFIG_HOME"),
		"XDG_DATA_HOME":   os.Getenv("XDG_DATA_HOME"),
		"APPDATA":         os.Getenv("APPDATA"),
		"LOCALAPPDATA":    os.Getenv("LOCALAPPDATA"),
	}
	return PathsFor(runtime.GOOS, env, configDir, dataDir, appName)
}

// PathsFor builds paths for one platform from explicit base dirs and env values.
func PathsFor(goos string, env map[string]string, userConfigDir, userDataDir, appName string) (Paths, error) {
	if userConfigDir == "" || userDataDir == "" {
		return Paths{}, fmt.Errorf("empty base dirs")
	}
	appName = strings.TrimSpace(appName)
	if appName == "" {
		return Paths{}, fmt.Errorf("empty app name")
	}

	configBase := userConfigDir
	dataBase := userDataDir
	switch goos {
	case "linux":
		if v := env["XDG_CONFIG_HOME"]; v != "" {
			configBase = v
		}
		if v := env["XDG_DATA_HOME"]; v != "" {
			dataBase = v
		}
	case "windows":
		if v := env["APPDATA"]; v != "" {
			configBase = v
		}
		if v := env["LOCALAPPDATA"]; v != "" {
			dataBase = v
		}
	}

	appDataDir := filepath.Join(dataBase, appName)
	return Paths{
		ConfigPath: filepath.Join(configBase, appName, "config.toml"),
		DataDir:    appDataDir,
		DBPath:     filepath.Join(appDataDir, appName+".db"),
	}, nil
}

// WithEnvOverrides applies METRICOPS_CONFIG and METRICOPS_DB_PATH on top of p.
func (p Paths) WithEnvOverrides(getenv func(string) string) Paths {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv(EnvConfigPath)); v != "" {
		p.ConfigPath = v
	}
	if v := strings.TrimSpace(getenv(EnvDBPath)); v != "" {
		p.DBPath = v
		p.DataDir = filepath.Dir(v)
	}
	return p
}

// DevModeFromEnv reports whether METRICOPS_DEV_MODE holds a true boolean.
func DevModeFromEnv(getenv func(string) string) bool {
	if getenv == nil {
		getenv = os.Getenv
	}
	v, err := strconv.ParseBool(strings.TrimSpace(getenv(EnvDevMode)))
	return err == nil && v
}

func appDirName(opts Options) string {
	name := strings.TrimSpace(opts.AppName)
	if name == "" {
		name = AppName
	}
	if opts.DevMode {
		name += "-dev"
	}
	return name
}
