package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
)

// TimeFormatRelative renders timestamps as "3 minutes ago" instead of a layout.
const TimeFormatRelative = "relative"

// Config holds application configuration.
type Config struct {
	// StorageKey is the name of the backing slot holding the serialized notes
	StorageKey string `json:"storage_key" yaml:"storage_key"`

	// Backend selects the key-value store: "sqlite" (default) or "file".
	// The file backend keeps one JSON file per slot and supports watching.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// TimeFormat is a Go time layout for list timestamps, or "relative".
	TimeFormat string `json:"time_format,omitempty" yaml:"time_format,omitempty"`

	// SavedNoticeMillis is how long the "saved" notice stays visible.
	SavedNoticeMillis int `json:"saved_notice_ms,omitempty" yaml:"saved_notice_ms,omitempty"`

	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty" yaml:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	// 0 means use sql.DB default. Typically set equal to DBMaxOpenConns.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty" yaml:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty" yaml:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StorageKey:        "webMemoApp.notes",
		Backend:           BackendSQLite,
		TimeFormat:        "2006/01/02 15:04",
		SavedNoticeMillis: 1500,
		LogLevel:          "warn",
	}
}

// SavedNoticeDelay returns SavedNoticeMillis as a duration.
func (c *Config) SavedNoticeDelay() time.Duration {
	return time.Duration(c.SavedNoticeMillis) * time.Millisecond
}

// Load loads configuration from baseDir/config.json (or config.yaml).
// Returns default config if neither file exists.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.memo.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(configPath(baseDir))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// LoadWithRepo loads configuration from both global (~/.memo) and repo (.memo) directories.
// Repo config is found by walking upward from startDir to find the nearest .memo directory
// holding a config file. Repo config takes precedence for scalar values; arrays are merged.
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(configPath(globalDir))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then repo
	return Merge(Merge(DefaultConfig(), global), repo), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .memo config file.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		if path := configPath(filepath.Join(dir, ".memo")); path != "" {
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// configPath returns the config file in dir, preferring config.json over config.yaml.
// When neither exists, the config.json path is returned.
func configPath(dir string) string {
	jsonPath := filepath.Join(dir, "config.json")
	if _, err := os.Stat(jsonPath); err == nil {
		return jsonPath
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return yamlPath
	}
	return jsonPath
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.StorageKey = firstNonEmpty(strings.TrimSpace(overlay.StorageKey), base.StorageKey)
	result.Backend = firstNonEmpty(strings.ToLower(strings.TrimSpace(overlay.Backend)), base.Backend)
	result.TimeFormat = firstNonEmpty(overlay.TimeFormat, base.TimeFormat)
	result.LogLevel = firstNonEmpty(strings.TrimSpace(overlay.LogLevel), base.LogLevel)

	result.SavedNoticeMillis = overlay.SavedNoticeMillis
	if result.SavedNoticeMillis == 0 {
		result.SavedNoticeMillis = base.SavedNoticeMillis
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
