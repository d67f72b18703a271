// Package config handles global configuration: the YAML config file, .env
// loading, environment overrides, and explorer style settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// GlobalConfig represents configuration stored in ~/.config/gx/config.yml.
type GlobalConfig struct {
	APIBaseURL string        `yaml:"api_base_url,omitempty" validate:"omitempty,url"`
	APIToken   string        `yaml:"api_token,omitempty"`
	RateLimit  float64       `yaml:"rate_limit,omitempty" validate:"gte=0"`
	Timeout    time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
	DBPath     string        `yaml:"db_path,omitempty"`
	Neo4j      Neo4jConfig   `yaml:"neo4j,omitempty"`
	Style      Style         `yaml:"style,omitempty"`
}

// Neo4jConfig holds connection settings for the Neo4j data source.
type Neo4jConfig struct {
	URI      string `yaml:"uri,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`
}

const (
	// GlobalConfigDir is the directory name under XDG_CONFIG_HOME and XDG_DATA_HOME.
	GlobalConfigDir = "gx"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yml"
	// DBFile is the SQLite file name under the data directory.
	DBFile = "gx.db"
)

// Defaults applied when neither the file nor the environment sets a value.
const (
	DefaultAPIBaseURL = "http://localhost:5000"
	DefaultRateLimit  = 10.0
	DefaultTimeout    = 30 * time.Second
)

// Environment variables that override the config file.
const (
	EnvAPIBaseURL    = "GX_API_BASE_URL"
	EnvAPIToken      = "GX_API_TOKEN"
	EnvDBPath        = "GX_DB_PATH"
	EnvNeo4jURI      = "GX_NEO4J_URI"
	EnvNeo4jUser     = "GX_NEO4J_USER"
	EnvNeo4jPassword = "GX_NEO4J_PASSWORD"
)

var validate = validator.New()

// globalConfigCache caches the loaded global config.
var globalConfigCache *GlobalConfig

// GlobalConfigPath returns the path to the global config file.
// Respects XDG_CONFIG_HOME, defaults to ~/.config/gx/config.yml.
func GlobalConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, GlobalConfigDir, GlobalConfigFile)
}

// DefaultDBPath returns $XDG_DATA_HOME/gx/gx.db, falling back to
// ~/.local/share/gx/gx.db.
func DefaultDBPath() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DBFile
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, GlobalConfigDir, DBFile)
}

// LoadEnv loads a .env file from the working directory (or the given files)
// into the process environment. A missing file is not an error.
func LoadEnv(files ...string) error {
	err := godotenv.Load(files...)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// LoadGlobalConfig loads the global configuration file, applies environment
// overrides and fills defaults. A missing file yields the defaults.
func LoadGlobalConfig() (*GlobalConfig, error) {
	if globalConfigCache != nil {
		return globalConfigCache, nil
	}

	var cfg GlobalConfig

	if path := GlobalConfigPath(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parsing global config: %w", err)
			}
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfigCache = &cfg
	return &cfg, nil
}

// ResetGlobalConfigCache clears the cached global config.
// Useful for testing.
func ResetGlobalConfigCache() {
	globalConfigCache = nil
}

// Validate checks field constraints.
func (c *GlobalConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid global config: %w", err)
	}
	return c.Style.Validate()
}

func (c *GlobalConfig) applyEnv() {
	c.APIBaseURL = GetConfigValue(EnvAPIBaseURL, c.APIBaseURL)
	c.APIToken = GetConfigValue(EnvAPIToken, c.APIToken)
	c.DBPath = GetConfigValue(EnvDBPath, c.DBPath)
	c.Neo4j.URI = GetConfigValue(EnvNeo4jURI, c.Neo4j.URI)
	c.Neo4j.Username = GetConfigValue(EnvNeo4jUser, c.Neo4j.Username)
	c.Neo4j.Password = GetConfigValue(EnvNeo4jPassword, c.Neo4j.Password)
}

func (c *GlobalConfig) applyDefaults() {
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	} else {
		c.DBPath = ExpandTilde(c.DBPath)
	}
	c.Style = c.Style.withDefaults()
}

// GetConfigValue returns the environment variable if set, otherwise the
// config value.
func GetConfigValue(envKey, configValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return configValue
}

// ExpandTilde expands a leading ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandTilde(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
