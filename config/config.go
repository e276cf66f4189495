// Package config loads the server configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/asaidimu/go-plane/core/query"
)

// DefaultPath is the configuration file read when no --config flag is given.
const DefaultPath = "plane.toml"

// Config is the server configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Log        LogConfig        `toml:"log"`
	Pagination PaginationConfig `toml:"pagination"`
	Grouping   GroupingConfig   `toml:"grouping"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Address is the listen address, e.g. ":8000".
	Address string `toml:"address"`
	// Mode is the gin mode: debug, release or test.
	Mode string `toml:"mode"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	// Path is a file path or ":memory:".
	Path string `toml:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `toml:"level"`
	Development bool   `toml:"development"`
}

// PaginationConfig bounds page sizes.
type PaginationConfig struct {
	DefaultPerPage int `toml:"default_per_page"`
	MaxPerPage     int `toml:"max_per_page"`
}

// GroupingConfig tunes grouped issue lists.
type GroupingConfig struct {
	// CountFilter holds issue filter parameters, written the way a client
	// would send them, that narrow the total reported for each group.
	// Example:
	//
	//	[grouping.count_filter]
	//	state_group = "backlog,unstarted,started"
	CountFilter map[string]string `toml:"count_filter"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	pages := query.DefaultPageSettings()
	return &Config{
		Server:   ServerConfig{Address: ":8000", Mode: gin.ReleaseMode},
		Database: DatabaseConfig{Path: "plane.db"},
		Log:      LogConfig{Level: "info"},
		Pagination: PaginationConfig{
			DefaultPerPage: pages.DefaultPerPage,
			MaxPerPage:     pages.MaxPerPage,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, cfg.Validate()
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate resets out-of-range page sizes to their defaults and rejects
// values that cannot be used.
func (c *Config) Validate() error {
	def := Default()
	if c.Server.Address == "" {
		c.Server.Address = def.Server.Address
	}
	switch c.Server.Mode {
	case "":
		c.Server.Mode = def.Server.Mode
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		return fmt.Errorf("server.mode %q is not one of debug, release, test", c.Server.Mode)
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Pagination.MaxPerPage <= 0 {
		c.Pagination.MaxPerPage = def.Pagination.MaxPerPage
	}
	if c.Pagination.DefaultPerPage <= 0 || c.Pagination.DefaultPerPage > c.Pagination.MaxPerPage {
		c.Pagination.DefaultPerPage = min(def.Pagination.DefaultPerPage, c.Pagination.MaxPerPage)
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil && c.Log.Level != "" {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// PageSettings returns the page size bounds of list endpoints.
func (c *Config) PageSettings() query.PageSettings {
	return query.PageSettings{
		DefaultPerPage: c.Pagination.DefaultPerPage,
		MaxPerPage:     c.Pagination.MaxPerPage,
	}
}

// CountFilter builds the per-group count filter from the configured
// parameters. It is nil when none are configured.
func (c *Config) CountFilter() *query.QueryFilter {
	if len(c.Grouping.CountFilter) == 0 {
		return nil
	}
	params := url.Values{}
	for k, v := range c.Grouping.CountFilter {
		params.Set(k, v)
	}
	return query.BuildFilters(params, query.IssueFilterFields)
}

// Logger builds the zap logger the configuration describes.
func (c *Config) Logger() (*zap.Logger, error) {
	var zc zap.Config
	if c.Log.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "timestamp"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if c.Log.Level != "" {
		level, err := zap.ParseAtomicLevel(c.Log.Level)
		if err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
		zc.Level = level
	}
	return zc.Build()
}
