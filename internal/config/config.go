// Package config loads the hivepress configuration object.
//
// Sources are applied in order, each overriding the previous:
//  1. Default()
//  2. the --config file (YAML, or TOML by .toml extension)
//  3. a .env file (does not override variables already set)
//  4. HIVEPRESS_* environment variables
//
// Components receive a Config at construction and never read the
// environment themselves.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/roach88/hivepress/internal/bridge"
	"github.com/roach88/hivepress/internal/slug"
)

// Version is the hivepress release reported in json_metadata.
const Version = "0.1.0"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HIVEPRESS"

// Defaults.
const (
	DefaultNodeURL       = "https://api.hive.blog"
	DefaultTimeout       = 30 * time.Second
	DefaultReplyPageSize = 100
	MaxReplyPageSize     = 1000
	DefaultReplyRate     = 5.0
	DefaultTag           = "blog"
	DefaultFrontendURL   = "https://peakd.com"
	DefaultDatabase      = "hivepress.db"
)

// Beneficiary is the platform's default reward split.
type Beneficiary struct {
	Account string  `yaml:"account" toml:"account" envconfig:"ACCOUNT"`
	Percent float64 `yaml:"percent" toml:"percent" envconfig:"PERCENT"`
}

// Config is the explicit configuration injected into every component.
type Config struct {
	// Account is the operator's chain handle; every post is authored by it.
	Account string `yaml:"account" toml:"account" envconfig:"ACCOUNT"`

	// APIToken authenticates against a signing relay (optional).
	APIToken string `yaml:"api_token" toml:"api_token" envconfig:"API_TOKEN"`

	NodeURL string        `yaml:"node_url" toml:"node_url" envconfig:"NODE_URL"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout" envconfig:"TIMEOUT"`

	ReplyPageSize int     `yaml:"reply_page_size" toml:"reply_page_size" envconfig:"REPLY_PAGE_SIZE"`
	ReplyRate     float64 `yaml:"reply_rate" toml:"reply_rate" envconfig:"REPLY_RATE"`

	DefaultTag  string `yaml:"default_tag" toml:"default_tag" envconfig:"DEFAULT_TAG"`
	AppName     string `yaml:"app_name" toml:"app_name" envconfig:"APP_NAME"`
	SiteName    string `yaml:"site_name" toml:"site_name" envconfig:"SITE_NAME"`
	SiteURL     string `yaml:"site_url" toml:"site_url" envconfig:"SITE_URL"`
	FrontendURL string `yaml:"frontend_url" toml:"frontend_url" envconfig:"FRONTEND_URL"`

	Beneficiary Beneficiary `yaml:"beneficiary" toml:"beneficiary" envconfig:"BENEFICIARY"`

	// AutoApprove is the default approval policy for imported replies.
	AutoApprove bool `yaml:"auto_approve" toml:"auto_approve" envconfig:"AUTO_APPROVE"`

	// Database is a SQLite file path or a postgres:// DSN.
	Database string `yaml:"database" toml:"database" envconfig:"DATABASE"`

	// RedisAddr enables the shared per-post lock when set.
	RedisAddr string `yaml:"redis_addr" toml:"redis_addr" envconfig:"REDIS_ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		NodeURL:       DefaultNodeURL,
		Timeout:       DefaultTimeout,
		ReplyPageSize: DefaultReplyPageSize,
		ReplyRate:     DefaultReplyRate,
		DefaultTag:    DefaultTag,
		AppName:       "hivepress/" + Version,
		FrontendURL:   DefaultFrontendURL,
		Database:      DefaultDatabase,
	}
}

// LoadOptions selects the file sources for Load.
type LoadOptions struct {
	// File is the config file; empty skips the file layer.
	File string

	// EnvFile is the dotenv file; empty means ".env". A missing file is
	// not an error.
	EnvFile string
}

// Load builds a Config from defaults, file, dotenv and environment.
// The result is not validated; call Validate before using it for chain
// operations.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	if opts.File != "" {
		if err := decodeFile(opts.File, &cfg); err != nil {
			return Config{}, err
		}
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, bridge.NewConfigurationError("load %s: %v", envFile, err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, bridge.NewConfigurationError("environment: %v", err)
	}

	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return bridge.NewConfigurationError("read config file: %v", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return bridge.NewConfigurationError("parse %s: %v", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return bridge.NewConfigurationError("parse %s: unknown keys %v", path, undecoded)
		}
		return nil
	}

	// Strict decoding catches typos like "acount:".
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return bridge.NewConfigurationError("parse %s: %v", path, err)
	}
	return nil
}

// Validate checks the fields chain operations depend on.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Account) == "" {
		return bridge.NewConfigurationError("account is not configured")
	}
	if strings.TrimSpace(c.NodeURL) == "" {
		return bridge.NewConfigurationError("node_url is not configured")
	}
	if c.Timeout <= 0 {
		return bridge.NewConfigurationError("timeout must be positive, got %s", c.Timeout)
	}
	if c.ReplyPageSize < 0 || c.ReplyPageSize > MaxReplyPageSize {
		return bridge.NewConfigurationError("reply_page_size must be within [0, %d], got %d", MaxReplyPageSize, c.ReplyPageSize)
	}
	if slug.Tag(c.DefaultTag) == "" {
		return bridge.NewConfigurationError("default_tag %q has no usable characters", c.DefaultTag)
	}
	if c.Beneficiary.Percent < 0 || c.Beneficiary.Percent > 100 {
		return bridge.NewConfigurationError("beneficiary.percent must be within [0, 100], got %g", c.Beneficiary.Percent)
	}
	return nil
}

