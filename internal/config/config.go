// Package config loads service settings from config.toml, an optional .env
// file and environment variables, in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"diet-ledger/internal/advisor"
	"diet-ledger/internal/models"
	"diet-ledger/internal/storage"
)

type Config struct {
	Server  ServerConfig   `toml:"server"`
	Data    DataConfig     `toml:"data"`
	Catalog CatalogConfig  `toml:"catalog"`
	Profile models.Profile `toml:"profile"`
	Advisor AdvisorConfig  `toml:"advisor"`
	Log     LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Host    string `toml:"host"`
	Port    int    `toml:"port"`
	DevMode bool   `toml:"dev_mode"`
}

// DataConfig paths are relative to Dir unless absolute.
type DataConfig struct {
	Dir         string `toml:"dir"`
	CatalogFile string `toml:"catalog_file"`
	LedgerFile  string `toml:"ledger_file"`
	ProfileFile string `toml:"profile_file"`
	Backend     string `toml:"backend"`
}

type CatalogConfig struct {
	StrictNumbers bool `toml:"strict_numbers"`
}

type AdvisorConfig struct {
	Mode           string  `toml:"mode"`
	Endpoint       string  `toml:"endpoint"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Language       string  `toml:"language"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8011,
		},
		Data: DataConfig{
			Dir:         "data",
			CatalogFile: "foods.csv",
			LedgerFile:  "ledger.csv",
			ProfileFile: "profile.toml",
			Backend:     storage.BackendCSV,
		},
		Catalog: CatalogConfig{StrictNumbers: true},
		Profile: models.DefaultProfile(),
		Advisor: AdvisorConfig{
			Mode:           advisor.ModeOpenAI,
			Model:          "gpt-4o-mini",
			Temperature:    0.5,
			MaxTokens:      1200,
			TimeoutSeconds: 60,
			Language:       "English",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path (missing file means defaults), then .env and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}
	setInt := func(dst *int, key string) {
		if v, err := strconv.Atoi(getenv(key)); err == nil {
			*dst = v
		}
	}

	setString(&c.Server.Host, "DIET_HOST")
	setInt(&c.Server.Port, "DIET_PORT")
	setString(&c.Data.Dir, "DIET_DATA_DIR")
	setString(&c.Data.Backend, "DIET_STORAGE_BACKEND")
	setString(&c.Log.Level, "DIET_LOG_LEVEL")
	setString(&c.Advisor.Mode, "DIET_ADVISOR_MODE")
	setString(&c.Advisor.Language, "DIET_ADVISOR_LANGUAGE")

	switch c.Advisor.Mode {
	case advisor.ModeGateway:
		setString(&c.Advisor.Endpoint, "DIET_ADVISOR_ENDPOINT", "MCP_PROXY_URL")
		setString(&c.Advisor.APIKey, "DIET_ADVISOR_API_KEY", "MCP_PROXY_API_KEY")
		setString(&c.Advisor.Model, "DIET_ADVISOR_MODEL", "OPENROUTER_MODEL")
	default:
		setString(&c.Advisor.Endpoint, "DIET_ADVISOR_ENDPOINT")
		setString(&c.Advisor.APIKey, "DIET_ADVISOR_API_KEY", "OPENAI_API_KEY")
		setString(&c.Advisor.Model, "DIET_ADVISOR_MODEL")
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Data.Backend {
	case storage.BackendCSV, storage.BackendSQLite:
	default:
		return fmt.Errorf("invalid data backend %q", c.Data.Backend)
	}
	if err := c.Profile.Validate(); err != nil {
		return fmt.Errorf("default profile: %w", err)
	}
	return nil
}

func (c *Config) CatalogPath() string {
	return c.dataPath(c.Data.CatalogFile)
}

// LedgerPath switches the default file extension to .db for the sqlite backend.
func (c *Config) LedgerPath() string {
	name := c.Data.LedgerFile
	if c.Data.Backend == storage.BackendSQLite && filepath.Ext(name) == ".csv" {
		name = name[:len(name)-len(".csv")] + ".db"
	}
	return c.dataPath(name)
}

func (c *Config) ProfilePath() string {
	return c.dataPath(c.Data.ProfileFile)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) AdvisorConfig() advisor.Config {
	return advisor.Config{
		Mode:        c.Advisor.Mode,
		Endpoint:    c.Advisor.Endpoint,
		APIKey:      c.Advisor.APIKey,
		Model:       c.Advisor.Model,
		Temperature: c.Advisor.Temperature,
		MaxTokens:   c.Advisor.MaxTokens,
		Timeout:     time.Duration(c.Advisor.TimeoutSeconds) * time.Second,
		Language:    c.Advisor.Language,
	}
}

func (c *Config) dataPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Data.Dir, name)
}
