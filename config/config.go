/*
Package config loads server and engine configuration.

PRECEDENCE (lowest first):
  1. Built-in defaults
  2. TOML file named by TAXENGINE_CONFIG
  3. Environment variables (a .env file in the working directory is loaded
     first if present)

ENVIRONMENT:
  TAXENGINE_PORT        HTTP port (8080)
  TAXENGINE_DB          SQLite path (taxengine.db), ":memory:" for tests,
                        "memory" for the server's process-local archive
  TAXENGINE_LOG_LEVEL   debug | info | warn | error (info)
  TAXENGINE_LOG_PRETTY  console output instead of JSON (false)
  TAXENGINE_TAX_YEAR    default tax year for requests that name none (2024/25)
  TAXENGINE_CONFIG      optional TOML file

TOML FILE:
  [server]
  port = 8080
  database = "taxengine.db"
  log_level = "info"
  log_pretty = false

  [engine]
  tax_year = "2024/25"

  [engine.elections]
  property_income = "auto"
  pension_carry_forward = "on"

  The tax year and elections are validated here, so a bad configuration
  stops the process at startup rather than failing every request.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/warp/tax-engine/relief"
	"github.com/warp/tax-engine/ruleset"
)

// Config holds application configuration
type Config struct {
	Port         int
	DatabasePath string
	LogLevel     string
	LogPretty    bool
	TaxYear      string
	Elections    map[string]string
	ConfigFile   string
}

type fileConfig struct {
	Server struct {
		Port      int    `toml:"port"`
		Database  string `toml:"database"`
		LogLevel  string `toml:"log_level"`
		LogPretty *bool  `toml:"log_pretty"`
	} `toml:"server"`
	Engine struct {
		TaxYear   string            `toml:"tax_year"`
		Elections map[string]string `toml:"elections"`
	} `toml:"engine"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Port:         8080,
		DatabasePath: "taxengine.db",
		LogLevel:     "info",
		TaxYear:      ruleset.DefaultTaxYear,
		Elections:    map[string]string{},
	}
}

// Load reads configuration from the optional TOML file and the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("TAXENGINE_CONFIG"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyFile overlays a TOML file onto cfg.
func (c *Config) ApplyFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("failed to parse TOML config %s: %w", path, err)
	}
	c.ConfigFile = path
	c.apply(fc)
	return nil
}

// ApplyString overlays TOML text onto cfg.
func (c *Config) ApplyString(doc string) error {
	var fc fileConfig
	if _, err := toml.Decode(doc, &fc); err != nil {
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}
	c.apply(fc)
	return nil
}

func (c *Config) apply(fc fileConfig) {
	if fc.Server.Port != 0 {
		c.Port = fc.Server.Port
	}
	if fc.Server.Database != "" {
		c.DatabasePath = fc.Server.Database
	}
	if fc.Server.LogLevel != "" {
		c.LogLevel = fc.Server.LogLevel
	}
	if fc.Server.LogPretty != nil {
		c.LogPretty = *fc.Server.LogPretty
	}
	if fc.Engine.TaxYear != "" {
		c.TaxYear = fc.Engine.TaxYear
	}
	for k, v := range fc.Engine.Elections {
		c.Elections[k] = v
	}
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("TAXENGINE_PORT", c.Port)
	c.DatabasePath = getEnv("TAXENGINE_DB", c.DatabasePath)
	c.LogLevel = getEnv("TAXENGINE_LOG_LEVEL", c.LogLevel)
	c.LogPretty = getEnvAsBool("TAXENGINE_LOG_PRETTY", c.LogPretty)
	c.TaxYear = getEnv("TAXENGINE_TAX_YEAR", c.TaxYear)
}

// Validate checks if required configuration is present and usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("TAXENGINE_DB is required")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if _, err := ruleset.Load(c.TaxYear); err != nil {
		return fmt.Errorf("tax year: %w", err)
	}
	if _, err := relief.ParseElections(c.Elections); err != nil {
		return fmt.Errorf("elections: %w", err)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
