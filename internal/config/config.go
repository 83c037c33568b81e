// Package config holds the pipeline configuration. A Config is constructed
// once at startup and passed into each stage constructor; stages never read
// configuration from globals.
package config

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full configuration surface of the pipeline.
type Config struct {
	// Paths.
	XMLInputPath   string `mapstructure:"xml_input_path"`
	JSONOutputPath string `mapstructure:"json_output_path"`
	LogFilePath    string `mapstructure:"log_file_path"`
	DeadLetterPath string `mapstructure:"dead_letter_path"`
	DatabasePath   string `mapstructure:"database_path"`
	AuditLogPath   string `mapstructure:"audit_log_path"`

	// Processing.
	BatchSize     int     `mapstructure:"batch_size"`
	SnapshotLimit int     `mapstructure:"snapshot_limit"` // max transactions in the dashboard snapshot
	MinAmount     float64 `mapstructure:"min_amount"`
	MaxAmount     float64 `mapstructure:"max_amount"`

	// Phone normalization.
	CountryPrefix string   `mapstructure:"country_prefix"` // digits only, e.g. "256"
	PhoneLength   int      `mapstructure:"phone_length"`   // local format length including trunk zero
	PhonePatterns []string `mapstructure:"phone_patterns"`

	// Date parsing candidates, tried in order after the flexible layouts.
	DateLayouts []string `mapstructure:"date_layouts"`

	// Category rules file; empty means the built-in rule table.
	RulesPath string `mapstructure:"rules_path"`

	// Read API.
	APIAddr string `mapstructure:"api_addr"`
}

// MinAmountDecimal returns the lower amount threshold as a decimal.
func (c *Config) MinAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MinAmount)
}

// MaxAmountDecimal returns the upper amount threshold as a decimal.
func (c *Config) MaxAmountDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.MaxAmount)
}

// SetDefaults configures default values for every recognized option.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("xml_input_path", "data/raw/momo.xml")
	v.SetDefault("json_output_path", "data/processed/dashboard.json")
	v.SetDefault("log_file_path", "data/logs/etl.log")
	v.SetDefault("dead_letter_path", "data/logs/dead_letter")
	v.SetDefault("database_path", "data/db.sqlite3")
	v.SetDefault("audit_log_path", "data/logs/run_history.csv")

	v.SetDefault("batch_size", 1000)
	v.SetDefault("snapshot_limit", 1000)
	v.SetDefault("min_amount", 0.01)
	v.SetDefault("max_amount", 1000000)

	v.SetDefault("country_prefix", "256")
	v.SetDefault("phone_length", 10)
	v.SetDefault("phone_patterns", []string{
		`^\+256\d{9}$`, // international format
		`^256\d{9}$`,   // international without plus
		`^0\d{9}$`,     // local format with trunk zero
		`^\d{9}$`,      // bare subscriber number
	})

	v.SetDefault("date_layouts", []string{
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02/01/2006 15:04:05",
		"02/01/2006",
		"01/02/2006 15:04:05",
		"01/02/2006",
	})

	v.SetDefault("rules_path", "")
	v.SetDefault("api_addr", ":8000")
}

// Load builds a Config from defaults, an optional config file, and MOMO_*
// environment variables, in increasing precedence.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the pipeline depends on. A violation here is
// fatal before any run begins.
func (c *Config) Validate() error {
	if c.XMLInputPath == "" {
		return fmt.Errorf("config: xml_input_path is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("config: database_path is required")
	}
	if c.DeadLetterPath == "" {
		return fmt.Errorf("config: dead_letter_path is required")
	}
	if c.MinAmount <= 0 {
		return fmt.Errorf("config: min_amount must be positive, got %v", c.MinAmount)
	}
	if c.MaxAmount <= c.MinAmount {
		return fmt.Errorf("config: max_amount (%v) must exceed min_amount (%v)", c.MaxAmount, c.MinAmount)
	}
	if c.CountryPrefix == "" || strings.HasPrefix(c.CountryPrefix, "+") {
		return fmt.Errorf("config: country_prefix must be bare digits, got %q", c.CountryPrefix)
	}
	if c.SnapshotLimit <= 0 {
		return fmt.Errorf("config: snapshot_limit must be positive, got %d", c.SnapshotLimit)
	}
	return nil
}
