package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// FileName is the config file at the repository root.
const FileName = "fintrack.yaml"

// Store drivers.
const (
	DriverLedger   = "ledger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the top-level fintrack.yaml configuration.
type Config struct {
	User           string       `yaml:"user"`
	Currency       string       `yaml:"currency"`
	DefaultAccount string       `yaml:"default_account,omitempty"`
	Store          StoreConfig  `yaml:"store"`
	Server         ServerConfig `yaml:"server"`
	Log            LogConfig    `yaml:"log"`
	Import         ImportConfig `yaml:"import"`
	Git            GitConfig    `yaml:"git"`
}

// StoreConfig selects where imported transactions are kept.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path,omitempty"` // sqlite file, relative to the repo
	DSN    string `yaml:"dsn,omitempty"`  // postgres
	LogSQL bool   `yaml:"log_sql,omitempty"`
}

// ServerConfig configures `fintrack serve`.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format,omitempty"` // console or json; commands pick when empty
}

// ImportConfig holds defaults for imports.
type ImportConfig struct {
	Dir            string               `yaml:"dir"`
	DateFormat     string               `yaml:"date_format,omitempty"`
	SignConvention model.SignConvention `yaml:"sign_convention"`
	ProfilesFile   string               `yaml:"profiles_file,omitempty"`
	RulesFile      string               `yaml:"rules_file,omitempty"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit"`
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Load reads a fintrack.yaml file from disk.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "", DriverLedger, DriverSQLite, DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for driver %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.Import.SignConvention != "" && !c.Import.SignConvention.Valid() {
		return fmt.Errorf("config: unknown sign_convention %q", c.Import.SignConvention)
	}
	return nil
}

// Default returns a Config with sensible defaults for a new repository.
func Default(user string) *Config {
	return &Config{
		User:           user,
		Currency:       model.DefaultCurrency,
		DefaultAccount: "chequing",
		Store: StoreConfig{
			Driver: DriverLedger,
			Path:   "fintrack.db",
		},
		Server: ServerConfig{
			Address: "127.0.0.1:8080",
		},
		Log: LogConfig{
			Level: "info",
		},
		Import: ImportConfig{
			Dir:            "import",
			SignConvention: model.SignPositiveIncome,
			ProfilesFile:   "rules/import-profiles.yaml",
			RulesFile:      "rules/categorization-rules.yaml",
		},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "fintrack",
			AuthorEmail: "fintrack@localhost",
		},
	}
}
