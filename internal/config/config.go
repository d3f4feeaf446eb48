// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Oracle    OracleConfig    `mapstructure:"oracle" yaml:"oracle"`
	Evolution EvolutionConfig `mapstructure:"evolution" yaml:"evolution"`
	Journal   JournalConfig   `mapstructure:"journal" yaml:"journal"`
	Archive   ArchiveConfig   `mapstructure:"archive" yaml:"archive"`
	Watcher   WatcherConfig   `mapstructure:"watcher" yaml:"watcher"`
	VCS       VCSConfig       `mapstructure:"vcs" yaml:"vcs"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// OracleProvider enumerates the supported oracle backends.
type OracleProvider string

const (
	ProviderGeminiHTTP OracleProvider = "gemini_http"
	ProviderGenAI      OracleProvider = "genai"
)

// OracleModelConfig defines the configuration for a single oracle provider.
type OracleModelConfig struct {
	Provider   OracleProvider `mapstructure:"provider" yaml:"provider"`
	Model      string         `mapstructure:"model" yaml:"model"`
	APIKey     string         `mapstructure:"api_key" yaml:"-"`
	Endpoint   string         `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout time.Duration  `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetries int            `mapstructure:"max_retries" yaml:"max_retries"`
}

// OracleConfig configures the oracle router. Proposer and Evaluator name
// entries in Models; the dual-review gate requires them to be distinct so a
// single sycophantic backend cannot approve its own suggestion.
type OracleConfig struct {
	Proposer  string                       `mapstructure:"proposer" yaml:"proposer"`
	Evaluator string                       `mapstructure:"evaluator" yaml:"evaluator"`
	Models    map[string]OracleModelConfig `mapstructure:"models" yaml:"models"`
	// RateLimit caps outbound oracle calls per second across all providers.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// EvolutionConfig carries the pipeline's tunable thresholds. The defaults
// reproduce the historically used constants; none of them is a hard
// invariant, which is why they live here instead of the code.
type EvolutionConfig struct {
	TargetFiles []string `mapstructure:"target_files" yaml:"target_files"`

	FitnessWeight float64 `mapstructure:"fitness_weight" yaml:"fitness_weight"`
	NoveltyWeight float64 `mapstructure:"novelty_weight" yaml:"novelty_weight"`

	ConfidenceCutoff float64 `mapstructure:"confidence_cutoff" yaml:"confidence_cutoff"`
	NoveltyFloor     float64 `mapstructure:"novelty_floor" yaml:"novelty_floor"`

	FunctionCountFloor float64 `mapstructure:"function_count_floor" yaml:"function_count_floor"`
	SizeDeltaBound     float64 `mapstructure:"size_delta_bound" yaml:"size_delta_bound"`

	ReviewScoreFloor float64       `mapstructure:"review_score_floor" yaml:"review_score_floor"`
	OracleTimeout    time.Duration `mapstructure:"oracle_timeout" yaml:"oracle_timeout"`

	// MinAnchorLength is the minimum normalized length of a snippet's first
	// line before the anchor matching tier may use it alone.
	MinAnchorLength int `mapstructure:"min_anchor_length" yaml:"min_anchor_length"`

	CycleInterval   time.Duration `mapstructure:"cycle_interval" yaml:"cycle_interval"`
	RepairInterval  time.Duration `mapstructure:"repair_interval" yaml:"repair_interval"`
	PatternInterval time.Duration `mapstructure:"pattern_interval" yaml:"pattern_interval"`

	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`
}

// JournalConfig configures the evolution log.
type JournalConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	MaxEntries int    `mapstructure:"max_entries" yaml:"max_entries"`
}

// ArchiveConfig configures the novelty archive.
type ArchiveConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	Capacity   int    `mapstructure:"capacity" yaml:"capacity"`
	KNeighbors int    `mapstructure:"k_neighbors" yaml:"k_neighbors"`
}

// WatcherConfig configures the weakness watcher side-cycle input.
type WatcherConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	LogPath string `mapstructure:"log_path" yaml:"log_path"`
}

// VCSConfig configures the optional git trail for committed mutations.
type VCSConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	RepoPath    string `mapstructure:"repo_path" yaml:"repo_path"`
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
}

// DefaultConfigDir resolves the per-user configuration directory.
func DefaultConfigDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".seed")
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "living-seed")
	v.SetDefault("logger.log_file", "seed.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Oracle --
	v.SetDefault("oracle.proposer", "proposer")
	v.SetDefault("oracle.evaluator", "evaluator")
	v.SetDefault("oracle.rate_limit", 1.0)
	v.SetDefault("oracle.rate_burst", 2)
	v.SetDefault("oracle.models.proposer.provider", "gemini_http")
	v.SetDefault("oracle.models.proposer.model", "gemini-2.5-pro")
	v.SetDefault("oracle.models.proposer.api_timeout", "90s")
	v.SetDefault("oracle.models.proposer.max_retries", 3)
	v.SetDefault("oracle.models.evaluator.provider", "genai")
	v.SetDefault("oracle.models.evaluator.model", "gemini-2.5-flash")
	v.SetDefault("oracle.models.evaluator.api_timeout", "60s")
	v.SetDefault("oracle.models.evaluator.max_retries", 2)

	// -- Evolution --
	v.SetDefault("evolution.fitness_weight", 0.6)
	v.SetDefault("evolution.novelty_weight", 0.4)
	v.SetDefault("evolution.confidence_cutoff", 0.7)
	v.SetDefault("evolution.novelty_floor", 0.1)
	v.SetDefault("evolution.function_count_floor", 0.8)
	v.SetDefault("evolution.size_delta_bound", 0.2)
	v.SetDefault("evolution.review_score_floor", 7.0)
	v.SetDefault("evolution.oracle_timeout", "2m")
	v.SetDefault("evolution.min_anchor_length", 10)
	v.SetDefault("evolution.cycle_interval", "5m")
	v.SetDefault("evolution.repair_interval", "10m")
	v.SetDefault("evolution.pattern_interval", "30m")
	v.SetDefault("evolution.dry_run", false)

	// -- Journal / Archive --
	v.SetDefault("journal.path", filepath.Join(DefaultConfigDir(), "evolution_log.json"))
	v.SetDefault("journal.max_entries", 500)
	v.SetDefault("archive.path", filepath.Join(DefaultConfigDir(), "novelty_archive.json"))
	v.SetDefault("archive.capacity", 200)
	v.SetDefault("archive.k_neighbors", 5)

	// -- Watcher --
	v.SetDefault("watcher.enabled", false)
	v.SetDefault("watcher.log_path", "seed.log")

	// -- VCS --
	v.SetDefault("vcs.enabled", false)
	v.SetDefault("vcs.repo_path", ".")
	v.SetDefault("vcs.author_name", "living-seed")
	v.SetDefault("vcs.author_email", "seed@localhost")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	_ = v.BindEnv("oracle.models.proposer.api_key", "SEED_ORACLE_PROPOSER_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("oracle.models.evaluator.api_key", "SEED_ORACLE_EVALUATOR_KEY", "GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Unmarshal does not always pick up bound env vars inside maps.
	for name, m := range cfg.Oracle.Models {
		if m.APIKey == "" {
			if key := os.Getenv("GEMINI_API_KEY"); key != "" {
				m.APIKey = key
				cfg.Oracle.Models[name] = m
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.Evolution.Validate(); err != nil {
		return fmt.Errorf("evolution configuration invalid: %w", err)
	}
	if c.Journal.MaxEntries <= 0 {
		return fmt.Errorf("journal.max_entries must be a positive integer")
	}
	if c.Archive.Capacity <= 0 {
		return fmt.Errorf("archive.capacity must be a positive integer")
	}
	if c.Archive.KNeighbors <= 0 {
		return fmt.Errorf("archive.k_neighbors must be a positive integer")
	}
	if c.Oracle.Proposer == c.Oracle.Evaluator {
		return fmt.Errorf("oracle.proposer and oracle.evaluator must name distinct providers")
	}
	if _, ok := c.Oracle.Models[c.Oracle.Proposer]; !ok {
		return fmt.Errorf("oracle.models is missing the proposer entry %q", c.Oracle.Proposer)
	}
	if _, ok := c.Oracle.Models[c.Oracle.Evaluator]; !ok {
		return fmt.Errorf("oracle.models is missing the evaluator entry %q", c.Oracle.Evaluator)
	}
	return nil
}

// Validate checks the EvolutionConfig settings.
func (e *EvolutionConfig) Validate() error {
	if e.FitnessWeight < 0 || e.NoveltyWeight < 0 {
		return fmt.Errorf("fitness_weight and novelty_weight must be non-negative")
	}
	if e.FitnessWeight+e.NoveltyWeight == 0 {
		return fmt.Errorf("fitness_weight and novelty_weight must not both be zero")
	}
	if e.ConfidenceCutoff < 0.0 || e.ConfidenceCutoff > 1.0 {
		return fmt.Errorf("confidence_cutoff must be between 0.0 and 1.0")
	}
	if e.FunctionCountFloor <= 0.0 || e.FunctionCountFloor > 1.0 {
		return fmt.Errorf("function_count_floor must be in (0.0, 1.0]")
	}
	if e.SizeDeltaBound <= 0.0 || e.SizeDeltaBound >= 1.0 {
		return fmt.Errorf("size_delta_bound must be in (0.0, 1.0)")
	}
	if e.ReviewScoreFloor < 0 || e.ReviewScoreFloor > 10 {
		return fmt.Errorf("review_score_floor must be between 0 and 10")
	}
	if e.OracleTimeout <= 0 {
		return fmt.Errorf("oracle_timeout must be a positive duration")
	}
	return nil
}
