package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"video-filter/pkg/domain"
)

// Config is the full job configuration. Defaults mirror the barber
// filtering run this tool was built for; a YAML file and CLI flags can
// override any of them.
type Config struct {
	Source   SourceConfig `yaml:"source"`
	Keywords []string     `yaml:"keywords"`
	Output   OutputConfig `yaml:"output"`

	// ProgressInterval is the number of scanned records between progress
	// lines on stdout. 0 disables progress output.
	ProgressInterval int64 `yaml:"progress_interval"`

	// MaxRecords caps the scan when > 0. Useful for demo runs against the
	// full 10M-row dataset.
	MaxRecords int64 `yaml:"max_records"`

	// ParseFailureThreshold is the fraction of malformed records tolerated
	// before the run aborts. Checked only after a minimum sample has been
	// scanned, so a single bad row in a tiny fixture does not kill the run.
	ParseFailureThreshold float64 `yaml:"parse_failure_threshold"`
}

// SourceConfig locates the dataset. URL decides the backend: a bare path
// or file:// for local JSONL, http(s)://, s3://, postgres://, mongodb://.
type SourceConfig struct {
	URL string `yaml:"url"`

	// TextField is the record field the keyword predicate matches against.
	TextField string `yaml:"text_field"`

	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
	S3       S3Config       `yaml:"s3"`
}

// PostgresConfig selects what to stream from a postgres:// source.
// Exactly one of Table or Query is required.
type PostgresConfig struct {
	Table string `yaml:"table"`
	Query string `yaml:"query"`
}

// MongoConfig selects the collection to stream from a mongodb:// source.
type MongoConfig struct {
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// S3Config holds connection settings for s3:// sources.
// Empty AccessKey means anonymous access.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// OutputConfig locates the output artifact.
type OutputConfig struct {
	Path string `yaml:"path"`

	// CoreColumns are placed first in the output schema, in this order.
	// They also define the schema of a zero-row artifact.
	CoreColumns []string `yaml:"core_columns"`
}

// Default returns the configuration the original barber run used.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			URL:       filepath.Join("data", "videos.jsonl"),
			TextField: domain.FieldDescription,
		},
		Keywords: []string{"barber", "haircut", "fade", "clippers", "shave"},
		Output: OutputConfig{
			Path: filepath.Join("TikTok_Results", "barber_videos.parquet"),
			CoreColumns: []string{
				domain.FieldVideoID,
				domain.FieldDescription,
				domain.FieldViews,
				domain.FieldLikes,
				domain.FieldUserID,
				domain.FieldUploadDate,
			},
		},
		ProgressInterval:      100000,
		ParseFailureThreshold: 0.05,
	}
}

// Load reads a YAML config file on top of the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the fields every run needs regardless of backend.
// Backend-specific requirements (postgres table, mongo collection) are
// checked by the source factory, which knows which backend was picked.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Source.TextField == "" {
		return fmt.Errorf("source.text_field is required")
	}
	if len(c.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	for _, kw := range c.Keywords {
		if kw == "" {
			return fmt.Errorf("keywords must not be empty strings")
		}
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	if c.ParseFailureThreshold < 0 || c.ParseFailureThreshold > 1 {
		return fmt.Errorf("parse_failure_threshold must be in [0, 1], got %v", c.ParseFailureThreshold)
	}
	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress_interval must be >= 0, got %d", c.ProgressInterval)
	}
	if c.MaxRecords < 0 {
		return fmt.Errorf("max_records must be >= 0, got %d", c.MaxRecords)
	}
	return nil
}
