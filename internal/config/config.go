// Package config defines the runtime configuration of the flat-file
// manager. Values come from a YAML file with environment variable overrides
// (cleanenv); struct-level constraints are enforced with validator tags and
// cross-field rules are reported by Lint as Issues.
//
// Example:
//
//	server:
//	  addr: ":8080"
//	upload:
//	  dir: /var/lib/flatfile/uploads
//	profile:
//	  sample_seed: 0
//	warehouse:
//	  schema: staging
//	  iam_role: arn:aws:iam::123456789012:role/redshift-copy
//	  sort_keys: [updated_at]
//	  last_modified_column: updated_at
//	store:
//	  kind: bolt
//	  path: /var/lib/flatfile/descriptors.db
package config

import (
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/pkg/errors"
)

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upload    UploadConfig    `yaml:"upload"`
	Loader    LoaderConfig    `yaml:"loader"`
	Profile   ProfileConfig   `yaml:"profile"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	Store     StoreConfig     `yaml:"store"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP resource server.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"FLATFILE_ADDR" env-default:":8080" validate:"required"`
}

// UploadConfig configures where uploaded files are saved.
type UploadConfig struct {
	Dir string `yaml:"dir" env:"FLATFILE_UPLOAD_DIR" env-default:"uploads" validate:"required"`
	// MaxBytes caps a single upload; zero disables the limit.
	MaxBytes int64 `yaml:"max_bytes" env:"FLATFILE_UPLOAD_MAX_BYTES" env-default:"104857600" validate:"gte=0"`
}

// LoaderConfig configures delimited-file parsing.
type LoaderConfig struct {
	Delimiter string `yaml:"delimiter" env:"FLATFILE_DELIMITER" env-default:","`
}

// DelimiterRune returns the first rune of Delimiter, defaulting to ','.
func (l LoaderConfig) DelimiterRune() rune {
	if l.Delimiter == "" {
		return ','
	}
	if l.Delimiter == `\t` || l.Delimiter == "tab" {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(l.Delimiter)
	if r == utf8.RuneError {
		return ','
	}
	return r
}

// ProfileConfig tunes column profiling.
type ProfileConfig struct {
	// SampleSeed fixes sampling when non-zero.
	SampleSeed     uint64 `yaml:"sample_seed" env:"FLATFILE_SAMPLE_SEED" env-default:"0"`
	SampleSize     int    `yaml:"sample_size" env:"FLATFILE_SAMPLE_SIZE" env-default:"5" validate:"gte=1,lte=100"`
	DateSampleSize int    `yaml:"date_sample_size" env:"FLATFILE_DATE_SAMPLE_SIZE" env-default:"0" validate:"gte=0"`
}

// WarehouseConfig describes the target warehouse.
type WarehouseConfig struct {
	Schema string `yaml:"schema" env:"FLATFILE_WAREHOUSE_SCHEMA" env-default:"public" validate:"required"`
	// DSN is a postgres-protocol connection string. Only needed with ApplyDDL.
	DSN string `yaml:"dsn" env:"FLATFILE_WAREHOUSE_DSN"`
	// CopyPrefix is prepended to the file name to build the COPY source,
	// e.g. s3://bucket/incoming/.
	CopyPrefix string `yaml:"copy_prefix" env:"FLATFILE_COPY_PREFIX"`
	IAMRole    string `yaml:"iam_role" env:"FLATFILE_IAM_ROLE"`
	Region     string `yaml:"region" env:"FLATFILE_REGION"`
	ApplyDDL   bool   `yaml:"apply_ddl" env:"FLATFILE_APPLY_DDL" env-default:"false"`

	// Table layout applied to every generated table. Columns a file does
	// not have are ignored for that file.
	DistKey            string   `yaml:"dist_key" env:"FLATFILE_DIST_KEY"`
	SortKeys           []string `yaml:"sort_keys" env:"FLATFILE_SORT_KEYS" env-separator:","`
	MergeStrategy      string   `yaml:"merge_strategy" env:"FLATFILE_MERGE_STRATEGY"`
	UniqueColumns      []string `yaml:"unique_columns" env:"FLATFILE_UNIQUE_COLUMNS" env-separator:","`
	LastModifiedColumn string   `yaml:"last_modified_column" env:"FLATFILE_LAST_MODIFIED_COLUMN"`
}

// StoreConfig selects the descriptor store backend.
type StoreConfig struct {
	Kind   string `yaml:"kind" env:"FLATFILE_STORE_KIND" env-default:"bolt" validate:"oneof=bolt sqlite"`
	Path   string `yaml:"path" env:"FLATFILE_STORE_PATH" env-default:"flatfile.db" validate:"required"`
	Bucket string `yaml:"bucket" env:"FLATFILE_STORE_BUCKET" env-default:"file_descriptors" validate:"required"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	Backend        string `yaml:"backend" env:"FLATFILE_METRICS_BACKEND" env-default:"none" validate:"oneof=none prometheus datadog"`
	Job            string `yaml:"job" env:"FLATFILE_METRICS_JOB" env-default:"flatfile"`
	PushgatewayURL string `yaml:"pushgateway_url" env:"FLATFILE_PUSHGATEWAY_URL"`
	DatadogAddr    string `yaml:"datadog_addr" env:"FLATFILE_DATADOG_ADDR" env-default:"127.0.0.1:8125"`
	Namespace      string `yaml:"namespace" env:"FLATFILE_METRICS_NAMESPACE" env-default:"flatfile"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"FLATFILE_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" env:"FLATFILE_LOG_DEVELOPMENT" env-default:"false"`
}

// Load reads path (YAML) with environment overrides, or only the
// environment when path is empty, and validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, errors.Wrap(err, "read config from environment")
		}
	} else if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct-level constraints and returns the first lint
// error, if any.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	for _, iss := range Lint(c) {
		if iss.Severity == SeverityError {
			return iss
		}
	}
	return nil
}
