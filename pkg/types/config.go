package types

import (
	"path/filepath"
	"time"
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-reader/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// SearchConfig holds settings for the search stage.
type SearchConfig struct {
	// DefaultMaxResults is used when the caller does not pass a count.
	DefaultMaxResults int `json:"default_max_results" yaml:"default_max_results" mapstructure:"default_max_results"`

	// MaxResultsCap bounds any caller-supplied count (default 50).
	MaxResultsCap int `json:"max_results_cap" yaml:"max_results_cap" mapstructure:"max_results_cap"`

	// DefaultSort is the ranking policy used when none is given (default "smart").
	DefaultSort string `json:"default_sort" yaml:"default_sort" mapstructure:"default_sort"`
}

// FetchConfig holds settings for PDF acquisition.
type FetchConfig struct {
	// MaxAttempts is the number of download attempts per paper (default 3).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts"`
}

// ConversionBackend identifies the primary PDF conversion tool.
type ConversionBackend string

const (
	BackendMarkitdown ConversionBackend = "markitdown"
	BackendPdftotext  ConversionBackend = "pdftotext"
	BackendNone       ConversionBackend = "none"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Primary selects the primary engine: markitdown, pdftotext, or none.
	// The pdfcpu page-by-page engine is always the fallback.
	Primary ConversionBackend `json:"primary" yaml:"primary" mapstructure:"primary"`
}

// CacheConfig holds the paper cache limits.
type CacheConfig struct {
	// MaxSizeMB is the byte budget for cached artifacts, in MiB (default 1024).
	MaxSizeMB int64 `json:"max_size_mb" yaml:"max_size_mb" mapstructure:"max_size_mb"`

	// MaxAgeDays is the age after which a record is evicted (default 90).
	MaxAgeDays int `json:"max_age_days" yaml:"max_age_days" mapstructure:"max_age_days"`
}

// MaxBytes returns the byte budget.
func (c CacheConfig) MaxBytes() int64 {
	return c.MaxSizeMB * 1024 * 1024
}

// ReadConfig holds pagination limits for full-text delivery.
type ReadConfig struct {
	// DefaultMaxChars is the page size used when the caller passes none (default 20000).
	DefaultMaxChars int `json:"default_max_chars" yaml:"default_max_chars" mapstructure:"default_max_chars"`

	// MinMaxChars and MaxMaxChars bound the caller-supplied page size.
	MinMaxChars int `json:"min_max_chars" yaml:"min_max_chars" mapstructure:"min_max_chars"`
	MaxMaxChars int `json:"max_max_chars" yaml:"max_max_chars" mapstructure:"max_max_chars"`
}

// AuthConfig controls the authorization check applied to every operation.
type AuthConfig struct {
	// Enabled turns on token checking. When false every caller is authorized.
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty" mapstructure:"pretty"`
}

// Config groups all settings for the paper-reader.
type Config struct {
	// DataDir is the root for the cache database and artifacts.
	DataDir string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`

	// SecretsDir holds credential files (see internal/secrets).
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`

	HTTP       HTTPConfig       `json:"http" yaml:"http" mapstructure:"http"`
	Search     SearchConfig     `json:"search" yaml:"search" mapstructure:"search"`
	Fetch      FetchConfig      `json:"fetch" yaml:"fetch" mapstructure:"fetch"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion" mapstructure:"conversion"`
	Papers     CacheConfig      `json:"papers" yaml:"papers" mapstructure:"papers"`
	Read       ReadConfig       `json:"read" yaml:"read" mapstructure:"read"`
	Auth       AuthConfig       `json:"auth" yaml:"auth" mapstructure:"auth"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
}

// PapersDir is the directory holding the cache database and artifacts.
func (c Config) PapersDir() string { return filepath.Join(c.DataDir, "papers") }

// DBPath is the SQLite file backing the paper cache.
func (c Config) DBPath() string { return filepath.Join(c.PapersDir(), "papers.db") }

// PDFDir is where downloaded source documents are stored.
func (c Config) PDFDir() string { return filepath.Join(c.PapersDir(), "pdf") }

// MarkdownDir is where extracted text is stored.
func (c Config) MarkdownDir() string { return filepath.Join(c.PapersDir(), "markdown") }

// DefaultConfig returns the built-in defaults. Viper layers file and
// environment values on top of these.
func DefaultConfig() Config {
	return Config{
		DataDir:    "./data",
		SecretsDir: ".secrets/",
		HTTP: HTTPConfig{
			Timeout:   60 * time.Second,
			UserAgent: "paper-reader/0.1",
		},
		Search: SearchConfig{
			DefaultMaxResults: 10,
			MaxResultsCap:     50,
			DefaultSort:       "smart",
		},
		Fetch:      FetchConfig{MaxAttempts: 3},
		Conversion: ConversionConfig{Primary: BackendMarkitdown},
		Papers: CacheConfig{
			MaxSizeMB:  1024,
			MaxAgeDays: 90,
		},
		Read: ReadConfig{
			DefaultMaxChars: 20000,
			MinMaxChars:     1000,
			MaxMaxChars:     100000,
		},
		Log: LogConfig{Level: "info"},
	}
}
