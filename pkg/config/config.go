// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the index
// files, corpus source, text analysis, query execution and the optional
// infrastructure (database, Redis, Kafka, metrics).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Index    IndexConfig    `yaml:"index"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Search   SearchConfig   `yaml:"search"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexConfig names the two persisted index files.
type IndexConfig struct {
	DictionaryFile string `yaml:"dictionaryFile"`
	PostingsFile   string `yaml:"postingsFile"`
}

// CorpusConfig selects where documents are read from during indexing.
// Source is either "dir" or "database". Format applies to directory
// documents and is "text" or "html".
type CorpusConfig struct {
	Source string `yaml:"source"`
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
	Table  string `yaml:"table"`
}

// AnalysisConfig holds the optional pre-filters applied before terms reach
// the index.
type AnalysisConfig struct {
	RemoveStopWords bool   `yaml:"removeStopWords"`
	StopWordsFile   string `yaml:"stopWordsFile"`
	RemoveNumbers   bool   `yaml:"removeNumbers"`
}

// SearchConfig controls batch query execution.
type SearchConfig struct {
	QueriesFile      string `yaml:"queriesFile"`
	OutputFile       string `yaml:"outputFile"`
	Workers          int    `yaml:"workers"`
	CacheEnabled     bool   `yaml:"cacheEnabled"`
	AnalyticsEnabled bool   `yaml:"analyticsEnabled"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// DatabaseConfig holds the corpus database connection. Driver is one of
// "postgres", "mysql" or "sqlite". A non-empty DSN is used verbatim.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// ConnString returns the data source name for the configured driver. For
// sqlite, Database is the file path.
func (d DatabaseConfig) ConnString() string {
	if d.DSN != "" {
		return d.DSN
	}
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", d.User, d.Password, d.Host, d.Port, d.Database)
	case "sqlite":
		return d.Database
	default:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
		)
	}
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	QueryTopic    string        `yaml:"queryTopic"`
	ConsumerGroup string        `yaml:"consumerGroup"`
	BufferSize    int           `yaml:"bufferSize"`
	BatchSize     int           `yaml:"batchSize"`
	FlushInterval time.Duration `yaml:"flushInterval"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing
// values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfig, err, "reading config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfig, err, "parsing config file %s", path)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// ValidateIndexing checks the settings the indexer cannot run without.
func (c *Config) ValidateIndexing() error {
	var missing []string
	switch c.Corpus.Source {
	case "dir":
		if c.Corpus.Dir == "" {
			missing = append(missing, "corpus directory (-i)")
		}
	case "database":
		if c.Corpus.Table == "" {
			missing = append(missing, "corpus table")
		}
		switch c.Database.Driver {
		case "postgres", "mysql", "sqlite":
		default:
			return apperrors.Newf(apperrors.ErrConfig, 0, "unknown database driver %q", c.Database.Driver)
		}
	default:
		return apperrors.Newf(apperrors.ErrConfig, 0, "unknown corpus source %q", c.Corpus.Source)
	}
	if c.Corpus.Format != "text" && c.Corpus.Format != "html" {
		return apperrors.Newf(apperrors.ErrConfig, 0, "unknown corpus format %q", c.Corpus.Format)
	}
	missing = append(missing, c.missingIndexFiles()...)
	return missingError(missing)
}

// ValidateSearching checks the settings a batch search run needs. Server
// mode only needs the index files.
func (c *Config) ValidateSearching(batch bool) error {
	missing := c.missingIndexFiles()
	if batch {
		if c.Search.QueriesFile == "" {
			missing = append(missing, "queries file (-q)")
		}
		if c.Search.OutputFile == "" {
			missing = append(missing, "output file (-o)")
		}
	}
	if c.Search.Workers < 1 {
		return apperrors.Newf(apperrors.ErrConfig, 0, "search.workers must be positive, got %d", c.Search.Workers)
	}
	return missingError(missing)
}

func (c *Config) missingIndexFiles() []string {
	var missing []string
	if c.Index.DictionaryFile == "" {
		missing = append(missing, "dictionary file (-d)")
	}
	if c.Index.PostingsFile == "" {
		missing = append(missing, "postings file (-p)")
	}
	return missing
}

func missingError(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return apperrors.Newf(apperrors.ErrConfig, 0, "missing %s", strings.Join(missing, ", "))
}

func defaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Source: "dir",
			Format: "text",
			Table:  "documents",
		},
		Search: SearchConfig{
			Workers: 4,
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			Host:            "localhost",
			Port:            5432,
			Database:        "corpus",
			User:            "search",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			QueryTopic:    "boolean-queries",
			ConsumerGroup: "boolean-analytics",
			BufferSize:    10000,
			BatchSize:     100,
			FlushInterval: time.Second,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads BSE_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BSE_INDEX_DICTIONARY_FILE"); v != "" {
		cfg.Index.DictionaryFile = v
	}
	if v := os.Getenv("BSE_INDEX_POSTINGS_FILE"); v != "" {
		cfg.Index.PostingsFile = v
	}
	if v := os.Getenv("BSE_CORPUS_SOURCE"); v != "" {
		cfg.Corpus.Source = v
	}
	if v := os.Getenv("BSE_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("BSE_SEARCH_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.Workers = n
		}
	}
	if v := os.Getenv("BSE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("BSE_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("BSE_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("BSE_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("BSE_DATABASE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("BSE_DATABASE_NAME"); v != "" {
		cfg.Database.Database = v
	}
	if v := os.Getenv("BSE_DATABASE_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("BSE_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("BSE_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("BSE_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("BSE_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("BSE_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("BSE_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
