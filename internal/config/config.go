package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kode4food/timebox"

	"github.com/kode4food/bpmnflow/pkg/log"
)

type (
	// Config holds configuration settings for the process engine
	Config struct {
		LogLevel string

		// Stores & Archiving
		Store   StoreConfig
		Journal timebox.StoreConfig
		Archive ArchiveConfig

		// Transaction Retry
		Retry RetryConfig

		// Engine
		DefinitionCacheSize int
		MaxGatewayDepth     int
	}

	// StoreConfig locates the Redis database holding process state
	StoreConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	// ArchiveConfig selects the blob bucket deleted instances are written
	// to and how finished instances are swept out of the store. An empty
	// BucketURL disables writing archive records
	ArchiveConfig struct {
		BucketURL           string
		Prefix              string
		MemoryPercent       float64
		MaxAge              time.Duration
		MemoryCheckInterval time.Duration
		SweepInterval       time.Duration
		PressureBatchSize   int
		SweepBatchSize      int
	}

	// RetryConfig controls how conflicting completions are retried.
	// Backoff values are in milliseconds
	RetryConfig struct {
		MaxRetries  int
		InitBackoff int64
		MaxBackoff  int64
		BackoffType string
	}
)

const (
	BackoffTypeFixed       = "fixed"
	BackoffTypeLinear      = "linear"
	BackoffTypeExponential = "exponential"
)

const (
	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisPrefix   = "bpmnflow"
	DefaultRedisDB       = 0
	DefaultArchivePrefix = "instances"
	DefaultJournalPrefix = "bpmnflow-journal"

	DefaultSnapshotWorkers     = 4
	DefaultSnapshotQueueSize   = 1024
	DefaultSnapshotSaveTimeout = 30 * time.Second

	DefaultMemoryPercent       = 80.0
	DefaultMaxAge              = 24 * time.Hour
	DefaultMemoryCheckInterval = 5 * time.Second
	DefaultSweepInterval       = 1 * time.Hour
	DefaultPressureBatchSize   = 10
	DefaultSweepBatchSize      = 100
	DefaultLogLevel            = "info"

	DefaultDefinitionCacheSize = 1024
	DefaultMaxGatewayDepth     = 64

	DefaultRetryMaxRetries  = 10
	DefaultRetryInitBackoff = 5
	DefaultRetryMaxBackoff  = 1000
	DefaultRetryBackoffType = BackoffTypeExponential

	MaxRedisDB             = 15
	MaxDefinitionCacheSize = 1_000_000
	MaxGatewayDepth        = 10_000
	MaxRetryMaxRetries     = 1000
	MaxRetryInitBackoff    = 60 * 1000 // 1 minute in ms
	MaxRetryMaxBackoff     = 10 * MaxRetryInitBackoff
	MaxArchiveBatchSize    = 10_000
)

var (
	ErrInvalidRedisAddr     = errors.New("redis address required")
	ErrInvalidJournalPrefix = errors.New("journal prefix required")
	ErrJournalSharesPrefix  = errors.New(
		"journal prefix must differ from store prefix",
	)
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidCacheSize       = errors.New("cache size must be positive")
	ErrInvalidGatewayDepth    = errors.New("gateway depth must be positive")
	ErrInvalidRetryMaxRetries = errors.New(
		"retry max retries must be positive",
	)
	ErrInvalidRetryInitBackoff = errors.New(
		"retry initial backoff must be positive",
	)
	ErrInvalidRetryMaxBackoff = errors.New(
		"retry max backoff must be positive",
	)
	ErrRetryMaxBackoffTooSmall = errors.New(
		"retry max backoff must be >= retry initial backoff",
	)
	ErrInvalidRetryBackoffType = errors.New("invalid retry backoff type")

	ErrMemoryPercentInvalid = errors.New(
		"archive memory percent must be within (0, 100]",
	)
	ErrMaxAgeInvalid              = errors.New("archive max age must be positive")
	ErrMemoryCheckIntervalInvalid = errors.New(
		"archive memory check interval must be positive",
	)
	ErrSweepIntervalInvalid = errors.New(
		"archive sweep interval must be positive",
	)
	ErrPressureBatchInvalid = errors.New(
		"archive pressure batch must be positive",
	)
	ErrSweepBatchInvalid = errors.New("archive sweep batch must be positive")
)

// NewDefaultConfig creates a configuration with sensible defaults for the
// store, retry behavior, and engine limits
func NewDefaultConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Store: StoreConfig{
			Addr:   DefaultRedisEndpoint,
			DB:     DefaultRedisDB,
			Prefix: DefaultRedisPrefix,
		},
		Journal: timebox.StoreConfig{
			DB:           DefaultRedisDB,
			Prefix:       DefaultJournalPrefix,
			WorkerCount:  DefaultSnapshotWorkers,
			MaxQueueSize: DefaultSnapshotQueueSize,
			SaveTimeout:  DefaultSnapshotSaveTimeout,
			TrimEvents:   true,
		},
		Archive: ArchiveConfig{
			Prefix:              DefaultArchivePrefix,
			MemoryPercent:       DefaultMemoryPercent,
			MaxAge:              DefaultMaxAge,
			MemoryCheckInterval: DefaultMemoryCheckInterval,
			SweepInterval:       DefaultSweepInterval,
			PressureBatchSize:   DefaultPressureBatchSize,
			SweepBatchSize:      DefaultSweepBatchSize,
		},
		Retry: RetryConfig{
			MaxRetries:  DefaultRetryMaxRetries,
			InitBackoff: DefaultRetryInitBackoff,
			MaxBackoff:  DefaultRetryMaxBackoff,
			BackoffType: DefaultRetryBackoffType,
		},
		DefinitionCacheSize: DefaultDefinitionCacheSize,
		MaxGatewayDepth:     DefaultMaxGatewayDepth,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any numeric env var cannot be parsed
func (c *Config) LoadFromEnv() error {
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if backoffType := os.Getenv("RETRY_BACKOFF_TYPE"); backoffType != "" {
		c.Retry.BackoffType = backoffType
	}

	if err := LoadStoreConfigFromEnv(&c.Store); err != nil {
		return err
	}
	if err := LoadArchiveConfigFromEnv(&c.Archive); err != nil {
		return err
	}
	LoadJournalConfigFromEnv(&c.Journal, "JOURNAL")

	if err := loadEnvInt(
		"DEFINITION_CACHE_SIZE", &c.DefinitionCacheSize, 0,
		MaxDefinitionCacheSize,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"MAX_GATEWAY_DEPTH", &c.MaxGatewayDepth, 0, MaxGatewayDepth,
	); err != nil {
		return err
	}

	if err := loadEnvInt(
		"RETRY_MAX_RETRIES", &c.Retry.MaxRetries, 0, MaxRetryMaxRetries,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_INITIAL_BACKOFF", &c.Retry.InitBackoff, 0, MaxRetryInitBackoff,
	); err != nil {
		return err
	}
	if err := loadEnvInt(
		"RETRY_MAX_BACKOFF", &c.Retry.MaxBackoff, 0, MaxRetryMaxBackoff,
	); err != nil {
		return err
	}

	return nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.Store.Addr == "" {
		return ErrInvalidRedisAddr
	}

	if c.Journal.Prefix == "" {
		return ErrInvalidJournalPrefix
	}
	if c.Journal.Prefix == c.Store.Prefix && c.Journal.Addr == "" {
		return fmt.Errorf("%w: %s", ErrJournalSharesPrefix, c.Journal.Prefix)
	}

	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, c.LogLevel)
	}

	if c.DefinitionCacheSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCacheSize, c.DefinitionCacheSize)
	}

	if c.MaxGatewayDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidGatewayDepth, c.MaxGatewayDepth)
	}

	if err := c.Archive.Validate(); err != nil {
		return err
	}
	return c.Retry.Validate()
}

// JournalStore returns the settings the history journal is opened with. A
// journal without its own address lives in the store's database, and
// retired histories are archived whenever an archive bucket is configured
func (c *Config) JournalStore() timebox.StoreConfig {
	res := c.Journal
	if res.Addr == "" {
		res.Addr = c.Store.Addr
		res.Password = c.Store.Password
		res.DB = c.Store.DB
	}
	res.Archiving = c.Archive.BucketURL != ""
	return res
}

// Validate checks the archive sweep settings
func (a *ArchiveConfig) Validate() error {
	if a.MemoryPercent <= 0 || a.MemoryPercent > 100 {
		return fmt.Errorf("%w: %v", ErrMemoryPercentInvalid, a.MemoryPercent)
	}
	if a.MaxAge <= 0 {
		return ErrMaxAgeInvalid
	}
	if a.MemoryCheckInterval <= 0 {
		return ErrMemoryCheckIntervalInvalid
	}
	if a.SweepInterval <= 0 {
		return ErrSweepIntervalInvalid
	}
	if a.PressureBatchSize <= 0 {
		return ErrPressureBatchInvalid
	}
	if a.SweepBatchSize <= 0 {
		return ErrSweepBatchInvalid
	}
	return nil
}

// Validate checks that the retry settings describe a usable backoff
func (r *RetryConfig) Validate() error {
	if r.MaxRetries <= 0 {
		return ErrInvalidRetryMaxRetries
	}

	if r.InitBackoff <= 0 {
		return ErrInvalidRetryInitBackoff
	}

	if r.MaxBackoff <= 0 {
		return ErrInvalidRetryMaxBackoff
	}

	if r.MaxBackoff < r.InitBackoff {
		return ErrRetryMaxBackoffTooSmall
	}

	if r.BackoffType != BackoffTypeFixed &&
		r.BackoffType != BackoffTypeLinear &&
		r.BackoffType != BackoffTypeExponential {
		return fmt.Errorf("%w: %s", ErrInvalidRetryBackoffType, r.BackoffType)
	}

	return nil
}

// LoadStoreConfigFromEnv loads the Redis store configuration from the
// REDIS_* environment variables
func LoadStoreConfigFromEnv(s *StoreConfig) error {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
		s.Prefix = prefix
	}
	return loadEnvInt("REDIS_DB", &s.DB, -1, MaxRedisDB)
}

// LoadJournalConfigFromEnv loads a journal store configuration from the
// <prefix>_REDIS_* and <prefix>_SNAPSHOT_WORKERS environment variables
func LoadJournalConfigFromEnv(s *timebox.StoreConfig, prefix string) {
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		s.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		s.Password = password
	}
	if dbStr := os.Getenv(prefix + "_REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			s.DB = db
		}
	}
	if envPrefix := os.Getenv(prefix + "_REDIS_PREFIX"); envPrefix != "" {
		s.Prefix = envPrefix
	}
	if envCount := os.Getenv(prefix + "_SNAPSHOT_WORKERS"); envCount != "" {
		if wc, err := strconv.Atoi(envCount); err == nil && wc >= 0 {
			s.WorkerCount = wc
		}
	}
}

// LoadArchiveConfigFromEnv loads the archive settings from the ARCHIVE_*
// environment variables
func LoadArchiveConfigFromEnv(a *ArchiveConfig) error {
	if bucketURL := os.Getenv("ARCHIVE_BUCKET_URL"); bucketURL != "" {
		a.BucketURL = bucketURL
	}
	if prefix := os.Getenv("ARCHIVE_PREFIX"); prefix != "" {
		a.Prefix = prefix
	}
	if pct := os.Getenv("ARCHIVE_MEMORY_PERCENT"); pct != "" {
		f, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return fmt.Errorf("invalid ARCHIVE_MEMORY_PERCENT: %q", pct)
		}
		a.MemoryPercent = f
	}

	for key, dst := range map[string]*time.Duration{
		"ARCHIVE_MAX_AGE":               &a.MaxAge,
		"ARCHIVE_MEMORY_CHECK_INTERVAL": &a.MemoryCheckInterval,
		"ARCHIVE_SWEEP_INTERVAL":        &a.SweepInterval,
	} {
		if err := loadEnvDuration(key, dst); err != nil {
			return err
		}
	}

	if err := loadEnvInt(
		"ARCHIVE_PRESSURE_BATCH", &a.PressureBatchSize, 0,
		MaxArchiveBatchSize,
	); err != nil {
		return err
	}
	return loadEnvInt(
		"ARCHIVE_SWEEP_BATCH", &a.SweepBatchSize, 0, MaxArchiveBatchSize,
	)
}

func loadEnvDuration(key string, dst *time.Duration) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	*dst = d
	return nil
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}
