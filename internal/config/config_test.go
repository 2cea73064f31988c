package config_test

import (
	"testing"
	"time"

	testify "github.com/stretchr/testify/assert"

	"github.com/kode4food/bpmnflow/internal/assert"
	"github.com/kode4food/bpmnflow/internal/assert/helpers"
	"github.com/kode4food/bpmnflow/internal/config"
)

func TestConfigValidation(t *testing.T) {
	as := assert.New(t)

	t.Run("valid_default_config", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		as.ConfigValid(cfg)
	})

	t.Run("valid_test_config", func(t *testing.T) {
		cfg := helpers.NewTestConfig()
		as.ConfigValid(cfg)
	})

	tests := []struct {
		name          string
		configMod     func(*config.Config)
		errorContains string
	}{
		{
			name: "empty_redis_addr",
			configMod: func(c *config.Config) {
				c.Store.Addr = ""
			},
			errorContains: "redis address required",
		},
		{
			name: "empty_journal_prefix",
			configMod: func(c *config.Config) {
				c.Journal.Prefix = ""
			},
			errorContains: "journal prefix required",
		},
		{
			name: "journal_shares_store_prefix",
			configMod: func(c *config.Config) {
				c.Journal.Prefix = c.Store.Prefix
			},
			errorContains: "journal prefix must differ",
		},
		{
			name: "unknown_log_level",
			configMod: func(c *config.Config) {
				c.LogLevel = "verbose"
			},
			errorContains: "invalid log level",
		},
		{
			name: "zero_cache_size",
			configMod: func(c *config.Config) {
				c.DefinitionCacheSize = 0
			},
			errorContains: "cache size must be positive",
		},
		{
			name: "zero_gateway_depth",
			configMod: func(c *config.Config) {
				c.MaxGatewayDepth = 0
			},
			errorContains: "gateway depth must be positive",
		},
		{
			name: "zero_max_retries",
			configMod: func(c *config.Config) {
				c.Retry.MaxRetries = 0
			},
			errorContains: "retry max retries must be positive",
		},
		{
			name: "zero_initial_backoff",
			configMod: func(c *config.Config) {
				c.Retry.InitBackoff = 0
			},
			errorContains: "retry initial backoff must be positive",
		},
		{
			name: "negative_max_backoff",
			configMod: func(c *config.Config) {
				c.Retry.MaxBackoff = -1
			},
			errorContains: "retry max backoff must be positive",
		},
		{
			name: "max_backoff_below_initial",
			configMod: func(c *config.Config) {
				c.Retry.InitBackoff = 100
				c.Retry.MaxBackoff = 50
			},
			errorContains: "retry max backoff must be >=",
		},
		{
			name: "memory_percent_above_100",
			configMod: func(c *config.Config) {
				c.Archive.MemoryPercent = 120
			},
			errorContains: "archive memory percent",
		},
		{
			name: "zero_archive_max_age",
			configMod: func(c *config.Config) {
				c.Archive.MaxAge = 0
			},
			errorContains: "archive max age must be positive",
		},
		{
			name: "zero_sweep_interval",
			configMod: func(c *config.Config) {
				c.Archive.SweepInterval = 0
			},
			errorContains: "archive sweep interval must be positive",
		},
		{
			name: "zero_sweep_batch",
			configMod: func(c *config.Config) {
				c.Archive.SweepBatchSize = 0
			},
			errorContains: "archive sweep batch must be positive",
		},
		{
			name: "unknown_backoff_type",
			configMod: func(c *config.Config) {
				c.Retry.BackoffType = "random"
			},
			errorContains: "invalid retry backoff type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := helpers.NewTestConfig()
			tt.configMod(cfg)
			as.ConfigInvalid(cfg, tt.errorContains)
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	as := assert.New(t)

	cfg := config.NewDefaultConfig()

	as.Equal(config.DefaultRedisEndpoint, cfg.Store.Addr)
	as.Equal(config.DefaultRedisPrefix, cfg.Store.Prefix)
	as.Equal(config.DefaultJournalPrefix, cfg.Journal.Prefix)
	as.Empty(cfg.Journal.Addr)
	as.Equal(config.DefaultRetryMaxRetries, cfg.Retry.MaxRetries)
	as.Equal(config.BackoffTypeExponential, cfg.Retry.BackoffType)
	as.Equal(config.DefaultDefinitionCacheSize, cfg.DefinitionCacheSize)
	as.Equal(config.DefaultMaxGatewayDepth, cfg.MaxGatewayDepth)
	as.Empty(cfg.Archive.BucketURL)
	as.Equal(config.DefaultMaxAge, cfg.Archive.MaxAge)
	as.Equal(config.DefaultSweepBatchSize, cfg.Archive.SweepBatchSize)
	as.Equal("info", cfg.LogLevel)
}

func TestJournalStore(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Store.Addr = "redis.example.com:6379"
	cfg.Store.Password = "secret"
	cfg.Store.DB = 3

	js := cfg.JournalStore()
	testify.Equal(t, "redis.example.com:6379", js.Addr)
	testify.Equal(t, "secret", js.Password)
	testify.Equal(t, 3, js.DB)
	testify.Equal(t, config.DefaultJournalPrefix, js.Prefix)
	testify.Equal(t, config.DefaultSnapshotWorkers, js.WorkerCount)
	testify.False(t, js.Archiving)

	cfg.Archive.BucketURL = "mem://archive"
	cfg.Journal.Addr = "journal.example.com:6379"
	js = cfg.JournalStore()
	testify.Equal(t, "journal.example.com:6379", js.Addr)
	testify.Empty(t, js.Password)
	testify.Equal(t, 0, js.DB)
	testify.True(t, js.Archiving)
	testify.Empty(t, cfg.Journal.Password)
	testify.False(t, cfg.Journal.Archiving)
}

func TestJournalLoadFromEnv(t *testing.T) {
	t.Setenv("JOURNAL_REDIS_ADDR", "journal:6379")
	t.Setenv("JOURNAL_REDIS_PASSWORD", "pw")
	t.Setenv("JOURNAL_REDIS_DB", "4")
	t.Setenv("JOURNAL_REDIS_PREFIX", "history")
	t.Setenv("JOURNAL_SNAPSHOT_WORKERS", "2")

	cfg := config.NewDefaultConfig()
	testify.NoError(t, cfg.LoadFromEnv())
	testify.Equal(t, "journal:6379", cfg.Journal.Addr)
	testify.Equal(t, "pw", cfg.Journal.Password)
	testify.Equal(t, 4, cfg.Journal.DB)
	testify.Equal(t, "history", cfg.Journal.Prefix)
	testify.Equal(t, 2, cfg.Journal.WorkerCount)
}

func TestJournalLoadFromEnvIgnoresInvalid(t *testing.T) {
	t.Setenv("JOURNAL_REDIS_DB", "x")
	t.Setenv("JOURNAL_SNAPSHOT_WORKERS", "-1")

	cfg := config.NewDefaultConfig()
	config.LoadJournalConfigFromEnv(&cfg.Journal, "JOURNAL")
	testify.Equal(t, config.DefaultRedisDB, cfg.Journal.DB)
	testify.Equal(t, config.DefaultSnapshotWorkers, cfg.Journal.WorkerCount)
}

func TestStoreLoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_PASSWORD", "secret123")
	t.Setenv("REDIS_DB", "5")
	t.Setenv("REDIS_PREFIX", "custom-prefix")

	s := &config.StoreConfig{}
	testify.NoError(t, config.LoadStoreConfigFromEnv(s))
	testify.Equal(t, config.StoreConfig{
		Addr:     "redis.example.com:6379",
		Password: "secret123",
		DB:       5,
		Prefix:   "custom-prefix",
	}, *s)
}

func TestStoreLoadFromEnvInvalidDB(t *testing.T) {
	t.Setenv("REDIS_DB", "not_a_number")

	s := &config.StoreConfig{DB: 2}
	testify.Error(t, config.LoadStoreConfigFromEnv(s))
	testify.Equal(t, 2, s.DB)
}

func TestConfigLoadFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		check   func(*testing.T, *config.Config)
	}{
		{
			name: "load_log_level",
			envVars: map[string]string{
				"LOG_LEVEL": "debug",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, "debug", c.LogLevel)
			},
		},
		{
			name: "load_redis_addr",
			envVars: map[string]string{
				"REDIS_ADDR": "10.0.0.1:6380",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, "10.0.0.1:6380", c.Store.Addr)
			},
		},
		{
			name: "load_archive",
			envVars: map[string]string{
				"ARCHIVE_BUCKET_URL": "file:///tmp/archive",
				"ARCHIVE_PREFIX":     "done",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, "file:///tmp/archive", c.Archive.BucketURL)
				testify.Equal(t, "done", c.Archive.Prefix)
			},
		},
		{
			name: "load_archive_sweep",
			envVars: map[string]string{
				"ARCHIVE_MEMORY_PERCENT":        "65.5",
				"ARCHIVE_MAX_AGE":               "2h",
				"ARCHIVE_MEMORY_CHECK_INTERVAL": "1s",
				"ARCHIVE_SWEEP_INTERVAL":        "10m",
				"ARCHIVE_PRESSURE_BATCH":        "3",
				"ARCHIVE_SWEEP_BATCH":           "30",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, 65.5, c.Archive.MemoryPercent)
				testify.Equal(t, 2*time.Hour, c.Archive.MaxAge)
				testify.Equal(t, time.Second, c.Archive.MemoryCheckInterval)
				testify.Equal(t, 10*time.Minute, c.Archive.SweepInterval)
				testify.Equal(t, 3, c.Archive.PressureBatchSize)
				testify.Equal(t, 30, c.Archive.SweepBatchSize)
			},
		},
		{
			name: "load_definition_cache_size",
			envVars: map[string]string{
				"DEFINITION_CACHE_SIZE": "8192",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, 8192, c.DefinitionCacheSize)
			},
		},
		{
			name: "load_max_gateway_depth",
			envVars: map[string]string{
				"MAX_GATEWAY_DEPTH": "12",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, 12, c.MaxGatewayDepth)
			},
		},
		{
			name: "load_retry_settings",
			envVars: map[string]string{
				"RETRY_MAX_RETRIES":     "5",
				"RETRY_INITIAL_BACKOFF": "20",
				"RETRY_MAX_BACKOFF":     "400",
				"RETRY_BACKOFF_TYPE":    "linear",
			},
			check: func(t *testing.T, c *config.Config) {
				testify.Equal(t, config.RetryConfig{
					MaxRetries:  5,
					InitBackoff: 20,
					MaxBackoff:  400,
					BackoffType: config.BackoffTypeLinear,
				}, c.Retry)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg := config.NewDefaultConfig()
			testify.NoError(t, cfg.LoadFromEnv())
			tt.check(t, cfg)
		})
	}
}

func TestConfigLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "cache_size_not_a_number", key: "DEFINITION_CACHE_SIZE", value: "x"},
		{name: "cache_size_zero", key: "DEFINITION_CACHE_SIZE", value: "0"},
		{name: "depth_too_large", key: "MAX_GATEWAY_DEPTH", value: "1000000"},
		{name: "retries_negative", key: "RETRY_MAX_RETRIES", value: "-1"},
		{name: "backoff_invalid", key: "RETRY_INITIAL_BACKOFF", value: "fast"},
		{name: "max_backoff_too_large", key: "RETRY_MAX_BACKOFF", value: "9999999"},
		{name: "max_age_invalid", key: "ARCHIVE_MAX_AGE", value: "soon"},
		{name: "memory_percent_invalid", key: "ARCHIVE_MEMORY_PERCENT", value: "high"},
		{name: "sweep_batch_zero", key: "ARCHIVE_SWEEP_BATCH", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			cfg := config.NewDefaultConfig()
			err := cfg.LoadFromEnv()
			testify.Error(t, err)
			testify.Contains(t, err.Error(), tt.key)
		})
	}
}
