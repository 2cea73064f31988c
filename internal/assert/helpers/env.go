package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/topic"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/memblob"

	"github.com/kode4food/bpmnflow/internal/archive"
	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/internal/engine"
	"github.com/kode4food/bpmnflow/internal/engine/event"
	"github.com/kode4food/bpmnflow/internal/journal"
	"github.com/kode4food/bpmnflow/internal/store"
	"github.com/kode4food/bpmnflow/pkg/api"
)

// TestEngineEnv holds all the components needed for engine testing
type TestEngineEnv struct {
	Engine  *engine.Engine
	Store   *store.Redis
	Journal *journal.Journal
	Redis   *miniredis.Miniredis
	Bucket  *blob.Bucket
	Config  *config.Config
	Events  topic.Topic[event.Event]
	Cleanup func()
}

const defaultTimeout = 5 * time.Second

// NewTestConfig creates a default configuration with debug logging and
// fast retries
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.Retry.InitBackoff = 1
	cfg.Retry.MaxBackoff = 20
	cfg.Retry.MaxRetries = 100
	return cfg
}

// NewTestStore creates a Redis store over an in-memory server
func NewTestStore(t *testing.T) (*store.Redis, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)

	cfg := NewTestConfig().Store
	cfg.Addr = server.Addr()
	cfg.Prefix = "test"
	return store.NewRedis(cfg), server
}

// NewTestJournal opens a journal in the Redis server at addr that retires
// deleted histories to its archive stream
func NewTestJournal(t *testing.T, addr string) *journal.Journal {
	t.Helper()
	cfg := NewTestConfig()
	cfg.Store.Addr = addr
	cfg.Journal.Prefix = "test-journal"
	cfg.Journal.WorkerCount = 0

	jcfg := cfg.JournalStore()
	jcfg.Archiving = true
	jnl, err := journal.Open(jcfg)
	require.NoError(t, err)
	return jnl
}

// NewTestEngine creates an engine over an in-memory Redis server, with a
// journal, an in-memory archive bucket, and every committed event republished on the
// environment's Events topic
func NewTestEngine(t *testing.T) *TestEngineEnv {
	t.Helper()

	st, server := NewTestStore(t)
	bucket := memblob.OpenBucket(nil)
	writer, err := archive.NewWriter(bucket, config.DefaultArchivePrefix)
	require.NoError(t, err)

	events := caravan.NewTopic[event.Event]()
	prod := events.NewProducer()

	jnl := NewTestJournal(t, server.Addr())

	cfg := NewTestConfig()
	cfg.Store.Addr = server.Addr()

	eng, err := engine.New(cfg, engine.Dependencies{
		Store:   st,
		Archive: writer,
		Journal: jnl,
		Handler: func(batch []event.Event) error {
			for _, ev := range batch {
				prod.Send() <- ev
			}
			return nil
		},
	})
	require.NoError(t, err)

	cleanup := func() {
		eng.Stop()
		prod.Close()
		_ = bucket.Close()
		_ = jnl.Close()
		_ = st.Close()
		server.Close()
	}

	return &TestEngineEnv{
		Engine:  eng,
		Store:   st,
		Journal: jnl,
		Redis:   server,
		Bucket:  bucket,
		Config:  cfg,
		Events:  events,
		Cleanup: cleanup,
	}
}

// Deploy deploys a definition and fails the test if that is not possible
func (e *TestEngineEnv) Deploy(t *testing.T, def *api.ProcessDefinition) {
	t.Helper()
	_, err := e.Engine.Deploy(context.Background(), def)
	require.NoError(t, err)
}

// StartInstance deploys a definition and starts an instance of it
func (e *TestEngineEnv) StartInstance(
	t *testing.T, def *api.ProcessDefinition, id api.ProcessInstanceID,
) *engine.Completion {
	t.Helper()
	e.Deploy(t, def)
	res, err := e.Engine.StartInstance(context.Background(), def.ID, id)
	require.NoError(t, err)
	return res
}

// WithTestEnv creates a test engine environment, executes the provided
// function with it, and ensures cleanup happens automatically
func WithTestEnv(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	testEnv := NewTestEngine(t)
	defer testEnv.Cleanup()
	fn(testEnv)
}

// WithEngine creates a test engine, executes the provided function with it,
// and ensures cleanup happens automatically
func WithEngine(t *testing.T, fn func(*engine.Engine)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		fn(env.Engine)
	})
}

// WithStartedEngine is WithTestEnv with event delivery running
func WithStartedEngine(t *testing.T, fn func(*TestEngineEnv)) {
	t.Helper()
	WithTestEnv(t, func(env *TestEngineEnv) {
		env.Engine.Start()
		fn(env)
	})
}
