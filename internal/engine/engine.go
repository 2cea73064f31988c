package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/kode4food/lru"

	"github.com/kode4food/bpmnflow/internal/archive"
	"github.com/kode4food/bpmnflow/internal/config"
	"github.com/kode4food/bpmnflow/internal/definition"
	"github.com/kode4food/bpmnflow/internal/engine/event"
	"github.com/kode4food/bpmnflow/internal/merge"
	"github.com/kode4food/bpmnflow/internal/store"
	"github.com/kode4food/bpmnflow/pkg/api"
	"github.com/kode4food/bpmnflow/pkg/log"
)

type (
	// Engine drives process instances held in a Store
	Engine struct {
		store    store.Store
		config   *config.Config
		router   definition.Router
		archive  *archive.Writer
		journal  Journal
		graphs   *lru.Cache[*definition.Graph]
		events   *event.Queue
		clock    Clock
		newRefID merge.RefGenerator
	}

	// Dependencies are the collaborators an Engine is built from. Only
	// Store is required
	Dependencies struct {
		Store    store.Store
		Router   definition.Router
		Archive  *archive.Writer
		Journal  Journal
		Handler  event.Handler
		Clock    Clock
		NewRefID merge.RefGenerator
	}

	// Journal keeps the history of committed events beyond the life of
	// an instance's live records
	Journal interface {
		Record(
			ctx context.Context, id api.ProcessInstanceID, events []event.Event,
		) error
		History(
			ctx context.Context, id api.ProcessInstanceID,
		) (*api.InstanceHistory, error)
		Retire(ctx context.Context, id api.ProcessInstanceID) error
	}
)

var (
	ErrMissingDependency = errors.New("missing engine dependency")
	ErrDefinitionExists  = errors.New("process definition already deployed")
	ErrJournalDisabled   = errors.New("engine has no journal")
)

// New creates an Engine from a validated configuration and its
// dependencies
func New(cfg *config.Config, deps Dependencies) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	}

	e := &Engine{
		store:    deps.Store,
		config:   cfg,
		router:   deps.Router,
		archive:  deps.Archive,
		journal:  deps.Journal,
		graphs:   lru.NewCache[*definition.Graph](cfg.DefinitionCacheSize),
		clock:    deps.Clock,
		newRefID: deps.NewRefID,
	}
	if e.router == nil {
		e.router = definition.DefaultRouter{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.newRefID == nil {
		e.newRefID = merge.NewRefID
	}

	handler := deps.Handler
	if handler == nil {
		handler = event.LogHandler
	}
	e.events = event.NewQueue(handler, event.DefaultBatchSize)
	return e, nil
}

// Start begins delivering committed events to the event handler
func (e *Engine) Start() {
	slog.Info("Engine starting")
	e.events.Start()
}

// Stop delivers outstanding events and shuts the Engine down. The Store
// is left open
func (e *Engine) Stop() {
	e.events.Flush()
	slog.Info("Engine stopped")
}

// Deploy validates and stores a process definition. Deploying the same
// definition twice is a no-op, but an ID cannot be reused for different
// content
func (e *Engine) Deploy(
	ctx context.Context, def *api.ProcessDefinition,
) (*definition.Graph, error) {
	g, err := definition.NewGraph(def)
	if err != nil {
		return nil, err
	}

	existing, err := e.store.GetDefinition(ctx, def.ID)
	switch {
	case err == nil:
		if !reflect.DeepEqual(existing, def) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionExists, def.ID)
		}
		return g, nil
	case !errors.Is(err, api.ErrDefinitionNotFound):
		return nil, err
	}

	if err := e.store.PutDefinition(ctx, def); err != nil {
		return nil, err
	}
	slog.Info("Process definition deployed",
		slog.String("definition_id", string(def.ID)),
		slog.Int("nodes", len(def.Nodes)),
		slog.Int("transitions", len(def.Transitions)))
	return g, nil
}

// Graph returns the indexed form of a deployed definition
func (e *Engine) Graph(
	ctx context.Context, id api.DefinitionID,
) (*definition.Graph, error) {
	return e.graphs.Get(string(id), func() (*definition.Graph, error) {
		def, err := e.store.GetDefinition(ctx, id)
		if err != nil {
			return nil, err
		}
		return definition.NewGraph(def)
	})
}

// publish journals the events of a committed transaction and queues them
// for the event handler. The commit stands even if journaling fails
func (e *Engine) publish(
	ctx context.Context, id api.ProcessInstanceID, events []event.Event,
) {
	if len(events) == 0 {
		return
	}
	if e.journal != nil {
		if err := e.journal.Record(ctx, id, events); err != nil {
			slog.Warn("Failed to journal events",
				log.InstanceID(id),
				slog.Int("count", len(events)),
				log.Error(err))
		}
	}
	e.events.Publish(events...)
}

// History returns the journaled history of a process instance
func (e *Engine) History(
	ctx context.Context, id api.ProcessInstanceID,
) (*api.InstanceHistory, error) {
	if e.journal == nil {
		return nil, ErrJournalDisabled
	}
	return e.journal.History(ctx, id)
}

func logResolution(res *Resolution) {
	fn := res.FlowNode
	slog.Debug("Flow node resolved",
		log.InstanceID(fn.ProcessInstanceID),
		log.FlowNodeID(fn.DefinitionID),
		log.FlowNodeInstanceID(fn.ID),
		log.TokenRef(fn.TokenRefID),
		log.Decision(res.Decision.Kind))
}
