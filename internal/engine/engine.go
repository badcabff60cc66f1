package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/cascade/internal/channel"
	"github.com/roach88/cascade/internal/depgraph"
	"github.com/roach88/cascade/internal/dirtyq"
	"github.com/roach88/cascade/internal/ir"
)

// Repository is the content persistence collaborator of the engine.
// Implementations return ir.ErrNotFound (possibly wrapped) for missing rows.
// Implemented by store.Store.
type Repository interface {
	channel.Repository

	SaveEntity(ctx context.Context, e *ir.Entity) error
	DeleteEntity(ctx context.Context, ref ir.EntityRef) error

	// Children returns the direct children of kind in a folder.
	Children(ctx context.Context, folderID int64, kind ir.Kind) ([]*ir.Entity, error)

	// SubtreePages returns every page below a folder, at any depth.
	SubtreePages(ctx context.Context, folderID int64) ([]*ir.Entity, error)

	// Siblings returns the language or page variants of e, without e.
	Siblings(ctx context.Context, e *ir.Entity, rel ir.Relation) ([]*ir.Entity, error)
}

// Sequencer stamps trace entries. Implemented by Clock and
// testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
}

// Engine propagates change events through the dependency graph and the
// channel tree, and records the resulting dirty marks on a Tx.
//
// The engine holds no per-pass state: every TriggerEvent call carries its
// own scope, so one Engine serves any number of transactions. A single Tx
// must not be used from more than one goroutine.
type Engine struct {
	repo     Repository
	graph    *depgraph.Graph
	resolver *channel.Resolver
	sink     Committer
	ids      TxIDGenerator
	clock    Sequencer
	limiter  DepthLimiter
	logger   *slog.Logger

	maxDepth     int
	multichannel bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxDepth sets the bound on event depth.
//
// Default: 32 (DefaultMaxDepth). Events beyond it are dropped and counted.
func WithMaxDepth(n int) Option {
	return func(e *Engine) {
		e.maxDepth = n
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMultichannel enables channel handling: localized-copy creation and
// fan-out to inheriting channels. Enabled by default.
func WithMultichannel(enabled bool) Option {
	return func(e *Engine) {
		e.multichannel = enabled
	}
}

// WithClock sets the sequencer used to stamp trace entries.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithTxIDGenerator sets the transaction id generator.
func WithTxIDGenerator(g TxIDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithCommitter sets where committed transactions are written.
func WithCommitter(c Committer) Option {
	return func(e *Engine) {
		e.sink = c
	}
}

// New creates an Engine over repo and graph.
func New(repo Repository, graph *depgraph.Graph, opts ...Option) (*Engine, error) {
	if repo == nil {
		return nil, errors.New("engine: nil repository")
	}
	if graph == nil {
		return nil, errors.New("engine: nil dependency graph")
	}

	e := &Engine{
		repo:         repo,
		graph:        graph,
		ids:          UUIDv7Generator{},
		clock:        NewClock(),
		logger:       slog.Default(),
		maxDepth:     DefaultMaxDepth,
		multichannel: true,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.limiter = NewDepthLimiter(e.maxDepth)
	e.resolver = channel.NewResolver(repo, channel.WithLogger(e.logger))
	return e, nil
}

// Graph returns the dependency graph.
func (e *Engine) Graph() *depgraph.Graph { return e.graph }

// Resolver returns the channel resolver.
func (e *Engine) Resolver() *channel.Resolver { return e.resolver }

// MaxDepth returns the event depth bound.
func (e *Engine) MaxDepth() int { return e.limiter.MaxDepth() }

// Begin opens a transaction in channelID on behalf of userID.
func (e *Engine) Begin(channelID, userID int64) *Tx {
	return &Tx{
		id:        e.ids.Generate(),
		channelID: channelID,
		userID:    userID,
		queue:     dirtyq.New(),
		sink:      e.sink,
		logger:    e.logger,
	}
}

// TriggerEvent is the single entry point of propagation. It delivers an
// event with mask for the listed properties of source (all properties when
// props is empty) at depth in channelID, and recursively everything that
// follows from it. object overrides the dependency object; nil uses source.
//
// Stale references, repeated events and events beyond the depth bound are
// logged, counted and skipped. If the transaction is interrupted the
// remaining work is skipped and an interrupted error is returned; marks
// already recorded stay on the Tx.
func (e *Engine) TriggerEvent(
	ctx context.Context,
	tx *Tx,
	source ir.EntityRef,
	object *ir.EntityRef,
	props []string,
	mask ir.EventMask,
	depth int,
	channelID int64,
) error {
	if tx == nil {
		return errors.New("trigger event: nil transaction")
	}
	if tx.done {
		return errors.New("trigger event: transaction already finished")
	}

	ev := ir.Event{
		Source:     source,
		Object:     object,
		Properties: slices.Clone(props),
		Mask:       mask,
		Depth:      depth,
		ChannelID:  channelID,
	}
	if err := e.propagate(ctx, newScope(tx), ev); err != nil {
		return err
	}
	if tx.Interrupted() {
		return NewInterruptedError(tx.ID())
	}
	return nil
}
