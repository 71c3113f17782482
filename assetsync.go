// Package assetsync reconciles device observations from management
// and scanning sources into a single canonical inventory. It ties the
// identity resolver, classifier and field merger together behind one
// client: register sources, point it at the inventory store, call
// Sync.
package assetsync

import (
	"github.com/rs/zerolog"

	"github.com/stenbroen/assetsync/internal/history"
	"github.com/stenbroen/assetsync/pkg/authority"
	"github.com/stenbroen/assetsync/pkg/classify"
	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/identity"
	"github.com/stenbroen/assetsync/pkg/logging"
	"github.com/stenbroen/assetsync/pkg/override"
	"github.com/stenbroen/assetsync/pkg/provenance"
	"github.com/stenbroen/assetsync/pkg/reconcile"
	"github.com/stenbroen/assetsync/pkg/sources"
	"github.com/stenbroen/assetsync/pkg/syncer"
)

// Client runs sync cycles against one inventory store.
type Client struct {
	store   syncer.Store
	sources *sources.Sources
	engine  *syncer.Engine
	ledger  *history.Ledger
	tracker provenance.Tracker
	ranking authority.Ranking
	logger  zerolog.Logger
}

// New builds a client. A store is required; everything else has a
// working default (no overrides, default authority ranking, tracking
// disabled).
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		overrides:   override.Empty(),
		ranking:     authority.Default(),
		tracker:     provenance.NewTracker(false),
		concurrency: 0,
		logger:      logging.Nop,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.store == nil {
		return nil, errors.NewConfigError("assetsync", "an inventory store is required", nil)
	}

	merger := reconcile.NewMerger(
		reconcile.WithRanking(cfg.ranking),
		reconcile.WithFieldPins(cfg.pins),
		reconcile.WithTracker(cfg.tracker),
		reconcile.WithLogger(cfg.logger),
	)
	engine := syncer.NewEngine(cfg.store,
		syncer.WithResolver(identity.NewResolver(cfg.overrides)),
		syncer.WithClassifier(classify.NewEngine(cfg.logger)),
		syncer.WithMerger(merger),
		syncer.WithConcurrency(cfg.concurrency),
		syncer.WithDryRun(cfg.dryRun),
		syncer.WithLogger(cfg.logger),
	)

	c := &Client{
		store:   cfg.store,
		sources: sources.NewSources(),
		engine:  engine,
		ledger:  cfg.ledger,
		tracker: cfg.tracker,
		ranking: cfg.ranking,
		logger:  cfg.logger,
	}
	for _, src := range cfg.sources {
		c.sources.Set(src)
	}
	return c, nil
}

// Register adds (or replaces) a source.
func (c *Client) Register(src sources.Source) {
	c.sources.Set(src)
}

// Sources lists the registered source IDs.
func (c *Client) Sources() []string {
	ids := c.sources.IDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// Changes returns the field-level change history collected so far.
// Empty unless change tracking was enabled.
func (c *Client) Changes() provenance.Map {
	return c.tracker.Map()
}
