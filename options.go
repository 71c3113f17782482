package assetsync

import (
	"github.com/rs/zerolog"

	"github.com/stenbroen/assetsync/internal/history"
	"github.com/stenbroen/assetsync/pkg/authority"
	"github.com/stenbroen/assetsync/pkg/override"
	"github.com/stenbroen/assetsync/pkg/provenance"
	"github.com/stenbroen/assetsync/pkg/sources"
	"github.com/stenbroen/assetsync/pkg/syncer"
)

// config collects the options New accepts.
type config struct {
	store       syncer.Store
	sources     []sources.Source
	overrides   *override.Table
	ranking     authority.Ranking
	pins        []authority.Field
	tracker     provenance.Tracker
	ledger      *history.Ledger
	concurrency int
	dryRun      bool
	logger      zerolog.Logger
}

// Option configures a Client.
type Option func(*config)

// WithStore sets the inventory store records are written to.
// Required.
func WithStore(store syncer.Store) Option {
	return func(c *config) { c.store = store }
}

// WithSource registers a source at construction time. May be given
// more than once.
func WithSource(src sources.Source) Option {
	return func(c *config) { c.sources = append(c.sources, src) }
}

// WithOverrides sets the static override table consulted during
// identity resolution and classification.
func WithOverrides(table *override.Table) Option {
	return func(c *config) {
		if table != nil {
			c.overrides = table
		}
	}
}

// WithRanking replaces the default source authority ranking.
func WithRanking(ranking authority.Ranking) Option {
	return func(c *config) { c.ranking = ranking }
}

// WithFieldPins pins individual fields to an authoritative source.
func WithFieldPins(pins []authority.Field) Option {
	return func(c *config) { c.pins = pins }
}

// WithChangeTracking enables field-level change history.
func WithChangeTracking() Option {
	return func(c *config) { c.tracker = provenance.NewTracker(true) }
}

// WithHistory records completed runs in the given ledger.
func WithHistory(ledger *history.Ledger) Option {
	return func(c *config) { c.ledger = ledger }
}

// WithConcurrency bounds concurrent inventory writes.
func WithConcurrency(n int) Option {
	return func(c *config) { c.concurrency = n }
}

// WithDryRun computes and reports changes without writing any.
func WithDryRun(dryRun bool) Option {
	return func(c *config) { c.dryRun = dryRun }
}

// WithLogger sets the logger used by all components.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *config) { c.logger = logger }
}
