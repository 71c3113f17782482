// Package syncer drives one sync run: it normalizes a source batch,
// resolves identities, deduplicates, classifies, merges against the
// store snapshot and issues create/update writes.
package syncer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/classify"
	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/identity"
	"github.com/stenbroen/assetsync/pkg/normalize"
	"github.com/stenbroen/assetsync/pkg/reconcile"
)

// defaultConcurrency bounds parallel store writes.
const defaultConcurrency = 8

// Store is the inventory the engine reconciles against.
type Store interface {
	// Snapshot returns all stored records keyed by identity key.
	Snapshot(ctx context.Context) (map[string]*asset.Record, error)

	// Create stores a new record and returns it with its store ID set.
	Create(ctx context.Context, rec *asset.Record) (*asset.Record, error)

	// Update rewrites an existing record.
	Update(ctx context.Context, rec *asset.Record) (*asset.Record, error)
}

// Engine makes the per-record sync decisions for a batch.
type Engine struct {
	store       Store
	resolver    *identity.Resolver
	classifier  *classify.Engine
	merger      *reconcile.Merger
	concurrency int
	dryRun      bool
	logger      zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithResolver sets the identity resolver.
func WithResolver(r *identity.Resolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// WithClassifier sets the classification engine.
func WithClassifier(c *classify.Engine) Option {
	return func(e *Engine) { e.classifier = c }
}

// WithMerger sets the field merger.
func WithMerger(m *reconcile.Merger) Option {
	return func(e *Engine) { e.merger = m }
}

// WithConcurrency bounds the number of parallel store writes.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithDryRun makes the engine decide without writing.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// NewEngine creates a sync engine writing to the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		concurrency: defaultConcurrency,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resolver == nil {
		e.resolver = identity.NewResolver(nil)
	}
	if e.classifier == nil {
		e.classifier = classify.NewEngine(e.logger)
	}
	if e.merger == nil {
		e.merger = reconcile.NewMerger(reconcile.WithLogger(e.logger))
	}
	return e
}

// decision is one deduplicated record ready to be written.
type decision struct {
	statusIdx int
	record    *asset.Record
	create    bool
}

// Run processes one source batch. Records that cannot be resolved or
// written become failed statuses; the batch keeps going. The returned
// error is reserved for whole-batch aborts (snapshot failure or a
// canceled context).
func (e *Engine) Run(ctx context.Context, source asset.Source, batch []asset.RawDeviceRecord) (*Outcome, error) {
	outcome := &Outcome{
		Source:  source,
		DryRun:  e.dryRun,
		Started: time.Now().UTC(),
	}

	snapshot, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, errors.NewSyncError(source.String(), nil, err)
	}

	// Resolve and deduplicate before any write. First occurrence of an
	// identity key wins; later duplicates only fill its empty fields.
	type entry struct {
		rec asset.RawDeviceRecord
		res identity.Resolution
	}
	var order []string
	byKey := make(map[string]*entry)

	for _, raw := range batch {
		rec := prepare(raw, source)
		res, err := e.resolver.Resolve(rec)
		if err != nil {
			outcome.Records = append(outcome.Records, RecordStatus{
				State: StateFailed,
				Err:   err,
			})
			e.logger.Warn().Err(err).
				Str("source", source.String()).
				Str("hostname", rec.Hostname).
				Msg("record has no identity, skipping")
			continue
		}
		if first, ok := byKey[res.Key]; ok {
			fillEmpty(&first.rec, rec)
			continue
		}
		byKey[res.Key] = &entry{rec: rec, res: res}
		order = append(order, res.Key)
	}

	// Classify and merge serially, then write concurrently.
	var decisions []decision
	for _, key := range order {
		ent := byKey[key]
		category := e.classifier.Classify(ent.rec, ent.res)

		existing := snapshot[key]
		merged, changed := e.merger.Merge(existing, ent.rec, category, ent.res)

		status := RecordStatus{IdentityKey: key, Category: merged.Category}
		switch {
		case existing == nil:
			status.State = StateMerged
			decisions = append(decisions, decision{statusIdx: len(outcome.Records), record: merged, create: true})
		case changed:
			status.State = StateMerged
			decisions = append(decisions, decision{statusIdx: len(outcome.Records), record: merged, create: false})
		default:
			status.State = StateSkipped
		}
		outcome.Records = append(outcome.Records, status)
	}

	if err := e.write(ctx, outcome, decisions); err != nil {
		return nil, err
	}

	outcome.tally()
	outcome.Finished = time.Now().UTC()
	e.logger.Info().
		Str("source", source.String()).
		Int("created", outcome.Created).
		Int("updated", outcome.Updated).
		Int("skipped", outcome.Skipped).
		Int("failed", outcome.Failed).
		Dur("duration", outcome.Duration()).
		Msg("sync batch complete")
	return outcome, nil
}

// write issues the store writes through a bounded worker pool. Each
// decision touches a distinct identity key, so statuses can be updated
// without coordination.
func (e *Engine) write(ctx context.Context, outcome *Outcome, decisions []decision) error {
	if e.dryRun {
		for _, d := range decisions {
			if d.create {
				outcome.Records[d.statusIdx].State = StateCreated
			} else {
				outcome.Records[d.statusIdx].State = StateUpdated
			}
		}
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, d := range decisions {
		d := d
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcome.Records[d.statusIdx].State = StateFailed
				outcome.Records[d.statusIdx].Err = err
				return err
			}

			var err error
			if d.create {
				_, err = e.store.Create(ctx, d.record)
			} else {
				_, err = e.store.Update(ctx, d.record)
			}

			status := &outcome.Records[d.statusIdx]
			if err != nil {
				status.State = StateFailed
				status.Err = errors.NewMergeError(d.record.IdentityKey, string(outcome.Source), err)
				e.logger.Error().Err(err).
					Str("identity_key", d.record.IdentityKey).
					Bool("create", d.create).
					Msg("store write failed")
				return nil // partial failure, keep the batch going
			}
			if d.create {
				status.State = StateCreated
			} else {
				status.State = StateUpdated
			}
			return nil
		})
	}
	return g.Wait()
}

// prepare normalizes a raw record before resolution: canonical MAC,
// cleaned display text, titled vendor casing. The source label is
// forced to the batch's source.
func prepare(raw asset.RawDeviceRecord, source asset.Source) asset.RawDeviceRecord {
	rec := raw
	rec.Source = source
	if rec.Attrs != nil {
		attrs := make(map[string]string, len(rec.Attrs))
		for k, v := range rec.Attrs {
			attrs[k] = v
		}
		rec.Attrs = attrs
	}

	if mac, ok := normalize.MAC(rec.MAC); ok {
		rec.MAC = mac
	}
	if macs := normalize.MACs(rec.Attr(asset.AttrMACAddresses)); len(macs) > 0 {
		rec.SetAttr(asset.AttrMACAddresses, joinMACs(macs))
	}
	if name := rec.Attr(asset.AttrName); name != "" {
		rec.SetAttr(asset.AttrName, normalize.Text(name))
	}
	if model := rec.Attr(asset.AttrModel); model != "" {
		rec.SetAttr(asset.AttrModel, normalize.Text(model))
	}
	if mfr := rec.Attr(asset.AttrManufacturer); mfr != "" {
		rec.SetAttr(asset.AttrManufacturer, normalize.Vendor(mfr))
	}
	return rec
}

// fillEmpty copies values from a duplicate batch record into the first
// occurrence, but only where the first record is empty.
func fillEmpty(dst *asset.RawDeviceRecord, src asset.RawDeviceRecord) {
	if dst.IP == "" {
		dst.IP = src.IP
	}
	if dst.MAC == "" {
		dst.MAC = src.MAC
	}
	if dst.Serial == "" {
		dst.Serial = src.Serial
	}
	if dst.DeviceID == "" {
		dst.DeviceID = src.DeviceID
	}
	if dst.Hostname == "" {
		dst.Hostname = src.Hostname
	}
	for k, v := range src.Attrs {
		if v != "" && dst.Attr(k) == "" {
			dst.SetAttr(k, v)
		}
	}
	if dst.ObservedAt.Before(src.ObservedAt) {
		dst.ObservedAt = src.ObservedAt
	}
}

func joinMACs(macs []string) string {
	out := macs[0]
	for _, m := range macs[1:] {
		out += ", " + m
	}
	return out
}
