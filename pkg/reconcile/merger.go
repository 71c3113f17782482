// Package reconcile merges incoming device records into stored asset
// records field by field, preserving provenance. Empty values never
// destroy data; non-empty values win last-writer semantics across
// serialized source runs.
package reconcile

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/authority"
	"github.com/stenbroen/assetsync/pkg/identity"
	"github.com/stenbroen/assetsync/pkg/provenance"
)

// Merger folds raw device records into asset records.
type Merger struct {
	ranking authority.Ranking
	pins    []authority.Field
	tracker provenance.Tracker
	logger  zerolog.Logger
}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithRanking sets the per-source trust ranking.
func WithRanking(r authority.Ranking) MergerOption {
	return func(m *Merger) { m.ranking = r }
}

// WithFieldPins pins specific fields to authoritative sources.
func WithFieldPins(pins []authority.Field) MergerOption {
	return func(m *Merger) { m.pins = pins }
}

// WithTracker enables field change tracking.
func WithTracker(t provenance.Tracker) MergerOption {
	return func(m *Merger) { m.tracker = t }
}

// WithLogger sets the merge logger.
func WithLogger(logger zerolog.Logger) MergerOption {
	return func(m *Merger) { m.logger = logger }
}

// NewMerger creates a merger with the default authority ranking.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{
		ranking: authority.Default(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Merge folds an incoming record into the existing one and reports
// whether anything changed. A nil existing record means a new asset:
// all incoming fields land with the incoming source's provenance.
// The existing record is never mutated.
func (m *Merger) Merge(existing *asset.Record, incoming asset.RawDeviceRecord, category asset.Category, res identity.Resolution) (*asset.Record, bool) {
	at := incoming.ObservedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var rec *asset.Record
	if existing == nil {
		rec = asset.NewRecord(res.Key)
	} else {
		rec = existing.Clone()
	}

	changed := existing == nil

	for field, value := range fieldValues(incoming) {
		if m.setField(rec, field, value, incoming.Source, at) {
			changed = true
		}
	}

	if m.applyCategory(rec, category, res, incoming.Source, at) {
		changed = true
	}
	if res.Override != nil && m.applyOverride(rec, res, at) {
		changed = true
	}

	if changed {
		rec.LastUpdateSource = incoming.Source
		rec.LastUpdateAt = at
	}
	return rec, changed
}

// fieldValues flattens a raw record's typed attributes and attr map
// into one field set. Empty values are dropped here so the merge loop
// only ever sees real data.
func fieldValues(rec asset.RawDeviceRecord) map[string]string {
	fields := make(map[string]string, len(rec.Attrs)+5)
	for k, v := range rec.Attrs {
		if v != "" {
			fields[k] = v
		}
	}
	if rec.Serial != "" {
		fields[asset.AttrSerial] = rec.Serial
	}
	if rec.Hostname != "" {
		fields[asset.AttrHostname] = rec.Hostname
	}
	if rec.IP != "" {
		fields[asset.AttrLastSeenIP] = rec.IP
	}
	if rec.MAC != "" {
		fields[asset.AttrMACAddresses] = rec.MAC
	}
	if rec.DeviceID != "" {
		fields[asset.AttrDeviceID] = rec.DeviceID
	}
	return fields
}

// setField writes one field honoring pins, and reports whether the
// record changed. Values are already known non-empty.
func (m *Merger) setField(rec *asset.Record, field, value string, source asset.Source, at time.Time) bool {
	current, exists := rec.Fields[field]
	if exists && current.Value == value {
		return false
	}

	// A filled field pinned to another source only yields to the
	// pinned source or one that outranks it.
	if exists && !m.allowed(field, source) {
		m.logger.Debug().
			Str("field", field).
			Str("source", source.String()).
			Msg("field pinned to a more authoritative source, keeping current value")
		return false
	}

	rec.SetField(field, value, source, at)

	if m.tracker != nil {
		m.tracker.Track(rec.IdentityKey, field, provenance.Change{
			Source:    source,
			Field:     field,
			Value:     value,
			Previous:  current.Value,
			Timestamp: at,
		})
	}
	return true
}

// allowed reports whether a source may overwrite a pinned field.
func (m *Merger) allowed(field string, source asset.Source) bool {
	pin := authority.ByField(field, m.pins)
	if pin == nil || pin.Source == source {
		return true
	}
	return m.ranking.Rank(source) > m.ranking.Rank(pin.Source)
}

// applyCategory replaces the record's category when allowed: a locked
// category (set by a static override) never yields to rule results.
func (m *Merger) applyCategory(rec *asset.Record, category asset.Category, res identity.Resolution, source asset.Source, at time.Time) bool {
	if category == "" || rec.Category == category {
		return false
	}
	if rec.CategoryLocked && res.Override == nil {
		return false
	}
	if m.tracker != nil {
		m.tracker.Track(rec.IdentityKey, "category", provenance.Change{
			Source:    source,
			Field:     "category",
			Value:     category.String(),
			Previous:  rec.Category.String(),
			Timestamp: at,
		})
	}
	rec.Category = category
	return true
}

// applyOverride pins the curated name, location and placement from a
// static table hit and locks the category against rule changes.
func (m *Merger) applyOverride(rec *asset.Record, res identity.Resolution, at time.Time) bool {
	changed := false
	entry := res.Override

	if !rec.CategoryLocked {
		rec.CategoryLocked = true
		changed = true
	}
	if entry.Name != "" && rec.Value(asset.AttrName) != entry.Name {
		rec.SetField(asset.AttrName, entry.Name, asset.SourceStatic, at)
		changed = true
	}
	if entry.Services != "" && rec.Value(asset.AttrServices) == "" {
		rec.SetField(asset.AttrServices, entry.Services, asset.SourceStatic, at)
		changed = true
	}
	if entry.Location != "" && rec.Location != entry.Location {
		rec.Location = entry.Location
		changed = true
	}
	if entry.Placement != "" && rec.Placement != entry.Placement {
		rec.Placement = entry.Placement
		changed = true
	}
	return changed
}
