// Package provenance provides field-level tracking of which source set
// which value during a sync run.
package provenance

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stenbroen/assetsync/pkg/asset"
)

// Change records one field write on one asset.
type Change struct {
	Source    asset.Source // source that provided the value
	Field     string       // attribute key
	Value     string       // the value that was written
	Previous  string       // previous value, empty on first write
	Timestamp time.Time    // when the value was set
}

// Map tracks change history for multiple assets.
type Map map[string][]Change // key is "identityKey:field"

// Tracker collects field changes during reconciliation.
type Tracker interface {
	// Track records a field write
	Track(identityKey, field string, change Change)

	// FindByField retrieves the change history for a single field
	FindByField(identityKey, field string) []Change

	// FindByAsset retrieves all change history for an asset
	FindByAsset(identityKey string) map[string][]Change

	// Map returns the complete change map
	Map() Map

	// Clear removes all tracked data
	Clear()
}

// tracker is the default implementation. Not safe for concurrent use;
// the sync engine serializes merge decisions per identity key.
type tracker struct {
	changes Map
	enabled bool
}

// NewTracker creates a new change tracker. A disabled tracker accepts
// calls and records nothing.
func NewTracker(enabled bool) Tracker {
	return &tracker{
		changes: make(Map),
		enabled: enabled,
	}
}

// Track records a field write.
func (t *tracker) Track(identityKey, field string, change Change) {
	if !t.enabled {
		return
	}
	if change.Timestamp.IsZero() {
		change.Timestamp = time.Now()
	}
	if change.Field == "" {
		change.Field = field
	}
	key := makeKey(identityKey, field)
	t.changes[key] = append(t.changes[key], change)
}

// FindByField retrieves the change history for a single field.
func (t *tracker) FindByField(identityKey, field string) []Change {
	if !t.enabled {
		return nil
	}
	return t.changes[makeKey(identityKey, field)]
}

// FindByAsset retrieves all change history for an asset.
func (t *tracker) FindByAsset(identityKey string) map[string][]Change {
	if !t.enabled {
		return nil
	}

	result := make(map[string][]Change)
	prefix := identityKey + ":"
	for key, changes := range t.changes {
		if field, found := strings.CutPrefix(key, prefix); found {
			result[field] = changes
		}
	}
	return result
}

// Map returns a copy of the complete change map.
func (t *tracker) Map() Map {
	if !t.enabled {
		return nil
	}

	result := make(Map, len(t.changes))
	for k, v := range t.changes {
		result[k] = append([]Change{}, v...)
	}
	return result
}

// Clear removes all tracked data.
func (t *tracker) Clear() {
	t.changes = make(Map)
}

func makeKey(identityKey, field string) string {
	return identityKey + ":" + field
}

// Report is a per-asset view of a change map.
type Report struct {
	Assets map[string]AssetChanges // key is identity key
}

// AssetChanges holds the field histories for one asset.
type AssetChanges struct {
	IdentityKey string
	Fields      map[string][]Change // newest first
}

// GenerateReport groups a change map by asset and sorts each field's
// history newest first.
func GenerateReport(changes Map) *Report {
	report := &Report{Assets: make(map[string]AssetChanges)}

	for key, history := range changes {
		idx := strings.LastIndex(key, ":")
		if idx < 0 {
			continue
		}
		identityKey, field := key[:idx], key[idx+1:]

		a, ok := report.Assets[identityKey]
		if !ok {
			a = AssetChanges{
				IdentityKey: identityKey,
				Fields:      make(map[string][]Change),
			}
		}

		sorted := append([]Change{}, history...)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		})
		a.Fields[field] = sorted
		report.Assets[identityKey] = a
	}
	return report
}

// String renders a readable change summary for CLI output.
func (r *Report) String() string {
	var sb strings.Builder
	sb.WriteString("Field Changes\n")
	sb.WriteString("=============\n")

	keys := make([]string, 0, len(r.Assets))
	for k := range r.Assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		a := r.Assets[k]
		fmt.Fprintf(&sb, "\n%s\n", a.IdentityKey)

		fields := make([]string, 0, len(a.Fields))
		for f := range a.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)

		for _, f := range fields {
			for _, c := range a.Fields[f] {
				if c.Previous != "" {
					fmt.Fprintf(&sb, "  %s: %q -> %q (%s, %s)\n",
						f, c.Previous, c.Value, c.Source, c.Timestamp.Format(time.RFC3339))
				} else {
					fmt.Fprintf(&sb, "  %s: %q (%s, %s)\n",
						f, c.Value, c.Source, c.Timestamp.Format(time.RFC3339))
				}
			}
		}
	}
	return sb.String()
}
