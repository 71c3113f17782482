// Package authority defines the per-source trust ranking used when
// multiple sources report the same asset within one run. Across runs
// the merge engine is last-writer-wins; authority decides the write
// order inside a run and arbitrates explicit field pins.
package authority

import (
	"path/filepath"
	"slices"
	"sort"

	"github.com/stenbroen/assetsync/pkg/asset"
)

// Ranking orders sources by trust. Higher rank wins conflicts.
type Ranking struct {
	order map[asset.Source]int
}

// Default returns the standard ranking: managed inventory first, then
// active scan results, then SNMP polling, with the static table as a
// fill-only baseline.
func Default() Ranking {
	return New(asset.SourceMDM, asset.SourceScan, asset.SourceSNMP, asset.SourceStatic)
}

// New builds a ranking from sources listed most-trusted first.
// Unlisted sources rank zero.
func New(mostTrustedFirst ...asset.Source) Ranking {
	order := make(map[asset.Source]int, len(mostTrustedFirst))
	for i, s := range mostTrustedFirst {
		order[s] = len(mostTrustedFirst) - i
	}
	return Ranking{order: order}
}

// Rank returns the trust rank for a source. Zero means unranked.
func (r Ranking) Rank(s asset.Source) int {
	return r.order[s]
}

// Compare orders two sources by rank, lowest first, suitable for
// slices.SortFunc.
func (r Ranking) Compare(a, b asset.Source) int {
	return r.Rank(a) - r.Rank(b)
}

// Ascending returns the given sources sorted least-trusted first.
// Running source batches in this order makes last-writer-wins land on
// the most trusted source's values.
func (r Ranking) Ascending(srcs []asset.Source) []asset.Source {
	out := slices.Clone(srcs)
	sort.SliceStable(out, func(i, j int) bool {
		return r.Rank(out[i]) < r.Rank(out[j])
	})
	return out
}

// Field pins a record field to an authoritative source. When a pin
// matches, only the pinned source (or a source that outranks it) may
// overwrite the field.
type Field struct {
	Path     string       `json:"path" yaml:"path"`         // attribute key, * wildcard allowed
	Source   asset.Source `json:"source" yaml:"source"`     // which source is authoritative
	Priority int          `json:"priority" yaml:"priority"` // higher = more specific pin
}

// ByField returns the best matching pin for a field path, preferring
// higher priority, then longer (more specific) patterns.
func ByField(fieldPath string, pins []Field) *Field {
	var best *Field
	var bestPriority, bestLen int

	for i, pin := range pins {
		if !MatchesPattern(fieldPath, pin.Path) {
			continue
		}
		if best == nil || pin.Priority > bestPriority ||
			(pin.Priority == bestPriority && len(pin.Path) > bestLen) {
			best = &pins[i]
			bestPriority = pin.Priority
			bestLen = len(pin.Path)
		}
	}
	return best
}

// MatchesPattern checks if a field path matches a pattern (supports * wildcards)
func MatchesPattern(fieldPath, pattern string) bool {
	if fieldPath == pattern {
		return true
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(fieldPath) >= len(prefix) && fieldPath[:len(prefix)] == prefix
	}
	matched, err := filepath.Match(pattern, fieldPath)
	if err != nil {
		return false
	}
	return matched
}
