package syncer

import (
	"fmt"
	"time"

	"github.com/stenbroen/assetsync/pkg/asset"
)

// State is a record's position in the per-record pipeline.
type State string

// Pipeline states. A record moves New -> Classified -> Merged and then
// lands on exactly one terminal state.
const (
	StateNew        State = "new"
	StateClassified State = "classified"
	StateMerged     State = "merged"
	StateCreated    State = "created"
	StateUpdated    State = "updated"
	StateSkipped    State = "skipped"
	StateFailed     State = "failed"
)

// Terminal reports whether the state ends the pipeline.
func (s State) Terminal() bool {
	switch s {
	case StateCreated, StateUpdated, StateSkipped, StateFailed:
		return true
	}
	return false
}

// RecordStatus is the outcome for a single record in a batch.
type RecordStatus struct {
	IdentityKey string
	State       State
	Category    asset.Category
	Err         error // set only when State is failed
}

// Outcome represents the complete result of syncing one source batch.
type Outcome struct {
	Source  asset.Source
	Created int
	Updated int
	Skipped int
	Failed  int
	Records []RecordStatus

	// Operation metadata
	DryRun   bool
	Started  time.Time
	Finished time.Time
}

// HasChanges returns true if the outcome wrote anything.
func (o *Outcome) HasChanges() bool {
	return o.Created > 0 || o.Updated > 0
}

// Duration returns how long the batch took.
func (o *Outcome) Duration() time.Duration {
	return o.Finished.Sub(o.Started)
}

// Summary returns a human-readable summary of the outcome.
func (o *Outcome) Summary() string {
	s := fmt.Sprintf("%s: %d created, %d updated, %d skipped, %d failed",
		o.Source, o.Created, o.Updated, o.Skipped, o.Failed)
	if o.DryRun {
		s += " (dry run)"
	}
	return s
}

// tally recomputes the counters from the per-record statuses.
func (o *Outcome) tally() {
	o.Created, o.Updated, o.Skipped, o.Failed = 0, 0, 0, 0
	for _, r := range o.Records {
		switch r.State {
		case StateCreated:
			o.Created++
		case StateUpdated:
			o.Updated++
		case StateSkipped:
			o.Skipped++
		case StateFailed:
			o.Failed++
		}
	}
}
