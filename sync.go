package assetsync

import (
	"context"
	stderrors "errors"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/logging"
	"github.com/stenbroen/assetsync/pkg/syncer"
)

// Sync runs one full cycle for a single registered source: fetch,
// resolve, classify, merge, write. The outcome reports per-record
// results even when some writes failed.
func (c *Client) Sync(ctx context.Context, id asset.Source) (*syncer.Outcome, error) {
	src, ok := c.sources.Get(id)
	if !ok {
		return nil, errors.NewNotFoundError("source", string(id))
	}

	ctx = logging.WithSource(ctx, id)
	logger := logging.FromContext(ctx)

	batch, err := src.Fetch(ctx)
	if err != nil {
		return nil, errors.NewSyncError(string(id), nil, err)
	}
	logger.Debug().Int("records", len(batch)).Msg("source fetch complete")

	outcome, err := c.engine.Run(ctx, id, batch)
	if err != nil {
		return outcome, err
	}

	c.record(ctx, outcome)
	return outcome, nil
}

// SyncAll runs every registered source, least authoritative first, so
// the most trusted source writes last and its values win the merge.
// A failing source does not stop the remaining ones; all failures are
// joined into the returned error.
func (c *Client) SyncAll(ctx context.Context) ([]*syncer.Outcome, error) {
	ordered := c.ranking.Ascending(c.sources.IDs())

	var (
		outcomes []*syncer.Outcome
		errs     []error
	)
	for _, id := range ordered {
		outcome, err := c.Sync(ctx, id)
		if outcome != nil {
			outcomes = append(outcomes, outcome)
		}
		if err != nil {
			c.logger.Error().Err(err).Str("source", string(id)).Msg("source sync failed")
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return outcomes, stderrors.Join(errs...)
}

// record appends the outcome to the run ledger, if one is configured.
// Ledger failures are logged, not returned; the sync itself succeeded.
func (c *Client) record(ctx context.Context, outcome *syncer.Outcome) {
	if c.ledger == nil || outcome == nil {
		return
	}
	if err := c.ledger.Record(ctx, outcome); err != nil {
		c.logger.Warn().Err(err).Str("source", string(outcome.Source)).Msg("failed to record sync run")
	}
}
