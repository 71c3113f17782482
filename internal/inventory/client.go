// Package inventory implements the REST client for the downstream
// hardware inventory store. It satisfies the sync engine's Store
// interface and owns a TTL response cache that is invalidated on
// every write.
package inventory

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stenbroen/assetsync/internal/transport"
	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
)

const (
	// pageSize is the number of hardware rows fetched per request.
	pageSize = 200

	// DefaultCacheTTL bounds how long a GetAll response is reused.
	DefaultCacheTTL = 5 * time.Minute
)

// Client talks to the hardware inventory API.
type Client struct {
	transport *transport.Client
	baseURL   string
	ttl       time.Duration
	logger    zerolog.Logger

	mu      sync.Mutex
	cached  []*asset.Record
	expires time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the HTTP transport.
func WithTransport(t *transport.Client) Option {
	return func(c *Client) { c.transport = t }
}

// WithCacheTTL sets how long list responses are served from cache.
// Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates an inventory client for the given base URL and API token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		transport: transport.New(&transport.BearerAuth{}, token),
		baseURL:   baseURL,
		ttl:       DefaultCacheTTL,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// listResponse is the paged shape of the hardware list endpoint.
type listResponse struct {
	Total int            `json:"total"`
	Rows  []hardwareItem `json:"rows"`
}

// GetAll fetches every stored record, serving from the TTL cache when
// it is still fresh.
func (c *Client) GetAll(ctx context.Context) ([]*asset.Record, error) {
	c.mu.Lock()
	if c.cached != nil && time.Now().Before(c.expires) {
		records := c.cached
		c.mu.Unlock()
		c.logger.Debug().Int("records", len(records)).Msg("inventory list served from cache")
		return cloneAll(records), nil
	}
	c.mu.Unlock()

	var all []*asset.Record
	offset := 0
	for {
		var page listResponse
		u := fmt.Sprintf("%s/api/v1/hardware?limit=%d&offset=%d", c.baseURL, pageSize, offset)
		if err := c.transport.GetJSON(ctx, u, &page); err != nil {
			return nil, err
		}
		for _, item := range page.Rows {
			all = append(all, item.record())
		}
		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.Total {
			break
		}
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.cached = all
		c.expires = time.Now().Add(c.ttl)
		c.mu.Unlock()
	}
	c.logger.Debug().Int("records", len(all)).Msg("inventory list fetched")
	return cloneAll(all), nil
}

// GetByIdentity fetches one record by identity key.
func (c *Client) GetByIdentity(ctx context.Context, key string) (*asset.Record, error) {
	u := fmt.Sprintf("%s/api/v1/hardware/byidentity/%s", c.baseURL, url.PathEscape(key))
	var item hardwareItem
	if err := c.transport.GetJSON(ctx, u, &item); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("asset", key)
		}
		return nil, err
	}
	return item.record(), nil
}

// Snapshot returns all stored records keyed by identity key.
func (c *Client) Snapshot(ctx context.Context) (map[string]*asset.Record, error) {
	records, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*asset.Record, len(records))
	for _, rec := range records {
		out[rec.IdentityKey] = rec
	}
	return out, nil
}

// Create stores a new record. The cache is invalidated so the next
// list reflects the write.
func (c *Client) Create(ctx context.Context, rec *asset.Record) (*asset.Record, error) {
	var created hardwareItem
	u := c.baseURL + "/api/v1/hardware"
	if err := c.transport.PostJSON(ctx, u, newItem(rec), &created); err != nil {
		return nil, err
	}
	c.invalidate()
	c.logger.Info().
		Str("identity_key", rec.IdentityKey).
		Int("store_id", created.ID).
		Str("category", created.Category).
		Msg("asset created")
	return created.record(), nil
}

// Update rewrites an existing record by store ID, invalidating the
// cache.
func (c *Client) Update(ctx context.Context, rec *asset.Record) (*asset.Record, error) {
	if rec.StoreID == 0 {
		return nil, errors.NewValidationError("store_id", rec.StoreID, "update requires a store ID")
	}
	var updated hardwareItem
	u := fmt.Sprintf("%s/api/v1/hardware/%d", c.baseURL, rec.StoreID)
	if err := c.transport.PatchJSON(ctx, u, newItem(rec), &updated); err != nil {
		return nil, err
	}
	c.invalidate()
	c.logger.Info().
		Str("identity_key", rec.IdentityKey).
		Int("store_id", rec.StoreID).
		Msg("asset updated")
	return updated.record(), nil
}

// invalidate drops the cached list.
func (c *Client) invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.expires = time.Time{}
	c.mu.Unlock()
}

func cloneAll(records []*asset.Record) []*asset.Record {
	out := make([]*asset.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}
