package inventory_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stenbroen/assetsync/internal/inventory"
	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
)

func TestGetAllPagination(t *testing.T) {
	var listCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		listCalls++
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		rows := []map[string]any{}
		// Three records served one per page by limiting ourselves.
		if offset < 3 {
			rows = append(rows, map[string]any{
				"id":           offset + 1,
				"identity_key": fmt.Sprintf("serial:unit-%d", offset),
				"category":     "Laptops",
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"total": 3, "rows": rows})
	}))
	defer srv.Close()

	c := inventory.New(srv.URL, "token", inventory.WithCacheTTL(0))
	records, err := c.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, asset.CategoryLaptop, records[0].Category)
	assert.Equal(t, 3, listCalls)
}

func TestSnapshotKeysByIdentity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total": 1,
			"rows": []map[string]any{{
				"id":           42,
				"identity_key": "serial:pf3kxq7t",
				"category":     "Laptops",
				"fields": map[string]any{
					"os": map[string]any{"value": "Windows 11", "source": "mdm"},
				},
			}},
		})
	}))
	defer srv.Close()

	c := inventory.New(srv.URL, "token")
	snap, err := c.Snapshot(context.Background())
	require.NoError(t, err)
	require.Contains(t, snap, "serial:pf3kxq7t")

	rec := snap["serial:pf3kxq7t"]
	assert.Equal(t, 42, rec.StoreID)
	assert.Equal(t, "Windows 11", rec.Value(asset.AttrOS))
	assert.Equal(t, asset.SourceMDM, rec.Fields[asset.AttrOS].Source)
}

func TestGetAllUsesCacheUntilWrite(t *testing.T) {
	var listCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var item map[string]any
			json.NewDecoder(r.Body).Decode(&item)
			item["id"] = 1
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(item)
			return
		}
		listCalls++
		json.NewEncoder(w).Encode(map[string]any{"total": 0, "rows": []any{}})
	}))
	defer srv.Close()

	c := inventory.New(srv.URL, "token", inventory.WithCacheTTL(time.Minute))
	ctx := context.Background()

	_, err := c.GetAll(ctx)
	require.NoError(t, err)
	_, err = c.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, listCalls, "second list should come from cache")

	// A write invalidates the cache.
	rec := asset.NewRecord("serial:new")
	rec.SetField(asset.AttrSerial, "NEW", asset.SourceMDM, time.Now())
	_, err = c.Create(ctx, rec)
	require.NoError(t, err)

	_, err = c.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, listCalls, "list after a write must hit the API")
}

func TestCreateRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.True(t, strings.HasSuffix(r.URL.Path, "/api/v1/hardware"))

		var item map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		assert.Equal(t, "serial:pf3kxq7t", item["identity_key"])
		assert.Equal(t, "Laptops", item["category"])

		item["id"] = 99
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(item)
	}))
	defer srv.Close()

	c := inventory.New(srv.URL, "token")

	rec := asset.NewRecord("serial:pf3kxq7t")
	rec.Category = asset.CategoryLaptop
	rec.SetField(asset.AttrSerial, "PF3KXQ7T", asset.SourceMDM, time.Now())

	created, err := c.Create(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 99, created.StoreID)
	assert.Equal(t, asset.CategoryLaptop, created.Category)
	assert.Equal(t, "PF3KXQ7T", created.Value(asset.AttrSerial))
}

func TestUpdateRequiresStoreID(t *testing.T) {
	c := inventory.New("http://unused", "token")
	_, err := c.Update(context.Background(), asset.NewRecord("serial:x"))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestUpdatePatchesByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.True(t, strings.HasSuffix(r.URL.Path, "/api/v1/hardware/7"))

		var item map[string]any
		json.NewDecoder(r.Body).Decode(&item)
		json.NewEncoder(w).Encode(item)
	}))
	defer srv.Close()

	c := inventory.New(srv.URL, "token")

	rec := asset.NewRecord("serial:pf3kxq7t")
	rec.StoreID = 7
	rec.Category = asset.CategoryLaptop

	updated, err := c.Update(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.StoreID)
}

func TestGetByIdentityNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := inventory.New(srv.URL, "token")
	_, err := c.GetByIdentity(context.Background(), "serial:nope")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
