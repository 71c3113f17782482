package inventory

import (
	"time"

	"github.com/stenbroen/assetsync/pkg/asset"
)

// fieldValue is the wire form of one tracked field.
type fieldValue struct {
	Value     string    `json:"value"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updated_at"`
}

// hardwareItem is the wire form of a stored asset. Category travels as
// the store's display name ("Firewalls", "Other Assets").
type hardwareItem struct {
	ID               int                   `json:"id,omitempty"`
	IdentityKey      string                `json:"identity_key"`
	Name             string                `json:"name"`
	Category         string                `json:"category"`
	CategoryLocked   bool                  `json:"category_locked,omitempty"`
	Location         string                `json:"location,omitempty"`
	Placement        string                `json:"placement,omitempty"`
	Fields           map[string]fieldValue `json:"fields"`
	LastUpdateSource string                `json:"last_update_source,omitempty"`
	LastUpdateAt     time.Time             `json:"last_update_at,omitempty"`
}

// newItem converts a record to its wire form.
func newItem(rec *asset.Record) hardwareItem {
	fields := make(map[string]fieldValue, len(rec.Fields))
	for k, f := range rec.Fields {
		fields[k] = fieldValue{
			Value:     f.Value,
			Source:    f.Source.String(),
			UpdatedAt: f.UpdatedAt,
		}
	}
	return hardwareItem{
		ID:               rec.StoreID,
		IdentityKey:      rec.IdentityKey,
		Name:             rec.Name(),
		Category:         rec.Category.StoreName(),
		CategoryLocked:   rec.CategoryLocked,
		Location:         rec.Location,
		Placement:        rec.Placement,
		Fields:           fields,
		LastUpdateSource: rec.LastUpdateSource.String(),
		LastUpdateAt:     rec.LastUpdateAt,
	}
}

// record converts a wire item back to a record.
func (i hardwareItem) record() *asset.Record {
	rec := asset.NewRecord(i.IdentityKey)
	rec.StoreID = i.ID
	rec.Category = asset.ParseCategory(i.Category)
	rec.CategoryLocked = i.CategoryLocked
	rec.Location = i.Location
	rec.Placement = i.Placement
	rec.LastUpdateSource = asset.Source(i.LastUpdateSource)
	rec.LastUpdateAt = i.LastUpdateAt
	for k, f := range i.Fields {
		rec.Fields[k] = asset.Field{
			Value:     f.Value,
			Source:    asset.Source(f.Source),
			UpdatedAt: f.UpdatedAt,
		}
	}
	return rec
}
