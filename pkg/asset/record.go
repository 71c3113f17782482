// Package asset defines the data model shared by every stage of the
// reconciliation pipeline: raw per-source records, canonical merged
// records, and the field-level provenance attached to them.
package asset

import (
	"maps"
	"time"
)

// Canonical attribute keys. Per-source adapters translate their native
// shapes into these keys; nothing downstream ever inspects a
// source-specific key.
const (
	AttrName         = "name"
	AttrHostname     = "hostname"
	AttrSerial       = "serial"
	AttrModel        = "model"
	AttrManufacturer = "manufacturer"
	AttrOS           = "os"
	AttrOSVersion    = "os_version"
	AttrMACAddresses = "mac_addresses"
	AttrLastSeenIP   = "last_seen_ip"
	AttrDeviceID     = "device_id"
	AttrServices     = "services"
	AttrLocation     = "location"
	AttrPlacement    = "placement"
	AttrPrimaryUser  = "primary_user"
	AttrNotes        = "notes"
)

// RawDeviceRecord is one device observation as reported by a single
// source, already translated into canonical attribute keys. It is
// created fresh per ingestion cycle and discarded after merge.
type RawDeviceRecord struct {
	Source Source

	// Identity hints, in no particular order. The identity resolver
	// applies its own precedence.
	IP       string
	MAC      string
	Serial   string
	DeviceID string
	Hostname string

	// Attrs holds everything else the source reported.
	Attrs map[string]string

	ObservedAt time.Time
}

// Attr returns the named attribute or the empty string.
func (r RawDeviceRecord) Attr(key string) string {
	return r.Attrs[key]
}

// SetAttr stores an attribute, allocating the map on first use.
func (r *RawDeviceRecord) SetAttr(key, value string) {
	if r.Attrs == nil {
		r.Attrs = make(map[string]string)
	}
	r.Attrs[key] = value
}

// Field is one canonical field value together with its provenance:
// which source wrote it, and when.
type Field struct {
	Value     string    `json:"value" yaml:"value"`
	Source    Source    `json:"source" yaml:"source"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Record is the canonical asset record: the merged, deduplicated view
// of a device across all sources. Exactly one identity key maps to at
// most one Record at any time.
type Record struct {
	IdentityKey string `json:"identity_key" yaml:"identity_key"`

	// StoreID is the downstream store's id, zero until created.
	StoreID int `json:"store_id,omitempty" yaml:"store_id,omitempty"`

	// Category is never empty; classification falls back to
	// CategoryOther. CategoryLocked is set when the category came from
	// the static override table, in which case no rule-based
	// classification may ever replace it.
	Category       Category `json:"category" yaml:"category"`
	CategoryLocked bool     `json:"category_locked,omitempty" yaml:"category_locked,omitempty"`

	Fields map[string]Field `json:"fields" yaml:"fields"`

	// Location and Placement are only ever set via static override.
	Location  string `json:"location,omitempty" yaml:"location,omitempty"`
	Placement string `json:"placement,omitempty" yaml:"placement,omitempty"`

	LastUpdateSource Source    `json:"last_update_source" yaml:"last_update_source"`
	LastUpdateAt     time.Time `json:"last_update_at" yaml:"last_update_at"`
}

// NewRecord creates an empty canonical record for an identity key.
func NewRecord(key string) *Record {
	return &Record{
		IdentityKey: key,
		Category:    CategoryOther,
		Fields:      make(map[string]Field),
	}
}

// Value returns the current value of a field, or the empty string.
func (r *Record) Value(key string) string {
	return r.Fields[key].Value
}

// SetField writes a field value with provenance. Empty values are
// ignored: a field entry is never overwritten with nothing.
func (r *Record) SetField(key, value string, source Source, at time.Time) {
	if value == "" {
		return
	}
	if r.Fields == nil {
		r.Fields = make(map[string]Field)
	}
	r.Fields[key] = Field{Value: value, Source: source, UpdatedAt: at}
}

// Name returns the record's display name field.
func (r *Record) Name() string {
	return r.Value(AttrName)
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Fields = make(map[string]Field, len(r.Fields))
	maps.Copy(out.Fields, r.Fields)
	return &out
}

// FieldsEqual reports whether two records carry identical field
// values. Provenance is deliberately ignored: a re-sync that changes
// no value must not count as an update.
func (r *Record) FieldsEqual(other *Record) bool {
	if other == nil {
		return false
	}
	if r.Category != other.Category ||
		r.Location != other.Location ||
		r.Placement != other.Placement {
		return false
	}
	if len(r.Fields) != len(other.Fields) {
		return false
	}
	for key, f := range r.Fields {
		if other.Fields[key].Value != f.Value {
			return false
		}
	}
	return true
}
