// Package override implements the static override table: a manually
// curated, highest-priority mapping from IP address to fixed category,
// name and location. A hit bypasses rule-based classification
// entirely.
package override

import (
	"net/netip"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
)

// Entry is one static mapping. Category accepts either the internal
// category name ("Firewall") or the store display name ("Firewalls").
type Entry struct {
	DeviceType string `yaml:"device_type"`
	Category   string `yaml:"category"`
	Name       string `yaml:"host_name"`
	Services   string `yaml:"services,omitempty"`
	Location   string `yaml:"location,omitempty"`
	Placement  string `yaml:"placement,omitempty"`
}

// AssetCategory resolves the entry's category, preferring the explicit
// category field and falling back to the device type.
func (e Entry) AssetCategory() asset.Category {
	if e.Category != "" {
		return asset.ParseCategory(e.Category)
	}
	return asset.ParseCategory(e.DeviceType)
}

// Table is a read-only IP to Entry mapping, loaded once at startup and
// injected into the identity resolver. It is never mutated afterwards.
type Table struct {
	entries map[string]Entry
}

// New builds a table from a map of IP string to entry. IPs must parse;
// a bad address in a hand-maintained table should fail loudly at
// startup rather than silently never match.
func New(entries map[string]Entry) (*Table, error) {
	copied := make(map[string]Entry, len(entries))
	for ip, entry := range entries {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return nil, &errors.ValidationError{
				Field:   "ip",
				Value:   ip,
				Message: "static override key is not a valid IP address",
			}
		}
		copied[addr.String()] = entry
	}
	return &Table{entries: copied}, nil
}

// Empty returns a table with no entries.
func Empty() *Table {
	return &Table{entries: map[string]Entry{}}
}

// Load reads a table from a YAML file. A missing path is not an
// error: deployments without a static table run with an empty one.
func Load(path string) (*Table, error) {
	if path == "" {
		return Empty(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Empty(), nil
		}
		return nil, errors.WrapIO("read", path, err)
	}

	var entries map[string]Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return New(entries)
}

// Lookup returns the entry for an exact IP match.
func (t *Table) Lookup(ip string) (Entry, bool) {
	if t == nil || ip == "" {
		return Entry{}, false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return Entry{}, false
	}
	entry, ok := t.entries[addr.String()]
	return entry, ok
}

// Len returns the number of entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// IPs returns all mapped addresses, for listing and diagnostics.
func (t *Table) IPs() []string {
	out := make([]string, 0, len(t.entries))
	for ip := range t.entries {
		out = append(out, ip)
	}
	return out
}
