// Package identity resolves the canonical identity key for an incoming
// device record. Every record entering the merge engine gets exactly
// one key, chosen by a fixed precedence over its identity attributes.
package identity

import (
	"fmt"
	"strings"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/normalize"
	"github.com/stenbroen/assetsync/pkg/override"
)

// Method names the attribute that produced an identity key.
type Method string

// Resolution methods, strongest first.
const (
	MethodStaticIP Method = "static_ip"
	MethodDeviceID Method = "mdm"
	MethodSerial   Method = "serial"
	MethodMAC      Method = "mac"
	MethodIP       Method = "ip"
	MethodHostname Method = "hostname"
)

// Resolution is the outcome of resolving one record.
type Resolution struct {
	// Key is the canonical identity key, e.g. "serial:pf3kxq7t".
	Key string

	// Method names the attribute the key was derived from.
	Method Method

	// Override is set when the record's IP hit the static table. The
	// entry's category and name take precedence over classification.
	Override *override.Entry

	// LowConfidence marks keys derived from unstable attributes
	// (IP address or hostname). Matches on these are treated as
	// best-effort.
	LowConfidence bool
}

// Resolver derives identity keys. Safe for concurrent use.
type Resolver struct {
	overrides *override.Table
}

// NewResolver returns a resolver backed by the given static override
// table. A nil table behaves as an empty one.
func NewResolver(overrides *override.Table) *Resolver {
	if overrides == nil {
		overrides = override.Empty()
	}
	return &Resolver{overrides: overrides}
}

// Resolve picks the strongest available identity for a record.
//
// Precedence: static override IP, then MDM device ID, then serial
// number, then MAC address, then bare IP, then hostname scoped by
// source. A record with none of these returns ErrNoIdentity.
func (r *Resolver) Resolve(rec asset.RawDeviceRecord) (Resolution, error) {
	if rec.IP != "" {
		if entry, ok := r.overrides.Lookup(rec.IP); ok {
			return Resolution{
				Key:      fmt.Sprintf("static_ip:%s", rec.IP),
				Method:   MethodStaticIP,
				Override: &entry,
			}, nil
		}
	}

	if rec.DeviceID != "" {
		return Resolution{
			Key:    fmt.Sprintf("mdm:%s", strings.ToLower(rec.DeviceID)),
			Method: MethodDeviceID,
		}, nil
	}

	if serial := normalize.Key(rec.Serial); serial != "" && !placeholderSerial(serial) {
		return Resolution{
			Key:    fmt.Sprintf("serial:%s", serial),
			Method: MethodSerial,
		}, nil
	}

	if mac, ok := normalize.MAC(rec.MAC); ok {
		return Resolution{
			Key:    fmt.Sprintf("mac:%s", mac),
			Method: MethodMAC,
		}, nil
	}

	if rec.IP != "" {
		return Resolution{
			Key:           fmt.Sprintf("ip:%s", rec.IP),
			Method:        MethodIP,
			LowConfidence: true,
		}, nil
	}

	if host := normalize.Hostname(rec.Hostname); host != "" {
		return Resolution{
			Key:           fmt.Sprintf("host:%s:%s", rec.Source, host),
			Method:        MethodHostname,
			LowConfidence: true,
		}, nil
	}

	return Resolution{}, errors.ErrNoIdentity
}

// placeholderSerials are values vendors ship instead of a real serial.
// Keying on one of these would collapse unrelated devices into a
// single asset.
// Entries are in normalized key form ("N/A" normalizes to "n a").
var placeholderSerials = map[string]struct{}{
	"unknown":                {},
	"none":                   {},
	"n a":                    {},
	"na":                     {},
	"0":                      {},
	"default string":         {},
	"system serial number":   {},
	"to be filled by o.e.m.": {},
}

func placeholderSerial(s string) bool {
	_, ok := placeholderSerials[s]
	return ok
}
