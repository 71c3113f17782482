// Package mdm adapts a Graph-style managed device API into raw device
// records. The API pages with @odata.nextLink; a fetch follows the
// chain until exhaustion and returns the complete batch.
package mdm

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/stenbroen/assetsync/internal/transport"
	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
)

// devicesPath lists managed devices relative to the API base URL.
const devicesPath = "/v1.0/deviceManagement/managedDevices"

// Source fetches managed devices.
type Source struct {
	transport *transport.Client
	baseURL   string
	logger    zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithTransport replaces the HTTP transport.
func WithTransport(t *transport.Client) Option {
	return func(s *Source) { s.transport = t }
}

// WithLogger sets the source logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New creates an MDM source for the given API base URL and bearer
// token.
func New(baseURL, token string, opts ...Option) *Source {
	s := &Source{
		transport: transport.New(&transport.BearerAuth{}, token),
		baseURL:   baseURL,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID implements sources.Source.
func (s *Source) ID() asset.Source { return asset.SourceMDM }

// devicePage is one page of the managed device list.
type devicePage struct {
	Value    []managedDevice `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

// managedDevice is the subset of the device shape this adapter maps.
type managedDevice struct {
	ID                string    `json:"id"`
	DeviceName        string    `json:"deviceName"`
	OperatingSystem   string    `json:"operatingSystem"`
	OSVersion         string    `json:"osVersion"`
	SerialNumber      string    `json:"serialNumber"`
	Model             string    `json:"model"`
	Manufacturer      string    `json:"manufacturer"`
	WiFiMacAddress    string    `json:"wiFiMacAddress"`
	EthernetMac       string    `json:"ethernetMacAddress"`
	UserPrincipalName string    `json:"userPrincipalName"`
	LastSyncDateTime  time.Time `json:"lastSyncDateTime"`
}

// Fetch pulls every managed device, following pagination links. Any
// page failure aborts the whole fetch; partial batches are never
// returned.
func (s *Source) Fetch(ctx context.Context) ([]asset.RawDeviceRecord, error) {
	var records []asset.RawDeviceRecord

	url := s.baseURL + devicesPath
	pages := 0
	for url != "" {
		var page devicePage
		if err := s.transport.GetJSON(ctx, url, &page); err != nil {
			return nil, errors.WrapSource(asset.SourceMDM.String(), err)
		}
		for _, dev := range page.Value {
			records = append(records, dev.record())
		}
		pages++
		url = page.NextLink
	}

	s.logger.Debug().
		Int("devices", len(records)).
		Int("pages", pages).
		Msg("managed device fetch complete")
	return records, nil
}

// record maps a managed device into the canonical raw record shape.
func (d managedDevice) record() asset.RawDeviceRecord {
	rec := asset.RawDeviceRecord{
		Source:     asset.SourceMDM,
		Serial:     d.SerialNumber,
		DeviceID:   d.ID,
		Hostname:   d.DeviceName,
		MAC:        firstNonEmpty(d.WiFiMacAddress, d.EthernetMac),
		ObservedAt: d.LastSyncDateTime,
	}
	rec.SetAttr(asset.AttrName, d.DeviceName)
	rec.SetAttr(asset.AttrOS, d.OperatingSystem)
	rec.SetAttr(asset.AttrOSVersion, d.OSVersion)
	rec.SetAttr(asset.AttrModel, d.Model)
	rec.SetAttr(asset.AttrManufacturer, d.Manufacturer)
	rec.SetAttr(asset.AttrPrimaryUser, d.UserPrincipalName)
	rec.SetAttr(asset.AttrMACAddresses, joinNonEmpty(d.WiFiMacAddress, d.EthernetMac))
	return rec
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(values ...string) string {
	out := ""
	for _, v := range values {
		if v == "" {
			continue
		}
		if out != "" {
			out += ", "
		}
		out += v
	}
	return out
}
