package portscan

import (
	"context"
	"testing"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
)

func fakeRun(hosts ...nmap.Host) runner {
	return func(context.Context, []string, string) (*nmap.Run, error) {
		return &nmap.Run{Hosts: hosts}, nil
	}
}

func openPort(id uint16, name, product, version string) nmap.Port {
	return nmap.Port{
		ID:      id,
		State:   nmap.State{State: "open"},
		Service: nmap.Service{Name: name, Product: product, Version: version},
	}
}

func TestNewRequiresTargets(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestFetchMapsHosts(t *testing.T) {
	host := nmap.Host{
		Status: nmap.Status{State: "up"},
		Addresses: []nmap.Address{
			{Addr: "192.168.1.50", AddrType: "ipv4"},
			{Addr: "aa:bb:cc:11:22:33", AddrType: "mac", Vendor: "Hewlett Packard"},
		},
		Hostnames: []nmap.Hostname{{Name: "print-2f.corp.example.com"}},
		Ports: []nmap.Port{
			openPort(631, "ipp", "CUPS", "2.4"),
			openPort(9100, "jetdirect", "", ""),
			{ID: 22, State: nmap.State{State: "closed"}, Service: nmap.Service{Name: "ssh"}},
		},
	}

	src, err := New([]string{"192.168.1.0/24"}, WithRunner(fakeRun(host)))
	require.NoError(t, err)
	assert.Equal(t, asset.SourceScan, src.ID())

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, asset.SourceScan, rec.Source)
	assert.Equal(t, "192.168.1.50", rec.IP)
	assert.Equal(t, "AA:BB:CC:11:22:33", rec.MAC)
	assert.Equal(t, "print-2f.corp.example.com", rec.Hostname)
	assert.Equal(t, "print-2f.corp.example.com", rec.Attr(asset.AttrName))
	assert.Equal(t, "Hewlett Packard", rec.Attr(asset.AttrManufacturer))
	assert.Equal(t, "ipp (CUPS 2.4), jetdirect", rec.Attr(asset.AttrServices))
	assert.False(t, rec.ObservedAt.IsZero())
}

func TestFetchSkipsDownHosts(t *testing.T) {
	up := nmap.Host{
		Status:    nmap.Status{State: "up"},
		Addresses: []nmap.Address{{Addr: "10.0.0.5", AddrType: "ipv4"}},
	}
	down := nmap.Host{
		Status:    nmap.Status{State: "down"},
		Addresses: []nmap.Address{{Addr: "10.0.0.6", AddrType: "ipv4"}},
	}

	src, err := New([]string{"10.0.0.0/29"}, WithRunner(fakeRun(up, down)))
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "10.0.0.5", records[0].IP)
	// Hosts without reverse DNS get a synthetic display name.
	assert.Equal(t, "Device-10.0.0.5", records[0].Attr(asset.AttrName))
}

func TestFetchWrapsScanFailure(t *testing.T) {
	src, err := New([]string{"10.0.0.0/29"}, WithRunner(
		func(context.Context, []string, string) (*nmap.Run, error) {
			return nil, errors.New("nmap: exit status 1")
		},
	))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsSourceUnavailable(err))
}

func TestFetchReportsOSGuess(t *testing.T) {
	host := nmap.Host{
		Status:    nmap.Status{State: "up"},
		Addresses: []nmap.Address{{Addr: "10.0.0.9", AddrType: "ipv4"}},
		OS: nmap.OS{Matches: []nmap.OSMatch{
			{Name: "Microsoft Windows Server 2019", Accuracy: 96},
			{Name: "Microsoft Windows 10", Accuracy: 90},
		}},
	}

	src, err := New([]string{"10.0.0.9"}, WithRunner(fakeRun(host)))
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Microsoft Windows Server 2019", records[0].Attr(asset.AttrOS))
}
