// Package portscan discovers hosts and their exposed services with an
// nmap service-detection scan. The service names it reports feed the
// service-based classification rules downstream.
package portscan

import (
	"context"
	"fmt"
	"strings"
	"time"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/logging"
	"github.com/stenbroen/assetsync/pkg/normalize"
)

// DefaultPorts covers the services the classifier knows how to read:
// remote access, web, file sharing, printing and databases.
const DefaultPorts = "22,80,111,139,389,443,445,515,631,1433,1521,2049,3306,3389,5432,9100,27017"

// runner executes one nmap scan. Indirection keeps the nmap binary out
// of unit tests.
type runner func(ctx context.Context, targets []string, ports string) (*nmap.Run, error)

// Source scans configured targets with nmap and reports one record per
// live host.
type Source struct {
	targets []string
	ports   string
	run     runner
	logger  zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithPorts overrides the scanned port list (nmap syntax, for example
// "22,80,8000-8100").
func WithPorts(ports string) Option {
	return func(s *Source) {
		if ports != "" {
			s.ports = ports
		}
	}
}

// WithRunner replaces the scan execution, mainly for tests.
func WithRunner(run runner) Option {
	return func(s *Source) { s.run = run }
}

// WithLogger sets the logger used during scans.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New builds a port scan source. Targets may be CIDR ranges, single
// addresses or hostnames; nmap expands ranges itself.
func New(targets []string, opts ...Option) (*Source, error) {
	if len(targets) == 0 {
		return nil, errors.WrapValidation("port scan targets", errors.New("at least one target is required"))
	}

	s := &Source{
		targets: targets,
		ports:   DefaultPorts,
		run:     runNmap,
		logger:  logging.Nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID implements sources.Source.
func (s *Source) ID() asset.Source {
	return asset.SourceScan
}

// Fetch scans all targets in one nmap invocation and maps every live
// host to a raw record. A failed scan aborts the whole fetch.
func (s *Source) Fetch(ctx context.Context) ([]asset.RawDeviceRecord, error) {
	s.logger.Debug().
		Strs("targets", s.targets).
		Str("ports", s.ports).
		Msg("starting port scan")

	result, err := s.run(ctx, s.targets, s.ports)
	if err != nil {
		return nil, errors.WrapSource(string(asset.SourceScan), err)
	}

	observed := time.Now().UTC()
	var records []asset.RawDeviceRecord
	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}
		records = append(records, hostRecord(host, observed))
	}

	s.logger.Info().
		Int("hosts", len(records)).
		Msg("port scan finished")
	return records, nil
}

func runNmap(ctx context.Context, targets []string, ports string) (*nmap.Run, error) {
	scanner, err := nmap.NewScanner(
		ctx,
		nmap.WithTargets(targets...),
		nmap.WithPorts(ports),
		nmap.WithServiceInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("create nmap scanner: %w", err)
	}

	result, _, err := scanner.Run()
	if err != nil {
		return nil, fmt.Errorf("run nmap scan: %w", err)
	}
	return result, nil
}

// hostRecord maps one nmap host to the canonical raw shape.
func hostRecord(host nmap.Host, observed time.Time) asset.RawDeviceRecord {
	rec := asset.RawDeviceRecord{
		Source:     asset.SourceScan,
		ObservedAt: observed,
	}

	for _, addr := range host.Addresses {
		switch addr.AddrType {
		case "ipv4":
			rec.IP = addr.Addr
		case "mac":
			if mac, ok := normalize.MAC(addr.Addr); ok {
				rec.MAC = mac
			}
			if addr.Vendor != "" {
				rec.SetAttr(asset.AttrManufacturer, addr.Vendor)
			}
		}
	}
	if rec.IP == "" {
		rec.IP = host.Addresses[0].Addr
	}

	if len(host.Hostnames) > 0 && host.Hostnames[0].Name != "" {
		rec.Hostname = host.Hostnames[0].Name
		rec.SetAttr(asset.AttrName, host.Hostnames[0].Name)
	} else {
		rec.SetAttr(asset.AttrName, "Device-"+rec.IP)
	}

	if services := serviceList(host.Ports); services != "" {
		rec.SetAttr(asset.AttrServices, services)
	}

	if len(host.OS.Matches) > 0 {
		// Matches are ordered best first.
		rec.SetAttr(asset.AttrOS, host.OS.Matches[0].Name)
	}

	return rec
}

// serviceList renders the open ports as "service (product version)"
// entries, comma separated.
func serviceList(ports []nmap.Port) string {
	var entries []string
	for _, port := range ports {
		if port.State.State != "open" {
			continue
		}
		name := port.Service.Name
		if name == "" {
			name = fmt.Sprintf("unknown-%d", port.ID)
		}
		if port.Service.Product != "" {
			detail := port.Service.Product
			if port.Service.Version != "" {
				detail += " " + port.Service.Version
			}
			name += " (" + detail + ")"
		}
		entries = append(entries, name)
	}
	return strings.Join(entries, ", ")
}
