// Package snmpscan discovers network devices by walking configured
// address ranges and querying the standard MIB-II system group over
// SNMP. Hosts that do not answer are skipped silently; one raw record
// is emitted per responsive host.
package snmpscan

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/stenbroen/assetsync/pkg/asset"
	"github.com/stenbroen/assetsync/pkg/errors"
	"github.com/stenbroen/assetsync/pkg/logging"
	"github.com/stenbroen/assetsync/pkg/normalize"
)

// MIB-II system group plus the ENTITY-MIB serial and the first
// interface's physical address.
const (
	oidSysDescr    = ".1.3.6.1.2.1.1.1.0"
	oidSysObjectID = ".1.3.6.1.2.1.1.2.0"
	oidSysContact  = ".1.3.6.1.2.1.1.4.0"
	oidSysName     = ".1.3.6.1.2.1.1.5.0"
	oidSysLocation = ".1.3.6.1.2.1.1.6.0"
	oidEntSerial   = ".1.3.6.1.2.1.47.1.1.1.1.11.1"
	oidIfPhysAddr  = ".1.3.6.1.2.1.2.2.1.6.1"
)

const (
	// DefaultCommunity is the SNMP v2c community string used when none
	// is configured.
	DefaultCommunity = "public"

	defaultPort        = 161
	defaultTimeout     = 2 * time.Second
	defaultRetries     = 1
	defaultConcurrency = 32
)

// SystemInfo is the subset of the MIB-II system group one probe
// collects from a responsive host.
type SystemInfo struct {
	SysDescr    string
	SysObjectID string
	SysName     string
	SysContact  string
	SysLocation string
	Serial      string
	MAC         string
}

// Prober answers a single SNMP query against one host. The second
// return reports whether the host responded at all; unresponsive hosts
// are not errors.
type Prober interface {
	Probe(ctx context.Context, ip string) (SystemInfo, bool)
}

// Source scans one or more CIDR ranges for SNMP-enabled devices.
type Source struct {
	prefixes    []netip.Prefix
	prober      Prober
	concurrency int
	logger      zerolog.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithProber replaces the SNMP transport, mainly for tests.
func WithProber(p Prober) Option {
	return func(s *Source) { s.prober = p }
}

// WithConcurrency bounds the number of hosts probed in parallel.
func WithConcurrency(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithLogger sets the logger used during scans.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New builds an SNMP scan source for the given CIDR ranges. A single
// address is accepted as a /32.
func New(cidrs []string, community string, opts ...Option) (*Source, error) {
	if len(cidrs) == 0 {
		return nil, errors.WrapValidation("snmp scan ranges", errors.New("at least one CIDR is required"))
	}
	if community == "" {
		community = DefaultCommunity
	}

	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := parseRange(cidr)
		if err != nil {
			return nil, err
		}
		prefixes = append(prefixes, prefix)
	}

	s := &Source{
		prefixes:    prefixes,
		prober:      &snmpProber{community: community, port: defaultPort, timeout: defaultTimeout, retries: defaultRetries},
		concurrency: defaultConcurrency,
		logger:      logging.Nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID implements sources.Source.
func (s *Source) ID() asset.Source {
	return asset.SourceSNMP
}

// Fetch probes every host in the configured ranges and returns one
// record per host that answered. Hosts are probed concurrently up to
// the configured limit; only context cancellation aborts the scan.
func (s *Source) Fetch(ctx context.Context) ([]asset.RawDeviceRecord, error) {
	hosts := s.expandHosts()
	s.logger.Debug().
		Int("hosts", len(hosts)).
		Int("ranges", len(s.prefixes)).
		Msg("starting snmp scan")

	var (
		mu      sync.Mutex
		records []asset.RawDeviceRecord
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, host := range hosts {
		host := host
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, ok := s.prober.Probe(gctx, host)
			if !ok {
				return nil
			}
			rec := s.record(host, info)
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.WrapSource(string(asset.SourceSNMP), err)
	}

	s.logger.Info().
		Int("hosts", len(hosts)).
		Int("responsive", len(records)).
		Msg("snmp scan finished")
	return records, nil
}

// record translates one probe result into the canonical raw shape.
func (s *Source) record(ip string, info SystemInfo) asset.RawDeviceRecord {
	rec := asset.RawDeviceRecord{
		Source:     asset.SourceSNMP,
		IP:         ip,
		Hostname:   info.SysName,
		Serial:     info.Serial,
		MAC:        info.MAC,
		ObservedAt: time.Now().UTC(),
	}

	if info.SysName != "" {
		rec.SetAttr(asset.AttrName, info.SysName)
	}
	if info.SysDescr != "" {
		rec.SetAttr(asset.AttrModel, info.SysDescr)
		if vendor := vendorFromDescr(info.SysDescr); vendor != "" {
			rec.SetAttr(asset.AttrManufacturer, vendor)
		}
	}
	if info.SysLocation != "" {
		rec.SetAttr(asset.AttrLocation, info.SysLocation)
	}
	if info.SysContact != "" {
		rec.SetAttr(asset.AttrNotes, "contact: "+info.SysContact)
	}
	return rec
}

// expandHosts enumerates every host address across the configured
// ranges. The all-zeros and broadcast addresses of IPv4 ranges wider
// than /31 are excluded.
func (s *Source) expandHosts() []string {
	var hosts []string
	for _, prefix := range s.prefixes {
		for addr := prefix.Masked().Addr(); prefix.Contains(addr); addr = addr.Next() {
			if skipAddr(prefix, addr) {
				continue
			}
			hosts = append(hosts, addr.String())
		}
	}
	return hosts
}

func skipAddr(prefix netip.Prefix, addr netip.Addr) bool {
	if !addr.Is4() || prefix.Bits() >= 31 {
		return false
	}
	if addr == prefix.Masked().Addr() {
		return true
	}
	return !prefix.Contains(addr.Next())
}

func parseRange(cidr string) (netip.Prefix, error) {
	if !strings.Contains(cidr, "/") {
		addr, err := netip.ParseAddr(cidr)
		if err != nil {
			return netip.Prefix{}, errors.WrapValidation("snmp scan range",
				fmt.Errorf("invalid address %q: %w", cidr, err))
		}
		return netip.PrefixFrom(addr, addr.BitLen()), nil
	}
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return netip.Prefix{}, errors.WrapValidation("snmp scan range",
			fmt.Errorf("invalid CIDR %q: %w", cidr, err))
	}
	return prefix, nil
}

// knownVendors is ordered so multi-character tokens are tried before
// short ones ("sharp" before "hp").
var knownVendors = []struct {
	token string
	name  string
}{
	{"meraki", "Cisco Meraki"},
	{"cisco", "Cisco"},
	{"juniper", "Juniper"},
	{"fortinet", "Fortinet"},
	{"aruba", "Aruba"},
	{"ubiquiti", "Ubiquiti"},
	{"mikrotik", "MikroTik"},
	{"synology", "Synology"},
	{"qnap", "QNAP"},
	{"xerox", "Xerox"},
	{"canon", "Canon"},
	{"ricoh", "Ricoh"},
	{"epson", "Epson"},
	{"brother", "Brother"},
	{"kyocera", "Kyocera"},
	{"sharp", "Sharp"},
	{"konica", "Konica Minolta"},
	{"lenovo", "Lenovo"},
	{"dell", "Dell"},
	{"vmware", "VMware"},
	{"microsoft", "Microsoft"},
	{"hp", "HP"},
}

func vendorFromDescr(sysDescr string) string {
	key := normalize.Key(sysDescr)
	for _, v := range knownVendors {
		if strings.Contains(key, v.token) {
			return v.name
		}
	}
	return ""
}

// snmpProber queries hosts over SNMP v2c.
type snmpProber struct {
	community string
	port      uint16
	timeout   time.Duration
	retries   int
}

func (p *snmpProber) Probe(ctx context.Context, ip string) (SystemInfo, bool) {
	client := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      p.port,
		Community: p.community,
		Version:   gosnmp.Version2c,
		Timeout:   p.timeout,
		Retries:   p.retries,
		Context:   ctx,
	}

	if err := client.Connect(); err != nil {
		return SystemInfo{}, false
	}
	defer client.Conn.Close()

	oids := []string{oidSysDescr, oidSysObjectID, oidSysName, oidSysContact, oidSysLocation, oidEntSerial, oidIfPhysAddr}
	result, err := client.Get(oids)
	if err != nil {
		return SystemInfo{}, false
	}

	var info SystemInfo
	for _, variable := range result.Variables {
		if variable.Name == oidSysObjectID {
			if oid, ok := variable.Value.(string); ok {
				info.SysObjectID = oid
			}
			continue
		}
		value := octetString(variable)
		if value == "" {
			continue
		}
		switch variable.Name {
		case oidSysDescr:
			info.SysDescr = value
		case oidSysName:
			info.SysName = value
		case oidSysContact:
			info.SysContact = value
		case oidSysLocation:
			info.SysLocation = value
		case oidEntSerial:
			info.Serial = value
		case oidIfPhysAddr:
			if mac, ok := normalize.MAC(value); ok {
				info.MAC = mac
			}
		}
	}

	responded := info.SysDescr != "" || info.SysName != ""
	return info, responded
}

// octetString renders an SNMP variable as text. Physical addresses
// arrive as raw bytes and are hex-encoded colon-separated.
func octetString(v gosnmp.SnmpPDU) string {
	raw, ok := v.Value.([]byte)
	if !ok {
		return ""
	}
	if v.Name == oidIfPhysAddr {
		parts := make([]string, len(raw))
		for i, b := range raw {
			parts[i] = fmt.Sprintf("%02X", b)
		}
		return strings.Join(parts, ":")
	}
	return strings.TrimSpace(string(raw))
}
