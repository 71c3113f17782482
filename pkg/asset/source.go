package asset

import "slices"

// Source identifies which collaborator produced a raw record.
type Source string

// String returns the string representation of a source.
func (s Source) String() string {
	return string(s)
}

// Known sources.
const (
	// SourceStatic is the manually curated override table.
	SourceStatic Source = "static"
	// SourceMDM is the device management inventory API.
	SourceMDM Source = "mdm"
	// SourceSNMP is the SNMP subnet poller.
	SourceSNMP Source = "snmp"
	// SourceScan is the network port scanner.
	SourceScan Source = "scan"
)

// Sources returns all known sources.
func Sources() []Source {
	return []Source{SourceStatic, SourceMDM, SourceSNMP, SourceScan}
}

// IsValid returns true if the source is one of the defined constants.
func (s Source) IsValid() bool {
	return slices.Contains(Sources(), s)
}
