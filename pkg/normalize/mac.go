package normalize

import (
	"regexp"
	"strings"
)

var macSeparators = strings.NewReplacer(":", "", "-", "", ".", "")

// MAC canonicalizes a MAC address to uppercase colon-separated form
// (AA:BB:CC:DD:EE:FF). Inputs that do not contain exactly twelve hex
// digits after separator stripping are rejected.
func MAC(raw string) (string, bool) {
	clean := strings.ToUpper(macSeparators.Replace(strings.TrimSpace(raw)))
	if len(clean) != 12 {
		return "", false
	}
	for _, r := range clean {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			return "", false
		}
	}

	var b strings.Builder
	b.Grow(17)
	for i := 0; i < 12; i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(clean[i : i+2])
	}
	return b.String(), true
}

var macListSplit = regexp.MustCompile(`[\s,;]+`)

// MACs parses a string that may contain several MAC addresses
// separated by whitespace, commas or semicolons. Invalid tokens are
// dropped, duplicates collapsed, order of first appearance kept.
func MACs(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, token := range macListSplit.Split(strings.TrimSpace(raw), -1) {
		mac, ok := MAC(token)
		if !ok {
			continue
		}
		if _, dup := seen[mac]; dup {
			continue
		}
		seen[mac] = struct{}{}
		out = append(out, mac)
	}
	return out
}
