package finding

import (
	"fmt"

	"github.com/go-json-experiment/json/jsontext"
)

// Finding is one tool-reported issue in canonical form.
//
// The adapter-populated fields describe what the tool said. The derived
// fields (Fingerprint, NormalizedCWE, NormalizedLocation, CWEInferred)
// are empty until the fingerprint engine returns a derived copy.
type Finding struct {
	ID          string         `json:"finding_id"`
	Tool        Tool           `json:"tool"`
	Target      string         `json:"target"`
	Category    Category       `json:"category"`
	CWE         string         `json:"cwe,omitempty"`
	Severity    Severity       `json:"severity"`
	Location    Location       `json:"location"`
	Description string         `json:"description,omitempty"`
	RawID       string         `json:"raw_id,omitempty"`
	Raw         jsontext.Value `json:"raw,omitzero"`

	Fingerprint        string `json:"fingerprint,omitempty"`
	NormalizedCWE      string `json:"normalized_cwe,omitempty"`
	NormalizedLocation string `json:"normalized_location,omitempty"`
	CWEInferred        bool   `json:"cwe_inferred,omitzero"`
}

// HasFingerprint reports whether the derived fields have been computed.
func (f Finding) HasFingerprint() bool {
	return f.Fingerprint != ""
}

// EffectiveCWE returns the normalized CWE when available, else the raw one.
func (f Finding) EffectiveCWE() string {
	if f.NormalizedCWE != "" {
		return f.NormalizedCWE
	}
	return f.CWE
}

// FormatID builds the per-run identifier "<TOOL>-<TARGET>-NNN".
func FormatID(tool Tool, target string, seq int) string {
	return fmt.Sprintf("%s-%s-%03d", upperASCII(string(tool)), upperASCII(target), seq)
}

func upperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
