package finding

import "strings"

// Severity represents the severity level of a normalized finding.
// All values are lowercase strings.
type Severity string

const (
	// Critical represents immediate system compromise (RCE, auth bypass).
	Critical Severity = "critical"

	// High represents significant impact requiring prompt fix (SQLi, stored XSS).
	High Severity = "high"

	// Medium represents moderate impact (reflected XSS, CSRF).
	Medium Severity = "medium"

	// Low represents limited impact (verbose errors, minor info leak).
	Low Severity = "low"

	// Info represents informational findings with no direct security impact.
	Info Severity = "info"
)

// IsValid reports whether s is a recognized severity level.
func (s Severity) IsValid() bool {
	switch s {
	case Critical, High, Medium, Low, Info:
		return true
	}
	return false
}

// Score returns a numeric score for sorting and comparison.
// Critical=5, High=4, Medium=3, Low=2, Info=1, Unknown=0.
func (s Severity) Score() int {
	switch s {
	case Critical:
		return 5
	case High:
		return 4
	case Medium:
		return 3
	case Low:
		return 2
	case Info:
		return 1
	default:
		return 0
	}
}

// String returns the severity as a string.
func (s Severity) String() string {
	return string(s)
}

// ParseSeverity maps a canonical label, in any case, to a Severity.
// Tool-specific vocabularies are handled by the adapter severity tables.
func ParseSeverity(label string) (Severity, bool) {
	s := Severity(strings.ToLower(strings.TrimSpace(label)))
	return s, s.IsValid()
}

// MaxSeverity returns the most severe of the given levels, or Info when
// none are given.
func MaxSeverity(levels ...Severity) Severity {
	best := Info
	for _, s := range levels {
		if s.Score() > best.Score() {
			best = s
		}
	}
	return best
}

// FromCVSS buckets a CVSS base score: >=9 critical, >=7 high, >=4 medium,
// >0 low, otherwise info.
func FromCVSS(score float64) Severity {
	switch {
	case score >= 9.0:
		return Critical
	case score >= 7.0:
		return High
	case score >= 4.0:
		return Medium
	case score > 0:
		return Low
	default:
		return Info
	}
}
