package adapters

import (
	"sort"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
)

// SeverityTable maps one tool's severity vocabulary onto finding.Severity.
// Tables are versioned so that a change in mapping is visible in the
// benchmark outputs that used it.
type SeverityTable struct {
	Tool    finding.Tool
	Version string
	Default finding.Severity
	labels  map[string]finding.Severity
}

func newSeverityTable(tool finding.Tool, def finding.Severity, labels map[string]finding.Severity) *SeverityTable {
	return &SeverityTable{Tool: tool, Version: defaults.SeverityTableVersion, Default: def, labels: labels}
}

// Map returns the severity for label, matched case-insensitively, or the
// table default when the label is blank or unknown.
func (t *SeverityTable) Map(label string) finding.Severity {
	if s, ok := t.Lookup(label); ok {
		return s
	}
	return t.Default
}

// Lookup is Map without the default.
func (t *SeverityTable) Lookup(label string) (finding.Severity, bool) {
	s, ok := t.labels[strings.ToLower(strings.TrimSpace(label))]
	return s, ok
}

// Labels returns the table's known labels, sorted.
func (t *SeverityTable) Labels() []string {
	out := make([]string, 0, len(t.labels))
	for l := range t.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

var standardLabels = map[string]finding.Severity{
	"critical": finding.Critical,
	"high":     finding.High,
	"medium":   finding.Medium,
	"low":      finding.Low,
	"info":     finding.Info,
}

func withStandard(extra map[string]finding.Severity) map[string]finding.Severity {
	out := make(map[string]finding.Severity, len(standardLabels)+len(extra))
	for k, v := range standardLabels {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

var (
	trivySeverity = newSeverityTable(finding.Trivy, finding.Medium, withStandard(map[string]finding.Severity{
		"unknown": finding.Info,
	}))

	grypeSeverity = newSeverityTable(finding.Grype, finding.Medium, withStandard(map[string]finding.Severity{
		"negligible": finding.Info,
		"unknown":    finding.Info,
	}))

	bearerSeverity = newSeverityTable(finding.Bearer, finding.Medium, withStandard(map[string]finding.Severity{
		"warning": finding.Medium,
	}))

	nodejsscanSeverity = newSeverityTable(finding.NodeJsScan, finding.Medium, withStandard(map[string]finding.Severity{
		"error":   finding.High,
		"warning": finding.Medium,
		"info":    finding.Low,
	}))

	banditSeverity = newSeverityTable(finding.Bandit, finding.Medium, withStandard(map[string]finding.Severity{
		"undefined": finding.Info,
	}))

	npmAuditSeverity = newSeverityTable(finding.NpmAudit, finding.Medium, withStandard(map[string]finding.Severity{
		"moderate": finding.Medium,
	}))

	// pip-audit reports no severity at all.
	pipAuditSeverity = newSeverityTable(finding.PipAudit, finding.Medium, withStandard(nil))

	depCheckSeverity = newSeverityTable(finding.DepCheck, finding.Medium, withStandard(map[string]finding.Severity{
		"moderate": finding.Medium,
	}))

	// ZAP risk codes: 3=High, 2=Medium, 1=Low, 0=Informational.
	zapSeverity = newSeverityTable(finding.ZAP, finding.Medium, withStandard(map[string]finding.Severity{
		"3":             finding.High,
		"2":             finding.Medium,
		"1":             finding.Low,
		"0":             finding.Info,
		"informational": finding.Info,
	}))

	nucleiSeverity = newSeverityTable(finding.Nuclei, finding.Medium, withStandard(map[string]finding.Severity{
		"unknown": finding.Info,
	}))

	checkovSeverity = newSeverityTable(finding.Checkov, finding.Medium, withStandard(nil))
)
