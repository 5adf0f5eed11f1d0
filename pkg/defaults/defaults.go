// Package defaults provides canonical default values for the benchmark
// pipeline. Config, the CLI and the tests all read these constants
// instead of repeating literals.
//
// Usage:
//
//	cfg.Fingerprint.LineWindow = defaults.LineWindow
//	cfg.ConsensusThreshold = defaults.ConsensusThreshold
package defaults

import "runtime"

// Version is the current candyshop benchmark version.
const Version = "1.3.0"

// ToolName is the binary and service name.
const ToolName = "candyshop"

// ============================================================================
// FINGERPRINT SETTINGS
// ============================================================================

const (
	// LineWindow is the ±line tolerance for SAST locations. Lines are
	// bucketed into bands of width 2*LineWindow+1.
	LineWindow = 3

	// IDPlaceholder replaces ID-like URL path segments.
	IDPlaceholder = "{id}"

	// IDSegmentPattern matches URL path segments that identify a record:
	// integers, UUIDs, long hex strings and opaque tokens.
	IDSegmentPattern = `^(?:\d+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}|[0-9a-fA-F]{16,}|[A-Za-z0-9_-]{32,})$`

	// DefaultMethod is assumed for DAST findings that do not report one.
	DefaultMethod = "GET"
)

// RepoRoots are path prefixes stripped from SAST and IaC file paths so
// that tools scanning from different working directories agree.
var RepoRoots = []string{
	"/github/workspace/",
	"/src/",
	"/app/",
	"/code/",
	"/scan/",
	"/tmp/scan/",
	"/usr/src/app/",
	"/opt/app/",
	"/repo/",
}

// ============================================================================
// TRIAGE SETTINGS
// ============================================================================

const (
	// ConsensusThreshold is the number of distinct tools that confirm a
	// cluster without ground-truth support.
	ConsensusThreshold = 2

	// PendingPolicy records how pending clusters enter the metrics.
	PendingPolicy = "excluded"
)

// KnownTargets are the benchmark applications.
var KnownTargets = []string{
	"altoro-mutual",
	"broken-crystals",
	"dvwa",
	"juice-shop",
	"vulnpy",
	"webgoat",
}

// ============================================================================
// RUNTIME SETTINGS
// ============================================================================

// Concurrency is the default number of parallel adapter workers.
func Concurrency() int {
	n := runtime.GOMAXPROCS(0)
	if n > 16 {
		n = 16
	}
	return n
}

const (
	// DescriptionMaxLen bounds the description column in CSV output.
	DescriptionMaxLen = 200

	// ProgressLogFirst and ProgressLogEvery sample per-file progress logs.
	ProgressLogFirst = 5
	ProgressLogEvery = 25

	// SeverityTableVersion tags the adapter severity tables.
	SeverityTableVersion = "2026.09"
)

// ============================================================================
// OUTPUT FILES
// ============================================================================

const (
	FindingsCSV        = "findings.csv"
	FindingsJSON       = "findings.json"
	DiagnosticsJSON    = "diagnostics.json"
	TriageJSON         = "triage.json"
	TriageSARIF        = "triage.sarif"
	MetricsJSON        = "metrics.json"
	ScorecardCSV       = "tool-scorecard.csv"
	FMeasureSummaryCSV = "fmeasure-summary.csv"
	CWECoverageCSV     = "cwe-coverage.csv"
	ScorecardMarkdown  = "scorecard.md"
	SpeedCSV           = "speed.csv"
	TriageCSVSuffix    = "-auto.csv"
	FinalCSVSuffix     = "-final.csv"
)
