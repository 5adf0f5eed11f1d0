package finding

import (
	"fmt"
	"sort"
)

// DiagnosticKind classifies a recoverable problem recorded during a run.
type DiagnosticKind string

const (
	DiagAdapterParse       DiagnosticKind = "adapter_parse_error"
	DiagUnknownToolFormat  DiagnosticKind = "unknown_tool_format"
	DiagMissingGroundTruth DiagnosticKind = "missing_ground_truth"
	DiagGroundTruthRow     DiagnosticKind = "ground_truth_row"
	DiagReviewConflict     DiagnosticKind = "review_conflict"
	DiagUnattributed       DiagnosticKind = "unattributed_target"
)

// Diagnostic is one problem that was logged and skipped instead of
// aborting the run.
type Diagnostic struct {
	Tool   string         `json:"tool,omitempty"`
	Target string         `json:"target,omitempty"`
	File   string         `json:"file,omitempty"`
	Kind   DiagnosticKind `json:"kind"`
	Reason string         `json:"reason"`
}

// Err returns the diagnostic as an error wrapping the sentinel for its kind.
func (d Diagnostic) Err() error {
	var base error
	switch d.Kind {
	case DiagAdapterParse:
		base = ErrAdapterParse
	case DiagUnknownToolFormat:
		base = ErrUnknownToolFormat
	case DiagMissingGroundTruth:
		base = ErrMissingGroundTruth
	case DiagReviewConflict:
		base = ErrReviewConflict
	default:
		return fmt.Errorf("%s: %s", d.Kind, d.Reason)
	}
	if d.File != "" {
		return fmt.Errorf("%w: %s: %s", base, d.File, d.Reason)
	}
	return fmt.Errorf("%w: %s", base, d.Reason)
}

// SortDiagnostics orders diagnostics by kind, tool, target, file and reason.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		a, b := diags[i], diags[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Tool != b.Tool {
			return a.Tool < b.Tool
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Reason < b.Reason
	})
}
