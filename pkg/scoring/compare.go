package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

// regressionTolerance is the F1 drop tolerated before a tool counts as
// regressed.
const regressionTolerance = 0.01

// ToolDelta is the change of one tool between two reports.
type ToolDelta struct {
	Tool           finding.Tool `json:"tool"`
	F1Delta        float64      `json:"f1_delta"`
	PrecisionDelta float64      `json:"precision_delta"`
	RecallDelta    float64      `json:"recall_delta"`
	New            bool         `json:"new,omitempty"`
	Removed        bool         `json:"removed,omitempty"`
}

// Comparison is the difference between a baseline report and the
// current one.
type Comparison struct {
	Deltas    []ToolDelta    `json:"deltas"`
	Improved  []finding.Tool `json:"improved"`
	Regressed []finding.Tool `json:"regressed"`
}

// Compare compares two reports tool by tool.
func Compare(baseline, current *Report) *Comparison {
	comp := &Comparison{Deltas: []ToolDelta{}, Improved: []finding.Tool{}, Regressed: []finding.Tool{}}

	tools := map[finding.Tool]bool{}
	for _, r := range baseline.Scorecard {
		tools[r.Tool] = true
	}
	for _, r := range current.Scorecard {
		tools[r.Tool] = true
	}
	names := make([]finding.Tool, 0, len(tools))
	for t := range tools {
		names = append(names, t)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	for _, tool := range names {
		base, inBase := baseline.Row(tool)
		cur, inCur := current.Row(tool)
		d := ToolDelta{
			Tool:           tool,
			F1Delta:        cur.F1 - base.F1,
			PrecisionDelta: cur.Precision - base.Precision,
			RecallDelta:    cur.Recall - base.Recall,
			New:            !inBase,
			Removed:        !inCur,
		}
		comp.Deltas = append(comp.Deltas, d)
		switch {
		case d.New || d.Removed:
		case d.F1Delta > 0:
			comp.Improved = append(comp.Improved, tool)
		case d.F1Delta < -regressionTolerance:
			comp.Regressed = append(comp.Regressed, tool)
		}
	}
	return comp
}

// Text renders the report as a plain-text table for terminals without
// styling.
func (r *Report) Text() string {
	var sb strings.Builder
	rr := r.Rounded()

	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n")
	sb.WriteString("                              TOOL SCORECARD\n")
	sb.WriteString("═══════════════════════════════════════════════════════════════════════════════\n\n")
	if r.BenchmarkDate != "" {
		sb.WriteString(fmt.Sprintf("Benchmark date:  %s\n", r.BenchmarkDate))
	}
	sb.WriteString(fmt.Sprintf("Pending policy:  %s\n", r.PendingPolicy))
	sb.WriteString(fmt.Sprintf("Consensus:       %d tools\n\n", r.ConsensusThreshold))

	sb.WriteString(fmt.Sprintf("  %-12s %-9s %7s %6s %6s %6s %5s %5s %5s %7s %4s %5s\n",
		"TOOL", "CATEGORY", "TARGETS", "F1", "P", "R", "TP", "FP", "FN", "PENDING", "CWEs", "GRADE"))
	for _, row := range rr.Scorecard {
		sb.WriteString(fmt.Sprintf("  %-12s %-9s %7d %6.3f %6.3f %6.3f %5d %5d %5d %7d %4d %5s\n",
			strutil.Truncate(string(row.Tool), 12),
			row.Category,
			row.TargetsScanned,
			row.F1, row.Precision, row.Recall,
			row.TP, row.FP, row.FN, row.Pending,
			row.CWEsFound,
			row.Grade,
		))
	}
	sb.WriteString(fmt.Sprintf("\n  %d tools evaluated\n", len(rr.Scorecard)))

	if len(r.Warnings) > 0 {
		sb.WriteString("\nWarnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s: %s\n", w.Target, w.Reason))
		}
	}
	sb.WriteString("\n═══════════════════════════════════════════════════════════════════════════════\n")
	return sb.String()
}
