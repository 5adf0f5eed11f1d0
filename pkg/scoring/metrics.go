// Package scoring computes per-tool precision, recall and F1 from triage
// results and missed ground-truth entries.
//
// Findings in pending clusters count as neither true nor false
// positives. Metrics output carries this policy as pending_policy.
package scoring

import (
	"math"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/groundtruth"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

// ToolMetrics is the accuracy of one tool.
type ToolMetrics struct {
	Tool finding.Tool `json:"tool"`
	// TP counts the tool's findings in confirmed clusters.
	TP int `json:"tp"`
	// FP counts the tool's findings in rejected clusters.
	FP int `json:"fp"`
	// FN counts missed ground-truth entries attributed to the tool.
	FN int `json:"fn"`
	// Pending counts the tool's findings in pending clusters; they are
	// excluded from precision and recall.
	Pending   int     `json:"pending"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	// CWEsFound counts distinct explicit CWEs among confirmed clusters
	// the tool contributed to.
	CWEsFound int `json:"cwes_found"`
}

// Compute derives the metrics of tool from triaged records and missed
// entries.
func Compute(tool finding.Tool, records []triage.Record, missed []groundtruth.MissedEntry) ToolMetrics {
	m := ToolMetrics{Tool: tool}
	cwes := make(map[string]bool)
	for _, r := range records {
		n := r.MemberCount(tool)
		if n == 0 {
			continue
		}
		switch r.Status {
		case triage.StatusConfirmed:
			m.TP += n
			if r.CWE != "" && r.CWE != finding.Unclassified && !r.CWEInferred {
				cwes[r.CWE] = true
			}
		case triage.StatusRejected:
			m.FP += n
		default:
			m.Pending += n
		}
	}
	for _, me := range missed {
		if me.HasTool(tool) {
			m.FN++
		}
	}
	m.CWEsFound = len(cwes)
	m.Precision, m.Recall, m.F1 = PRF(m.TP, m.FP, m.FN)
	return m
}

// PRF returns precision, recall and F1. Each is 0 when its denominator
// is 0, so all three stay within [0, 1].
func PRF(tp, fp, fn int) (precision, recall, f1 float64) {
	precision = ratio(tp, tp+fp)
	recall = ratio(tp, tp+fn)
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

func ratio(num, den int) float64 {
	if den <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Round rounds v to three decimals, half away from zero.
func Round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
