package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/groundtruth"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

// PendingPolicyNote explains the pending policy in metrics output.
const PendingPolicyNote = "findings in pending (single-tool, unverified) clusters are excluded from TP, FP and FN; " +
	"they neither help nor hurt a tool and are reported in the pending column"

// TargetRow is the metrics of one tool on one target.
type TargetRow struct {
	ToolMetrics
	Target        string   `json:"target"`
	// TotalFindings counts the tool's findings on the target whatever
	// their verdict: TP, FP and pending.
	TotalFindings int      `json:"total_findings"`
	ScanDuration  *float64 `json:"scan_duration_seconds,omitempty"`
}

// ScorecardRow aggregates one tool over all targets it scanned.
type ScorecardRow struct {
	ToolMetrics
	Category       finding.Category `json:"category"`
	TargetsScanned int              `json:"targets_scanned"`
	// Macro averages over the tool's targets.
	AvgPrecision float64 `json:"avg_precision"`
	AvgRecall    float64 `json:"avg_recall"`
	AvgF1        float64 `json:"avg_f1"`
	Grade        string  `json:"grade"`
	ScanDuration *float64 `json:"scan_duration_seconds,omitempty"`
}

// CWECoverage is how many ground-truth entries of one CWE a tool found
// on the targets it scanned.
type CWECoverage struct {
	Tool        finding.Tool `json:"tool"`
	CWE         string       `json:"cwe"`
	OWASP       string       `json:"owasp,omitempty"`
	Found       int          `json:"found_count"`
	Missed      int          `json:"missed_count"`
	Total       int          `json:"total_in_ground_truth"`
	CoveragePct float64      `json:"coverage_pct"`
}

// Report is the complete metrics output of a run.
type Report struct {
	BenchmarkDate      string               `json:"benchmark_date,omitempty"`
	PendingPolicy      string               `json:"pending_policy"`
	PendingPolicyNote  string               `json:"pending_policy_note"`
	ConsensusThreshold int                  `json:"consensus_threshold"`
	Scorecard          []ScorecardRow       `json:"scorecard"`
	Targets            []TargetRow          `json:"targets"`
	CWECoverage        []CWECoverage        `json:"cwe_coverage"`
	Warnings           []finding.Diagnostic `json:"warnings"`
}

// Scorer computes reports.
type Scorer struct {
	gradeThresholds []gradeThreshold
	durations       Durations
}

type gradeThreshold struct {
	grade    string
	minScore float64
}

// ScorerOption configures the scorer
type ScorerOption func(*Scorer)

// WithGradeThresholds sets custom grade thresholds on the 0-100 F1 scale
func WithGradeThresholds(thresholds map[string]float64) ScorerOption {
	return func(s *Scorer) {
		s.gradeThresholds = make([]gradeThreshold, 0, len(thresholds))
		for grade, score := range thresholds {
			s.gradeThresholds = append(s.gradeThresholds, gradeThreshold{grade, score})
		}
		// Sort descending by score, then grade for equal scores
		sort.Slice(s.gradeThresholds, func(i, j int) bool {
			if s.gradeThresholds[i].minScore != s.gradeThresholds[j].minScore {
				return s.gradeThresholds[i].minScore > s.gradeThresholds[j].minScore
			}
			return s.gradeThresholds[i].grade < s.gradeThresholds[j].grade
		})
	}
}

// WithDurations attaches scan durations to the per-target rows.
func WithDurations(d Durations) ScorerOption {
	return func(s *Scorer) {
		s.durations = d
	}
}

// NewScorer creates a new scorer
func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{
		gradeThresholds: defaultGradeThresholds(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// defaultGradeThresholds returns default grade thresholds
func defaultGradeThresholds() []gradeThreshold {
	return []gradeThreshold{
		{"A+", 97},
		{"A", 93},
		{"A-", 90},
		{"B+", 87},
		{"B", 83},
		{"B-", 80},
		{"C+", 77},
		{"C", 73},
		{"C-", 70},
		{"D+", 67},
		{"D", 63},
		{"D-", 60},
		{"F", 0},
	}
}

// Score builds the report for a triage document.
func (s *Scorer) Score(doc *triage.Document) *Report {
	records := doc.Records()
	rep := &Report{
		BenchmarkDate:      doc.BenchmarkDate,
		PendingPolicy:      defaults.PendingPolicy,
		PendingPolicyNote:  PendingPolicyNote,
		ConsensusThreshold: doc.ConsensusThreshold,
		Scorecard:          []ScorecardRow{},
		Targets:            []TargetRow{},
		CWECoverage:        []CWECoverage{},
		Warnings:           []finding.Diagnostic{},
	}

	scanned := scannedTargets(doc)
	for _, tool := range sortedTools(scanned) {
		targets := scanned[tool]
		var rows []TargetRow
		for _, target := range targets {
			row := TargetRow{
				ToolMetrics: Compute(tool, recordsFor(records, target), missedFor(doc.Missed, target)),
				Target:      target,
			}
			row.TotalFindings = row.TP + row.FP + row.Pending
			if d, ok := s.durations.Lookup(tool, target); ok {
				row.ScanDuration = &d
			}
			rows = append(rows, row)
		}
		rep.Targets = append(rep.Targets, rows...)
		rep.Scorecard = append(rep.Scorecard, s.aggregate(tool, records, doc.Missed, rows))
		rep.CWECoverage = append(rep.CWECoverage, cweCoverage(tool, targets, records, doc.GroundTruth)...)
	}

	sort.SliceStable(rep.Scorecard, func(i, j int) bool {
		a, b := rep.Scorecard[i], rep.Scorecard[j]
		if a.F1 != b.F1 {
			return a.F1 > b.F1
		}
		return a.Tool < b.Tool
	})
	sort.SliceStable(rep.Targets, func(i, j int) bool {
		a, b := rep.Targets[i], rep.Targets[j]
		if a.F1 != b.F1 {
			return a.F1 > b.F1
		}
		if a.Tool != b.Tool {
			return a.Tool < b.Tool
		}
		return a.Target < b.Target
	})

	gt := groundtruth.NewSetWithTargets(doc.GroundTruth, doc.GroundTruthTargets)
	rep.Warnings = append(rep.Warnings, gt.MissingFor(doc.Targets())...)
	return rep
}

func (s *Scorer) aggregate(tool finding.Tool, records []triage.Record, missed []groundtruth.MissedEntry, rows []TargetRow) ScorecardRow {
	row := ScorecardRow{
		ToolMetrics:    Compute(tool, records, missed),
		Category:       tool.Category(),
		TargetsScanned: len(rows),
	}
	var total float64
	var timed bool
	for _, r := range rows {
		row.AvgPrecision += r.Precision
		row.AvgRecall += r.Recall
		row.AvgF1 += r.F1
		if r.ScanDuration != nil {
			total += *r.ScanDuration
			timed = true
		}
	}
	if n := float64(len(rows)); n > 0 {
		row.AvgPrecision /= n
		row.AvgRecall /= n
		row.AvgF1 /= n
	}
	if timed {
		row.ScanDuration = &total
	}
	row.Grade = s.getGrade(row.F1 * 100)
	return row
}

// getGrade converts a 0-100 score to a letter grade
func (s *Scorer) getGrade(score float64) string {
	for _, t := range s.gradeThresholds {
		if score >= t.minScore {
			return t.grade
		}
	}
	return "F"
}

// scannedTargets returns, per tool, the sorted targets it produced
// results for. Tools are taken from coverage and from cluster members.
func scannedTargets(doc *triage.Document) map[finding.Tool][]string {
	seen := make(map[finding.Tool]map[string]bool)
	add := func(tool finding.Tool, target string) {
		if tool == "" || target == "" {
			return
		}
		if seen[tool] == nil {
			seen[tool] = make(map[string]bool)
		}
		seen[tool][target] = true
	}
	for _, c := range doc.Coverage {
		add(c.Tool, c.Target)
	}
	for _, r := range doc.Records() {
		for _, m := range r.Members {
			add(m.Tool, r.Target)
		}
	}
	out := make(map[finding.Tool][]string, len(seen))
	for tool, targets := range seen {
		for t := range targets {
			out[tool] = append(out[tool], t)
		}
		sort.Strings(out[tool])
	}
	return out
}

func sortedTools(m map[finding.Tool][]string) []finding.Tool {
	out := make([]finding.Tool, 0, len(m))
	for t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func recordsFor(records []triage.Record, target string) []triage.Record {
	var out []triage.Record
	for _, r := range records {
		if r.Target == target {
			out = append(out, r)
		}
	}
	return out
}

func missedFor(missed []groundtruth.MissedEntry, target string) []groundtruth.MissedEntry {
	var out []groundtruth.MissedEntry
	for _, m := range missed {
		if m.Target == target {
			out = append(out, m)
		}
	}
	return out
}

// cweCoverage counts, per ground-truth CWE, the entries on the tool's
// targets that a confirmed cluster with a member from the tool matched.
// Entries outside the tool's categories are not counted.
func cweCoverage(tool finding.Tool, targets []string, records []triage.Record, entries []groundtruth.Entry) []CWECoverage {
	onTarget := make(map[string]bool, len(targets))
	for _, t := range targets {
		onTarget[t] = true
	}
	found := make(map[string]bool)
	for _, r := range records {
		if r.Status != triage.StatusConfirmed || !r.HasTool(tool) {
			continue
		}
		for _, id := range r.GroundTruthEntries {
			found[r.Target+"\x00"+id] = true
		}
	}

	byCWE := make(map[string]*CWECoverage)
	for _, e := range entries {
		if e.CWE == "" || !onTarget[e.Target] || !appliesTo(e, tool) {
			continue
		}
		c := byCWE[e.CWE]
		if c == nil {
			c = &CWECoverage{Tool: tool, CWE: e.CWE}
			if o, ok := defaults.OWASPForCWE(e.CWE); ok {
				c.OWASP = o.Code
			}
			byCWE[e.CWE] = c
		}
		c.Total++
		if found[e.Target+"\x00"+e.ID] {
			c.Found++
		}
	}

	out := make([]CWECoverage, 0, len(byCWE))
	for _, c := range byCWE {
		c.Missed = c.Total - c.Found
		c.CoveragePct = ratio(c.Found, c.Total) * 100
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return cweLess(out[i].CWE, out[j].CWE) })
	return out
}

func appliesTo(e groundtruth.Entry, tool finding.Tool) bool {
	for _, c := range e.Categories() {
		if c == tool.Category() {
			return true
		}
	}
	return false
}

// cweLess orders "CWE-79" before "CWE-89" before "CWE-798".
func cweLess(a, b string) bool {
	var na, nb int
	_, errA := fmt.Sscanf(a, "CWE-%d", &na)
	_, errB := fmt.Sscanf(b, "CWE-%d", &nb)
	if errA == nil && errB == nil && na != nb {
		return na < nb
	}
	return a < b
}

// Rounded returns a copy of the report with every ratio rounded to three
// decimals (coverage percentages to one).
func (r *Report) Rounded() *Report {
	out := *r
	out.Scorecard = make([]ScorecardRow, len(r.Scorecard))
	for i, row := range r.Scorecard {
		row.ToolMetrics = row.ToolMetrics.rounded()
		row.AvgPrecision, row.AvgRecall, row.AvgF1 = Round(row.AvgPrecision), Round(row.AvgRecall), Round(row.AvgF1)
		row.ScanDuration = roundPtr(row.ScanDuration)
		out.Scorecard[i] = row
	}
	out.Targets = make([]TargetRow, len(r.Targets))
	for i, row := range r.Targets {
		row.ToolMetrics = row.ToolMetrics.rounded()
		row.ScanDuration = roundPtr(row.ScanDuration)
		out.Targets[i] = row
	}
	out.CWECoverage = make([]CWECoverage, len(r.CWECoverage))
	for i, c := range r.CWECoverage {
		c.CoveragePct = math.Round(c.CoveragePct*10) / 10
		out.CWECoverage[i] = c
	}
	out.Warnings = append([]finding.Diagnostic{}, r.Warnings...)
	return &out
}

func (m ToolMetrics) rounded() ToolMetrics {
	m.Precision, m.Recall, m.F1 = Round(m.Precision), Round(m.Recall), Round(m.F1)
	return m
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round(*v)
	return &r
}

// Row returns the scorecard row of tool.
func (r *Report) Row(tool finding.Tool) (ScorecardRow, bool) {
	for _, row := range r.Scorecard {
		if row.Tool == tool {
			return row, true
		}
	}
	return ScorecardRow{}, false
}

// GradeFromScore converts a 0-100 score to a letter grade
func GradeFromScore(score float64) string {
	scorer := NewScorer()
	return scorer.getGrade(score)
}

// ScoreFromGrade converts a letter grade to the minimum score
func ScoreFromGrade(grade string) float64 {
	thresholds := defaultGradeThresholds()
	for _, t := range thresholds {
		if t.grade == strings.ToUpper(grade) {
			return t.minScore
		}
	}
	return 0
}
