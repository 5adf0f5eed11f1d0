package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candyshop-benchmark/candyshop/pkg/cluster"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/fingerprint"
	"github.com/candyshop-benchmark/candyshop/pkg/groundtruth"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

func TestPRF_Bounds(t *testing.T) {
	for tp := 0; tp <= 6; tp++ {
		for fp := 0; fp <= 6; fp++ {
			for fn := 0; fn <= 6; fn++ {
				p, r, f1 := PRF(tp, fp, fn)
				for _, v := range []float64{p, r, f1} {
					require.GreaterOrEqual(t, v, 0.0)
					require.LessOrEqual(t, v, 1.0)
				}
				if p == 0 || r == 0 {
					require.Zero(t, f1, "tp=%d fp=%d fn=%d", tp, fp, fn)
				}
			}
		}
	}
}

func TestPRF_Values(t *testing.T) {
	p, r, f1 := PRF(3, 1, 2)
	assert.InDelta(t, 0.75, p, 1e-9)
	assert.InDelta(t, 0.6, r, 1e-9)
	assert.InDelta(t, 2*0.75*0.6/1.35, f1, 1e-9)

	p, r, f1 = PRF(0, 0, 0)
	assert.Zero(t, p)
	assert.Zero(t, r)
	assert.Zero(t, f1)
}

func TestCompute_PendingExcluded(t *testing.T) {
	records := []triage.Record{
		{Status: triage.StatusConfirmed, CWE: "CWE-89", Tools: []finding.Tool{finding.ZAP},
			Members: []triage.Member{{Tool: finding.ZAP}, {Tool: finding.ZAP}}},
		{Status: triage.StatusConfirmed, CWE: "CWE-79", CWEInferred: true, Tools: []finding.Tool{finding.ZAP},
			Members: []triage.Member{{Tool: finding.ZAP}}},
		{Status: triage.StatusRejected, CWE: "CWE-200", Tools: []finding.Tool{finding.ZAP},
			Members: []triage.Member{{Tool: finding.ZAP}}},
		{Status: triage.StatusPending, CWE: "CWE-22", Tools: []finding.Tool{finding.ZAP},
			Members: []triage.Member{{Tool: finding.ZAP}}},
		{Status: triage.StatusConfirmed, CWE: "CWE-78", Tools: []finding.Tool{finding.Nuclei},
			Members: []triage.Member{{Tool: finding.Nuclei}}},
	}
	missed := []groundtruth.MissedEntry{
		{EntryID: "1", Tools: []finding.Tool{finding.ZAP, finding.Nuclei}},
		{EntryID: "2", Tools: []finding.Tool{finding.Nuclei}},
	}

	m := Compute(finding.ZAP, records, missed)
	assert.Equal(t, 3, m.TP)
	assert.Equal(t, 1, m.FP)
	assert.Equal(t, 1, m.FN)
	assert.Equal(t, 1, m.Pending)
	assert.Equal(t, 1, m.CWEsFound, "inferred CWEs are not counted")
	assert.InDelta(t, 0.75, m.Precision, 1e-9)
	assert.InDelta(t, 0.75, m.Recall, 1e-9)

	n := Compute(finding.Nuclei, records, missed)
	assert.Equal(t, 1, n.TP)
	assert.Equal(t, 2, n.FN)
}

type harness struct {
	builder *cluster.Builder
	matcher *groundtruth.Matcher
	set     *groundtruth.Set
}

func newHarness(t *testing.T, entries ...groundtruth.Entry) harness {
	t.Helper()
	e := fingerprint.MustNew(fingerprint.DefaultConfig())
	set := groundtruth.NewSet(entries)
	m, diags := groundtruth.NewMatcher(e, set)
	require.Empty(t, diags)
	return harness{builder: cluster.NewBuilder(e), matcher: m, set: set}
}

func (h harness) document(t *testing.T, findings []finding.Finding, coverage []finding.Coverage) *triage.Document {
	t.Helper()
	clusters := h.builder.Build(findings)
	decisions, _ := triage.NewClassifier(h.matcher).ClassifyAll(clusters)
	doc := triage.NewDocument(decisions)
	doc.ConsensusThreshold = 2
	doc.Coverage = coverage
	doc.Missed = h.matcher.Reconcile(clusters, coverage)
	doc.GroundTruth = h.set.All()
	doc.GroundTruthTargets = h.set.Targets()
	return doc
}

func url(tool finding.Tool, target, rawURL, param, cwe string) finding.Finding {
	return finding.Finding{
		Tool: tool, Target: target, Category: tool.Category(), CWE: cwe, Severity: finding.High,
		Location: finding.Location{Kind: finding.KindURL, Method: "GET", URL: rawURL, Param: param},
	}
}

func TestScore_DVWAGroundTruthFound(t *testing.T) {
	h := newHarness(t, groundtruth.Entry{ID: "DVWA-1", Target: "dvwa", CWE: "CWE-89", LocationPattern: "/login.php#username"})
	coverage := []finding.Coverage{
		{Tool: finding.ZAP, Target: "dvwa"},
		{Tool: finding.Nuclei, Target: "dvwa"},
		{Tool: finding.Bearer, Target: "dvwa"},
	}
	doc := h.document(t, []finding.Finding{
		url(finding.ZAP, "dvwa", "http://localhost/login.php", "username", "CWE-89"),
	}, coverage)

	require.Len(t, doc.Confirmed, 1)
	assert.Equal(t, triage.ReasonGroundTruth, doc.Confirmed[0].Reason)
	assert.Empty(t, doc.Missed)

	rep := NewScorer().Score(doc)
	zap, ok := rep.Row(finding.ZAP)
	require.True(t, ok)
	assert.Equal(t, 1, zap.TP)
	assert.Equal(t, 0, zap.FN)
	assert.Equal(t, 1.0, zap.F1)
	assert.Equal(t, "A+", zap.Grade)

	nuclei, ok := rep.Row(finding.Nuclei)
	require.True(t, ok)
	assert.Equal(t, 0, nuclei.FN, "the entry was found, so nobody is charged a false negative")
	assert.Equal(t, 1, nuclei.TargetsScanned)

	assert.Equal(t, finding.ZAP, rep.Scorecard[0].Tool)
	assert.Equal(t, "excluded", rep.PendingPolicy)
	assert.Empty(t, rep.Warnings)
}

func TestScore_DVWAGroundTruthMissed(t *testing.T) {
	h := newHarness(t, groundtruth.Entry{ID: "DVWA-1", Target: "dvwa", CWE: "CWE-89", LocationPattern: "/login.php#username"})
	coverage := []finding.Coverage{
		{Tool: finding.ZAP, Target: "dvwa"},
		{Tool: finding.Bearer, Target: "dvwa"},
		{Tool: finding.Trivy, Target: "dvwa"},
	}
	doc := h.document(t, nil, coverage)
	require.Len(t, doc.Missed, 1)
	assert.Equal(t, []finding.Tool{finding.Bearer, finding.ZAP}, doc.Missed[0].Tools)

	rep := NewScorer().Score(doc)
	for _, tool := range []finding.Tool{finding.ZAP, finding.Bearer} {
		row, ok := rep.Row(tool)
		require.True(t, ok)
		assert.Equal(t, 1, row.FN, string(tool))
		assert.Zero(t, row.Recall)
		assert.Zero(t, row.F1)
	}
	trivy, ok := rep.Row(finding.Trivy)
	require.True(t, ok)
	assert.Zero(t, trivy.FN, "container scanners are not charged for a SAST/DAST entry")
}

func TestScore_BrokenCrystalsConsensus(t *testing.T) {
	h := newHarness(t)
	doc := h.document(t, []finding.Finding{
		url(finding.ZAP, "broken-crystals", "http://localhost:3000/search?q=x", "", "CWE-79"),
		url(finding.Nuclei, "broken-crystals", "https://bc/search?q=alert(1)", "q", "CWE-79"),
	}, nil)

	require.Len(t, doc.Confirmed, 1)
	rec := doc.Confirmed[0]
	assert.Equal(t, []finding.Tool{finding.Nuclei, finding.ZAP}, rec.Tools)
	assert.Equal(t, triage.ReasonConsensus, rec.Reason)

	rep := NewScorer().Score(doc)
	for _, tool := range []finding.Tool{finding.ZAP, finding.Nuclei} {
		row, ok := rep.Row(tool)
		require.True(t, ok)
		assert.Equal(t, 1, row.TP)
		assert.Equal(t, 1, row.CWEsFound)
		// No ground truth: recall is 1 with no false negatives to count.
		assert.Equal(t, 1.0, row.Recall)
	}
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, "broken-crystals", rep.Warnings[0].Target)
	assert.Equal(t, finding.DiagMissingGroundTruth, rep.Warnings[0].Kind)
}

func TestScore_TargetsAndCoverage(t *testing.T) {
	h := newHarness(t,
		groundtruth.Entry{ID: "J1", Target: "juice-shop", CWE: "CWE-89", LocationPattern: "routes/search.ts"},
		groundtruth.Entry{ID: "J2", Target: "juice-shop", CWE: "CWE-89", LocationPattern: "routes/login.ts"},
		groundtruth.Entry{ID: "J3", Target: "juice-shop", CWE: "CWE-1321", Category: finding.SCA},
		groundtruth.Entry{ID: "D1", Target: "dvwa", CWE: "CWE-89", LocationPattern: "/login.php#username"},
	)
	sast := func(tool finding.Tool, p string, line int) finding.Finding {
		return finding.Finding{
			Tool: tool, Target: "juice-shop", Category: finding.SAST, CWE: "CWE-89", Severity: finding.High,
			Location: finding.Location{Kind: finding.KindFile, Path: p, StartLine: line},
		}
	}
	coverage := []finding.Coverage{
		{Tool: finding.Bearer, Target: "juice-shop"},
		{Tool: finding.Bearer, Target: "dvwa"},
		{Tool: finding.NodeJsScan, Target: "juice-shop"},
	}
	doc := h.document(t, []finding.Finding{
		sast(finding.Bearer, "routes/search.ts", 10),
		sast(finding.NodeJsScan, "routes/other.ts", 5),
	}, coverage)

	d := Durations{}
	d.Set(finding.Bearer, "juice-shop", 12.5)
	d.Set(finding.Bearer, "dvwa", 2)
	rep := NewScorer(WithDurations(d)).Score(doc)

	bearer, ok := rep.Row(finding.Bearer)
	require.True(t, ok)
	assert.Equal(t, 2, bearer.TargetsScanned)
	assert.Equal(t, 1, bearer.TP)
	assert.Equal(t, 2, bearer.FN) // J2 on juice-shop, D1 on dvwa
	require.NotNil(t, bearer.ScanDuration)
	assert.Equal(t, 14.5, *bearer.ScanDuration)

	var juice *TargetRow
	for i := range rep.Targets {
		if rep.Targets[i].Tool == finding.Bearer && rep.Targets[i].Target == "juice-shop" {
			juice = &rep.Targets[i]
		}
	}
	require.NotNil(t, juice)
	assert.Equal(t, 1, juice.FN)
	assert.InDelta(t, 0.5, juice.Recall, 1e-9)
	assert.Equal(t, 1, juice.TotalFindings)

	nodejs, ok := rep.Row(finding.NodeJsScan)
	require.True(t, ok)
	assert.Equal(t, 1, nodejs.Pending)
	assert.Zero(t, nodejs.TP)
	for _, row := range rep.Targets {
		if row.Tool == finding.NodeJsScan {
			assert.Equal(t, "juice-shop", row.Target)
			assert.Equal(t, 1, row.Pending)
			assert.Equal(t, 1, row.TotalFindings, "pending findings still count toward the target volume")
		}
	}

	var cov []CWECoverage
	for _, c := range rep.CWECoverage {
		if c.Tool == finding.Bearer {
			cov = append(cov, c)
		}
	}
	require.Len(t, cov, 1, "the SCA entry does not apply to a SAST tool")
	assert.Equal(t, "CWE-89", cov[0].CWE)
	assert.Equal(t, "A03:2021", cov[0].OWASP)
	assert.Equal(t, 1, cov[0].Found)
	assert.Equal(t, 2, cov[0].Missed)
	assert.Equal(t, 3, cov[0].Total)
	assert.InDelta(t, 33.333, cov[0].CoveragePct, 0.001)
	assert.Equal(t, 33.3, rep.Rounded().CWECoverage[0].CoveragePct)
}

func TestScorecardOrder(t *testing.T) {
	h := newHarness(t)
	doc := h.document(t, []finding.Finding{
		url(finding.ZAP, "dvwa", "/a?x=1", "", "CWE-79"),
		url(finding.Nuclei, "dvwa", "/a?x=1", "", "CWE-79"),
		url(finding.Nuclei, "dvwa", "/b?x=1", "", "CWE-79"),
	}, []finding.Coverage{{Tool: finding.Bearer, Target: "dvwa"}})
	out := NewScorer().Score(doc)
	var order []finding.Tool
	for _, r := range out.Scorecard {
		order = append(order, r.Tool)
	}
	// nuclei and zap tie on F1 = 1 and sort by name; bearer has F1 = 0.
	assert.Equal(t, []finding.Tool{finding.Nuclei, finding.ZAP, finding.Bearer}, order)
}

func TestGrades(t *testing.T) {
	assert.Equal(t, "A+", GradeFromScore(100))
	assert.Equal(t, "A", GradeFromScore(95))
	assert.Equal(t, "B-", GradeFromScore(80))
	assert.Equal(t, "F", GradeFromScore(12))
	assert.Equal(t, 83.0, ScoreFromGrade("b"))
	assert.Zero(t, ScoreFromGrade("Z"))

	s := NewScorer(WithGradeThresholds(map[string]float64{"pass": 50, "fail": 0}))
	assert.Equal(t, "pass", s.getGrade(50))
	assert.Equal(t, "fail", s.getGrade(49.9))
}

func TestRounded(t *testing.T) {
	d := 1.23456
	rep := &Report{
		Scorecard: []ScorecardRow{{ToolMetrics: ToolMetrics{Precision: 2.0 / 3, Recall: 0.12345, F1: 0.99951}, AvgF1: 1.0 / 3, ScanDuration: &d}},
		Targets:   []TargetRow{{ToolMetrics: ToolMetrics{F1: 0.0004}}},
	}
	r := rep.Rounded()
	assert.Equal(t, 0.667, r.Scorecard[0].Precision)
	assert.Equal(t, 0.123, r.Scorecard[0].Recall)
	assert.Equal(t, 1.0, r.Scorecard[0].F1)
	assert.Equal(t, 0.333, r.Scorecard[0].AvgF1)
	assert.Equal(t, 1.235, *r.Scorecard[0].ScanDuration)
	assert.Equal(t, 0.0, r.Targets[0].F1)
	// The original is untouched.
	assert.Equal(t, 2.0/3, rep.Scorecard[0].Precision)
	assert.Equal(t, 1.23456, d)
}

func TestReadDurations(t *testing.T) {
	d, err := ReadDurations(strings.NewReader("tool,target,duration_seconds\nZAP,dvwa,42.5\nnjsscan,juice-shop,3\nunknown,dvwa,1\nzap,vulnpy,abc\n"))
	require.NoError(t, err)
	v, ok := d.Lookup(finding.ZAP, "dvwa")
	require.True(t, ok)
	assert.Equal(t, 42.5, v)
	_, ok = d.Lookup(finding.NodeJsScan, "juice-shop")
	assert.True(t, ok)
	assert.Len(t, d, 2)

	_, err = ReadDurations(strings.NewReader("tool,seconds\n"))
	assert.Error(t, err)

	d, err = LoadDurations("")
	require.NoError(t, err)
	assert.Empty(t, d)
}

func TestCompare(t *testing.T) {
	base := &Report{Scorecard: []ScorecardRow{
		{ToolMetrics: ToolMetrics{Tool: finding.ZAP, F1: 0.5}},
		{ToolMetrics: ToolMetrics{Tool: finding.Bearer, F1: 0.8}},
		{ToolMetrics: ToolMetrics{Tool: finding.Bandit, F1: 0.4}},
	}}
	cur := &Report{Scorecard: []ScorecardRow{
		{ToolMetrics: ToolMetrics{Tool: finding.ZAP, F1: 0.6}},
		{ToolMetrics: ToolMetrics{Tool: finding.Bearer, F1: 0.7}},
		{ToolMetrics: ToolMetrics{Tool: finding.Nuclei, F1: 0.3}},
	}}
	comp := Compare(base, cur)
	assert.Equal(t, []finding.Tool{finding.ZAP}, comp.Improved)
	assert.Equal(t, []finding.Tool{finding.Bearer}, comp.Regressed)
	require.Len(t, comp.Deltas, 4)
	assert.True(t, comp.Deltas[0].Removed) // bandit
	assert.True(t, comp.Deltas[2].New)     // nuclei
}

func TestReportText(t *testing.T) {
	rep := &Report{
		PendingPolicy:      "excluded",
		ConsensusThreshold: 2,
		Scorecard:          []ScorecardRow{{ToolMetrics: ToolMetrics{Tool: finding.ZAP, TP: 3, F1: 0.75}, Grade: "C-"}},
		Warnings:           []finding.Diagnostic{{Target: "vulnpy", Reason: "no ground-truth file"}},
	}
	out := rep.Text()
	assert.Contains(t, out, "TOOL SCORECARD")
	assert.Contains(t, out, "zap")
	assert.Contains(t, out, "0.750")
	assert.Contains(t, out, "vulnpy: no ground-truth file")
}
