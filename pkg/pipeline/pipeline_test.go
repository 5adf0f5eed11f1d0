package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/candyshop-benchmark/candyshop/pkg/config"
	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/scoring"
	"github.com/candyshop-benchmark/candyshop/pkg/telemetry"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

// zapDVWA reports the SQLi nuclei also finds, a SQLi only listed in
// ground truth, and an unverified XSS.
const zapDVWA = `{"site":[{"@name":"http://dvwa","alerts":[
	{"pluginid":"40018","alert":"SQL Injection","riskcode":"3","cweid":"89",
	 "instances":[{"uri":"http://dvwa/vulnerabilities/sqli/?id=1","method":"GET","param":"id"}]},
	{"pluginid":"40018","alert":"SQL Injection","riskcode":"3","cweid":"89",
	 "instances":[{"uri":"http://dvwa/login.php","method":"POST","param":"username"}]},
	{"pluginid":"40012","alert":"Cross Site Scripting (Reflected)","riskcode":"2","cweid":"79",
	 "instances":[{"uri":"http://dvwa/search?q=x","method":"GET","param":"q"}]}
]}]}`

const nucleiDVWA = `{"template-id":"generic-sqli","info":{"name":"SQLi","severity":"high","classification":{"cwe-id":["cwe-89"]}},"matched-at":"http://dvwa/vulnerabilities/sqli/?id=2"}
`

const banditVulnpy = `{"errors":[],"results":[
	{"filename":"./vulnpy/cmdi.py","line_number":14,"issue_severity":"HIGH","issue_text":"subprocess call with shell=True","test_id":"B602","issue_cwe":{"id":78}}
]}`

const groundTruthDVWA = "id,cwe,location_pattern,description,severity\n" +
	"DVWA-1,CWE-89,/login.php#username,SQLi in login,high\n" +
	"DVWA-2,CWE-22,/vulnerabilities/fi/#page,File inclusion,high\n"

type fixture struct {
	results, groundTruth, out string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		results:     filepath.Join(root, "results"),
		groundTruth: filepath.Join(root, "ground-truth"),
		out:         filepath.Join(root, "out"),
	}
	write(t, filepath.Join(f.results, "dast", "zap-dvwa.json"), zapDVWA)
	write(t, filepath.Join(f.results, "dast", "nuclei-dvwa.jsonl"), nucleiDVWA)
	write(t, filepath.Join(f.results, "vulnpy", "bandit.json"), banditVulnpy)
	write(t, filepath.Join(f.groundTruth, "dvwa.csv"), groundTruthDVWA)
	return f
}

func write(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func (f fixture) config() *config.Config {
	cfg := config.Default()
	cfg.ResultsDir = f.results
	cfg.GroundTruthDir = f.groundTruth
	cfg.Output = f.out
	cfg.Targets = []string{"dvwa", "vulnpy"}
	cfg.Concurrency = 4
	cfg.BenchmarkDate = "2026-09-30"
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	p, err := New(cfg, append([]Option{WithLogger(telemetry.Discard())}, opts...)...)
	require.NoError(t, err)
	return p
}

func row(t *testing.T, rep *scoring.Report, tool finding.Tool) scoring.ScorecardRow {
	t.Helper()
	r, ok := rep.Row(tool)
	require.True(t, ok, "no scorecard row for %s", tool)
	return r
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	sum, err := newPipeline(t, f.config()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Files)
	assert.Equal(t, 5, sum.Findings)
	assert.Equal(t, 4, sum.Clusters, "zap and nuclei SQLi merge")
	assert.Equal(t, triage.Counts{Confirmed: 2, Pending: 2, GroundTruth: 1}, sum.Counts)
	assert.Equal(t, 1, sum.Missed)

	zap := row(t, sum.Report, finding.ZAP)
	assert.Equal(t, 2, zap.TP)
	assert.Equal(t, 0, zap.FP)
	assert.Equal(t, 1, zap.FN)
	assert.Equal(t, 1, zap.Pending)

	nuclei := row(t, sum.Report, finding.Nuclei)
	assert.Equal(t, 1, nuclei.TP)
	assert.Equal(t, 1, nuclei.FN, "only the entry nobody found is charged")

	bandit := row(t, sum.Report, finding.Bandit)
	assert.Equal(t, 0, bandit.TP+bandit.FP+bandit.FN)
	assert.Equal(t, 1, bandit.Pending)

	var missing int
	for _, w := range sum.Report.Warnings {
		if w.Kind == finding.DiagMissingGroundTruth {
			missing++
			assert.Equal(t, "vulnpy", w.Target)
		}
	}
	assert.Equal(t, 1, missing)

	for _, name := range []string{
		defaults.FindingsCSV, defaults.FindingsJSON, defaults.DiagnosticsJSON,
		defaults.TriageJSON, defaults.TriageSARIF, "dvwa" + defaults.TriageCSVSuffix, "vulnpy" + defaults.TriageCSVSuffix,
		defaults.MetricsJSON, defaults.ScorecardCSV, defaults.FMeasureSummaryCSV,
		defaults.CWECoverageCSV, defaults.ScorecardMarkdown,
	} {
		assert.FileExists(t, filepath.Join(f.out, name))
		assert.Contains(t, sum.Outputs, filepath.Join(f.out, name))
	}
}

func TestRun_ConsensusAndGroundTruthOverride(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := newPipeline(t, f.config()).Run(context.Background())
	require.NoError(t, err)

	doc, err := triage.ReadDocument(filepath.Join(f.out, defaults.TriageJSON))
	require.NoError(t, err)
	require.Len(t, doc.Confirmed, 2)

	byReason := map[triage.Reason]triage.Record{}
	for _, r := range doc.Confirmed {
		byReason[r.Reason] = r
	}
	consensus := byReason[triage.ReasonConsensus]
	assert.Equal(t, []finding.Tool{finding.Nuclei, finding.ZAP}, consensus.Tools)
	assert.Equal(t, triage.ConfidenceHigh, consensus.Confidence)

	gt := byReason[triage.ReasonGroundTruth]
	assert.Equal(t, []finding.Tool{finding.ZAP}, gt.Tools, "one tool is enough with a ground-truth match")
	assert.Equal(t, "DVWA-1", gt.GroundTruthMatch)

	require.Len(t, doc.Missed, 1)
	assert.Equal(t, "DVWA-2", doc.Missed[0].EntryID)
	assert.Equal(t, []finding.Tool{finding.Nuclei, finding.ZAP}, doc.Missed[0].Tools)
}

func TestRun_Deterministic(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	cfgA := f.config()
	cfgB := f.config()
	cfgB.Output = filepath.Join(t.TempDir(), "second")
	cfgB.Concurrency = 1

	_, err := newPipeline(t, cfgA).Run(context.Background())
	require.NoError(t, err)
	_, err = newPipeline(t, cfgB).Run(context.Background())
	require.NoError(t, err)

	ents, err := os.ReadDir(cfgA.Output)
	require.NoError(t, err)
	require.NotEmpty(t, ents)
	for _, e := range ents {
		a, err := os.ReadFile(filepath.Join(cfgA.Output, e.Name()))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(cfgB.Output, e.Name()))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(a, b), "%s differs between runs", e.Name())
	}
}

func TestStages_MatchFullRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := newPipeline(t, f.config()).Run(context.Background())
	require.NoError(t, err)

	// normalize -> findings.json, then triage from it, then score.
	staged := filepath.Join(t.TempDir(), "staged")
	cfg := f.config()
	cfg.Output = filepath.Join(staged, defaults.FindingsJSON)
	cfg.Format = config.FormatJSON
	_, err = newPipeline(t, cfg).RunNormalize(context.Background())
	require.NoError(t, err)

	cfg = f.config()
	cfg.ResultsDir = ""
	cfg.FindingsFile = filepath.Join(staged, defaults.FindingsJSON)
	cfg.Output = staged
	_, err = newPipeline(t, cfg).RunTriage(context.Background())
	require.NoError(t, err)

	cfg = f.config()
	cfg.ResultsDir = ""
	cfg.TriageFile = filepath.Join(staged, defaults.TriageJSON)
	cfg.Output = staged
	sum, err := newPipeline(t, cfg).RunScore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, row(t, sum.Report, finding.ZAP).TP)

	for _, name := range []string{defaults.TriageJSON, defaults.MetricsJSON, defaults.ScorecardMarkdown} {
		full, err := os.ReadFile(filepath.Join(f.out, name))
		require.NoError(t, err)
		part, err := os.ReadFile(filepath.Join(staged, name))
		require.NoError(t, err)
		assert.Equal(t, string(full), string(part), name)
	}
}

func TestRunNormalize_Stdout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	cfg := f.config()
	cfg.Output = ""
	var buf bytes.Buffer
	sum, err := newPipeline(t, cfg, WithStdout(&buf)).RunNormalize(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sum.Outputs)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 6)
	assert.True(t, strings.HasPrefix(lines[0], "finding_id,tool,target"))
	assert.True(t, strings.HasPrefix(lines[1], "BANDIT-VULNPY-001,bandit,vulnpy"))
}

func TestRunScore_ReviewsAndBaseline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := newPipeline(t, f.config()).Run(context.Background())
	require.NoError(t, err)

	doc, err := triage.ReadDocument(filepath.Join(f.out, defaults.TriageJSON))
	require.NoError(t, err)
	var xss triage.Record
	for _, r := range doc.Pending {
		if r.CWE == "CWE-79" {
			xss = r
		}
	}
	require.NotEmpty(t, xss.Fingerprint)

	review := filepath.Join(t.TempDir(), "review.yaml")
	write(t, review, "decisions:\n  - fingerprint: "+xss.Fingerprint+"\n    status: rejected\n    note: reflected only in an error page\n")

	cfg := f.config()
	cfg.ResultsDir = ""
	cfg.TriageFile = filepath.Join(f.out, defaults.TriageJSON)
	cfg.ReviewFiles = []string{review}
	cfg.BaselineFile = filepath.Join(f.out, defaults.MetricsJSON)
	cfg.Output = filepath.Join(t.TempDir(), "scored")
	sum, err := newPipeline(t, cfg).RunScore(context.Background())
	require.NoError(t, err)

	zap := row(t, sum.Report, finding.ZAP)
	assert.Equal(t, 1, zap.FP)
	assert.Equal(t, 0, zap.Pending)
	assert.Equal(t, 1, sum.Counts.Rejected)

	require.NotNil(t, sum.Comparison)
	assert.Contains(t, sum.Comparison.Regressed, finding.ZAP)

	md, err := os.ReadFile(filepath.Join(cfg.Output, defaults.ScorecardMarkdown))
	require.NoError(t, err)
	assert.Contains(t, string(md), "## Change from baseline")
}

func TestRun_Tracing(t *testing.T) {
	t.Parallel()
	rec := tracetest.NewSpanRecorder()
	tr, err := telemetry.NewTracing(telemetry.TracingOptions{SpanProcessor: rec})
	require.NoError(t, err)

	f := newFixture(t)
	_, err = newPipeline(t, f.config(), WithTracer(tr.Tracer())).Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, tr.Shutdown(context.Background()))

	names := map[string]bool{}
	for _, s := range rec.Ended() {
		names[s.Name()] = true
	}
	for _, want := range []string{"run", "normalize", "triage", "score", "write.normalize", "write.triage", "write.score"} {
		assert.True(t, names[want], "missing span %s", want)
	}
}

func TestRun_MetricsTextfile(t *testing.T) {
	t.Parallel()
	rec, err := telemetry.NewRecorder()
	require.NoError(t, err)

	f := newFixture(t)
	cfg := f.config()
	cfg.Telemetry.MetricsTextfile = filepath.Join(t.TempDir(), "candyshop.prom")
	sum, err := newPipeline(t, cfg, WithRecorder(rec)).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, sum.Outputs, cfg.Telemetry.MetricsTextfile)

	data, err := os.ReadFile(cfg.Telemetry.MetricsTextfile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `candyshop_findings_total{tool="zap"} 3`)
	assert.Contains(t, string(data), "candyshop_tool_score")
}

func TestRun_BadInputsAreDiagnostics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	write(t, filepath.Join(f.results, "dvwa", "trivy.json"), `{"Results": [`)
	write(t, filepath.Join(f.groundTruth, "vulnpy.csv"), "cwe,location\nCWE-78,cmdi.py:14\n,\nnot-a-cwe,\n")

	sum, err := newPipeline(t, f.config()).Run(context.Background())
	require.NoError(t, err, "bad inputs never abort the run")

	kinds := map[finding.DiagnosticKind]int{}
	for _, d := range sum.Diagnostics {
		kinds[d.Kind]++
	}
	assert.Equal(t, 1, kinds[finding.DiagAdapterParse])
	assert.GreaterOrEqual(t, kinds[finding.DiagGroundTruthRow], 1)
	assert.Zero(t, kinds[finding.DiagMissingGroundTruth])

	bandit := row(t, sum.Report, finding.Bandit)
	assert.Equal(t, 1, bandit.TP, "the vulnpy ground truth now confirms the bandit finding")
}

func TestErrors(t *testing.T) {
	t.Parallel()
	_, err := New(nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	cfg := config.Default()
	cfg.ConsensusThreshold = 1
	_, err = New(cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	f := newFixture(t)
	cfg = f.config()
	cfg.GroundTruthDir = filepath.Join(t.TempDir(), "absent")
	_, err = newPipeline(t, cfg).Run(context.Background())
	assert.ErrorIs(t, err, ErrInput)

	cfg = f.config()
	cfg.ResultsDir = ""
	cfg.TriageFile = filepath.Join(t.TempDir(), "missing.json")
	_, err = newPipeline(t, cfg).RunScore(context.Background())
	assert.ErrorIs(t, err, ErrInput)

	cfg = f.config()
	cfg.Output = filepath.Join(f.results, "dast", "zap-dvwa.json", "nested")
	_, err = newPipeline(t, cfg).Run(context.Background())
	assert.ErrorIs(t, err, ErrOutput)
}
