// Package pipeline wires the benchmark stages together: normalize,
// cluster and triage, then score. Each stage can run on its own from the
// previous stage's output file, or all of them can run in one pass.
//
// All run-level state comes from the *config.Config passed to New; the
// package holds no globals. Output files are byte-identical for the same
// inputs and config.
//
// Usage:
//
//	p, err := pipeline.New(cfg, pipeline.WithLogger(logger))
//	sum, err := p.Run(ctx)
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/candyshop-benchmark/candyshop/pkg/adapters"
	"github.com/candyshop-benchmark/candyshop/pkg/cluster"
	"github.com/candyshop-benchmark/candyshop/pkg/config"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/fingerprint"
	"github.com/candyshop-benchmark/candyshop/pkg/groundtruth"
	"github.com/candyshop-benchmark/candyshop/pkg/normalize"
	"github.com/candyshop-benchmark/candyshop/pkg/output/writers"
	"github.com/candyshop-benchmark/candyshop/pkg/scoring"
	"github.com/candyshop-benchmark/candyshop/pkg/telemetry"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithRecorder reports run metrics to r.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithTracer sets the tracer for stage spans. The default is the global
// tracer, which is a no-op unless telemetry.Tracing was installed.
func WithTracer(t trace.Tracer) Option {
	return func(p *Pipeline) {
		p.tracer = t
	}
}

// WithRegistry replaces the built-in adapter registry.
func WithRegistry(r *adapters.Registry) Option {
	return func(p *Pipeline) {
		p.registry = r
	}
}

// WithStdout sets where normalize writes when no output file is given.
func WithStdout(w io.Writer) Option {
	return func(p *Pipeline) {
		p.stdout = w
	}
}

// Pipeline runs benchmark stages for one config.
type Pipeline struct {
	cfg      *config.Config
	engine   *fingerprint.Engine
	registry *adapters.Registry
	logger   *slog.Logger
	recorder *telemetry.Recorder
	tracer   trace.Tracer
	stdout   io.Writer
}

// New validates cfg and builds the fingerprint engine.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine, err := fingerprint.New(cfg.FingerprintSettings())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}
	p := &Pipeline{
		cfg:      cfg,
		engine:   engine,
		registry: adapters.Default(),
		stdout:   os.Stdout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = telemetry.OrDefault(p.logger)
	if p.tracer == nil {
		p.tracer = telemetry.Tracer()
	}
	return p, nil
}

// Summary describes what a run did.
type Summary struct {
	Files       int
	Findings    int
	Clusters    int
	Counts      triage.Counts
	Missed      int
	Diagnostics []finding.Diagnostic
	Report      *scoring.Report
	Comparison  *scoring.Comparison
	// Outputs lists the files written, in write order.
	Outputs []string
}

// Run executes every stage from a results directory and writes all
// outputs into cfg.Output.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	ctx, span := p.tracer.Start(ctx, "run")
	defer span.End()

	sum := &Summary{}
	res, err := p.Normalize(ctx)
	if err != nil {
		return nil, endSpan(span, err)
	}
	p.summarizeNormalize(sum, res)
	if err := p.writeNormalized(ctx, sum, res); err != nil {
		return nil, endSpan(span, err)
	}

	doc, err := p.Triage(ctx, res)
	if err != nil {
		return nil, endSpan(span, err)
	}
	p.summarizeTriage(sum, doc)
	if err := p.writeTriage(ctx, sum, doc); err != nil {
		return nil, endSpan(span, err)
	}

	rep, comp, err := p.Score(ctx, doc, nil)
	if err != nil {
		return nil, endSpan(span, err)
	}
	sum.Report, sum.Comparison = rep, comp
	if err := p.writeScore(ctx, sum, rep, comp); err != nil {
		return nil, endSpan(span, err)
	}
	return sum, endSpan(span, p.finish(sum))
}

// RunNormalize normalizes cfg.ResultsDir and writes the findings to
// cfg.Output (a file) in cfg.Format, or to stdout.
func (p *Pipeline) RunNormalize(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	res, err := p.Normalize(ctx)
	if err != nil {
		return nil, err
	}
	p.summarizeNormalize(sum, res)
	sum.Diagnostics = res.Diagnostics

	write := func(w io.Writer) error {
		if p.cfg.Format == config.FormatJSON {
			return res.Encode(w)
		}
		return writers.WriteFindingsCSV(w, res.Findings, writers.DefaultCSVOptions())
	}
	if p.cfg.Output == "" {
		if err := write(p.stdout); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOutput, err)
		}
	} else {
		if err := p.writeFile(p.cfg.Output, write); err != nil {
			return nil, err
		}
		sum.Outputs = append(sum.Outputs, p.cfg.Output)
	}
	return sum, p.finish(sum)
}

// RunTriage clusters and triages findings, normalizing first when
// cfg.ResultsDir is set, and writes the triage outputs into cfg.Output.
func (p *Pipeline) RunTriage(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	res, err := p.Normalize(ctx)
	if err != nil {
		return nil, err
	}
	p.summarizeNormalize(sum, res)
	doc, err := p.Triage(ctx, res)
	if err != nil {
		return nil, err
	}
	p.summarizeTriage(sum, doc)
	if err := p.writeTriage(ctx, sum, doc); err != nil {
		return nil, err
	}
	return sum, p.finish(sum)
}

// RunScore scores cfg.TriageFile, applying cfg.ReviewFiles first, and
// writes the metrics outputs into cfg.Output.
func (p *Pipeline) RunScore(ctx context.Context) (*Summary, error) {
	doc, err := triage.ReadDocument(p.cfg.TriageFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	reviews, err := p.loadReviews()
	if err != nil {
		return nil, err
	}
	rep, comp, err := p.Score(ctx, doc, reviews)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Report: rep, Comparison: comp}
	p.summarizeTriage(sum, doc)
	if err := p.writeScore(ctx, sum, rep, comp); err != nil {
		return nil, err
	}
	return sum, p.finish(sum)
}

// Normalize produces the finding set: from cfg.ResultsDir when set,
// otherwise from cfg.FindingsFile.
func (p *Pipeline) Normalize(ctx context.Context) (*normalize.Result, error) {
	ctx, span := p.tracer.Start(ctx, "normalize")
	defer span.End()

	n := normalize.New(p.engine,
		normalize.WithTargets(p.cfg.Targets),
		normalize.WithConcurrency(p.cfg.Concurrency),
		normalize.WithRegistry(p.registry),
		normalize.WithLogger(p.logger),
		normalize.WithRecorder(p.recorder),
	)

	var res *normalize.Result
	var err error
	if p.cfg.ResultsDir != "" {
		span.SetAttributes(attribute.String("candyshop.results_dir", p.cfg.ResultsDir))
		res, err = n.Run(ctx, p.cfg.ResultsDir)
	} else {
		span.SetAttributes(attribute.String("candyshop.findings_file", p.cfg.FindingsFile))
		res, err = n.Load(p.cfg.FindingsFile)
	}
	if err != nil {
		if errors.Is(err, normalize.ErrResultsDir) || errors.Is(err, normalize.ErrFindingsFile) {
			err = fmt.Errorf("%w: %v", ErrInput, err)
		}
		return nil, endSpan(span, err)
	}
	span.SetAttributes(
		attribute.Int("candyshop.files", res.Files),
		attribute.Int("candyshop.findings", len(res.Findings)),
		attribute.Int("candyshop.diagnostics", len(res.Diagnostics)),
	)
	return res, nil
}

// Triage clusters res, classifies every cluster and reconciles the
// clusters with ground truth. Normalization diagnostics are carried into
// the document.
func (p *Pipeline) Triage(ctx context.Context, res *normalize.Result) (*triage.Document, error) {
	_, span := p.tracer.Start(ctx, "triage")
	defer span.End()

	set, diags, err := groundtruth.LoadDir(p.cfg.GroundTruthDir)
	if err != nil {
		return nil, endSpan(span, fmt.Errorf("%w: %v", ErrInput, err))
	}
	matcher, matchDiags := groundtruth.NewMatcher(p.engine, set)
	diags = append(diags, matchDiags...)
	p.logger.Info("loaded ground truth", "dir", p.cfg.GroundTruthDir, "targets", len(set.Targets()), "entries", set.Len())

	reviews, err := p.loadReviews()
	if err != nil {
		return nil, endSpan(span, err)
	}

	clusters := cluster.NewBuilder(p.engine).Build(res.Findings)
	for _, c := range clusters {
		if c.Stats.Boundary > 0 || c.Stats.OutsideBand > 0 {
			p.logger.Debug("cluster tolerance",
				"cluster", c.ID,
				"target", c.Target,
				"tools", c.ToolCount(),
				"exact", c.Stats.Exact,
				"within_band", c.Stats.WithinBand,
				"outside_band", c.Stats.OutsideBand,
				"boundary", c.Stats.Boundary,
			)
		}
	}
	summary := cluster.Summarize(clusters)
	p.logger.Info("clustered findings",
		"clusters", summary.Clusters,
		"multi_tool", summary.MultiTool,
		"boundary_merges", summary.BoundaryMerges,
		"line_window", p.cfg.Fingerprint.LineWindow,
	)

	classifier := triage.NewClassifier(matcher,
		triage.WithThreshold(p.cfg.ConsensusThreshold),
		triage.WithReviews(reviews),
	)
	decisions, classifyDiags := classifier.ClassifyAll(clusters)
	diags = append(diags, classifyDiags...)
	missed := matcher.Reconcile(clusters, res.Coverage)

	doc := triage.NewDocument(decisions)
	doc.BenchmarkDate = p.cfg.BenchmarkDate
	doc.ConsensusThreshold = classifier.Threshold()
	doc.LineWindow = p.engine.Config().LineWindow
	doc.Tolerance = summary
	doc.Missed = missed
	doc.GroundTruth = set.All()
	doc.GroundTruthTargets = set.Targets()
	doc.Coverage = res.Coverage
	diags = append(diags, set.MissingFor(doc.Targets())...)
	p.recorder.Diagnostics(diags)

	doc.Diagnostics = append(append([]finding.Diagnostic{}, res.Diagnostics...), diags...)
	finding.SortDiagnostics(doc.Diagnostics)

	if unused := reviews.Unused(reviewKeys(doc)); len(unused) > 0 {
		p.logger.Warn("review decisions match no cluster", "count", len(unused), "keys", unused)
	}

	p.recorder.Clusters(summary, doc.Counts)
	p.logger.Info("triaged clusters",
		"confirmed", doc.Counts.Confirmed,
		"ground_truth", doc.Counts.GroundTruth,
		"pending", doc.Counts.Pending,
		"rejected", doc.Counts.Rejected,
		"missed", len(missed),
	)
	span.SetAttributes(
		attribute.Int("candyshop.clusters", summary.Clusters),
		attribute.Int("candyshop.confirmed", doc.Counts.Confirmed),
		attribute.Int("candyshop.pending", doc.Counts.Pending),
		attribute.Int("candyshop.missed", len(missed)),
	)
	return doc, nil
}

// Score computes the report for doc. reviews, when non-nil, are applied
// to doc first; their conflicts are added to its diagnostics.
func (p *Pipeline) Score(ctx context.Context, doc *triage.Document, reviews *triage.Reviews) (*scoring.Report, *scoring.Comparison, error) {
	_, span := p.tracer.Start(ctx, "score")
	defer span.End()

	if reviews != nil {
		conflicts := doc.ApplyReviews(reviews)
		p.recorder.Diagnostics(conflicts)
		if unused := reviews.Unused(reviewKeys(doc)); len(unused) > 0 {
			p.logger.Warn("review decisions match no cluster", "count", len(unused), "keys", unused)
		}
	}

	var opts []scoring.ScorerOption
	if p.cfg.SpeedFile != "" {
		d, err := scoring.LoadDurations(p.cfg.SpeedFile)
		if err != nil {
			return nil, nil, endSpan(span, fmt.Errorf("%w: %v", ErrInput, err))
		}
		opts = append(opts, scoring.WithDurations(d))
	}
	rep := scoring.NewScorer(opts...).Score(doc)

	var comp *scoring.Comparison
	if p.cfg.BaselineFile != "" {
		data, err := os.ReadFile(p.cfg.BaselineFile)
		if err != nil {
			return nil, nil, endSpan(span, fmt.Errorf("%w: %v", ErrInput, err))
		}
		baseline, err := writers.ReadMetricsJSON(data)
		if err != nil {
			return nil, nil, endSpan(span, fmt.Errorf("%w: baseline %s: %v", ErrInput, p.cfg.BaselineFile, err))
		}
		comp = scoring.Compare(baseline, rep.Rounded())
		if len(comp.Regressed) > 0 {
			p.logger.Warn("tools regressed against baseline", "tools", comp.Regressed)
		}
	}

	p.recorder.Scores(rep.Scorecard)
	for _, row := range rep.Rounded().Scorecard {
		p.logger.Info("scored tool", "tool", row.Tool, "f1", row.F1, "precision", row.Precision, "recall", row.Recall, "grade", row.Grade)
	}
	span.SetAttributes(attribute.Int("candyshop.tools", len(rep.Scorecard)))
	return rep, comp, nil
}

func (p *Pipeline) loadReviews() (*triage.Reviews, error) {
	if len(p.cfg.ReviewFiles) == 0 {
		return nil, nil
	}
	r, err := triage.LoadReviews(p.cfg.ReviewFiles...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInput, err)
	}
	p.logger.Info("loaded review decisions", "files", len(p.cfg.ReviewFiles), "decisions", r.Len())
	return r, nil
}

// finish writes the metrics textfile, when configured.
func (p *Pipeline) finish(sum *Summary) error {
	path := p.cfg.Telemetry.MetricsTextfile
	if path == "" || p.recorder == nil {
		return nil
	}
	if err := p.recorder.WriteTextfile(path); err != nil {
		return fmt.Errorf("%w: %v", ErrOutput, err)
	}
	sum.Outputs = append(sum.Outputs, path)
	return nil
}

func (p *Pipeline) summarizeNormalize(sum *Summary, res *normalize.Result) {
	sum.Files = res.Files
	sum.Findings = len(res.Findings)
}

func (p *Pipeline) summarizeTriage(sum *Summary, doc *triage.Document) {
	sum.Clusters = doc.Tolerance.Clusters
	sum.Counts = doc.Counts
	sum.Missed = len(doc.Missed)
	sum.Diagnostics = doc.Diagnostics
}

func reviewKeys(doc *triage.Document) []string {
	records := doc.Records()
	keys := make([]string, 0, 2*len(records))
	for _, r := range records {
		keys = append(keys, r.ID, r.Fingerprint)
	}
	return keys
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
