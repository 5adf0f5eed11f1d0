// Package normalize turns a results directory into one ordered finding
// set.
//
// Files are discovered, parsed in parallel (one adapter call per file,
// no shared state) and then joined at a barrier. Finding IDs are only
// assigned after the barrier, in discovery order, so the output does not
// depend on which worker finished first.
//
// Usage:
//
//	n := normalize.New(engine, normalize.WithTargets(cfg.Targets))
//	res, err := n.Run(ctx, cfg.ResultsDir)
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/candyshop-benchmark/candyshop/pkg/adapters"
	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/fingerprint"
	"github.com/candyshop-benchmark/candyshop/pkg/resultsdir"
	"github.com/candyshop-benchmark/candyshop/pkg/telemetry"
	"github.com/candyshop-benchmark/candyshop/pkg/workerpool"
)

// ErrResultsDir indicates the results directory could not be walked.
var ErrResultsDir = errors.New("normalize: results directory unreadable")

// ErrCanceled indicates the run was interrupted before every file was
// parsed. It wraps the context error.
var ErrCanceled = errors.New("normalize: interrupted")

// Result is the output of one normalization pass. It is also the
// content of findings.json.
type Result struct {
	// Findings carry IDs and fingerprints, ordered by tool, target and
	// file, then by position inside the file.
	Findings    []finding.Finding    `json:"findings"`
	Diagnostics []finding.Diagnostic `json:"diagnostics"`
	// Coverage lists every (tool, target) with a parsed results file.
	Coverage []finding.Coverage `json:"coverage"`
	Files    int                `json:"files"`
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithTargets sets the known benchmark targets.
func WithTargets(targets []string) Option {
	return func(n *Normalizer) {
		n.targets = lowerAll(targets)
	}
}

// WithConcurrency sets the number of parse workers. Values below 1 use
// defaults.Concurrency().
func WithConcurrency(workers int) Option {
	return func(n *Normalizer) {
		if workers > 0 {
			n.workers = workers
		}
	}
}

// WithRegistry replaces the built-in adapter registry.
func WithRegistry(r *adapters.Registry) Option {
	return func(n *Normalizer) {
		n.registry = r
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// WithRecorder reports per-file outcomes to r.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(n *Normalizer) {
		n.recorder = r
	}
}

// Normalizer runs adapters over discovered results files.
type Normalizer struct {
	engine   *fingerprint.Engine
	registry *adapters.Registry
	targets  []string
	workers  int
	logger   *slog.Logger
	recorder *telemetry.Recorder
}

// New creates a normalizer that fingerprints findings with engine.
func New(engine *fingerprint.Engine, opts ...Option) *Normalizer {
	n := &Normalizer{
		engine:   engine,
		registry: adapters.Default(),
		targets:  lowerAll(defaults.KnownTargets),
		workers:  defaults.Concurrency(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = telemetry.OrDefault(n.logger)
	return n
}

// Targets returns the known targets, lower-cased.
func (n *Normalizer) Targets() []string {
	return append([]string(nil), n.targets...)
}

// Run discovers and normalizes every results file under root.
func (n *Normalizer) Run(ctx context.Context, root string) (*Result, error) {
	entries, err := resultsdir.Discover(root, n.targets)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrResultsDir, err)
	}
	n.logger.Info("discovered results files", "dir", root, "files", len(entries))
	return n.Normalize(ctx, entries)
}

// fileResult is what one worker produces for one entry.
type fileResult struct {
	findings []finding.Finding
	diags    []finding.Diagnostic
	coverage []finding.Coverage
}

// Normalize parses entries in parallel and merges the results in entry
// order. It only fails when ctx is cancelled.
func (n *Normalizer) Normalize(ctx context.Context, entries []resultsdir.Entry) (*Result, error) {
	pool := workerpool.New(n.workers)
	defer pool.Close()

	progress := rate.Sometimes{First: defaults.ProgressLogFirst, Every: defaults.ProgressLogEvery}
	var done atomic.Int64

	results := workerpool.Map(ctx, pool, entries, func(_ context.Context, e resultsdir.Entry) (fileResult, error) {
		fr := n.parseFile(e)
		count := done.Add(1)
		progress.Do(func() {
			n.logger.Info("parsed results file", "file", e.Rel, "findings", len(fr.findings), "done", count, "total", len(entries))
		})
		return fr, nil
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
	}

	res := &Result{Files: len(entries)}
	seq := make(map[string]int)
	for i, r := range results {
		e := entries[i]
		if r.Err != nil {
			// Only a recovered panic reaches here.
			n.recorder.FileParsed(e.Tool, telemetry.OutcomeParseError, 0)
			res.Diagnostics = append(res.Diagnostics, n.diagnostic(e, e.Tool, finding.DiagAdapterParse, r.Err.Error()))
			continue
		}
		res.Diagnostics = append(res.Diagnostics, r.Value.diags...)
		res.Coverage = append(res.Coverage, r.Value.coverage...)
		for _, f := range r.Value.findings {
			key := string(f.Tool) + "\x00" + f.Target
			seq[key]++
			f.ID = finding.FormatID(f.Tool, f.Target, seq[key])
			res.Findings = append(res.Findings, f)
		}
	}
	if res.Findings == nil {
		res.Findings = []finding.Finding{}
	}
	res.Coverage = finding.SortCoverage(res.Coverage)
	finding.SortDiagnostics(res.Diagnostics)
	n.recorder.Diagnostics(res.Diagnostics)

	n.logger.Info("normalized findings",
		"files", res.Files,
		"findings", len(res.Findings),
		"diagnostics", len(res.Diagnostics),
	)
	return res, nil
}

// parseFile runs one adapter. Every failure becomes a diagnostic.
func (n *Normalizer) parseFile(e resultsdir.Entry) fileResult {
	var fr fileResult
	if !e.Resolved {
		n.recorder.FileParsed(e.Tool, telemetry.OutcomeUnknownFormat, 0)
		fr.diags = append(fr.diags, n.diagnostic(e, e.Tool, finding.DiagUnknownToolFormat,
			"file name names no known tool and target"))
		return fr
	}
	a, ok := n.registry.Lookup(e.Tool)
	if !ok {
		n.recorder.FileParsed(e.Tool, telemetry.OutcomeUnknownFormat, 0)
		fr.diags = append(fr.diags, n.diagnostic(e, e.Tool, finding.DiagUnknownToolFormat,
			fmt.Sprintf("no adapter for tool %q", e.Tool)))
		return fr
	}
	tool := string(a.Tool())

	data, err := os.ReadFile(e.Path)
	if err != nil {
		n.recorder.FileParsed(tool, telemetry.OutcomeParseError, 0)
		fr.diags = append(fr.diags, n.diagnostic(e, tool, finding.DiagAdapterParse, err.Error()))
		return fr
	}

	src := adapters.Source{Target: strings.ToLower(e.Target), Path: e.Path, Data: data}
	if e.AllTargets() {
		src.Targets = n.targets
	}
	out, err := a.Parse(src)
	if err != nil {
		n.recorder.FileParsed(tool, telemetry.OutcomeParseError, 0)
		fr.diags = append(fr.diags, n.diagnostic(e, tool, finding.DiagAdapterParse, err.Error()))
		return fr
	}

	if e.AllTargets() {
		for _, t := range n.targets {
			fr.coverage = append(fr.coverage, finding.Coverage{Tool: a.Tool(), Target: t})
		}
	} else {
		fr.coverage = append(fr.coverage, finding.Coverage{Tool: a.Tool(), Target: src.Target})
	}

	unattributed := 0
	for _, f := range out {
		if f.Target == "" {
			unattributed++
			continue
		}
		fr.findings = append(fr.findings, n.engine.Derive(f))
	}
	if unattributed > 0 {
		fr.diags = append(fr.diags, n.diagnostic(e, tool, finding.DiagUnattributed,
			fmt.Sprintf("%d findings name no known target", unattributed)))
	}
	n.recorder.FileParsed(tool, telemetry.OutcomeParsed, len(fr.findings))
	return fr
}

func (n *Normalizer) diagnostic(e resultsdir.Entry, tool string, kind finding.DiagnosticKind, reason string) finding.Diagnostic {
	d := finding.Diagnostic{
		Tool:   tool,
		Target: strings.ToLower(e.Target),
		File:   e.Rel,
		Kind:   kind,
		Reason: reason,
	}
	n.logger.Warn("skipped results", "kind", d.Kind, "file", d.File, "reason", d.Reason)
	return d
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
