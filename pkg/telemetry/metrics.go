// Package telemetry collects run metrics and stage traces for the
// benchmark pipeline.
//
// Metrics live in a private Prometheus registry and are exported as a
// node_exporter textfile when requested; nothing listens on a port.
// Traces use OpenTelemetry and are only exported when an OTLP endpoint
// is configured.
package telemetry

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/candyshop-benchmark/candyshop/pkg/cluster"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/scoring"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

// Outcome is the result of handing one results file to an adapter.
type Outcome string

const (
	OutcomeParsed        Outcome = "parsed"
	OutcomeParseError    Outcome = "parse_error"
	OutcomeUnknownFormat Outcome = "unknown_format"
)

// Recorder holds the run metrics. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry

	// Counters
	filesTotal       *prometheus.CounterVec
	findingsTotal    *prometheus.CounterVec
	diagnosticsTotal *prometheus.CounterVec

	// Gauges
	clusters  *prometheus.GaugeVec
	tolerance *prometheus.GaugeVec
	toolScore *prometheus.GaugeVec

	mu sync.Mutex
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() (*Recorder, error) {
	r := &Recorder{registry: prometheus.NewRegistry()}
	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	return r, nil
}

func (r *Recorder) initMetrics() error {
	r.filesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candyshop_result_files_total",
			Help: "Results files handed to adapters, by outcome",
		},
		[]string{"tool", "outcome"},
	)

	r.findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candyshop_findings_total",
			Help: "Normalized findings emitted by each tool's adapter",
		},
		[]string{"tool"},
	)

	r.diagnosticsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "candyshop_diagnostics_total",
			Help: "Recoverable problems logged and skipped during the run",
		},
		[]string{"kind"},
	)

	r.clusters = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "candyshop_clusters",
			Help: "Finding clusters by triage status",
		},
		[]string{"status"},
	)

	r.tolerance = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "candyshop_cluster_members",
			Help: "Cluster members by how far they sit from the cluster anchor",
		},
		[]string{"tolerance"},
	)

	r.toolScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "candyshop_tool_score",
			Help: "Per-tool precision, recall and F1",
		},
		[]string{"tool", "metric"},
	)

	collectors := []prometheus.Collector{
		r.filesTotal,
		r.findingsTotal,
		r.diagnosticsTotal,
		r.clusters,
		r.tolerance,
		r.toolScore,
	}
	for _, c := range collectors {
		if err := r.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns the underlying registry, for tests and custom export.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// FileParsed records one results file and the findings it produced.
func (r *Recorder) FileParsed(tool string, outcome Outcome, findings int) {
	if r == nil {
		return
	}
	r.filesTotal.WithLabelValues(tool, string(outcome)).Inc()
	if findings > 0 {
		r.findingsTotal.WithLabelValues(tool).Add(float64(findings))
	}
}

// Diagnostics counts diagnostics by kind.
func (r *Recorder) Diagnostics(diags []finding.Diagnostic) {
	if r == nil {
		return
	}
	for _, d := range diags {
		r.diagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
	}
}

// Clusters records the triage outcome and tolerance statistics.
func (r *Recorder) Clusters(summary cluster.Summary, counts triage.Counts) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clusters.WithLabelValues(string(triage.StatusConfirmed)).Set(float64(counts.Confirmed))
	r.clusters.WithLabelValues(string(triage.StatusPending)).Set(float64(counts.Pending))
	r.clusters.WithLabelValues(string(triage.StatusRejected)).Set(float64(counts.Rejected))
	r.clusters.WithLabelValues("multi_tool").Set(float64(summary.MultiTool))

	t := summary.Tolerance
	r.tolerance.WithLabelValues("exact").Set(float64(t.Exact))
	r.tolerance.WithLabelValues("in_band").Set(float64(t.WithinBand))
	r.tolerance.WithLabelValues("outside_band").Set(float64(t.OutsideBand))
	r.tolerance.WithLabelValues("boundary").Set(float64(t.Boundary))
}

// Scores records the scorecard.
func (r *Recorder) Scores(rows []scoring.ScorecardRow) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range rows {
		tool := string(row.Tool)
		r.toolScore.WithLabelValues(tool, "precision").Set(row.Precision)
		r.toolScore.WithLabelValues(tool, "recall").Set(row.Recall)
		r.toolScore.WithLabelValues(tool, "f1").Set(row.F1)
	}
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("telemetry: write %s: %w", path, err)
	}
	return nil
}
