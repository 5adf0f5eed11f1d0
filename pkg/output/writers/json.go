package writers

import (
	"fmt"
	"io"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/scoring"
)

// WriteJSON writes v as indented, deterministic JSON.
func WriteJSON(w io.Writer, v any) error {
	if err := jsonutil.Write(w, v); err != nil {
		return fmt.Errorf("json: encode: %w", err)
	}
	return nil
}

// DiagnosticsDoc is the content of diagnostics.json.
type DiagnosticsDoc struct {
	Count       int                  `json:"count"`
	Diagnostics []finding.Diagnostic `json:"diagnostics"`
}

// WriteDiagnosticsJSON writes the run's diagnostics, sorted.
func WriteDiagnosticsJSON(w io.Writer, diags []finding.Diagnostic) error {
	sorted := append([]finding.Diagnostic{}, diags...)
	finding.SortDiagnostics(sorted)
	return WriteJSON(w, DiagnosticsDoc{Count: len(sorted), Diagnostics: sorted})
}

// MetricsDoc is the content of metrics.json.
type MetricsDoc struct {
	*scoring.Report
	Comparison *scoring.Comparison `json:"comparison,omitempty"`
}

// WriteMetricsJSON writes a rounded report and the optional baseline
// comparison.
func WriteMetricsJSON(w io.Writer, rep *scoring.Report, comp *scoring.Comparison) error {
	return WriteJSON(w, MetricsDoc{Report: rep.Rounded(), Comparison: comp})
}

// ReadMetricsJSON reads a metrics.json written by WriteMetricsJSON.
func ReadMetricsJSON(data []byte) (*scoring.Report, error) {
	var doc MetricsDoc
	doc.Report = &scoring.Report{}
	if err := jsonutil.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("json: decode metrics: %w", err)
	}
	return doc.Report, nil
}
