// Package writers renders pipeline results as CSV, JSON and templated
// markdown. Every writer is deterministic: the same input produces the
// same bytes.
package writers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/scoring"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

// UTF-8 BOM for Excel compatibility.
const utf8BOM = "\xEF\xBB\xBF"

// CSVWriter writes rows under a fixed header.
//
// Features:
//   - Excel compatibility with UTF-8 BOM
//   - CSV injection prevention (formula sanitization)
//   - Optional field truncation
type CSVWriter struct {
	w         io.Writer
	csvWriter *csv.Writer
	opts      CSVOptions
	columns   []string
}

// CSVOptions configures the CSV writer behavior.
type CSVOptions struct {
	// ExcelCompatible adds UTF-8 BOM for Excel compatibility.
	ExcelCompatible bool

	// SanitizeFormulas prevents CSV injection by prefixing dangerous characters.
	// Dangerous characters: = + - @ TAB CR
	SanitizeFormulas bool

	// TruncateAt limits field length (0 = no limit).
	TruncateAt int
}

// DefaultCSVOptions are used for every pipeline CSV.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{SanitizeFormulas: true}
}

// sanitizeForCSV prevents CSV injection by prefixing dangerous characters.
func sanitizeForCSV(s string) string {
	if len(s) == 0 {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}

// truncateField truncates a field to the specified length.
func truncateField(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen > 3 {
		return string(runes[:maxLen-3]) + "..."
	}
	return string(runes[:maxLen])
}

// NewCSVWriter writes the optional BOM and the header row.
func NewCSVWriter(w io.Writer, columns []string, opts CSVOptions) (*CSVWriter, error) {
	if opts.ExcelCompatible {
		if _, err := io.WriteString(w, utf8BOM); err != nil {
			return nil, fmt.Errorf("csv: write bom: %w", err)
		}
	}
	cw := &CSVWriter{w: w, csvWriter: csv.NewWriter(w), opts: opts, columns: columns}
	if err := cw.csvWriter.Write(columns); err != nil {
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	return cw, nil
}

// WriteRow writes one row. It must have one field per column.
func (cw *CSVWriter) WriteRow(row []string) error {
	if len(row) != len(cw.columns) {
		return fmt.Errorf("csv: row has %d fields, want %d", len(row), len(cw.columns))
	}
	for i, field := range row {
		if cw.opts.SanitizeFormulas {
			field = sanitizeForCSV(field)
		}
		if cw.opts.TruncateAt > 0 {
			field = truncateField(field, cw.opts.TruncateAt)
		}
		row[i] = field
	}
	return cw.csvWriter.Write(row)
}

// Close flushes buffered rows.
func (cw *CSVWriter) Close() error {
	cw.csvWriter.Flush()
	if err := cw.csvWriter.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, columns []string, opts CSVOptions, rows func(*CSVWriter) error) error {
	cw, err := NewCSVWriter(w, columns, opts)
	if err != nil {
		return err
	}
	if err := rows(cw); err != nil {
		return err
	}
	return cw.Close()
}

// FindingColumns is the header of findings.csv.
var FindingColumns = []string{
	"finding_id", "tool", "target", "category", "cwe", "severity",
	"location", "description", "raw_id",
	"normalized_cwe", "cwe_inferred", "normalized_location", "fingerprint",
}

// WriteFindingsCSV writes normalized findings, one row each.
func WriteFindingsCSV(w io.Writer, findings []finding.Finding, opts CSVOptions) error {
	return writeCSV(w, FindingColumns, opts, func(cw *CSVWriter) error {
		for _, f := range findings {
			if err := cw.WriteRow([]string{
				f.ID,
				string(f.Tool),
				f.Target,
				string(f.Category),
				f.CWE,
				string(f.Severity),
				f.Location.String(),
				f.Description,
				f.RawID,
				f.NormalizedCWE,
				strconv.FormatBool(f.CWEInferred),
				f.NormalizedLocation,
				f.Fingerprint,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// TriageColumns is the header of <target>-auto.csv. The first eleven
// columns are the layout reviewers edit; a copy saved as
// <target>-final.csv is read back by triage.ReadVerdictCSV.
var TriageColumns = []string{
	"finding_group_id", "tools", "target", "cwe", "severity", "location",
	"description", "verdict", "confidence", "ground_truth_match", "tool_count",
	"fingerprint", "ground_truth_entry", "reason", "cwe_inferred", "note",
}

// Verdict returns the CSV verdict label of a status.
func Verdict(s triage.Status) string {
	switch s {
	case triage.StatusConfirmed:
		return "TP"
	case triage.StatusRejected:
		return "FP"
	}
	return "pending"
}

// WriteTriageCSV writes the records of one target.
func WriteTriageCSV(w io.Writer, records []triage.Record, opts CSVOptions) error {
	return writeCSV(w, TriageColumns, opts, func(cw *CSVWriter) error {
		for _, r := range records {
			tools := make([]string, len(r.Tools))
			for i, t := range r.Tools {
				tools[i] = string(t)
			}
			gtMatch := "no"
			if r.GroundTruthMatch != "" {
				gtMatch = "yes"
			}
			note := ""
			if r.Review != nil {
				note = r.Review.Note
			}
			if err := cw.WriteRow([]string{
				r.ID,
				strings.Join(tools, "|"),
				r.Target,
				r.CWE,
				string(r.Severity),
				r.RepresentativeLocation,
				r.Description,
				Verdict(r.Status),
				string(r.Confidence),
				gtMatch,
				strconv.Itoa(r.ToolCount),
				r.Fingerprint,
				r.GroundTruthMatch,
				string(r.Reason),
				strconv.FormatBool(r.CWEInferred),
				note,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ScorecardColumns is the header of tool-scorecard.csv.
var ScorecardColumns = []string{
	"tool", "category", "precision", "recall", "f1",
	"avg_precision", "avg_recall", "avg_f1",
	"total_tp", "total_fp", "total_fn", "pending",
	"targets_scanned", "unique_cwes_found", "grade", "scan_duration_seconds",
}

// WriteScorecardCSV writes one row per tool. Values are written as
// given; pass a Rounded report.
func WriteScorecardCSV(w io.Writer, rows []scoring.ScorecardRow, opts CSVOptions) error {
	return writeCSV(w, ScorecardColumns, opts, func(cw *CSVWriter) error {
		for _, r := range rows {
			if err := cw.WriteRow([]string{
				string(r.Tool),
				string(r.Category),
				formatFloat(r.Precision),
				formatFloat(r.Recall),
				formatFloat(r.F1),
				formatFloat(r.AvgPrecision),
				formatFloat(r.AvgRecall),
				formatFloat(r.AvgF1),
				strconv.Itoa(r.TP),
				strconv.Itoa(r.FP),
				strconv.Itoa(r.FN),
				strconv.Itoa(r.Pending),
				strconv.Itoa(r.TargetsScanned),
				strconv.Itoa(r.CWEsFound),
				r.Grade,
				formatOptional(r.ScanDuration),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// TargetColumns is the header of fmeasure-summary.csv.
var TargetColumns = []string{
	"tool", "target", "tp", "fp", "fn", "pending", "total_findings",
	"precision", "recall", "f1", "scan_duration_seconds",
}

// WriteTargetsCSV writes the per-tool, per-target breakdown.
func WriteTargetsCSV(w io.Writer, rows []scoring.TargetRow, opts CSVOptions) error {
	return writeCSV(w, TargetColumns, opts, func(cw *CSVWriter) error {
		for _, r := range rows {
			if err := cw.WriteRow([]string{
				string(r.Tool),
				r.Target,
				strconv.Itoa(r.TP),
				strconv.Itoa(r.FP),
				strconv.Itoa(r.FN),
				strconv.Itoa(r.Pending),
				strconv.Itoa(r.TotalFindings),
				formatFloat(r.Precision),
				formatFloat(r.Recall),
				formatFloat(r.F1),
				formatOptional(r.ScanDuration),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// CWECoverageColumns is the header of cwe-coverage.csv.
var CWECoverageColumns = []string{
	"tool", "cwe", "owasp", "found_count", "missed_count", "total_in_ground_truth", "coverage_pct",
}

// WriteCWECoverageCSV writes per-tool, per-CWE ground-truth coverage.
func WriteCWECoverageCSV(w io.Writer, rows []scoring.CWECoverage, opts CSVOptions) error {
	return writeCSV(w, CWECoverageColumns, opts, func(cw *CSVWriter) error {
		for _, r := range rows {
			if err := cw.WriteRow([]string{
				string(r.Tool),
				r.CWE,
				r.OWASP,
				strconv.Itoa(r.Found),
				strconv.Itoa(r.Missed),
				strconv.Itoa(r.Total),
				formatFloat(r.CoveragePct),
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}
