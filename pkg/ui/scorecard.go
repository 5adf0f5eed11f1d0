package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/scoring"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

var scorecardHeaders = []string{
	"#", "TOOL", "CATEGORY", "TARGETS", "P", "R", "F1", "TP", "FP", "FN", "PENDING", "GRADE",
}

// gradeColumn is the index of GRADE in scorecardHeaders.
const gradeColumn = 11

// Triage prints the cluster decision counts of a triage run.
func (c *Console) Triage(clusters int, counts triage.Counts, missed int) {
	if c.silent {
		return
	}
	c.Section("Triage")
	c.stat("Clusters", strconv.Itoa(clusters), c.st.value)
	c.stat("Confirmed", fmt.Sprintf("%d (%d by ground truth)", counts.Confirmed, counts.GroundTruth), c.st.status(triage.StatusConfirmed))
	c.stat("Pending", strconv.Itoa(counts.Pending), c.st.status(triage.StatusPending))
	c.stat("Rejected", strconv.Itoa(counts.Rejected), c.st.status(triage.StatusRejected))
	c.stat("Missed", strconv.Itoa(missed), c.st.muted)
	c.println("")
}

func (c *Console) stat(label, value string, style lipgloss.Style) {
	fmt.Fprintf(c.w, "  %s %s\n", c.st.label.Render(label), style.Render(value))
}

// Scorecard prints the tool ranking of a report as a table, followed by
// its warnings.
func (c *Console) Scorecard(rep *scoring.Report) {
	if c.silent || rep == nil {
		return
	}
	rr := rep.Rounded()
	c.Section("Tool scorecard")

	rows := make([][]string, 0, len(rr.Scorecard))
	for i, row := range rr.Scorecard {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			string(row.Tool),
			string(row.Category),
			strconv.Itoa(row.TargetsScanned),
			fmt.Sprintf("%.3f", row.Precision),
			fmt.Sprintf("%.3f", row.Recall),
			fmt.Sprintf("%.3f", row.F1),
			strconv.Itoa(row.TP),
			strconv.Itoa(row.FP),
			strconv.Itoa(row.FN),
			strconv.Itoa(row.Pending),
			row.Grade,
		})
	}

	border := lipgloss.ASCIIBorder()
	if c.unicode {
		border = lipgloss.RoundedBorder()
	}
	t := table.New().
		Border(border).
		BorderStyle(c.st.border).
		Headers(scorecardHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return c.st.header
			case col == gradeColumn && row < len(rows):
				return c.st.grade(rows[row][gradeColumn]).Padding(0, 1)
			default:
				return c.st.cell
			}
		})
	c.println(t.Render())

	if rr.BenchmarkDate != "" {
		c.stat("Benchmark date", rr.BenchmarkDate, c.st.value)
	}
	c.stat("Consensus", fmt.Sprintf("%d tools", rr.ConsensusThreshold), c.st.value)
	c.stat("Pending policy", rr.PendingPolicy, c.st.value)
	c.Diagnostics(rr.Warnings)
}

// Comparison prints per-tool F1 changes against a baseline.
func (c *Console) Comparison(comp *scoring.Comparison) {
	if c.silent || comp == nil || len(comp.Deltas) == 0 {
		return
	}
	c.Section("Baseline comparison")
	for _, d := range comp.Deltas {
		var (
			text  string
			style lipgloss.Style
		)
		switch {
		case d.New:
			text, style = "new", c.st.info
		case d.Removed:
			text, style = "removed", c.st.muted
		case d.F1Delta > 0:
			text, style = fmt.Sprintf("%+.3f", d.F1Delta), c.st.success
		case d.F1Delta < 0:
			text, style = fmt.Sprintf("%+.3f", d.F1Delta), c.st.failure
		default:
			text, style = "±0", c.st.muted
		}
		c.stat(string(d.Tool), text, style)
	}
	for _, tool := range comp.Regressed {
		c.Warning(fmt.Sprintf("%s regressed against the baseline", tool))
	}
	c.println("")
}

// Diagnostics prints non-fatal problems, one per line.
func (c *Console) Diagnostics(diags []finding.Diagnostic) {
	if c.silent || len(diags) == 0 {
		return
	}
	c.Section(fmt.Sprintf("Diagnostics (%d)", len(diags)))
	for _, d := range diags {
		where := d.Target
		if d.File != "" {
			where = d.File
		}
		if d.Tool != "" {
			where = d.Tool + " " + where
		}
		c.Warning(fmt.Sprintf("[%s] %s: %s", d.Kind, where, d.Reason))
	}
	c.println("")
}

// Outputs lists written files.
func (c *Console) Outputs(paths []string) {
	if c.silent || len(paths) == 0 {
		return
	}
	c.Section("Outputs")
	for _, p := range paths {
		c.Success(p)
	}
	c.println("")
}
