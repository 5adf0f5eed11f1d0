package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/normalize"
	"github.com/candyshop-benchmark/candyshop/pkg/output/writers"
	"github.com/candyshop-benchmark/candyshop/pkg/scoring"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

func (p *Pipeline) writeFile(path string, fn func(io.Writer) error) error {
	if err := writers.WriteFile(path, fn); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOutput, path, err)
	}
	p.logger.Debug("wrote output", "file", path)
	return nil
}

// writeAll writes each named file into cfg.Output and records it.
func (p *Pipeline) writeAll(ctx context.Context, stage string, sum *Summary, files []outputFile) error {
	_, span := p.tracer.Start(ctx, "write."+stage)
	defer span.End()
	for _, f := range files {
		path := filepath.Join(p.cfg.Output, f.name)
		if err := p.writeFile(path, f.write); err != nil {
			return endSpan(span, err)
		}
		sum.Outputs = append(sum.Outputs, path)
	}
	return nil
}

type outputFile struct {
	name  string
	write func(io.Writer) error
}

func (p *Pipeline) writeNormalized(ctx context.Context, sum *Summary, res *normalize.Result) error {
	return p.writeAll(ctx, "normalize", sum, []outputFile{
		{defaults.FindingsCSV, func(w io.Writer) error {
			return writers.WriteFindingsCSV(w, res.Findings, writers.DefaultCSVOptions())
		}},
		{defaults.FindingsJSON, res.Encode},
	})
}

func (p *Pipeline) writeTriage(ctx context.Context, sum *Summary, doc *triage.Document) error {
	files := []outputFile{
		{defaults.TriageJSON, doc.Encode},
		{defaults.TriageSARIF, func(w io.Writer) error {
			return writers.WriteTriageSARIF(w, doc, writers.SARIFOptions{})
		}},
		{defaults.DiagnosticsJSON, func(w io.Writer) error {
			return writers.WriteDiagnosticsJSON(w, doc.Diagnostics)
		}},
	}
	records := doc.Records()
	for _, target := range doc.Targets() {
		var rows []triage.Record
		for _, r := range records {
			if r.Target == target {
				rows = append(rows, r)
			}
		}
		files = append(files, outputFile{target + defaults.TriageCSVSuffix, func(w io.Writer) error {
			return writers.WriteTriageCSV(w, rows, writers.DefaultCSVOptions())
		}})
	}
	return p.writeAll(ctx, "triage", sum, files)
}

func (p *Pipeline) writeScore(ctx context.Context, sum *Summary, rep *scoring.Report, comp *scoring.Comparison) error {
	rounded := rep.Rounded()
	tmpl := writers.TemplateConfig{BuiltIn: "scorecard"}
	if p.cfg.TemplateFile != "" {
		tmpl = writers.TemplateConfig{TemplatePath: p.cfg.TemplateFile}
	}
	return p.writeAll(ctx, "score", sum, []outputFile{
		{defaults.MetricsJSON, func(w io.Writer) error {
			return writers.WriteMetricsJSON(w, rep, comp)
		}},
		{defaults.ScorecardCSV, func(w io.Writer) error {
			return writers.WriteScorecardCSV(w, rounded.Scorecard, writers.DefaultCSVOptions())
		}},
		{defaults.FMeasureSummaryCSV, func(w io.Writer) error {
			return writers.WriteTargetsCSV(w, rounded.Targets, writers.DefaultCSVOptions())
		}},
		{defaults.CWECoverageCSV, func(w io.Writer) error {
			return writers.WriteCWECoverageCSV(w, rounded.CWECoverage, writers.DefaultCSVOptions())
		}},
		{defaults.ScorecardMarkdown, func(w io.Writer) error {
			tw, err := writers.NewTemplateWriter(w, tmpl)
			if err != nil {
				return err
			}
			return tw.Render(rep, comp)
		}},
	})
}
