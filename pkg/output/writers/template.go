package writers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/scoring"
)

// TemplateConfig configures the template writer.
type TemplateConfig struct {
	// TemplatePath is the path to a custom template file.
	TemplatePath string

	// TemplateString is an inline template string (alternative to TemplatePath).
	TemplateString string

	// BuiltIn is the name of a built-in template: "scorecard", "text-summary".
	BuiltIn string
}

// builtInTemplates contains pre-defined templates.
var builtInTemplates = map[string]string{
	"scorecard": `# CandyShop Benchmark Scorecard
{{ if .BenchmarkDate }}
Benchmark date: {{ .BenchmarkDate }}
{{ end }}
| Rank | Tool | Category | Targets | Precision | Recall | F1 | TP | FP | FN | Pending | CWEs | Grade |
|-----:|------|----------|--------:|----------:|-------:|---:|---:|---:|---:|--------:|-----:|:-----:|
{{- range $i, $r := .Scorecard }}
| {{ add1 $i }} | {{ $r.Tool }} | {{ $r.Category | toString | upper }} | {{ $r.TargetsScanned }} | {{ printf "%.3f" $r.Precision }} | {{ printf "%.3f" $r.Recall }} | {{ printf "%.3f" $r.F1 }} | {{ $r.TP }} | {{ $r.FP }} | {{ $r.FN }} | {{ $r.Pending }} | {{ $r.CWEsFound }} | {{ $r.Grade }} |
{{- end }}

Consensus threshold: {{ .ConsensusThreshold }} tools. Pending policy: **{{ .PendingPolicy }}** ({{ .PendingPolicyNote }}).

## Per-target results

| Tool | Target | TP | FP | FN | Pending | Precision | Recall | F1 |
|------|--------|---:|---:|---:|--------:|----------:|-------:|---:|
{{- range .Targets }}
| {{ .Tool }} | {{ .Target }} | {{ .TP }} | {{ .FP }} | {{ .FN }} | {{ .Pending }} | {{ printf "%.3f" .Precision }} | {{ printf "%.3f" .Recall }} | {{ printf "%.3f" .F1 }} |
{{- end }}
{{ with .CWECoverage }}
## CWE coverage

| Tool | CWE | OWASP | Found | Total | Coverage |
|------|-----|-------|------:|------:|---------:|
{{- range . }}
| {{ .Tool }} | [{{ .CWE }}]({{ cweLink .CWE }}) | {{ .OWASP | default "-" }} | {{ .Found }} | {{ .Total }} | {{ printf "%.1f" .CoveragePct }}% |
{{- end }}
{{ end }}
{{- with .Comparison }}
## Change from baseline

| Tool | F1 delta |
|------|---------:|
{{- range .Deltas }}
| {{ .Tool }} | {{ if .New }}new{{ else if .Removed }}removed{{ else }}{{ printf "%+.3f" .F1Delta }}{{ end }} |
{{- end }}
{{ end }}
{{- with .Warnings }}
## Warnings
{{ range . }}
- {{ .Target }}: {{ .Reason }}
{{- end }}
{{ end }}`,

	"text-summary": `CandyShop Benchmark Summary
===========================
{{ range .Scorecard -}}
{{ .Tool | printf "%-14s" }} F1 {{ printf "%.3f" .F1 }}  grade {{ .Grade }}
{{ end -}}`,
}

// TemplateWriter renders a scoring report with Go templates.
// Sprig functions and benchmark-specific functions are available.
type TemplateWriter struct {
	w      io.Writer
	config TemplateConfig
	tmpl   *template.Template
}

// NewTemplateWriter creates a new template writer.
// It parses the template immediately and returns an error if the template is invalid.
func NewTemplateWriter(w io.Writer, config TemplateConfig) (*TemplateWriter, error) {
	tw := &TemplateWriter{w: w, config: config}
	if err := tw.parseTemplate(); err != nil {
		return nil, fmt.Errorf("template parse error: %w", err)
	}
	return tw, nil
}

// parseTemplate parses the template from config (path, string, or built-in).
func (tw *TemplateWriter) parseTemplate() error {
	var templateContent string

	switch {
	case tw.config.TemplatePath != "":
		content, err := os.ReadFile(tw.config.TemplatePath)
		if err != nil {
			return fmt.Errorf("failed to read template file: %w", err)
		}
		templateContent = string(content)

	case tw.config.TemplateString != "":
		templateContent = tw.config.TemplateString

	case tw.config.BuiltIn != "":
		content, ok := builtInTemplates[tw.config.BuiltIn]
		if !ok {
			return fmt.Errorf("unknown built-in template: %s (available: scorecard, text-summary)", tw.config.BuiltIn)
		}
		templateContent = content

	default:
		return fmt.Errorf("no template specified: set TemplatePath, TemplateString, or BuiltIn")
	}

	// Sprig's date and random helpers would break byte-identical output.
	funcMap := sprig.TxtFuncMap()
	for _, name := range []string{"now", "date", "dateInZone", "randAlpha", "randAlphaNum", "randAscii", "randNumeric", "uuidv4"} {
		delete(funcMap, name)
	}

	funcMap["severityIcon"] = tmplSeverityIcon
	funcMap["json"] = tmplToJSON
	funcMap["owaspLink"] = tmplOwaspLink
	funcMap["cweLink"] = tmplCweLink

	tmpl, err := template.New(defaults.ToolName).Funcs(funcMap).Parse(templateContent)
	if err != nil {
		return fmt.Errorf("parse output template: %w", err)
	}
	tw.tmpl = tmpl
	return nil
}

// tmplData holds all data available to templates.
type tmplData struct {
	*scoring.Report
	Comparison *scoring.Comparison
	Version    string
}

// Render executes the template over a rounded copy of rep.
func (tw *TemplateWriter) Render(rep *scoring.Report, comp *scoring.Comparison) error {
	data := tmplData{Report: rep.Rounded(), Comparison: comp, Version: defaults.Version}

	var buf bytes.Buffer
	if err := tw.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execution error: %w", err)
	}
	if _, err := tw.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

// tmplSeverityIcon returns an emoji icon for a severity level.
func tmplSeverityIcon(severity string) string {
	s, _ := finding.ParseSeverity(severity)
	switch s {
	case finding.Critical:
		return "🔴"
	case finding.High:
		return "🟠"
	case finding.Medium:
		return "🟡"
	case finding.Low:
		return "🟢"
	case finding.Info:
		return "🔵"
	default:
		return "⚪"
	}
}

// tmplToJSON converts a value to a JSON string.
func tmplToJSON(v any) string {
	b, err := jsonutil.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}

// tmplOwaspLink returns the OWASP Top 10 page for a category code.
func tmplOwaspLink(code string) string {
	if c, ok := defaults.OWASPTop10[strings.TrimSpace(code)]; ok {
		return c.URL
	}
	return "https://owasp.org/Top10/"
}

// tmplCweLink returns a link to the CWE page for a given ID.
func tmplCweLink(id string) string {
	num := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(id)), "CWE-")
	if num == "" || strings.Trim(num, "0123456789") != "" {
		return "https://cwe.mitre.org/"
	}
	return fmt.Sprintf("https://cwe.mitre.org/data/definitions/%s.html", num)
}
