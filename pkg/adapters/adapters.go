// Package adapters converts raw scanner output into canonical findings.
//
// Each supported tool has one Adapter: a pure parse function over the
// bytes of one results file, plus a versioned table that maps the tool's
// severity vocabulary onto finding.Severity. Adapters never log and never
// touch the filesystem; the normalizer reads files and turns adapter
// errors into diagnostics.
//
// Usage:
//
//	reg := adapters.Default()
//	a, ok := reg.Lookup("njsscan")
//	if ok {
//	    findings, err := a.Parse(adapters.Source{Target: "juice-shop", Data: data})
//	}
package adapters

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

// Source is one results file handed to an adapter.
type Source struct {
	// Target is the application the file belongs to. It is empty for
	// files that cover several targets (checkov), in which case the
	// adapter attributes each finding using Targets.
	Target  string
	Path    string
	Data    []byte
	Targets []string
}

// ParseFunc turns one results file into findings. Implementations fill
// Location, Severity, CWE, Description, RawID and Raw; the Adapter fills
// the rest.
type ParseFunc func(src Source, sev *SeverityTable) ([]finding.Finding, error)

// Adapter parses the output format of a single tool.
type Adapter struct {
	tool     finding.Tool
	parse    ParseFunc
	severity *SeverityTable
}

// New creates an adapter for tool.
func New(tool finding.Tool, sev *SeverityTable, parse ParseFunc) *Adapter {
	return &Adapter{tool: tool, parse: parse, severity: sev}
}

// Tool returns the tool this adapter parses.
func (a *Adapter) Tool() finding.Tool {
	return a.tool
}

// Severity returns the adapter's severity table.
func (a *Adapter) Severity() *SeverityTable {
	return a.severity
}

// CanParse reports whether name (a tool name or alias) refers to this
// adapter's tool.
func (a *Adapter) CanParse(name string) bool {
	t, ok := finding.ParseTool(name)
	return ok && t == a.tool
}

// Parse converts src into findings. Any failure (empty input, malformed
// or truncated data, unexpected structure) is returned as an error
// wrapping finding.ErrAdapterParse and no findings are returned.
func (a *Adapter) Parse(src Source) ([]finding.Finding, error) {
	if len(bytes.TrimSpace(src.Data)) == 0 {
		return nil, fmt.Errorf("%w: %s: empty file", finding.ErrAdapterParse, a.tool)
	}
	raw, err := a.parse(src, a.severity)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", finding.ErrAdapterParse, a.tool, err)
	}

	out := make([]finding.Finding, 0, len(raw))
	for _, f := range raw {
		f.Tool = a.tool
		f.Category = a.tool.Category()
		if f.Target == "" {
			f.Target = src.Target
		}
		f.CWE = finding.NormalizeCWE(f.CWE)
		if !f.Severity.IsValid() {
			f.Severity = a.severity.Default
		}
		f.Description = strutil.Summary(f.Description, defaults.DescriptionMaxLen)
		out = append(out, f)
	}
	return out, nil
}

// Registry maps tool names to adapters.
type Registry struct {
	adapters map[finding.Tool]*Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...*Adapter) *Registry {
	r := &Registry{adapters: make(map[finding.Tool]*Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register adds or replaces the adapter for a.Tool().
func (r *Registry) Register(a *Adapter) {
	r.adapters[a.tool] = a
}

// Lookup resolves a tool name or alias to its adapter.
func (r *Registry) Lookup(name string) (*Adapter, bool) {
	t, ok := finding.ParseTool(name)
	if !ok {
		return nil, false
	}
	a, ok := r.adapters[t]
	return a, ok
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []finding.Tool {
	tools := make([]finding.Tool, 0, len(r.adapters))
	for t := range r.adapters {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i] < tools[j] })
	return tools
}

// Default returns a registry with every built-in adapter.
func Default() *Registry {
	return NewRegistry(
		New(finding.Trivy, trivySeverity, parseTrivy),
		New(finding.Grype, grypeSeverity, parseGrype),
		New(finding.Bearer, bearerSeverity, parseBearer),
		New(finding.NodeJsScan, nodejsscanSeverity, parseNodeJsScan),
		New(finding.Bandit, banditSeverity, parseBandit),
		New(finding.NpmAudit, npmAuditSeverity, parseNpmAudit),
		New(finding.PipAudit, pipAuditSeverity, parsePipAudit),
		New(finding.DepCheck, depCheckSeverity, parseDepCheck),
		New(finding.ZAP, zapSeverity, parseZAP),
		New(finding.Nuclei, nucleiSeverity, parseNuclei),
		New(finding.Checkov, checkovSeverity, parseCheckov),
	)
}

// attributeTarget picks the known target a multi-target file path
// belongs to: an exact path segment first, then a substring. Longer
// names win so that "juice-shop-ctf" is not read as "juice-shop".
func attributeTarget(paths []string, targets []string) string {
	ordered := append([]string(nil), targets...)
	sort.Slice(ordered, func(i, j int) bool {
		if len(ordered[i]) != len(ordered[j]) {
			return len(ordered[i]) > len(ordered[j])
		}
		return ordered[i] < ordered[j]
	})
	for _, p := range paths {
		segs := strings.FieldsFunc(strings.ToLower(p), func(r rune) bool { return r == '/' || r == '\\' })
		for _, t := range ordered {
			for _, s := range segs {
				if s == strings.ToLower(t) {
					return t
				}
			}
		}
	}
	for _, p := range paths {
		lower := strings.ToLower(p)
		for _, t := range ordered {
			if strings.Contains(lower, strings.ToLower(t)) {
				return t
			}
		}
	}
	return ""
}
