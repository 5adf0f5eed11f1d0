package finding

import (
	"sort"
	"strings"
)

// Category is the coarse class of scanner that produced a finding.
type Category string

const (
	SAST      Category = "sast"
	DAST      Category = "dast"
	SCA       Category = "sca"
	Container Category = "container"
	IaC       Category = "iac"
)

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	switch c {
	case SAST, DAST, SCA, Container, IaC:
		return true
	}
	return false
}

// ParseCategory accepts the canonical names in any case.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.IsValid()
}

// Tool identifies a scanner with a registered output format.
type Tool string

const (
	Trivy      Tool = "trivy"
	Grype      Tool = "grype"
	Bearer     Tool = "bearer"
	NodeJsScan Tool = "nodejsscan"
	Bandit     Tool = "bandit"
	NpmAudit   Tool = "npm-audit"
	PipAudit   Tool = "pip-audit"
	DepCheck   Tool = "dep-check"
	ZAP        Tool = "zap"
	Nuclei     Tool = "nuclei"
	Checkov    Tool = "checkov"
)

var toolCategories = map[Tool]Category{
	Trivy:      Container,
	Grype:      Container,
	Bearer:     SAST,
	NodeJsScan: SAST,
	Bandit:     SAST,
	NpmAudit:   SCA,
	PipAudit:   SCA,
	DepCheck:   SCA,
	ZAP:        DAST,
	Nuclei:     DAST,
	Checkov:    IaC,
}

// Names used by results directories that differ from the canonical tool name.
var toolAliases = map[string]Tool{
	"njsscan":                 NodeJsScan,
	"npmaudit":                NpmAudit,
	"npm_audit":               NpmAudit,
	"pipaudit":                PipAudit,
	"pip_audit":               PipAudit,
	"depcheck":                DepCheck,
	"dependency-check":        DepCheck,
	"dependency-check-report": DepCheck,
	"owasp-dependency-check":  DepCheck,
	"zap-baseline":            ZAP,
	"zap-full":                ZAP,
	"owasp-zap":               ZAP,
}

// String returns the tool name.
func (t Tool) String() string {
	return string(t)
}

// Category returns the category of the tool, or "" for unknown tools.
func (t Tool) Category() Category {
	return toolCategories[t]
}

// IsKnown reports whether t is one of the supported tools.
func (t Tool) IsKnown() bool {
	_, ok := toolCategories[t]
	return ok
}

// ParseTool resolves a canonical name or alias, in any case.
func ParseTool(name string) (Tool, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if t := Tool(n); t.IsKnown() {
		return t, true
	}
	t, ok := toolAliases[n]
	return t, ok
}

// AllTools returns every supported tool sorted by name.
func AllTools() []Tool {
	tools := make([]Tool, 0, len(toolCategories))
	for t := range toolCategories {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i] < tools[j] })
	return tools
}

// Coverage records that a tool produced a results file for a target.
// Coverage decides which tools a missed ground-truth entry is charged to.
type Coverage struct {
	Tool   Tool   `json:"tool"`
	Target string `json:"target"`
}

// SortCoverage orders coverage by tool then target and drops duplicates.
func SortCoverage(cov []Coverage) []Coverage {
	out := append([]Coverage(nil), cov...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tool != out[j].Tool {
			return out[i].Tool < out[j].Tool
		}
		return out[i].Target < out[j].Target
	})
	uniq := out[:0]
	for i, c := range out {
		if i > 0 && c == out[i-1] {
			continue
		}
		uniq = append(uniq, c)
	}
	return uniq
}

// ToolNames returns every canonical name and alias, longest first, for
// matching tool names embedded in file names.
func ToolNames() []string {
	names := make([]string, 0, len(toolCategories)+len(toolAliases))
	for t := range toolCategories {
		names = append(names, string(t))
	}
	for a := range toolAliases {
		names = append(names, a)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return names
}
