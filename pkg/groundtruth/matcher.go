package groundtruth

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/cluster"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/fingerprint"
	"github.com/candyshop-benchmark/candyshop/pkg/regexcache"
)

type patternKind int

const (
	patternAny patternKind = iota
	patternRegex
	patternURL
	patternFile
	patternPackage
	patternGeneric
	patternInvalid
)

// pattern is a compiled location pattern. Supported forms:
//
//	""                          any location
//	re:<regexp>                 regexp over the raw or normalized location
//	url:<[METHOD ]path[#param]> URL path (templated), optional param
//	http://host/path?param=     URL
//	/login.php#username         URL path with parameter
//	file:<path[:line]>          file path suffix, optional line ±window
//	pkg:<name[@version]>        dependency name, optional exact version
//	<path[:line]>               file path, URL path, package, or IaC
//	                            resource, depending on the finding
//
// Paths containing * or [ are matched as globs.
type pattern struct {
	kind    patternKind
	re      *regexp.Regexp
	glob    bool
	path    string
	line    int
	method  string
	param   string
	pkg     string
	version string
}

type compiledEntry struct {
	Entry
	pat pattern
}

// Matcher decides which ground-truth entries a cluster corresponds to.
// It is safe for concurrent use.
type Matcher struct {
	engine   *fingerprint.Engine
	set      *Set
	byTarget map[string][]compiledEntry
}

// NewMatcher compiles the location patterns of set. Entries whose
// pattern cannot be compiled never match and are reported.
func NewMatcher(engine *fingerprint.Engine, set *Set) (*Matcher, []finding.Diagnostic) {
	if set == nil {
		set = NewSet(nil)
	}
	m := &Matcher{engine: engine, set: set, byTarget: make(map[string][]compiledEntry)}
	var diags []finding.Diagnostic
	for _, target := range set.Targets() {
		for _, e := range set.Entries(target) {
			pat, err := m.compile(target, e.LocationPattern)
			if err != nil {
				diags = append(diags, finding.Diagnostic{
					Target: target,
					Kind:   finding.DiagGroundTruthRow,
					Reason: fmt.Sprintf("entry %s: %v", e.ID, err),
				})
			}
			m.byTarget[target] = append(m.byTarget[target], compiledEntry{Entry: e, pat: pat})
		}
	}
	return m, diags
}

// Set returns the ground truth the matcher was built from.
func (m *Matcher) Set() *Set {
	return m.set
}

func (m *Matcher) compile(target, raw string) (pattern, error) {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	switch {
	case raw == "":
		return pattern{kind: patternAny}, nil
	case strings.HasPrefix(lower, "re:"):
		re, err := regexcache.Get(raw[3:])
		if err != nil {
			return pattern{kind: patternInvalid}, fmt.Errorf("location pattern: %w", err)
		}
		return pattern{kind: patternRegex, re: re}, nil
	case strings.HasPrefix(lower, "url:"):
		return m.compileURL(raw[4:]), nil
	case strings.HasPrefix(lower, "file:"):
		p := m.compilePath(target, raw[5:])
		p.kind = patternFile
		return p, nil
	case strings.HasPrefix(lower, "pkg:"):
		name, version, _ := strings.Cut(raw[4:], "@")
		return pattern{kind: patternPackage, pkg: strings.ToLower(strings.TrimSpace(name)), version: strings.TrimSpace(version)}, nil
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"),
		strings.ContainsAny(raw, "#?") && !isGlob(raw), hasMethod(raw):
		return m.compileURL(raw), nil
	}
	p := m.compilePath(target, raw)
	p.kind = patternGeneric
	return p, nil
}

func (m *Matcher) compileURL(raw string) pattern {
	raw = strings.TrimSpace(raw)
	var method string
	if hasMethod(raw) {
		method, raw, _ = strings.Cut(raw, " ")
		raw = strings.TrimSpace(raw)
	}
	_, templated, param := m.engine.URLParts(finding.Location{Kind: finding.KindURL, URL: raw})
	return pattern{
		kind:   patternURL,
		glob:   isGlob(raw),
		path:   templated,
		method: strings.ToUpper(method),
		param:  param,
	}
}

func (m *Matcher) compilePath(target, raw string) pattern {
	raw = strings.TrimSpace(raw)
	var line int
	if i := strings.LastIndexByte(raw, ':'); i > 0 {
		if n, err := strconv.Atoi(raw[i+1:]); err == nil && n > 0 {
			line = n
			raw = raw[:i]
		}
	}
	p := pattern{glob: isGlob(raw), line: line}
	if p.glob {
		p.path = strings.TrimLeft(strings.ReplaceAll(raw, `\`, "/"), "/")
	} else {
		p.path = m.engine.NormalizePath(target, raw)
	}
	return p
}

var methods = []string{"GET ", "POST ", "PUT ", "PATCH ", "DELETE ", "HEAD ", "OPTIONS "}

func hasMethod(s string) bool {
	upper := strings.ToUpper(s)
	for _, m := range methods {
		if strings.HasPrefix(upper, m) {
			return true
		}
	}
	return false
}

func isGlob(s string) bool {
	return strings.ContainsAny(s, "*[")
}

// Match returns the first entry of the cluster's target that the cluster
// matches.
func (m *Matcher) Match(c *cluster.Cluster) (Entry, bool) {
	for _, ce := range m.byTarget[c.Target] {
		if m.matches(c, ce) {
			return ce.Entry, true
		}
	}
	return Entry{}, false
}

// MatchAll returns every entry the cluster matches, in file order.
func (m *Matcher) MatchAll(c *cluster.Cluster) []Entry {
	var out []Entry
	for _, ce := range m.byTarget[c.Target] {
		if m.matches(c, ce) {
			out = append(out, ce.Entry)
		}
	}
	return out
}

// matches requires the same CWE (an entry without one matches any), a
// compatible category, and at least one member whose location fits the
// entry's pattern.
func (m *Matcher) matches(c *cluster.Cluster, ce compiledEntry) bool {
	if ce.CWE != "" && ce.CWE != c.CWE {
		return false
	}
	if ce.Category != "" && ce.Category != c.Category {
		return false
	}
	for _, mem := range c.Members {
		if m.locationMatches(ce.pat, c, mem) {
			return true
		}
	}
	return false
}

func (m *Matcher) locationMatches(p pattern, c *cluster.Cluster, f finding.Finding) bool {
	loc := f.Location
	switch p.kind {
	case patternAny:
		return true
	case patternInvalid:
		return false
	case patternRegex:
		return p.re.MatchString(loc.String()) || p.re.MatchString(c.Location) ||
			(loc.Path != "" && p.re.MatchString(loc.Path)) || (loc.URL != "" && p.re.MatchString(loc.URL))
	case patternURL:
		return loc.Kind == finding.KindURL && m.urlMatches(p, loc)
	case patternFile:
		return (loc.Kind == finding.KindFile || loc.Kind == finding.KindResource) && m.fileMatches(p, f.Target, loc)
	case patternPackage:
		return packageMatches(p, loc)
	}

	switch loc.Kind {
	case finding.KindFile:
		return m.fileMatches(p, f.Target, loc)
	case finding.KindURL:
		return m.urlMatches(pattern{path: m.engine.TemplatePath(p.path), glob: p.glob}, loc)
	case finding.KindPackage, finding.KindImage:
		return strings.EqualFold(p.path, loc.Package)
	case finding.KindResource:
		return m.fileMatches(p, f.Target, loc) ||
			strings.EqualFold(p.path, loc.Resource) || strings.EqualFold(p.path, loc.RuleID)
	}
	return false
}

func (m *Matcher) fileMatches(p pattern, target string, loc finding.Location) bool {
	got := m.engine.NormalizePath(target, loc.Path)
	if got == "" || p.path == "" {
		return false
	}
	if p.glob {
		if !globMatches(p.path, got) {
			return false
		}
	} else if !suffixMatch(got, p.path) {
		return false
	}
	if p.line == 0 || loc.StartLine == 0 {
		return true
	}
	w := m.engine.Config().LineWindow
	end := max(loc.EndLine, loc.StartLine)
	return p.line >= loc.StartLine-w && p.line <= end+w
}

func (m *Matcher) urlMatches(p pattern, loc finding.Location) bool {
	method, templated, param := m.engine.URLParts(loc)
	if p.method != "" && p.method != method {
		return false
	}
	if p.param != "" && p.param != param {
		return false
	}
	if p.glob {
		return globMatches(strings.TrimLeft(p.path, "/"), strings.TrimLeft(templated, "/"))
	}
	if p.path == "/" {
		return templated == "/"
	}
	return suffixMatch(templated, p.path)
}

func packageMatches(p pattern, loc finding.Location) bool {
	if loc.Kind != finding.KindPackage && loc.Kind != finding.KindImage {
		return false
	}
	if !strings.EqualFold(p.pkg, strings.TrimSpace(loc.Package)) {
		return false
	}
	return p.version == "" || p.version == loc.Version
}

// suffixMatch reports whether one path ends with the other at a segment
// boundary, so "routes/search.ts" matches "server/routes/search.ts" and
// the reverse, but not "research.ts".
func suffixMatch(a, b string) bool {
	a, b = strings.Trim(a, "/"), strings.Trim(b, "/")
	if a == "" || b == "" {
		return false
	}
	if strings.EqualFold(a, b) {
		return true
	}
	la, lb := strings.ToLower(a), strings.ToLower(b)
	return strings.HasSuffix(la, "/"+lb) || strings.HasSuffix(lb, "/"+la)
}

// globMatches applies a path.Match glob; a glob without "/" is matched
// against the base name only.
func globMatches(glob, p string) bool {
	if !strings.Contains(glob, "/") {
		p = path.Base(p)
	}
	ok, err := path.Match(glob, p)
	return err == nil && ok
}

// MissedEntry is a ground-truth entry that no cluster matched: a false
// negative for every covering tool.
type MissedEntry struct {
	EntryID     string           `json:"entry_id"`
	Target      string           `json:"target"`
	CWE         string           `json:"cwe,omitempty"`
	Category    finding.Category `json:"category,omitempty"`
	Location    string           `json:"location,omitempty"`
	Description string           `json:"description,omitempty"`
	Severity    finding.Severity `json:"severity,omitempty"`
	// Tools are the tools that scanned the target in one of the entry's
	// categories, sorted.
	Tools []finding.Tool `json:"tools"`
}

// HasTool reports whether the miss is attributed to tool.
func (me MissedEntry) HasTool(tool finding.Tool) bool {
	for _, t := range me.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// Reconcile returns the entries matched by none of clusters, ordered by
// target then file order. coverage lists which tools scanned which
// targets.
func (m *Matcher) Reconcile(clusters []*cluster.Cluster, coverage []finding.Coverage) []MissedEntry {
	byTarget := make(map[string][]*cluster.Cluster)
	for _, c := range clusters {
		byTarget[c.Target] = append(byTarget[c.Target], c)
	}
	scanned := make(map[string][]finding.Tool)
	for _, cov := range finding.SortCoverage(coverage) {
		scanned[cov.Target] = append(scanned[cov.Target], cov.Tool)
	}

	missed := []MissedEntry{}
	for _, target := range m.set.Targets() {
		for _, ce := range m.byTarget[target] {
			found := false
			for _, c := range byTarget[target] {
				if m.matches(c, ce) {
					found = true
					break
				}
			}
			if found {
				continue
			}
			missed = append(missed, MissedEntry{
				EntryID:     ce.ID,
				Target:      target,
				CWE:         ce.CWE,
				Category:    ce.Category,
				Location:    ce.LocationPattern,
				Description: ce.Description,
				Severity:    ce.Severity,
				Tools:       coveringTools(scanned[target], ce.Categories()),
			})
		}
	}
	return missed
}

func coveringTools(tools []finding.Tool, cats []finding.Category) []finding.Tool {
	out := []finding.Tool{}
	for _, t := range tools {
		for _, c := range cats {
			if t.Category() == c {
				out = append(out, t)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
