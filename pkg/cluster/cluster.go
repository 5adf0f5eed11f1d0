// Package cluster groups fingerprinted findings into clusters, one per
// distinct fingerprint. A cluster stands for one real-world issue as seen
// by one or more tools.
package cluster

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/fingerprint"
)

// Cluster IDs are name-based UUIDs of the fingerprint in this namespace,
// so the same fingerprint gets the same ID in every run.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/candyshop-benchmark/candyshop/cluster"))

// ToleranceStats counts how members matched the cluster's first member.
type ToleranceStats struct {
	// Exact members have the same location as the first member.
	Exact int `json:"exact"`
	// WithinBand members differ but stay inside the ±window tolerance
	// (or, for URLs, differ only in templated segments or host).
	WithinBand int `json:"in_band"`
	// OutsideBand members share the line bucket but are more than
	// window lines away from the first member.
	OutsideBand int `json:"outside_band"`
	// Boundary members sit on the first or last line of their bucket.
	Boundary int `json:"boundary"`
}

// Add returns the element-wise sum of s and o.
func (s ToleranceStats) Add(o ToleranceStats) ToleranceStats {
	return ToleranceStats{
		Exact:       s.Exact + o.Exact,
		WithinBand:  s.WithinBand + o.WithinBand,
		OutsideBand: s.OutsideBand + o.OutsideBand,
		Boundary:    s.Boundary + o.Boundary,
	}
}

// Cluster is a set of findings sharing one fingerprint.
type Cluster struct {
	ID          string
	Fingerprint string
	Target      string
	Category    finding.Category
	CWE         string
	// CWEInferred is true when no member reported a CWE.
	CWEInferred bool
	// Location is the normalized location shared by all members.
	Location string
	Severity finding.Severity
	Members  []finding.Finding
	Stats    ToleranceStats
}

// Tools returns the distinct tools among the members, sorted.
func (c *Cluster) Tools() []finding.Tool {
	seen := make(map[finding.Tool]bool, len(c.Members))
	var out []finding.Tool
	for _, m := range c.Members {
		if !seen[m.Tool] {
			seen[m.Tool] = true
			out = append(out, m.Tool)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ToolCount returns the number of distinct tools in the cluster.
func (c *Cluster) ToolCount() int {
	return len(c.Tools())
}

// HasTool reports whether tool contributed a member.
func (c *Cluster) HasTool(tool finding.Tool) bool {
	return c.MemberCount(tool) > 0
}

// MemberCount returns how many members tool contributed.
func (c *Cluster) MemberCount(tool finding.Tool) int {
	n := 0
	for _, m := range c.Members {
		if m.Tool == tool {
			n++
		}
	}
	return n
}

// Anchor returns the first member, the reference for tolerance stats.
func (c *Cluster) Anchor() finding.Finding {
	return c.Members[0]
}

// Builder builds clusters. The zero value is not usable; use NewBuilder.
type Builder struct {
	engine *fingerprint.Engine
}

// NewBuilder returns a builder that fingerprints with engine.
func NewBuilder(engine *fingerprint.Engine) *Builder {
	return &Builder{engine: engine}
}

// Build partitions findings into clusters. Findings without a
// fingerprint are derived first; the input slice is not modified.
//
// Members are taken in stable order by tool name, then input order, so
// the first member of a cluster does not depend on worker scheduling.
// Clusters are returned sorted by target, category, CWE, location and
// fingerprint.
func (b *Builder) Build(findings []finding.Finding) []*Cluster {
	ordered := make([]finding.Finding, len(findings))
	for i, f := range findings {
		if !f.HasFingerprint() {
			f = b.engine.Derive(f)
		}
		ordered[i] = f
	}
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Tool < ordered[j].Tool })

	byFP := make(map[string]*Cluster, len(ordered))
	var clusters []*Cluster
	for _, f := range ordered {
		c, ok := byFP[f.Fingerprint]
		if !ok {
			c = &Cluster{
				ID:          uuid.NewSHA1(namespace, []byte(f.Fingerprint)).String(),
				Fingerprint: f.Fingerprint,
				Target:      f.Target,
				Category:    f.Category,
				CWE:         f.NormalizedCWE,
				CWEInferred: true,
				Location:    f.NormalizedLocation,
				Severity:    f.Severity,
			}
			byFP[f.Fingerprint] = c
			clusters = append(clusters, c)
		}
		c.Members = append(c.Members, f)
		if !f.CWEInferred {
			c.CWEInferred = false
		}
		c.Severity = finding.MaxSeverity(c.Severity, f.Severity)
	}

	for _, c := range clusters {
		c.Stats = b.tolerance(c)
	}
	Sort(clusters)
	return clusters
}

// Sort orders clusters by target, category, CWE, location and fingerprint.
func Sort(clusters []*Cluster) {
	sort.SliceStable(clusters, func(i, j int) bool {
		a, b := clusters[i], clusters[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.CWE != b.CWE {
			return a.CWE < b.CWE
		}
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		return a.Fingerprint < b.Fingerprint
	})
}

func (b *Builder) tolerance(c *Cluster) ToleranceStats {
	var st ToleranceStats
	anchor := c.Anchor()
	window := b.engine.Config().LineWindow
	for _, m := range c.Members {
		if m.Location.Kind == finding.KindFile && m.Location.StartLine > 0 && b.engine.OnBoundary(m.Location.StartLine) {
			st.Boundary++
		}
		switch {
		case b.sameLocation(c.Target, anchor.Location, m.Location):
			st.Exact++
		case m.Location.Kind == finding.KindFile && abs(m.Location.StartLine-anchor.Location.StartLine) > window:
			st.OutsideBand++
		default:
			st.WithinBand++
		}
	}
	return st
}

// sameLocation compares the un-bucketed, un-templated form of two locations.
func (b *Builder) sameLocation(target string, x, y finding.Location) bool {
	if x.Kind != y.Kind {
		return false
	}
	switch x.Kind {
	case finding.KindFile:
		return x.StartLine == y.StartLine && b.engine.NormalizePath(target, x.Path) == b.engine.NormalizePath(target, y.Path)
	case finding.KindURL:
		mx, _, px := b.engine.URLParts(x)
		my, _, py := b.engine.URLParts(y)
		return mx == my && px == py && urlPath(x.URL) == urlPath(y.URL)
	case finding.KindPackage, finding.KindImage:
		return strings.EqualFold(x.Package, y.Package) && x.Version == y.Version
	}
	return x == y
}

func urlPath(raw string) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		raw = raw[i+3:]
		if j := strings.IndexByte(raw, '/'); j >= 0 {
			raw = raw[j:]
		} else {
			raw = "/"
		}
	}
	raw, _, _ = strings.Cut(raw, "?")
	raw, _, _ = strings.Cut(raw, "#")
	return strings.TrimSuffix(raw, "/")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Summary aggregates cluster counts for a run.
type Summary struct {
	Clusters  int            `json:"clusters"`
	Findings  int            `json:"findings"`
	MultiTool int            `json:"multi_tool"`
	Tolerance ToleranceStats `json:"tolerance"`
	// BoundaryMerges counts multi-tool clusters with a member on a band
	// boundary, the merges most sensitive to the window setting.
	BoundaryMerges int `json:"boundary_merges"`
}

// Summarize computes run-level cluster statistics.
func Summarize(clusters []*Cluster) Summary {
	var s Summary
	for _, c := range clusters {
		s.Clusters++
		s.Findings += len(c.Members)
		s.Tolerance = s.Tolerance.Add(c.Stats)
		if c.ToolCount() >= 2 {
			s.MultiTool++
			if c.Stats.Boundary > 0 {
				s.BoundaryMerges++
			}
		}
	}
	return s
}
