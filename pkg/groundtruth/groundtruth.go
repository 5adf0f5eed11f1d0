// Package groundtruth loads the curated per-target vulnerability lists
// and matches them against finding clusters.
package groundtruth

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

// Entry is one curated, human-verified vulnerability of a target.
type Entry struct {
	ID              string           `json:"id"`
	Target          string           `json:"target"`
	CWE             string           `json:"cwe,omitempty"`
	Category        finding.Category `json:"category,omitempty"`
	LocationPattern string           `json:"location_pattern,omitempty"`
	Description     string           `json:"description,omitempty"`
	Severity        finding.Severity `json:"severity,omitempty"`
}

// Categories returns the scan categories expected to detect the entry.
// Entries without an explicit category are attributed to SAST and DAST.
func (e Entry) Categories() []finding.Category {
	if e.Category != "" {
		return []finding.Category{e.Category}
	}
	return []finding.Category{finding.SAST, finding.DAST}
}

// Set holds the entries of every target that has a ground-truth file.
type Set struct {
	byTarget map[string][]Entry
}

// NewSet groups entries by target, keeping their order.
func NewSet(entries []Entry) *Set {
	s := &Set{byTarget: make(map[string][]Entry)}
	for _, e := range entries {
		s.byTarget[e.Target] = append(s.byTarget[e.Target], e)
	}
	return s
}

// NewSetWithTargets is NewSet where every target in targets counts as
// having a ground-truth file, even without entries.
func NewSetWithTargets(entries []Entry, targets []string) *Set {
	s := NewSet(entries)
	for _, t := range targets {
		if _, ok := s.byTarget[t]; !ok {
			s.byTarget[t] = nil
		}
	}
	return s
}

// HasTarget reports whether target has a ground-truth file, even an
// empty one.
func (s *Set) HasTarget(target string) bool {
	if s == nil {
		return false
	}
	_, ok := s.byTarget[target]
	return ok
}

// Entries returns the entries of target.
func (s *Set) Entries(target string) []Entry {
	if s == nil {
		return nil
	}
	return s.byTarget[target]
}

// All returns every entry ordered by target, then file order.
func (s *Set) All() []Entry {
	var out []Entry
	for _, t := range s.Targets() {
		out = append(out, s.byTarget[t]...)
	}
	return out
}

// Targets returns the targets with ground truth, sorted.
func (s *Set) Targets() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.byTarget))
	for t := range s.byTarget {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	n := 0
	for _, es := range s.byTarget {
		n += len(es)
	}
	return n
}

// MissingFor returns a MissingGroundTruth diagnostic for every target
// in targets without a ground-truth file.
func (s *Set) MissingFor(targets []string) []finding.Diagnostic {
	var diags []finding.Diagnostic
	seen := make(map[string]bool, len(targets))
	for _, t := range targets {
		if t == "" || seen[t] || s.HasTarget(t) {
			continue
		}
		seen[t] = true
		diags = append(diags, finding.Diagnostic{
			Target: t,
			Kind:   finding.DiagMissingGroundTruth,
			Reason: "no ground-truth file; findings are consensus-classified only and contribute no false negatives",
		})
	}
	finding.SortDiagnostics(diags)
	return diags
}

// LoadDir reads every "<target>.csv" file in dir. An empty dir argument
// yields an empty set. Rows that cannot be used are skipped and
// reported as diagnostics.
func LoadDir(dir string) (*Set, []finding.Diagnostic, error) {
	if dir == "" {
		return NewSet(nil), nil, nil
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: directory %s does not exist", finding.ErrMissingGroundTruth, dir)
		}
		return nil, nil, fmt.Errorf("groundtruth: read %s: %w", dir, err)
	}

	set := NewSet(nil)
	var diags []finding.Diagnostic
	for _, ent := range ents {
		if ent.IsDir() || !strings.EqualFold(filepath.Ext(ent.Name()), ".csv") {
			continue
		}
		target := TargetFromFile(ent.Name())
		path := filepath.Join(dir, ent.Name())
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("groundtruth: open %s: %w", path, err)
		}
		entries, rowDiags, err := Read(f, target)
		f.Close()
		if err != nil {
			diags = append(diags, finding.Diagnostic{
				Target: target,
				File:   path,
				Kind:   finding.DiagGroundTruthRow,
				Reason: err.Error(),
			})
			continue
		}
		for i := range rowDiags {
			rowDiags[i].File = path
		}
		diags = append(diags, rowDiags...)
		set.byTarget[target] = append(set.byTarget[target], entries...)
	}
	finding.SortDiagnostics(diags)
	return set, diags, nil
}

// TargetFromFile derives the target name from a ground-truth file name:
// "juice-shop.csv" and "juice-shop-ground-truth.csv" both give "juice-shop".
func TargetFromFile(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	for _, suffix := range []string{"-ground-truth", "_ground_truth", "-groundtruth", ".gt"} {
		stem = strings.TrimSuffix(stem, suffix)
	}
	return strings.ToLower(stem)
}

// column aliases, first match wins
var columns = map[string][]string{
	"id":          {"id", "vuln_id", "entry_id"},
	"cwe":         {"cwe", "cwe_id"},
	"location":    {"location_pattern", "location"},
	"description": {"description", "title"},
	"severity":    {"severity"},
	"category":    {"category", "scan_category"},
}

// Read parses one ground-truth CSV for target. A header row is required;
// column names are case-insensitive. It fails only when the header is
// unusable; bad rows become diagnostics.
func Read(r io.Reader, target string) ([]Entry, []finding.Diagnostic, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	col := func(name string) int {
		for _, alias := range columns[name] {
			if i, ok := idx[alias]; ok {
				return i
			}
		}
		return -1
	}
	cwe, loc := col("cwe"), col("location")
	if cwe < 0 && loc < 0 {
		return nil, nil, errors.New("header has neither a cwe nor a location column")
	}
	id, desc, sev, cat := col("id"), col("description"), col("severity"), col("category")

	field := func(rec []string, i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var entries []Entry
	var diags []finding.Diagnostic
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			diags = append(diags, rowDiag(target, line, err.Error()))
			continue
		}
		if allEmpty(rec) {
			continue
		}

		e := Entry{
			Target:          target,
			LocationPattern: field(rec, loc),
			Description:     strutil.CollapseSpace(field(rec, desc)),
		}
		if raw := field(rec, cwe); raw != "" {
			e.CWE = finding.NormalizeCWE(raw)
			if e.CWE == "" {
				diags = append(diags, rowDiag(target, line, fmt.Sprintf("unrecognized cwe %q, entry matches any cwe", raw)))
			}
		}
		if s, ok := finding.ParseSeverity(field(rec, sev)); ok {
			e.Severity = s
		}
		// Free-form classes ("Injection", "Broken Access Control") are
		// not scan categories and leave the entry attributed to SAST and DAST.
		if c, ok := finding.ParseCategory(field(rec, cat)); ok {
			e.Category = c
		}
		e.ID = field(rec, id)
		if e.ID == "" {
			e.ID = fmt.Sprintf("%s-GT-%03d", strings.ToUpper(target), len(entries)+1)
		}
		if e.CWE == "" && e.LocationPattern == "" {
			diags = append(diags, rowDiag(target, line, "row has neither cwe nor location, skipped"))
			continue
		}
		entries = append(entries, e)
	}
	return entries, diags, nil
}

func rowDiag(target string, line int, reason string) finding.Diagnostic {
	return finding.Diagnostic{
		Target: target,
		Kind:   finding.DiagGroundTruthRow,
		Reason: fmt.Sprintf("line %d: %s", line, reason),
	}
}

func allEmpty(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
