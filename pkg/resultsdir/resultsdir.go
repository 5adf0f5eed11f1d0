// Package resultsdir discovers scanner output files in a results
// directory. Three layouts are recognized and may be mixed:
//
//	<root>/<phase>/<tool>-<target>.json    categorized by scanner phase
//	<root>/<target>/<tool>.json            one directory per target
//	<root>/**/depcheck-<target>/*.json     Dependency-Check report dirs
//
// A file named checkov.json covers every target. Files with the .jsonl
// (nuclei) and .xml (ZAP) extensions are picked up as well.
package resultsdir

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
)

// Entry is one discovered results file.
type Entry struct {
	// Tool is the tool name as spelled in the file or directory name.
	Tool string
	// Target is empty for files covering every target.
	Target string
	// Path is the file path; Rel is the same path relative to the root.
	Path string
	Rel  string
	// Resolved is false when no tool/target split could be found in the
	// file name. Tool then holds the bare file stem.
	Resolved bool
}

// AllTargets reports whether the entry covers every known target.
func (e Entry) AllTargets() bool {
	return e.Resolved && e.Target == ""
}

var extensions = map[string]bool{
	".json":  true,
	".jsonl": true,
	".xml":   true,
}

// Directory names that group results by scanner phase rather than target.
var phaseDirs = map[string]bool{
	"sast":       true,
	"dast":       true,
	"sca":        true,
	"container":  true,
	"containers": true,
	"iac":        true,
	"results":    true,
	"raw":        true,
}

var depCheckDirPrefixes = []string{"depcheck-", "depcheck_", "dependency-check-", "dependency-check_"}

// Discover walks root and returns the results files it contains, sorted
// by tool, target and relative path.
func Discover(root string, knownTargets []string) ([]Entry, error) {
	targets := sortedByLength(knownTargets)
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !extensions[ext] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		e := classify(rel, ext, targets)
		e.Path = path
		e.Rel = rel
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resultsdir: walk %s: %w", root, err)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Tool != b.Tool {
			return a.Tool < b.Tool
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Rel < b.Rel
	})
	return entries, nil
}

func classify(rel, ext string, targets []string) Entry {
	parts := strings.Split(rel, "/")
	dirs := parts[:len(parts)-1]
	stem := strings.ToLower(strings.TrimSuffix(parts[len(parts)-1], ext))

	for i := len(dirs) - 1; i >= 0; i-- {
		dir := strings.ToLower(dirs[i])
		for _, p := range depCheckDirPrefixes {
			if strings.HasPrefix(dir, p) && len(dir) > len(p) {
				return Entry{Tool: string(finding.DepCheck), Target: dirs[i][len(p):], Resolved: true}
			}
		}
	}

	if t, ok := finding.ParseTool(stem); ok {
		if len(dirs) > 0 && !phaseDirs[strings.ToLower(dirs[len(dirs)-1])] {
			return Entry{Tool: stem, Target: dirs[len(dirs)-1], Resolved: true}
		}
		if t == finding.Checkov {
			return Entry{Tool: stem, Resolved: true}
		}
		return Entry{Tool: stem}
	}

	if parentIsTarget(dirs, targets) {
		return Entry{Tool: stem, Target: dirs[len(dirs)-1], Resolved: true}
	}

	for _, name := range finding.ToolNames() {
		if rest, ok := strings.CutPrefix(stem, name+"-"); ok && rest != "" {
			return Entry{Tool: name, Target: rest, Resolved: true}
		}
	}
	for _, target := range targets {
		if tool, ok := strings.CutSuffix(stem, "-"+strings.ToLower(target)); ok && tool != "" {
			return Entry{Tool: tool, Target: target, Resolved: true}
		}
	}
	return Entry{Tool: stem}
}

func parentIsTarget(dirs []string, targets []string) bool {
	if len(dirs) == 0 {
		return false
	}
	parent := strings.ToLower(dirs[len(dirs)-1])
	for _, t := range targets {
		if strings.ToLower(t) == parent {
			return true
		}
	}
	return false
}

func sortedByLength(targets []string) []string {
	out := append([]string(nil), targets...)
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}
