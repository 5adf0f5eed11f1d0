package resultsdir

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownTargets = []string{"juice-shop", "dvwa", "vulnpy", "broken-crystals"}

func writeFiles(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("{}"), 0o644))
	}
}

func TestDiscover_Layouts(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"sast/bandit-vulnpy.json",
		"sast/njsscan-juice-shop.json",
		"sca/npm-audit-juice-shop.json",
		"sca/depcheck-juice-shop/dependency-check-report.json",
		"dast/zap-dvwa.xml",
		"dast/nuclei-dvwa.jsonl",
		"dast/semgrep-dvwa.json",
		"iac/checkov.json",
		"broken-crystals/zap.json",
		"broken-crystals/trivy.json",
		"sast/notes.txt",
		".cache/bandit-vulnpy.json",
		"sast/bandit.json",
		"mystery.json",
	)

	entries, err := Discover(root, knownTargets)
	require.NoError(t, err)

	type key struct {
		Tool, Target, Rel string
		Resolved          bool
	}
	var got []key
	for _, e := range entries {
		got = append(got, key{e.Tool, e.Target, e.Rel, e.Resolved})
		assert.Equal(t, filepath.Join(root, filepath.FromSlash(e.Rel)), e.Path)
	}
	assert.Equal(t, []key{
		{"bandit", "", "sast/bandit.json", false},
		{"bandit", "vulnpy", "sast/bandit-vulnpy.json", true},
		{"checkov", "", "iac/checkov.json", true},
		{"dep-check", "juice-shop", "sca/depcheck-juice-shop/dependency-check-report.json", true},
		{"mystery", "", "mystery.json", false},
		{"njsscan", "juice-shop", "sast/njsscan-juice-shop.json", true},
		{"npm-audit", "juice-shop", "sca/npm-audit-juice-shop.json", true},
		{"nuclei", "dvwa", "dast/nuclei-dvwa.jsonl", true},
		{"semgrep", "dvwa", "dast/semgrep-dvwa.json", true},
		{"trivy", "broken-crystals", "broken-crystals/trivy.json", true},
		{"zap", "broken-crystals", "broken-crystals/zap.json", true},
		{"zap", "dvwa", "dast/zap-dvwa.xml", true},
	}, got)
}

func TestDiscover_UnknownTargetInCategorizedName(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "dast/zap-baseline-new-app.json", "new-app/bandit.json")

	entries, err := Discover(root, knownTargets)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "bandit", entries[0].Tool)
	assert.Equal(t, "new-app", entries[0].Target)
	assert.Equal(t, "zap-baseline", entries[1].Tool)
	assert.Equal(t, "new-app", entries[1].Target)
}

func TestDiscover_CheckovInTargetDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "dvwa/checkov.json")

	entries, err := Discover(root, knownTargets)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "dvwa", entries[0].Target)
	assert.False(t, entries[0].AllTargets())
}

func TestDiscover_MissingRoot(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), knownTargets)
	assert.Error(t, err)
}

func TestDiscover_Empty(t *testing.T) {
	entries, err := Discover(t.TempDir(), knownTargets)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
