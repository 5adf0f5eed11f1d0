package normalize

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
)

// ErrFindingsFile indicates a findings.json that cannot be read.
var ErrFindingsFile = errors.New("normalize: invalid findings file")

// Encode writes res as findings.json.
func (res *Result) Encode(w io.Writer) error {
	return jsonutil.Write(w, res)
}

// Load reads a findings.json written by Encode. Fingerprints are derived
// again with the normalizer's engine, so a changed tolerance window or
// repo-root list applies without re-parsing the raw tool output.
func (n *Normalizer) Load(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFindingsFile, err)
	}
	var res Result
	if err := jsonutil.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFindingsFile, path, err)
	}
	res.Findings = n.engine.Apply(res.Findings)
	res.Coverage = finding.SortCoverage(res.Coverage)
	finding.SortDiagnostics(res.Diagnostics)
	n.logger.Info("loaded findings", "file", path, "findings", len(res.Findings), "coverage", len(res.Coverage))
	return &res, nil
}
