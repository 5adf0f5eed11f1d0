package scoring

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
)

// Durations holds optional scan durations in seconds per (tool, target).
type Durations map[durationKey]float64

type durationKey struct {
	tool   finding.Tool
	target string
}

// Lookup returns the duration of tool on target.
func (d Durations) Lookup(tool finding.Tool, target string) (float64, bool) {
	v, ok := d[durationKey{tool, target}]
	return v, ok
}

// Set records a duration.
func (d Durations) Set(tool finding.Tool, target string, seconds float64) {
	d[durationKey{tool, target}] = seconds
}

// ReadDurations parses a CSV with columns tool, target and
// duration_seconds. Rows with unknown tools or unparsable durations are
// skipped.
func ReadDurations(r io.Reader) (Durations, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Durations{}, nil
		}
		return nil, fmt.Errorf("scoring: speed header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	toolCol, okTool := idx["tool"]
	targetCol, okTarget := idx["target"]
	durCol, okDur := idx["duration_seconds"]
	if !okTool || !okTarget || !okDur {
		return nil, errors.New("scoring: speed file needs tool, target and duration_seconds columns")
	}

	d := Durations{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scoring: speed file: %w", err)
		}
		if len(rec) <= max(toolCol, targetCol, durCol) {
			continue
		}
		tool, ok := finding.ParseTool(rec[toolCol])
		target := strings.TrimSpace(rec[targetCol])
		secs, perr := strconv.ParseFloat(strings.TrimSpace(rec[durCol]), 64)
		if !ok || target == "" || perr != nil || secs < 0 {
			continue
		}
		d.Set(tool, target, secs)
	}
	return d, nil
}

// LoadDurations reads a speed CSV file. An empty path yields no durations.
func LoadDurations(path string) (Durations, error) {
	if path == "" {
		return Durations{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scoring: %w", err)
	}
	defer f.Close()
	return ReadDurations(f)
}
