package triage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidReview is returned for review files that cannot be used.
var ErrInvalidReview = errors.New("triage: invalid review file")

// ReviewDecision is one manual verdict on a cluster, keyed by
// fingerprint or cluster ID.
type ReviewDecision struct {
	Fingerprint string `yaml:"fingerprint,omitempty" json:"fingerprint,omitempty"`
	ClusterID   string `yaml:"id,omitempty" json:"id,omitempty"`
	Status      Status `yaml:"status" json:"status"`
	Note        string `yaml:"note,omitempty" json:"note,omitempty"`
	Reviewer    string `yaml:"reviewer,omitempty" json:"reviewer,omitempty"`
}

type reviewFile struct {
	Decisions []ReviewDecision `yaml:"decisions"`
}

// Reviews indexes review decisions. A nil *Reviews has no decisions.
type Reviews struct {
	byKey map[string]ReviewDecision
	order []string
}

// NewReviews indexes decisions. Later decisions for the same key win.
func NewReviews(decisions ...ReviewDecision) (*Reviews, error) {
	r := &Reviews{byKey: make(map[string]ReviewDecision)}
	for i, d := range decisions {
		if err := r.add(d); err != nil {
			return nil, fmt.Errorf("decision %d: %w", i+1, err)
		}
	}
	return r, nil
}

func (r *Reviews) add(d ReviewDecision) error {
	d.Fingerprint = strings.ToLower(strings.TrimSpace(d.Fingerprint))
	d.ClusterID = strings.ToLower(strings.TrimSpace(d.ClusterID))
	d.Status = Status(strings.ToLower(strings.TrimSpace(string(d.Status))))
	if d.Fingerprint == "" && d.ClusterID == "" {
		return fmt.Errorf("%w: decision needs a fingerprint or id", ErrInvalidReview)
	}
	if d.Status != StatusConfirmed && d.Status != StatusRejected {
		return fmt.Errorf("%w: status %q must be confirmed or rejected", ErrInvalidReview, d.Status)
	}
	for _, key := range []string{d.Fingerprint, d.ClusterID} {
		if key == "" {
			continue
		}
		if _, ok := r.byKey[key]; !ok {
			r.order = append(r.order, key)
		}
		r.byKey[key] = d
	}
	return nil
}

// Merge adds the decisions of o, which win over existing ones.
func (r *Reviews) Merge(o *Reviews) {
	if o == nil {
		return
	}
	for _, k := range o.order {
		if _, ok := r.byKey[k]; !ok {
			r.order = append(r.order, k)
		}
		r.byKey[k] = o.byKey[k]
	}
}

// Lookup finds the decision for a cluster. The fingerprint takes
// precedence over the cluster ID.
func (r *Reviews) Lookup(clusterID, fingerprint string) (ReviewDecision, bool) {
	if r == nil {
		return ReviewDecision{}, false
	}
	if d, ok := r.byKey[strings.ToLower(fingerprint)]; ok && fingerprint != "" {
		return d, true
	}
	if d, ok := r.byKey[strings.ToLower(clusterID)]; ok && clusterID != "" {
		return d, true
	}
	return ReviewDecision{}, false
}

// Len returns the number of distinct keys.
func (r *Reviews) Len() int {
	if r == nil {
		return 0
	}
	return len(r.byKey)
}

// Unused returns the keys that none of the given cluster IDs or
// fingerprints refer to, sorted.
func (r *Reviews) Unused(keys []string) []string {
	if r == nil {
		return nil
	}
	used := make(map[string]bool, len(keys))
	for _, k := range keys {
		used[strings.ToLower(k)] = true
	}
	// A decision may be keyed twice; it is used if either key is.
	usedDecision := make(map[ReviewDecision]bool)
	for k, d := range r.byKey {
		if used[k] {
			usedDecision[d] = true
		}
	}
	var out []string
	for k, d := range r.byKey {
		if !usedDecision[d] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// ParseReviews decodes a YAML review file:
//
//	decisions:
//	  - fingerprint: 6f1c...
//	    status: rejected
//	    note: test fixture, not reachable
//	    reviewer: jdoe
func ParseReviews(data []byte) (*Reviews, error) {
	var f reviewFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReview, err)
	}
	return NewReviews(f.Decisions...)
}

// verdicts maps the verdict column of a triage CSV to a review status.
// Pending rows carry no decision.
var verdicts = map[string]Status{
	"tp":        StatusConfirmed,
	"confirmed": StatusConfirmed,
	"fp":        StatusRejected,
	"rejected":  StatusRejected,
}

// ReadVerdictCSV reads a hand-edited triage CSV (a copy of
// "<target>-auto.csv" saved as "<target>-final.csv") and turns every
// TP/FP verdict into a review decision.
func ReadVerdictCSV(r io.Reader) (*Reviews, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidReview, err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	verdictCol, ok := idx["verdict"]
	if !ok {
		return nil, fmt.Errorf("%w: no verdict column", ErrInvalidReview)
	}
	get := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var decisions []ReviewDecision
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidReview, err)
		}
		if verdictCol >= len(rec) {
			continue
		}
		status, ok := verdicts[strings.ToLower(strings.TrimSpace(rec[verdictCol]))]
		if !ok {
			continue
		}
		decisions = append(decisions, ReviewDecision{
			Fingerprint: get(rec, "fingerprint"),
			ClusterID:   get(rec, "finding_group_id"),
			Status:      status,
			Note:        get(rec, "note"),
			Reviewer:    get(rec, "reviewer"),
		})
	}
	return NewReviews(decisions...)
}

// LoadReviews reads review files, YAML or verdict CSV by extension.
// Later files win.
func LoadReviews(paths ...string) (*Reviews, error) {
	all, _ := NewReviews()
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("triage: read review %s: %w", p, err)
		}
		var r *Reviews
		switch strings.ToLower(filepath.Ext(p)) {
		case ".csv":
			r, err = ReadVerdictCSV(bytes.NewReader(data))
		default:
			r, err = ParseReviews(data)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		all.Merge(r)
	}
	return all, nil
}
