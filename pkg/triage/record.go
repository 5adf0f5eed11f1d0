package triage

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/candyshop-benchmark/candyshop/pkg/cluster"
	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/groundtruth"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

// Member is the triage view of one finding in a cluster.
type Member struct {
	FindingID string           `json:"finding_id"`
	Tool      finding.Tool     `json:"tool"`
	Severity  finding.Severity `json:"severity"`
	Location  string           `json:"location"`
	RawID     string           `json:"raw_id,omitempty"`
}

// Record is the serialized form of a classified cluster.
type Record struct {
	ID          string           `json:"id"`
	Fingerprint string           `json:"fingerprint"`
	Status      Status           `json:"status"`
	Reason      Reason           `json:"reason"`
	Confidence  Confidence       `json:"confidence"`
	Target      string           `json:"target"`
	Category    finding.Category `json:"category"`
	CWE         string           `json:"cwe"`
	CWEInferred bool             `json:"cwe_inferred"`
	Severity    finding.Severity `json:"severity"`
	// Location is the normalized location; RepresentativeLocation is the
	// first member's location as its tool reported it.
	Location               string                 `json:"location"`
	RepresentativeLocation string                 `json:"representative_location"`
	Description            string                 `json:"description,omitempty"`
	Tools                  []finding.Tool         `json:"tools"`
	ToolCount              int                    `json:"tool_count"`
	Members                []Member               `json:"members"`
	GroundTruthMatch       string                 `json:"ground_truth_match,omitempty"`
	GroundTruthEntries     []string               `json:"ground_truth_entries,omitempty"`
	Tolerance              cluster.ToleranceStats `json:"tolerance"`
	Review                 *ReviewDecision        `json:"review,omitempty"`
}

// HasTool reports whether tool contributed a member.
func (r Record) HasTool(tool finding.Tool) bool {
	for _, t := range r.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// MemberCount returns the number of members reported by tool.
func (r Record) MemberCount(tool finding.Tool) int {
	n := 0
	for _, m := range r.Members {
		if m.Tool == tool {
			n++
		}
	}
	return n
}

// NewRecord flattens a decision.
func NewRecord(d Decision) Record {
	c := d.Cluster
	r := Record{
		ID:                     c.ID,
		Fingerprint:            c.Fingerprint,
		Status:                 d.Status,
		Reason:                 d.Reason,
		Confidence:             d.Confidence,
		Target:                 c.Target,
		Category:               c.Category,
		CWE:                    c.CWE,
		CWEInferred:            c.CWEInferred,
		Severity:               c.Severity,
		Location:               c.Location,
		RepresentativeLocation: c.Anchor().Location.String(),
		Tools:                  c.Tools(),
		Tolerance:              c.Stats,
		Review:                 d.Review,
	}
	r.ToolCount = len(r.Tools)
	for _, m := range c.Members {
		if r.Description == "" {
			r.Description = strutil.Truncate(m.Description, defaults.DescriptionMaxLen)
		}
		r.Members = append(r.Members, Member{
			FindingID: m.ID,
			Tool:      m.Tool,
			Severity:  m.Severity,
			Location:  m.Location.String(),
			RawID:     m.RawID,
		})
	}
	if d.Match != nil {
		r.GroundTruthMatch = d.Match.ID
	}
	for _, e := range d.Matches {
		r.GroundTruthEntries = append(r.GroundTruthEntries, e.ID)
	}
	return r
}

// SortRecords orders records like clusters: by target, category, CWE,
// location and fingerprint.
func SortRecords(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
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

// Partition splits records by status, keeping their order.
func Partition(records []Record) (confirmed, pending, rejected []Record) {
	confirmed, pending, rejected = []Record{}, []Record{}, []Record{}
	for _, r := range records {
		switch r.Status {
		case StatusConfirmed:
			confirmed = append(confirmed, r)
		case StatusRejected:
			rejected = append(rejected, r)
		default:
			pending = append(pending, r)
		}
	}
	return confirmed, pending, rejected
}

// Document is the triage output: every cluster partitioned by status,
// plus what scoring needs besides the clusters.
type Document struct {
	BenchmarkDate      string                    `json:"benchmark_date,omitempty"`
	ConsensusThreshold int                       `json:"consensus_threshold"`
	LineWindow         int                       `json:"line_window"`
	Counts             Counts                    `json:"counts"`
	Tolerance          cluster.Summary           `json:"tolerance"`
	Confirmed          []Record                  `json:"confirmed"`
	Pending            []Record                  `json:"pending"`
	Rejected           []Record                  `json:"rejected"`
	Missed             []groundtruth.MissedEntry `json:"missed"`
	GroundTruth        []groundtruth.Entry       `json:"ground_truth"`
	GroundTruthTargets []string                  `json:"ground_truth_targets"`
	Coverage           []finding.Coverage        `json:"coverage"`
	Diagnostics        []finding.Diagnostic      `json:"diagnostics"`
}

// NewDocument partitions decisions into a document. The remaining
// fields are left for the caller.
func NewDocument(decisions []Decision) *Document {
	records := make([]Record, 0, len(decisions))
	for _, d := range decisions {
		records = append(records, NewRecord(d))
	}
	doc := &Document{}
	doc.SetRecords(records)
	return doc
}

// SetRecords replaces the partitioned records and recounts them.
func (d *Document) SetRecords(records []Record) {
	records = append([]Record(nil), records...)
	SortRecords(records)
	d.Confirmed, d.Pending, d.Rejected = Partition(records)
	d.Counts = Counts{Confirmed: len(d.Confirmed), Pending: len(d.Pending), Rejected: len(d.Rejected)}
	for _, r := range d.Confirmed {
		if r.Reason == ReasonGroundTruth {
			d.Counts.GroundTruth++
		}
	}
}

// Records returns all records in cluster order.
func (d *Document) Records() []Record {
	out := make([]Record, 0, len(d.Confirmed)+len(d.Pending)+len(d.Rejected))
	out = append(out, d.Confirmed...)
	out = append(out, d.Pending...)
	out = append(out, d.Rejected...)
	SortRecords(out)
	return out
}

// Targets returns the distinct targets of the records, sorted.
func (d *Document) Targets() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range d.Records() {
		if !seen[r.Target] {
			seen[r.Target] = true
			out = append(out, r.Target)
		}
	}
	for _, c := range d.Coverage {
		if c.Target != "" && !seen[c.Target] {
			seen[c.Target] = true
			out = append(out, c.Target)
		}
	}
	sort.Strings(out)
	return out
}

// ApplyReviews applies review decisions to already classified records,
// as the classifier would have, and re-partitions them. Conflicts are
// returned and also appended to the document diagnostics.
func (d *Document) ApplyReviews(reviews *Reviews) []finding.Diagnostic {
	if reviews.Len() == 0 {
		return nil
	}
	records := d.Records()
	var diags []finding.Diagnostic
	for i := range records {
		r := &records[i]
		rev, ok := reviews.Lookup(r.ID, r.Fingerprint)
		if !ok {
			continue
		}
		out := applyReview(r.Status, r.Reason, r.GroundTruthMatch != "", rev)
		if out.conflict {
			diags = append(diags, finding.Diagnostic{
				Target: r.Target,
				Kind:   finding.DiagReviewConflict,
				Reason: conflictReason(r.Fingerprint, rev, r.GroundTruthMatch),
			})
			continue
		}
		rv := rev
		r.Review = &rv
		if out.changed {
			r.Status, r.Reason, r.Confidence = out.status, ReasonReview, ConfidenceManual
		}
	}
	d.SetRecords(records)
	d.Diagnostics = append(d.Diagnostics, diags...)
	finding.SortDiagnostics(d.Diagnostics)
	return diags
}

// Encode writes the document as indented, deterministic JSON.
func (d *Document) Encode(w io.Writer) error {
	return jsonutil.Write(w, d)
}

// DecodeDocument reads a document written by Encode.
func DecodeDocument(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var d Document
	if err := jsonutil.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("triage: decode document: %w", err)
	}
	return &d, nil
}

// ReadDocument reads a triage.json file.
func ReadDocument(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("triage: %w", err)
	}
	defer f.Close()
	return DecodeDocument(f)
}
