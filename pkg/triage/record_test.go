package triage

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candyshop-benchmark/candyshop/pkg/cluster"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/groundtruth"
)

func sampleDocument(t *testing.T) (*Document, []*cluster.Cluster) {
	t.Helper()
	fx := newFixture(t, groundtruth.Entry{ID: "GT-1", Target: "dvwa", CWE: "CWE-89", LocationPattern: "/login.php#username"})
	zap := dastFinding(finding.ZAP, "dvwa", "http://localhost/login.php", "username", "CWE-89")
	zap.Description = "SQL Injection"
	zap.RawID = "40018"
	clusters := fx.builder.Build([]finding.Finding{
		zap,
		dastFinding(finding.ZAP, "dvwa", "/about.php", "", "CWE-200"),
		dastFinding(finding.ZAP, "broken-crystals", "/search?q=1", "", "CWE-79"),
		dastFinding(finding.Nuclei, "broken-crystals", "/search?q=2", "", "CWE-79"),
	})
	decisions, diags := NewClassifier(fx.matcher).ClassifyAll(clusters)
	require.Empty(t, diags)
	return NewDocument(decisions), clusters
}

func TestNewRecord(t *testing.T) {
	t.Parallel()
	doc, _ := sampleDocument(t)
	require.Len(t, doc.Confirmed, 2)
	require.Len(t, doc.Pending, 1)
	assert.NotNil(t, doc.Rejected)
	assert.Empty(t, doc.Rejected)

	bc := doc.Confirmed[0]
	assert.Equal(t, "broken-crystals", bc.Target)
	assert.Equal(t, []finding.Tool{finding.Nuclei, finding.ZAP}, bc.Tools)
	assert.Equal(t, 2, bc.ToolCount)
	assert.Len(t, bc.Members, 2)
	assert.Equal(t, ReasonConsensus, bc.Reason)
	assert.True(t, bc.HasTool(finding.ZAP))
	assert.Equal(t, 1, bc.MemberCount(finding.Nuclei))

	gt := doc.Confirmed[1]
	assert.Equal(t, "GT-1", gt.GroundTruthMatch)
	assert.Equal(t, []string{"GT-1"}, gt.GroundTruthEntries)
	assert.Equal(t, "SQL Injection", gt.Description)
	assert.Equal(t, "GET http://localhost/login.php#username", gt.RepresentativeLocation)
	assert.Equal(t, "40018", gt.Members[0].RawID)

	assert.Equal(t, Counts{Confirmed: 2, Pending: 1, GroundTruth: 1}, doc.Counts)
}

func TestPartition_KeepsOrder(t *testing.T) {
	t.Parallel()
	records := []Record{
		{ID: "1", Status: StatusPending},
		{ID: "2", Status: StatusConfirmed},
		{ID: "3", Status: StatusRejected},
		{ID: "4", Status: StatusConfirmed},
	}
	c, p, r := Partition(records)
	assert.Equal(t, []string{"2", "4"}, ids(c))
	assert.Equal(t, []string{"1"}, ids(p))
	assert.Equal(t, []string{"3"}, ids(r))
}

func ids(rs []Record) []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func TestDocument_ApplyReviews(t *testing.T) {
	t.Parallel()
	doc, _ := sampleDocument(t)
	pending := doc.Pending[0]
	gt := doc.Confirmed[1]

	reviews, err := NewReviews(
		ReviewDecision{Fingerprint: pending.Fingerprint, Status: StatusRejected, Note: "informational"},
		ReviewDecision{Fingerprint: gt.Fingerprint, Status: StatusRejected},
	)
	require.NoError(t, err)

	diags := doc.ApplyReviews(reviews)
	require.Len(t, diags, 1)
	assert.Equal(t, finding.DiagReviewConflict, diags[0].Kind)
	assert.Len(t, doc.Diagnostics, 1)

	assert.Len(t, doc.Confirmed, 2)
	assert.Empty(t, doc.Pending)
	require.Len(t, doc.Rejected, 1)
	assert.Equal(t, ReasonReview, doc.Rejected[0].Reason)
	assert.Equal(t, ConfidenceManual, doc.Rejected[0].Confidence)
	assert.Equal(t, Counts{Confirmed: 2, Rejected: 1, GroundTruth: 1}, doc.Counts)

	assert.Nil(t, doc.ApplyReviews(nil))
}

func TestDocument_EncodeDecode(t *testing.T) {
	t.Parallel()
	doc, _ := sampleDocument(t)
	doc.ConsensusThreshold = 2
	doc.LineWindow = 3
	doc.Coverage = []finding.Coverage{{Tool: finding.ZAP, Target: "dvwa"}, {Tool: finding.Trivy, Target: "vulnpy"}}

	var first bytes.Buffer
	require.NoError(t, doc.Encode(&first))

	back, err := DecodeDocument(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	var second bytes.Buffer
	require.NoError(t, back.Encode(&second))
	assert.Equal(t, first.String(), second.String())

	assert.Equal(t, []string{"broken-crystals", "dvwa", "vulnpy"}, back.Targets())
	assert.Len(t, back.Records(), 3)
}
