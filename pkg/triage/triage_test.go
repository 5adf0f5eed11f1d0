package triage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candyshop-benchmark/candyshop/pkg/cluster"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/fingerprint"
	"github.com/candyshop-benchmark/candyshop/pkg/groundtruth"
)

type fixture struct {
	engine  *fingerprint.Engine
	builder *cluster.Builder
	matcher *groundtruth.Matcher
}

func newFixture(t *testing.T, entries ...groundtruth.Entry) fixture {
	t.Helper()
	e, err := fingerprint.New(fingerprint.DefaultConfig())
	require.NoError(t, err)
	m, diags := groundtruth.NewMatcher(e, groundtruth.NewSet(entries))
	require.Empty(t, diags)
	return fixture{engine: e, builder: cluster.NewBuilder(e), matcher: m}
}

func (fx fixture) single(t *testing.T, fs ...finding.Finding) *cluster.Cluster {
	t.Helper()
	cs := fx.builder.Build(fs)
	require.Len(t, cs, 1)
	return cs[0]
}

func dastFinding(tool finding.Tool, target, rawURL, param, cwe string) finding.Finding {
	return finding.Finding{
		ID: string(tool) + "-1", Tool: tool, Target: target, Category: finding.DAST, CWE: cwe,
		Severity: finding.High,
		Location: finding.Location{Kind: finding.KindURL, Method: "GET", URL: rawURL, Param: param},
	}
}

func TestClassify_Monotonicity(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	c := NewClassifier(fx.matcher)

	a := dastFinding(finding.ZAP, "broken-crystals", "http://bc/search?q=1", "", "CWE-79")
	b := dastFinding(finding.Nuclei, "broken-crystals", "http://bc/search?q=2", "", "CWE-79")

	d, diag := c.Classify(fx.single(t, a))
	assert.Nil(t, diag)
	assert.Equal(t, StatusPending, d.Status)
	assert.Equal(t, ReasonSingleTool, d.Reason)
	assert.Equal(t, ConfidenceLow, d.Confidence)

	// A second distinct tool with the same fingerprint confirms it.
	d, _ = c.Classify(fx.single(t, a, b))
	assert.Equal(t, StatusConfirmed, d.Status)
	assert.Equal(t, ReasonConsensus, d.Reason)
	assert.Equal(t, ConfidenceHigh, d.Confidence)
	assert.Nil(t, d.Match)

	// Two findings from the same tool are still one tool.
	a2 := a
	a2.ID = "zap-2"
	d, _ = c.Classify(fx.single(t, a, a2))
	assert.Equal(t, StatusPending, d.Status)
}

func TestClassify_GroundTruthOverride(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, groundtruth.Entry{ID: "DVWA-1", Target: "dvwa", CWE: "CWE-89", LocationPattern: "/login.php#username"})
	c := NewClassifier(fx.matcher)

	d, _ := c.Classify(fx.single(t, dastFinding(finding.ZAP, "dvwa", "http://localhost/login.php", "username", "CWE-89")))
	assert.Equal(t, StatusConfirmed, d.Status)
	assert.Equal(t, ReasonGroundTruth, d.Reason)
	assert.Equal(t, ConfidenceMedium, d.Confidence)
	require.NotNil(t, d.Match)
	assert.Equal(t, "DVWA-1", d.Match.ID)

	d, _ = c.Classify(fx.single(t,
		dastFinding(finding.ZAP, "dvwa", "http://localhost/login.php", "username", "CWE-89"),
		dastFinding(finding.Nuclei, "dvwa", "http://dvwa/login.php?username=x", "", "CWE-89"),
	))
	assert.Equal(t, ReasonGroundTruth, d.Reason)
	assert.Equal(t, ConfidenceHigh, d.Confidence)
}

func TestClassify_Threshold(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	cl := fx.single(t,
		dastFinding(finding.ZAP, "dvwa", "/a?x=1", "", "CWE-79"),
		dastFinding(finding.Nuclei, "dvwa", "/a?x=2", "", "CWE-79"),
	)

	assert.Equal(t, 2, NewClassifier(fx.matcher, WithThreshold(1)).Threshold())
	d, _ := NewClassifier(fx.matcher, WithThreshold(3)).Classify(cl)
	assert.Equal(t, StatusPending, d.Status)
	d, _ = NewClassifier(nil).Classify(cl)
	assert.Equal(t, StatusConfirmed, d.Status)
}

func TestClassify_Reviews(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, groundtruth.Entry{ID: "GT-1", Target: "dvwa", CWE: "CWE-89", LocationPattern: "/login.php#username"})

	gtCluster := fx.single(t, dastFinding(finding.ZAP, "dvwa", "/login.php", "username", "CWE-89"))
	single := fx.single(t, dastFinding(finding.ZAP, "dvwa", "/about.php", "", "CWE-200"))
	consensus := fx.single(t,
		dastFinding(finding.ZAP, "dvwa", "/a?x=1", "", "CWE-79"),
		dastFinding(finding.Nuclei, "dvwa", "/a?x=2", "", "CWE-79"),
	)

	reviews, err := NewReviews(
		ReviewDecision{Fingerprint: gtCluster.Fingerprint, Status: StatusRejected, Reviewer: "jdoe"},
		ReviewDecision{ClusterID: single.ID, Status: StatusConfirmed, Note: "verified manually"},
		ReviewDecision{Fingerprint: consensus.Fingerprint, Status: StatusRejected},
	)
	require.NoError(t, err)
	c := NewClassifier(fx.matcher, WithReviews(reviews))

	decisions, diags := c.ClassifyAll([]*cluster.Cluster{gtCluster, single, consensus})
	require.Len(t, decisions, 3)

	assert.Equal(t, StatusConfirmed, decisions[0].Status, "ground truth wins over a rejecting review")
	assert.Equal(t, ReasonGroundTruth, decisions[0].Reason)
	require.Len(t, diags, 1)
	assert.Equal(t, finding.DiagReviewConflict, diags[0].Kind)
	assert.Contains(t, diags[0].Reason, "GT-1")
	assert.Contains(t, diags[0].Reason, "jdoe")
	assert.True(t, errors.Is(diags[0].Err(), finding.ErrReviewConflict))

	assert.Equal(t, StatusConfirmed, decisions[1].Status)
	assert.Equal(t, ReasonReview, decisions[1].Reason)
	assert.Equal(t, ConfidenceManual, decisions[1].Confidence)
	require.NotNil(t, decisions[1].Review)
	assert.Equal(t, "verified manually", decisions[1].Review.Note)

	assert.Equal(t, StatusRejected, decisions[2].Status)

	counts := Count(decisions)
	assert.Equal(t, Counts{Confirmed: 2, Rejected: 1, GroundTruth: 1}, counts)
}

func TestStatus_IsValid(t *testing.T) {
	t.Parallel()
	assert.True(t, StatusPending.IsValid())
	assert.False(t, Status("maybe").IsValid())
}
