// Package triage labels finding clusters confirmed, pending or rejected.
//
// Rules are applied in order, first match wins:
//
//  1. the cluster matches a ground-truth entry of its target: confirmed
//  2. at least threshold distinct tools reported it: confirmed
//  3. otherwise: pending
//
// Rejected is only ever set by a manual review decision. A review can
// also confirm a pending cluster, but it cannot reject a cluster that
// matches ground truth.
package triage

import (
	"fmt"

	"github.com/candyshop-benchmark/candyshop/pkg/cluster"
	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/groundtruth"
)

// Status is the triage label of a cluster.
type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusPending   Status = "pending"
	StatusRejected  Status = "rejected"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusConfirmed, StatusPending, StatusRejected:
		return true
	}
	return false
}

// Reason records which rule produced the status.
type Reason string

const (
	ReasonGroundTruth Reason = "ground_truth"
	ReasonConsensus   Reason = "consensus"
	ReasonSingleTool  Reason = "single_tool"
	ReasonReview      Reason = "review"
)

// Confidence grades the evidence behind a status.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"   // threshold or more tools agree
	ConfidenceMedium Confidence = "medium" // ground truth only
	ConfidenceLow    Confidence = "low"    // pending
	ConfidenceManual Confidence = "manual" // set by a reviewer
)

// Decision is the classification of one cluster.
type Decision struct {
	Cluster    *cluster.Cluster
	Status     Status
	Reason     Reason
	Confidence Confidence
	// Match is the first ground-truth entry the cluster matches;
	// Matches holds all of them.
	Match   *groundtruth.Entry
	Matches []groundtruth.Entry
	Review  *ReviewDecision
}

// Classifier applies the consensus rules. It holds no mutable state and
// is safe for concurrent use.
type Classifier struct {
	threshold int
	matcher   *groundtruth.Matcher
	reviews   *Reviews
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithThreshold sets the number of distinct tools needed for consensus.
// Values below 2 are ignored: one tool never confirms itself.
func WithThreshold(n int) Option {
	return func(c *Classifier) {
		if n >= 2 {
			c.threshold = n
		}
	}
}

// WithReviews applies manual review decisions after the computed rules.
func WithReviews(r *Reviews) Option {
	return func(c *Classifier) {
		c.reviews = r
	}
}

// NewClassifier returns a classifier matching clusters against the
// ground truth held by matcher. A nil matcher means no ground truth.
func NewClassifier(matcher *groundtruth.Matcher, opts ...Option) *Classifier {
	c := &Classifier{threshold: defaults.ConsensusThreshold, matcher: matcher}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Threshold returns the consensus threshold in effect.
func (c *Classifier) Threshold() int {
	return c.threshold
}

// Classify computes the status of one cluster. The returned diagnostic
// is non-nil when a review decision was ignored.
func (c *Classifier) Classify(cl *cluster.Cluster) (Decision, *finding.Diagnostic) {
	d := Decision{Cluster: cl}
	if c.matcher != nil {
		d.Matches = c.matcher.MatchAll(cl)
	}
	tools := cl.ToolCount()

	switch {
	case len(d.Matches) > 0:
		d.Match = &d.Matches[0]
		d.Status, d.Reason, d.Confidence = StatusConfirmed, ReasonGroundTruth, ConfidenceMedium
		if tools >= c.threshold {
			d.Confidence = ConfidenceHigh
		}
	case tools >= c.threshold:
		d.Status, d.Reason, d.Confidence = StatusConfirmed, ReasonConsensus, ConfidenceHigh
	default:
		d.Status, d.Reason, d.Confidence = StatusPending, ReasonSingleTool, ConfidenceLow
	}

	rev, ok := c.reviews.Lookup(cl.ID, cl.Fingerprint)
	if !ok {
		return d, nil
	}
	outcome := applyReview(d.Status, d.Reason, d.Match != nil, rev)
	if outcome.conflict {
		return d, &finding.Diagnostic{
			Target: cl.Target,
			Kind:   finding.DiagReviewConflict,
			Reason: conflictReason(cl.Fingerprint, rev, d.Match.ID),
		}
	}
	r := rev
	d.Review = &r
	if outcome.changed {
		d.Status, d.Reason, d.Confidence = outcome.status, ReasonReview, ConfidenceManual
	}
	return d, nil
}

// ClassifyAll classifies clusters in order.
func (c *Classifier) ClassifyAll(clusters []*cluster.Cluster) ([]Decision, []finding.Diagnostic) {
	decisions := make([]Decision, 0, len(clusters))
	var diags []finding.Diagnostic
	for _, cl := range clusters {
		d, diag := c.Classify(cl)
		decisions = append(decisions, d)
		if diag != nil {
			diags = append(diags, *diag)
		}
	}
	return decisions, diags
}

type reviewOutcome struct {
	status   Status
	changed  bool
	conflict bool
}

// applyReview decides what a review does to a computed status. A review
// matching the current status changes nothing.
func applyReview(status Status, reason Reason, groundTruth bool, rev ReviewDecision) reviewOutcome {
	if rev.Status == status {
		return reviewOutcome{status: status}
	}
	if groundTruth && reason == ReasonGroundTruth {
		return reviewOutcome{status: status, conflict: true}
	}
	return reviewOutcome{status: rev.Status, changed: true}
}

func conflictReason(fp string, rev ReviewDecision, entryID string) string {
	who := ""
	if rev.Reviewer != "" {
		who = " by " + rev.Reviewer
	}
	return fmt.Sprintf("review%s marks cluster %s %s but it matches ground-truth entry %s; review ignored",
		who, fp, rev.Status, entryID)
}

// Counts tallies decisions by status.
type Counts struct {
	Confirmed int `json:"confirmed"`
	Pending   int `json:"pending"`
	Rejected  int `json:"rejected"`
	// GroundTruth counts confirmed clusters that matched ground truth.
	GroundTruth int `json:"ground_truth"`
}

// Count tallies decisions.
func Count(decisions []Decision) Counts {
	var c Counts
	for _, d := range decisions {
		switch d.Status {
		case StatusConfirmed:
			c.Confirmed++
			if d.Reason == ReasonGroundTruth {
				c.GroundTruth++
			}
		case StatusPending:
			c.Pending++
		case StatusRejected:
			c.Rejected++
		}
	}
	return c
}
