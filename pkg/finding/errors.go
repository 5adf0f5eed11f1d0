package finding

import "errors"

// Sentinel errors for the failure modes the pipeline reports instead of
// aborting. Callers should use errors.Is() to check for these.
var (
	// ErrAdapterParse indicates a tool output file could not be parsed
	// (malformed, truncated or empty).
	ErrAdapterParse = errors.New("finding: adapter parse error")

	// ErrUnknownToolFormat indicates a results file whose tool has no
	// registered adapter.
	ErrUnknownToolFormat = errors.New("finding: unknown tool format")

	// ErrMissingGroundTruth indicates a scanned target with no
	// ground-truth file.
	ErrMissingGroundTruth = errors.New("finding: missing ground truth")

	// ErrReviewConflict indicates a manual review decision that
	// contradicts a ground-truth match.
	ErrReviewConflict = errors.New("finding: review conflicts with ground truth")
)
