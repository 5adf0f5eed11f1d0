// Package finding provides the canonical finding model shared by every
// stage of the benchmark pipeline.
//
// Format adapters produce Finding values, the fingerprint engine derives
// copies with the fingerprint fields filled in, and the cluster, triage
// and scoring stages only ever read them. A Finding is a plain value:
// stages that need to add information return a new value instead of
// writing into the one they were given.
//
// Usage:
//
//	f := finding.Finding{
//	    Tool:     finding.Bandit,
//	    Target:   "vulnpy",
//	    Category: finding.Bandit.Category(),
//	    CWE:      finding.NormalizeCWE("89"),
//	    Severity: finding.High,
//	    Location: finding.Location{Kind: finding.KindFile, Path: "app/db.py", StartLine: 12},
//	}
package finding
