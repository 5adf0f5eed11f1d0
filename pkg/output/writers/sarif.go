package writers

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/triage"
)

// SARIFOptions configures the SARIF export.
type SARIFOptions struct {
	// ToolName is the driver name (default: candyshop).
	ToolName string

	// ToolVersion is the driver version (default: defaults.Version).
	ToolVersion string

	// IncludeRejected adds rejected clusters as suppressed results.
	IncludeRejected bool
}

// SARIF 2.1.0 structures.

type sarifDocument struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool       sarifTool     `json:"tool"`
	Results    []sarifResult `json:"results"`
	ColumnKind string        `json:"columnKind,omitempty"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name            string      `json:"name"`
	Version         string      `json:"version,omitempty"`
	SemanticVersion string      `json:"semanticVersion,omitempty"`
	Rules           []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string         `json:"id"`
	Name             string         `json:"name,omitempty"`
	ShortDescription *sarifMessage  `json:"shortDescription,omitempty"`
	HelpURI          string         `json:"helpUri,omitempty"`
	Properties       map[string]any `json:"properties,omitempty"`
}

type sarifResult struct {
	RuleID       string             `json:"ruleId"`
	Level        string             `json:"level"`
	Message      sarifMessage       `json:"message"`
	Locations    []sarifLocation    `json:"locations,omitempty"`
	Fingerprints map[string]string  `json:"fingerprints,omitempty"`
	Suppressions []sarifSuppression `json:"suppressions,omitempty"`
	Properties   map[string]any     `json:"properties,omitempty"`
}

type sarifSuppression struct {
	Kind          string `json:"kind"`
	Justification string `json:"justification,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation *sarifPhysicalLocation `json:"physicalLocation,omitempty"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine,omitempty"`
	EndLine   int `json:"endLine,omitempty"`
}

// severityToLevel maps a severity to a SARIF level.
func severityToLevel(s finding.Severity) string {
	switch s {
	case finding.Critical, finding.High:
		return "error"
	case finding.Medium:
		return "warning"
	case finding.Low, finding.Info:
		return "note"
	}
	return "none"
}

// severityToScore maps a severity to a GitHub security-severity score.
func severityToScore(s finding.Severity) string {
	switch s {
	case finding.Critical:
		return "9.5"
	case finding.High:
		return "8.0"
	case finding.Medium:
		return "5.5"
	case finding.Low:
		return "3.0"
	}
	return "0.0"
}

// sarifLocationFor turns a representative location back into a physical
// location. File locations ("path:12-14") get a region; endpoint
// locations use the URL as the artifact.
func sarifLocationFor(loc string) []sarifLocation {
	if loc == "" {
		return nil
	}
	if _, rest, ok := strings.Cut(loc, " "); ok && strings.Contains(rest, "://") {
		loc = rest
	}
	if strings.Contains(loc, "://") {
		uri, _, _ := strings.Cut(loc, "#")
		return []sarifLocation{{PhysicalLocation: &sarifPhysicalLocation{ArtifactLocation: sarifArtifactLocation{URI: uri}}}}
	}
	path, region := loc, (*sarifRegion)(nil)
	if i := strings.LastIndexByte(loc, ':'); i > 0 {
		start, end, _ := strings.Cut(loc[i+1:], "-")
		if s, err := strconv.Atoi(start); err == nil && s > 0 {
			path, region = loc[:i], &sarifRegion{StartLine: s}
			if e, err := strconv.Atoi(end); err == nil && e > s {
				region.EndLine = e
			}
		}
	}
	if sp := strings.IndexByte(path, ' '); sp > 0 {
		path = path[:sp]
	}
	return []sarifLocation{{PhysicalLocation: &sarifPhysicalLocation{
		ArtifactLocation: sarifArtifactLocation{URI: path},
		Region:           region,
	}}}
}

// WriteTriageSARIF exports classified clusters as one SARIF 2.1.0 run.
// Each CWE becomes a rule; the consensus fingerprint is the result's
// partial fingerprint, so code-scanning UIs deduplicate across runs.
func WriteTriageSARIF(w io.Writer, doc *triage.Document, opts SARIFOptions) error {
	if opts.ToolName == "" {
		opts.ToolName = defaults.ToolName
	}
	if opts.ToolVersion == "" {
		opts.ToolVersion = defaults.Version
	}

	rules := map[string]sarifRule{}
	results := make([]sarifResult, 0)
	for _, r := range doc.Records() {
		if r.Status == triage.StatusRejected && !opts.IncludeRejected {
			continue
		}
		ruleID := r.CWE
		if ruleID == "" {
			ruleID = finding.Unclassified
		}
		if _, ok := rules[ruleID]; !ok {
			tags := []string{"security", "external/cwe", ruleID}
			if owasp, ok := defaults.OWASPForCWE(ruleID); ok {
				tags = append(tags, owasp.Code)
			}
			rule := sarifRule{
				ID:               ruleID,
				Name:             ruleID,
				ShortDescription: &sarifMessage{Text: ruleID + " reported by the benchmarked scanners"},
				Properties: map[string]any{
					"tags":              tags,
					"security-severity": severityToScore(r.Severity),
				},
			}
			if ruleID != finding.Unclassified {
				rule.HelpURI = tmplCweLink(ruleID)
			}
			rules[ruleID] = rule
		}

		tools := make([]string, len(r.Tools))
		for i, t := range r.Tools {
			tools[i] = string(t)
		}
		text := r.Description
		if text == "" {
			text = ruleID
		}
		res := sarifResult{
			RuleID:       ruleID,
			Level:        severityToLevel(r.Severity),
			Message:      sarifMessage{Text: fmt.Sprintf("%s (%s)", text, strings.Join(tools, ", "))},
			Locations:    sarifLocationFor(r.RepresentativeLocation),
			Fingerprints: map[string]string{"candyshopConsensus/v1": r.Fingerprint},
			Properties: map[string]any{
				"cluster_id": r.ID,
				"target":     r.Target,
				"status":     string(r.Status),
				"reason":     string(r.Reason),
				"confidence": string(r.Confidence),
				"tools":      tools,
			},
		}
		if r.GroundTruthMatch != "" {
			res.Properties["ground_truth_match"] = r.GroundTruthMatch
		}
		if r.Status == triage.StatusRejected {
			res.Suppressions = []sarifSuppression{{Kind: "external", Justification: string(r.Reason)}}
		}
		results = append(results, res)
	}

	ruleList := make([]sarifRule, 0, len(rules))
	for _, rule := range rules {
		ruleList = append(ruleList, rule)
	}
	sort.Slice(ruleList, func(i, j int) bool { return ruleList[i].ID < ruleList[j].ID })

	out := sarifDocument{
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Version: "2.1.0",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:            opts.ToolName,
				Version:         opts.ToolVersion,
				SemanticVersion: opts.ToolVersion,
				Rules:           ruleList,
			}},
			Results:    results,
			ColumnKind: "utf16CodeUnits",
		}},
	}
	if err := WriteJSON(w, out); err != nil {
		return fmt.Errorf("sarif: %w", err)
	}
	return nil
}
