package adapters

import (
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type grypeVuln struct {
	ID          string           `json:"id"`
	DataSource  string           `json:"dataSource"`
	Severity    string           `json:"severity"`
	Description string           `json:"description"`
	CWEs        []jsontext.Value `json:"cwes"`
	CVSS        []struct {
		Source  string `json:"source"`
		Version string `json:"version"`
		Metrics struct {
			BaseScore float64 `json:"baseScore"`
		} `json:"metrics"`
	} `json:"cvss"`
}

type grypeMatch struct {
	Vulnerability          grypeVuln   `json:"vulnerability"`
	RelatedVulnerabilities []grypeVuln `json:"relatedVulnerabilities"`
	Artifact               struct {
		Name      string `json:"name"`
		Version   string `json:"version"`
		Type      string `json:"type"`
		Locations []struct {
			Path    string `json:"path"`
			LayerID string `json:"layerID"`
		} `json:"locations"`
	} `json:"artifact"`
}

// grypeScore prefers an NVD score, then the first non-zero score, looking
// at the primary record before the related ones.
func grypeScore(vulns []grypeVuln) float64 {
	first := 0.0
	for _, v := range vulns {
		for _, c := range v.CVSS {
			if c.Metrics.BaseScore <= 0 {
				continue
			}
			if strings.Contains(strings.ToLower(c.Source), "nvd") {
				return c.Metrics.BaseScore
			}
			if first == 0 {
				first = c.Metrics.BaseScore
			}
		}
	}
	return first
}

// parseGrype reads `grype -o json`.
func parseGrype(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	if jsonutil.Kind(src.Data) != '{' {
		return nil, errUnexpectedShape
	}
	var report struct {
		Matches []jsontext.Value `json:"matches"`
	}
	if err := jsonutil.UnmarshalLenient(src.Data, &report); err != nil {
		return nil, err
	}
	matches, raws, err := decodeRecords[grypeMatch](report.Matches)
	if err != nil {
		return nil, err
	}

	out := make([]finding.Finding, 0, len(matches))
	for i, m := range matches {
		all := append([]grypeVuln{m.Vulnerability}, m.RelatedVulnerabilities...)
		severity := sev.Map(m.Vulnerability.Severity)
		if score := grypeScore(all); score > 0 {
			severity = finding.FromCVSS(score)
		}
		var cwe string
		for _, v := range all {
			if cwe = cweFromValues(v.CWEs); cwe != "" {
				break
			}
		}
		loc := finding.Location{
			Kind:    finding.KindImage,
			Package: m.Artifact.Name,
			Version: m.Artifact.Version,
		}
		if len(m.Artifact.Locations) > 0 {
			loc.Path = m.Artifact.Locations[0].Path
			loc.Layer = m.Artifact.Locations[0].LayerID
		}
		desc := m.Vulnerability.Description
		for _, r := range m.RelatedVulnerabilities {
			desc = strutil.FirstNonEmpty(desc, r.Description)
		}
		out = append(out, finding.Finding{
			CWE:         cwe,
			Severity:    severity,
			Location:    loc,
			Description: strutil.FirstNonEmpty(desc, m.Vulnerability.ID),
			RawID:       m.Vulnerability.ID,
			Raw:         raws[i],
		})
	}
	return out, nil
}
