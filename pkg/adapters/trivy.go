package adapters

import (
	"sort"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type trivyResult struct {
	Target          string           `json:"Target"`
	Class           string           `json:"Class"`
	Type            string           `json:"Type"`
	Vulnerabilities []jsontext.Value `json:"Vulnerabilities"`
}

type trivyVuln struct {
	VulnerabilityID  string               `json:"VulnerabilityID"`
	PkgName          string               `json:"PkgName"`
	InstalledVersion string               `json:"InstalledVersion"`
	Severity         string               `json:"Severity"`
	Title            string               `json:"Title"`
	Description      string               `json:"Description"`
	CweIDs           jsonutil.Strings     `json:"CweIDs"`
	SeveritySource   string               `json:"SeveritySource"`
	CVSS             map[string]trivyCVSS `json:"CVSS"`
	Layer            struct {
		DiffID string `json:"DiffID"`
		Digest string `json:"Digest"`
	} `json:"Layer"`
}

type trivyCVSS struct {
	V2Score float64 `json:"V2Score"`
	V3Score float64 `json:"V3Score"`
}

// trivyScore returns the preferred CVSS base score: the severity source
// vendor, then nvd, then the remaining vendors by name; v3 before v2.
func trivyScore(v trivyVuln) float64 {
	vendors := make([]string, 0, len(v.CVSS))
	for k := range v.CVSS {
		vendors = append(vendors, k)
	}
	sort.Strings(vendors)
	order := append([]string{v.SeveritySource, "nvd"}, vendors...)
	for _, version := range []func(trivyCVSS) float64{
		func(c trivyCVSS) float64 { return c.V3Score },
		func(c trivyCVSS) float64 { return c.V2Score },
	} {
		for _, vendor := range order {
			if c, ok := v.CVSS[vendor]; ok && version(c) > 0 {
				return version(c)
			}
		}
	}
	return 0
}

// parseTrivy reads `trivy image -f json`. Both the schema v2 object
// ({"Results": [...]}) and the legacy top-level result list are accepted.
func parseTrivy(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	var results []trivyResult
	switch jsonutil.Kind(src.Data) {
	case '{':
		var report struct {
			Results []trivyResult `json:"Results"`
		}
		if err := jsonutil.UnmarshalLenient(src.Data, &report); err != nil {
			return nil, err
		}
		results = report.Results
	case '[':
		if err := jsonutil.UnmarshalLenient(src.Data, &results); err != nil {
			return nil, err
		}
	default:
		return nil, errUnexpectedShape
	}

	var out []finding.Finding
	for _, res := range results {
		vulns, raws, err := decodeRecords[trivyVuln](res.Vulnerabilities)
		if err != nil {
			return nil, err
		}
		for i, v := range vulns {
			severity := sev.Map(v.Severity)
			if score := trivyScore(v); score > 0 {
				severity = finding.FromCVSS(score)
			}
			out = append(out, finding.Finding{
				CWE:      finding.FirstCWE(v.CweIDs...),
				Severity: severity,
				Location: finding.Location{
					Kind:    finding.KindImage,
					Path:    res.Target,
					Package: v.PkgName,
					Version: v.InstalledVersion,
					Layer:   strutil.FirstNonEmpty(v.Layer.DiffID, v.Layer.Digest),
				},
				Description: strutil.FirstNonEmpty(v.Title, v.Description, v.VulnerabilityID),
				RawID:       v.VulnerabilityID,
				Raw:         raws[i],
			})
		}
	}
	return out, nil
}
