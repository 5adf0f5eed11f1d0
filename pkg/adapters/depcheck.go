package adapters

import (
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type depCheckDependency struct {
	FileName string `json:"fileName"`
	FilePath string `json:"filePath"`
	Packages []struct {
		ID string `json:"id"`
	} `json:"packages"`
	Vulnerabilities []jsontext.Value `json:"vulnerabilities"`
}

type depCheckVuln struct {
	Name        string           `json:"name"`
	Source      string           `json:"source"`
	Severity    string           `json:"severity"`
	Description string           `json:"description"`
	CWEs        jsonutil.Strings `json:"cwes"`
	CVSSv3      struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssv3"`
	CVSSv2 struct {
		Score float64 `json:"score"`
	} `json:"cvssv2"`
}

// parseDepCheck reads the OWASP Dependency-Check JSON report.
func parseDepCheck(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	if jsonutil.Kind(src.Data) != '{' {
		return nil, errUnexpectedShape
	}
	var report struct {
		Dependencies []depCheckDependency `json:"dependencies"`
	}
	if err := jsonutil.UnmarshalLenient(src.Data, &report); err != nil {
		return nil, err
	}

	var out []finding.Finding
	for _, dep := range report.Dependencies {
		vulns, raws, err := decodeRecords[depCheckVuln](dep.Vulnerabilities)
		if err != nil {
			return nil, err
		}
		if len(vulns) == 0 {
			continue
		}
		name, version := depCheckPackage(dep)
		for i, v := range vulns {
			severity := sev.Map(v.Severity)
			switch {
			case v.CVSSv3.BaseScore > 0:
				severity = finding.FromCVSS(v.CVSSv3.BaseScore)
			case v.CVSSv2.Score > 0 && v.Severity == "":
				severity = finding.FromCVSS(v.CVSSv2.Score)
			}
			out = append(out, finding.Finding{
				CWE:      finding.FirstCWE(v.CWEs...),
				Severity: severity,
				Location: finding.Location{
					Kind:    finding.KindPackage,
					Path:    dep.FilePath,
					Package: name,
					Version: version,
				},
				Description: strutil.FirstNonEmpty(v.Description, v.Name),
				RawID:       v.Name,
				Raw:         raws[i],
			})
		}
	}
	return out, nil
}

// depCheckPackage prefers the package URL identifier and falls back to
// the scanned file name.
func depCheckPackage(dep depCheckDependency) (name, version string) {
	for _, p := range dep.Packages {
		if strings.HasPrefix(p.ID, "pkg:") {
			return parsePURL(p.ID)
		}
	}
	name = dep.FileName
	if i := strings.Index(name, ":"); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	return name, ""
}
