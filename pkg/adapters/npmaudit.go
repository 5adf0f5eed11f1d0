package adapters

import (
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

// npm audit v2 package entry.
type npmVulnerability struct {
	Name     string           `json:"name"`
	Severity string           `json:"severity"`
	Range    string           `json:"range"`
	Via      []jsontext.Value `json:"via"`
}

// npm audit v2 advisory, one of the object entries of "via".
type npmAdvisory struct {
	Source   jsonutil.Scalar  `json:"source"`
	Name     string           `json:"name"`
	Title    string           `json:"title"`
	URL      string           `json:"url"`
	Severity string           `json:"severity"`
	CWE      jsonutil.Strings `json:"cwe"`
	Range    string           `json:"range"`
}

// npm audit v1 advisory, keyed by id under "advisories".
type npmLegacyAdvisory struct {
	ID                 jsonutil.Scalar  `json:"id"`
	ModuleName         string           `json:"module_name"`
	Severity           string           `json:"severity"`
	Title              string           `json:"title"`
	CWE                jsonutil.Strings `json:"cwe"`
	VulnerableVersions string           `json:"vulnerable_versions"`
}

// parseNpmAudit reads `npm audit --json` in both the v2 format
// ({"vulnerabilities": {...}}) and the v1 format ({"advisories": {...}}).
//
// In v2 every affected package is listed. Advisory entries of "via"
// produce one finding each, on the package they were published for. A
// package that is only vulnerable through dependencies ("via" holds
// names) produces one finding without a CWE, described as
// "Dependency of: <names>".
func parseNpmAudit(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	if jsonutil.Kind(src.Data) != '{' {
		return nil, errUnexpectedShape
	}
	var report struct {
		Vulnerabilities map[string]jsontext.Value `json:"vulnerabilities"`
		Advisories      map[string]jsontext.Value `json:"advisories"`
	}
	if err := jsonutil.UnmarshalLenient(src.Data, &report); err != nil {
		return nil, err
	}

	var out []finding.Finding
	for _, key := range objectKeys(report.Vulnerabilities) {
		var pkg npmVulnerability
		if err := jsonutil.UnmarshalLenient(report.Vulnerabilities[key], &pkg); err != nil {
			return nil, err
		}
		advisories, raws, err := decodeRecords[npmAdvisory](pkg.Via)
		if err != nil {
			return nil, err
		}
		if len(advisories) == 0 {
			if deps := viaNames(pkg.Via); len(deps) > 0 {
				out = append(out, finding.Finding{
					Severity: sev.Map(pkg.Severity),
					Location: finding.Location{
						Kind:    finding.KindPackage,
						Package: strutil.FirstNonEmpty(pkg.Name, key),
						Version: pkg.Range,
					},
					Description: "Dependency of: " + strings.Join(deps, ", "),
					Raw:         report.Vulnerabilities[key],
				})
			}
			continue
		}
		seen := make(map[string]bool, len(advisories))
		for i, adv := range advisories {
			id := strutil.FirstNonEmpty(adv.URL, adv.Source.String(), adv.Title)
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, finding.Finding{
				CWE:      finding.FirstCWE(adv.CWE...),
				Severity: sev.Map(strutil.FirstNonEmpty(adv.Severity, pkg.Severity)),
				Location: finding.Location{
					Kind:    finding.KindPackage,
					Package: strutil.FirstNonEmpty(adv.Name, pkg.Name, key),
					Version: strutil.FirstNonEmpty(adv.Range, pkg.Range),
				},
				Description: strutil.FirstNonEmpty(adv.Title, adv.URL),
				RawID:       strutil.FirstNonEmpty(adv.URL, adv.Source.String()),
				Raw:         raws[i],
			})
		}
	}

	for _, key := range objectKeys(report.Advisories) {
		raw := report.Advisories[key]
		var adv npmLegacyAdvisory
		if err := jsonutil.UnmarshalLenient(raw, &adv); err != nil {
			return nil, err
		}
		out = append(out, finding.Finding{
			CWE:      finding.FirstCWE(adv.CWE...),
			Severity: sev.Map(adv.Severity),
			Location: finding.Location{
				Kind:    finding.KindPackage,
				Package: adv.ModuleName,
				Version: adv.VulnerableVersions,
			},
			Description: strutil.FirstNonEmpty(adv.Title, adv.ModuleName),
			RawID:       strutil.FirstNonEmpty(adv.ID.String(), key),
			Raw:         raw,
		})
	}
	return out, nil
}

// viaNames returns the string entries of a v2 "via" list in order.
func viaNames(via []jsontext.Value) []string {
	var names []string
	for _, v := range via {
		if v.Kind() != '"' {
			continue
		}
		var name string
		if err := jsonutil.UnmarshalLenient(v, &name); err == nil && name != "" {
			names = append(names, name)
		}
	}
	return names
}
