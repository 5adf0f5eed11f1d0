package adapters

import (
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type pipDependency struct {
	Name    string           `json:"name"`
	Version string           `json:"version"`
	Vulns   []jsontext.Value `json:"vulns"`
}

type pipVuln struct {
	ID          string           `json:"id"`
	Description string           `json:"description"`
	Aliases     jsonutil.Strings `json:"aliases"`
	FixVersions jsonutil.Strings `json:"fix_versions"`
}

// parsePipAudit reads `pip-audit -f json`: either {"dependencies": [...]}
// or, from older releases, the bare dependency list. pip-audit carries no
// severity or CWE, so every finding gets the table default and CWE
// inference runs on the description.
func parsePipAudit(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	var deps []pipDependency
	switch jsonutil.Kind(src.Data) {
	case '{':
		var report struct {
			Dependencies []pipDependency `json:"dependencies"`
		}
		if err := jsonutil.UnmarshalLenient(src.Data, &report); err != nil {
			return nil, err
		}
		deps = report.Dependencies
	case '[':
		if err := jsonutil.UnmarshalLenient(src.Data, &deps); err != nil {
			return nil, err
		}
	default:
		return nil, errUnexpectedShape
	}

	var out []finding.Finding
	for _, d := range deps {
		vulns, raws, err := decodeRecords[pipVuln](d.Vulns)
		if err != nil {
			return nil, err
		}
		for i, v := range vulns {
			id := v.ID
			if len(v.Aliases) > 0 {
				id += " (" + strings.Join(v.Aliases, ", ") + ")"
			}
			out = append(out, finding.Finding{
				Severity: sev.Default,
				Location: finding.Location{
					Kind:    finding.KindPackage,
					Package: d.Name,
					Version: d.Version,
				},
				Description: strutil.FirstNonEmpty(v.Description, id),
				RawID:       v.ID,
				Raw:         raws[i],
			})
		}
	}
	return out, nil
}
