package adapters

import (
	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type bearerFinding struct {
	ID           string           `json:"id"`
	RuleID       string           `json:"rule_id"`
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Severity     string           `json:"severity"`
	CWEIDs       jsonutil.Strings `json:"cwe_ids"`
	Filename     string           `json:"filename"`
	FullFilename string           `json:"full_filename"`
	LineNumber   jsonutil.Scalar  `json:"line_number"`
	Sink         struct {
		Start jsonutil.Scalar `json:"start"`
		End   jsonutil.Scalar `json:"end"`
	} `json:"sink"`
}

// parseBearer reads `bearer scan --format json`. Bearer either emits
// {"findings": [...]} or groups findings by severity
// ({"critical": [...], "high": [...]}), in which case the group name is
// the severity.
func parseBearer(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	type group struct {
		severity string
		items    []jsontext.Value
	}
	var groups []group

	switch jsonutil.Kind(src.Data) {
	case '[':
		var items []jsontext.Value
		if err := jsonutil.UnmarshalLenient(src.Data, &items); err != nil {
			return nil, err
		}
		groups = append(groups, group{items: items})
	case '{':
		var top map[string]jsontext.Value
		if err := jsonutil.UnmarshalLenient(src.Data, &top); err != nil {
			return nil, err
		}
		if list, ok := top["findings"]; ok {
			var items []jsontext.Value
			if list.Kind() == '[' {
				if err := jsonutil.UnmarshalLenient(list, &items); err != nil {
					return nil, err
				}
			}
			groups = append(groups, group{items: items})
			break
		}
		for _, key := range objectKeys(top) {
			if top[key].Kind() != '[' {
				continue
			}
			var items []jsontext.Value
			if err := jsonutil.UnmarshalLenient(top[key], &items); err != nil {
				return nil, err
			}
			groups = append(groups, group{severity: key, items: items})
		}
	default:
		return nil, errUnexpectedShape
	}

	var out []finding.Finding
	for _, g := range groups {
		recs, raws, err := decodeRecords[bearerFinding](g.items)
		if err != nil {
			return nil, err
		}
		for i, r := range recs {
			if r.Filename == "" && r.FullFilename == "" {
				continue
			}
			rule := strutil.FirstNonEmpty(r.ID, r.RuleID)
			cwe := finding.FirstCWE(r.CWEIDs...)
			if cwe == "" {
				cwe = ruleCWE(bearerRuleCWE, rule)
			}
			start := atoi(r.LineNumber)
			if start == 0 {
				start = atoi(r.Sink.Start)
			}
			out = append(out, finding.Finding{
				CWE:      cwe,
				Severity: sev.Map(strutil.FirstNonEmpty(r.Severity, g.severity)),
				Location: finding.Location{
					Kind:      finding.KindFile,
					Path:      strutil.FirstNonEmpty(r.Filename, r.FullFilename),
					StartLine: start,
					EndLine:   atoi(r.Sink.End),
				},
				Description: strutil.FirstNonEmpty(r.Title, r.Description, rule),
				RawID:       rule,
				Raw:         raws[i],
			})
		}
	}
	return out, nil
}
