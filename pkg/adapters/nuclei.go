package adapters

import (
	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type nucleiResult struct {
	TemplateID  string `json:"template-id"`
	TemplateAlt string `json:"templateID"`
	Info        struct {
		Name           string `json:"name"`
		Severity       string `json:"severity"`
		Description    string `json:"description"`
		Classification struct {
			CWEID jsonutil.Strings `json:"cwe-id"`
		} `json:"classification"`
	} `json:"info"`
	Type      string `json:"type"`
	Host      string `json:"host"`
	MatchedAt string `json:"matched-at"`
	Matched   string `json:"matched"`
	URL       string `json:"url"`
	Request   string `json:"request"`
}

// parseNuclei reads nuclei results written with -json-export (one JSON
// array), -jsonl (one object per line) or a single object.
func parseNuclei(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	var records []jsontext.Value
	switch jsonutil.Kind(src.Data) {
	case '[':
		if err := jsonutil.UnmarshalLenient(src.Data, &records); err != nil {
			return nil, err
		}
	case '{':
		var err error
		if records, err = jsonutil.SplitLines(src.Data); err != nil {
			return nil, err
		}
	default:
		return nil, errUnexpectedShape
	}

	results, raws, err := decodeRecords[nucleiResult](records)
	if err != nil {
		return nil, err
	}
	out := make([]finding.Finding, 0, len(results))
	for i, r := range results {
		template := strutil.FirstNonEmpty(r.TemplateID, r.TemplateAlt)
		cwe := finding.FirstCWE(r.Info.Classification.CWEID...)
		if cwe == "" {
			cwe = ruleCWE(nucleiTemplateCWE, template)
		}
		out = append(out, finding.Finding{
			CWE:      cwe,
			Severity: sev.Map(r.Info.Severity),
			Location: finding.Location{
				Kind:   finding.KindURL,
				Method: requestMethod(r.Request),
				URL:    strutil.FirstNonEmpty(r.MatchedAt, r.Matched, r.URL, r.Host),
			},
			Description: strutil.FirstNonEmpty(r.Info.Name, r.Info.Description, template),
			RawID:       template,
			Raw:         raws[i],
		})
	}
	return out, nil
}
