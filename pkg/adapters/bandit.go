package adapters

import (
	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type banditResult struct {
	Filename        string            `json:"filename"`
	LineNumber      jsonutil.Scalar   `json:"line_number"`
	LineRange       []jsonutil.Scalar `json:"line_range"`
	IssueSeverity   string            `json:"issue_severity"`
	Severity        string            `json:"severity"`
	IssueConfidence string            `json:"issue_confidence"`
	IssueText       string            `json:"issue_text"`
	TestID          string            `json:"test_id"`
	TestName        string            `json:"test_name"`
	IssueCWE        struct {
		ID jsonutil.Scalar `json:"id"`
	} `json:"issue_cwe"`
}

// parseBandit reads `bandit -f json`.
func parseBandit(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	if jsonutil.Kind(src.Data) != '{' {
		return nil, errUnexpectedShape
	}
	var report struct {
		Results []jsontext.Value `json:"results"`
	}
	if err := jsonutil.UnmarshalLenient(src.Data, &report); err != nil {
		return nil, err
	}
	results, raws, err := decodeRecords[banditResult](report.Results)
	if err != nil {
		return nil, err
	}

	out := make([]finding.Finding, 0, len(results))
	for i, r := range results {
		cwe := finding.NormalizeCWE(r.IssueCWE.ID.String())
		if cwe == "" {
			cwe = ruleCWE(banditTestCWE, r.TestID)
		}
		start := atoi(r.LineNumber)
		_, end := lineRange(r.LineRange)
		if start == 0 {
			start, end = lineRange(r.LineRange)
		}
		out = append(out, finding.Finding{
			CWE:      cwe,
			Severity: sev.Map(strutil.FirstNonEmpty(r.IssueSeverity, r.Severity)),
			Location: finding.Location{
				Kind:      finding.KindFile,
				Path:      r.Filename,
				StartLine: start,
				EndLine:   end,
			},
			Description: strutil.FirstNonEmpty(r.IssueText, r.TestName, r.TestID),
			RawID:       r.TestID,
			Raw:         raws[i],
		})
	}
	return out, nil
}
