package adapters

import (
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

type checkovReport struct {
	CheckType string `json:"check_type"`
	Results   struct {
		FailedChecks []jsontext.Value `json:"failed_checks"`
	} `json:"results"`
}

type checkovCheck struct {
	CheckID       string            `json:"check_id"`
	BCCheckID     string            `json:"bc_check_id"`
	CheckName     string            `json:"check_name"`
	FilePath      string            `json:"file_path"`
	RepoFilePath  string            `json:"repo_file_path"`
	FileAbsPath   string            `json:"file_abs_path"`
	FileLineRange []jsonutil.Scalar `json:"file_line_range"`
	Resource      string            `json:"resource"`
	Severity      jsonutil.Scalar   `json:"severity"`
}

// parseCheckov reads `checkov -o json`: one report object, or a list of
// them when several frameworks ran. A single checkov file usually covers
// every target, so each failed check is attributed from its file path
// unless the source already names a target. Checks whose path names no
// known target are returned with an empty Target.
func parseCheckov(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	var reports []checkovReport
	switch jsonutil.Kind(src.Data) {
	case '{':
		var one checkovReport
		if err := jsonutil.UnmarshalLenient(src.Data, &one); err != nil {
			return nil, err
		}
		reports = append(reports, one)
	case '[':
		if err := jsonutil.UnmarshalLenient(src.Data, &reports); err != nil {
			return nil, err
		}
	default:
		return nil, errUnexpectedShape
	}

	var out []finding.Finding
	for _, rep := range reports {
		checks, raws, err := decodeRecords[checkovCheck](rep.Results.FailedChecks)
		if err != nil {
			return nil, err
		}
		for i, c := range checks {
			target := src.Target
			if target == "" {
				target = attributeTarget([]string{c.FileAbsPath, c.RepoFilePath, c.FilePath}, src.Targets)
			}
			start, end := lineRange(c.FileLineRange)
			out = append(out, finding.Finding{
				Target:   target,
				CWE:      checkovCWE(c.CheckID),
				Severity: sev.Map(c.Severity.String()),
				Location: finding.Location{
					Kind:      finding.KindResource,
					Path:      strings.TrimPrefix(strutil.FirstNonEmpty(c.RepoFilePath, c.FilePath), "/"),
					StartLine: start,
					EndLine:   end,
					Resource:  c.Resource,
					RuleID:    c.CheckID,
				},
				Description: strutil.FirstNonEmpty(c.CheckName, c.CheckID),
				RawID:       strutil.FirstNonEmpty(c.CheckID, c.BCCheckID),
				Raw:         raws[i],
			})
		}
	}
	return out, nil
}
