package adapters

import (
	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
	"github.com/candyshop-benchmark/candyshop/pkg/strutil"
)

// Legacy nodejsscan issue, listed under sec_issues by category.
type nodejsscanIssue struct {
	Title       string          `json:"title"`
	Filename    string          `json:"filename"`
	Path        string          `json:"path"`
	Line        jsonutil.Scalar `json:"line"`
	Description string          `json:"description"`
	Severity    string          `json:"severity"`
	CWE         jsonutil.Scalar `json:"cwe"`
}

// njsscan rule result, keyed by rule id.
type njsscanRule struct {
	Files []struct {
		FilePath   string            `json:"file_path"`
		MatchLines []jsonutil.Scalar `json:"match_lines"`
	} `json:"files"`
	Metadata struct {
		CWE         jsonutil.Scalar `json:"cwe"`
		Description string          `json:"description"`
		Severity    string          `json:"severity"`
	} `json:"metadata"`
}

// parseNodeJsScan reads both the legacy nodejsscan report
// ({"sec_issues": {"<category>": [issue...]}}) and njsscan --json
// ({"nodejs": {"<rule>": {"files": [...], "metadata": {...}}}, "templates": {...}}).
func parseNodeJsScan(src Source, sev *SeverityTable) ([]finding.Finding, error) {
	if jsonutil.Kind(src.Data) != '{' {
		return nil, errUnexpectedShape
	}
	var top map[string]jsontext.Value
	if err := jsonutil.UnmarshalLenient(src.Data, &top); err != nil {
		return nil, err
	}

	var out []finding.Finding
	for _, section := range []string{"sec_issues", "nodejs", "templates"} {
		body, ok := top[section]
		if !ok || body.Kind() != '{' {
			continue
		}
		var entries map[string]jsontext.Value
		if err := jsonutil.UnmarshalLenient(body, &entries); err != nil {
			return nil, err
		}
		for _, key := range objectKeys(entries) {
			var (
				found []finding.Finding
				err   error
			)
			switch entries[key].Kind() {
			case '[':
				found, err = nodejsscanLegacy(key, entries[key], sev)
			case '{':
				found, err = njsscanRuleFindings(key, entries[key], sev)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, found...)
		}
	}
	return out, nil
}

func nodejsscanLegacy(category string, list jsontext.Value, sev *SeverityTable) ([]finding.Finding, error) {
	var items []jsontext.Value
	if err := jsonutil.UnmarshalLenient(list, &items); err != nil {
		return nil, err
	}
	issues, raws, err := decodeRecords[nodejsscanIssue](items)
	if err != nil {
		return nil, err
	}
	out := make([]finding.Finding, 0, len(issues))
	for i, is := range issues {
		desc := strutil.FirstNonEmpty(is.Title, category)
		if is.Description != "" {
			desc += ": " + is.Description
		}
		cwe := finding.NormalizeCWE(is.CWE.String())
		if cwe == "" {
			cwe = ruleCWE(nodejsscanRuleCWE, category)
		}
		out = append(out, finding.Finding{
			CWE:      cwe,
			Severity: sev.Map(is.Severity),
			Location: finding.Location{
				Kind:      finding.KindFile,
				Path:      strutil.FirstNonEmpty(is.Path, is.Filename),
				StartLine: atoi(is.Line),
			},
			Description: desc,
			RawID:       category,
			Raw:         raws[i],
		})
	}
	return out, nil
}

func njsscanRuleFindings(ruleID string, body jsontext.Value, sev *SeverityTable) ([]finding.Finding, error) {
	var rule njsscanRule
	if err := jsonutil.UnmarshalLenient(body, &rule); err != nil {
		return nil, err
	}
	cwe := finding.NormalizeCWE(rule.Metadata.CWE.String())
	if cwe == "" {
		cwe = ruleCWE(nodejsscanRuleCWE, ruleID)
	}
	out := make([]finding.Finding, 0, len(rule.Files))
	for _, f := range rule.Files {
		start, end := lineRange(f.MatchLines)
		out = append(out, finding.Finding{
			CWE:      cwe,
			Severity: sev.Map(rule.Metadata.Severity),
			Location: finding.Location{
				Kind:      finding.KindFile,
				Path:      f.FilePath,
				StartLine: start,
				EndLine:   end,
			},
			Description: strutil.FirstNonEmpty(rule.Metadata.Description, ruleID),
			RawID:       ruleID,
			Raw:         body,
		})
	}
	return out, nil
}
