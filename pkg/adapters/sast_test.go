package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
)

func TestBearer_FindingsList(t *testing.T) {
	out := parseWith(t, finding.Bearer, "juice-shop", `{"findings":[
		{"id":"javascript_lang_sql_injection","title":"SQL injection","cwe_ids":["89"],
		 "severity":"critical","filename":"routes/search.ts","line_number":23,"sink":{"start":23,"end":24}},
		{"id":"javascript_express_open_redirect","title":"Open redirect",
		 "filename":"routes/redirect.ts","line_number":19}
	]}`)
	require.Len(t, out, 2)
	assert.Equal(t, "CWE-89", out[0].CWE)
	assert.Equal(t, finding.Critical, out[0].Severity)
	assert.Equal(t, finding.Location{Kind: finding.KindFile, Path: "routes/search.ts", StartLine: 23, EndLine: 24}, out[0].Location)
	assert.Equal(t, "javascript_lang_sql_injection", out[0].RawID)
	assert.Equal(t, "CWE-601", out[1].CWE, "rule table fallback")
	assert.Equal(t, finding.Medium, out[1].Severity)
}

func TestBearer_GroupedBySeverity(t *testing.T) {
	out := parseWith(t, finding.Bearer, "juice-shop", `{
		"high":[{"id":"x","title":"Hardcoded secret","filename":"lib/insecurity.ts","line_number":"56"}],
		"critical":[{"id":"y","cwe_ids":[79],"filename":"frontend/src/app/search.ts","line_number":7}],
		"summary":{"files":3}
	}`)
	require.Len(t, out, 2)
	// groups are read in key order
	assert.Equal(t, finding.Critical, out[0].Severity)
	assert.Equal(t, "CWE-79", out[0].CWE)
	assert.Equal(t, finding.High, out[1].Severity)
	assert.Equal(t, 56, out[1].Location.StartLine)
	assert.Empty(t, out[1].CWE, "CWE inference happens in the fingerprint engine")
}

func TestBearer_SkipsRecordsWithoutFile(t *testing.T) {
	out := parseWith(t, finding.Bearer, "juice-shop", `{"findings":[{"id":"x"},"noise",{"id":"y","filename":"a.ts","line_number":1}]}`)
	require.Len(t, out, 1)
	assert.Equal(t, "a.ts", out[0].Location.Path)
}

func TestNodeJsScan_Legacy(t *testing.T) {
	out := parseWith(t, finding.NodeJsScan, "juice-shop", `{"sec_issues":{
		"Server Side Injection(SSI) - eval()":[
			{"title":"Server Side Injection(SSI) - eval()","filename":"server.ts","path":"/src/routes/userProfile.ts","line":60,
			 "description":"User controlled data in eval()"}
		]}}`)
	require.Len(t, out, 1)
	f := out[0]
	assert.Equal(t, "/src/routes/userProfile.ts", f.Location.Path)
	assert.Equal(t, 60, f.Location.StartLine)
	assert.Equal(t, finding.Medium, f.Severity)
	assert.Contains(t, f.Description, "eval()")
}

func TestNodeJsScan_Njsscan(t *testing.T) {
	out := parseWith(t, finding.NodeJsScan, "juice-shop", `{
		"nodejs":{
			"node_sqli_injection":{
				"files":[
					{"file_path":"routes/search.ts","match_lines":[22,24]},
					{"file_path":"routes/login.ts","match_lines":[34,34]}
				],
				"metadata":{"cwe":"CWE-89: Improper Neutralization of Special Elements used in an SQL Command","severity":"ERROR","description":"SQLi"}
			},
			"node_md5":{"files":[{"file_path":"lib/insecurity.ts","match_lines":[40,40]}],"metadata":{"severity":"WARNING"}}
		},
		"templates":{}
	}`)
	require.Len(t, out, 3)
	assert.Equal(t, "node_md5", out[0].RawID)
	assert.Equal(t, "CWE-327", out[0].CWE)
	assert.Equal(t, finding.Medium, out[0].Severity)
	assert.Equal(t, "CWE-89", out[1].CWE)
	assert.Equal(t, finding.High, out[1].Severity)
	assert.Equal(t, 22, out[1].Location.StartLine)
	assert.Equal(t, 24, out[1].Location.EndLine)
	assert.Equal(t, "routes/login.ts", out[2].Location.Path)
}

func TestBandit(t *testing.T) {
	out := parseWith(t, finding.Bandit, "vulnpy", `{"errors":[],"results":[
		{"filename":"./vulnpy/cmdi.py","line_number":14,"line_range":[14,15],"issue_severity":"HIGH",
		 "issue_text":"subprocess call with shell=True identified","test_id":"B602","issue_cwe":{"id":78,"link":"https://cwe.mitre.org/data/definitions/78.html"}},
		{"filename":"./vulnpy/crypto.py","line_number":"3","issue_severity":"LOW","issue_text":"Use of insecure MD5","test_id":"B303"},
		{"filename":"./vulnpy/x.py","line_range":[8],"issue_severity":"UNDEFINED","issue_text":"?","test_id":"B999"}
	]}`)
	require.Len(t, out, 3)
	assert.Equal(t, "CWE-78", out[0].CWE)
	assert.Equal(t, 15, out[0].Location.EndLine)
	assert.Equal(t, "CWE-327", out[1].CWE)
	assert.Equal(t, 3, out[1].Location.StartLine)
	assert.Equal(t, finding.Low, out[1].Severity)
	assert.Equal(t, 8, out[2].Location.StartLine)
	assert.Equal(t, finding.Info, out[2].Severity)
	assert.Empty(t, out[2].CWE)
}
