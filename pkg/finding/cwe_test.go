package finding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCWE(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"79", "CWE-79"},
		{"CWE-79", "CWE-79"},
		{"cwe-079", "CWE-79"},
		{"CWE-89: Improper Neutralization of Special Elements", "CWE-89"},
		{"CWE 22", "CWE-22"},
		{" 1321 ", "CWE-1321"},
		{"NVD-CWE-Other", ""},
		{"NVD-CWE-noinfo", ""},
		{"-1", ""},
		{"0", ""},
		{"", ""},
		{"unknown", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCWE(tt.in), "NormalizeCWE(%q)", tt.in)
	}
}

func TestFirstCWE(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CWE-400", FirstCWE("NVD-CWE-Other", "", "CWE-400", "CWE-20"))
	assert.Empty(t, FirstCWE("NVD-CWE-noinfo"))
	assert.Empty(t, FirstCWE())
}

func TestInferCWE(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"Possible SQL Injection via string concatenation", "CWE-89"},
		{"NoSQL injection in MongoDB query", "CWE-943"},
		{"Reflected Cross-Site Scripting", "CWE-79"},
		{"DOM XSS sink", "CWE-79"},
		{"Path Traversal in file download", "CWE-22"},
		{"OS command injection through exec", "CWE-78"},
		{"Server-Side Request Forgery", "CWE-918"},
		{"XXE in XML parser", "CWE-611"},
		{"Open Redirect", "CWE-601"},
		{"Hardcoded secret in config", "CWE-798"},
		{"Prototype Pollution in lodash", "CWE-1321"},
		{"Insecure deserialization of user input", "CWE-502"},
		{"Missing CSRF token", "CWE-352"},
		{"ReDoS in validator", "CWE-1333"},
		{"Use of weak crypto algorithm", "CWE-327"},
		{"Use of eval with user input", "CWE-95"},
		{"Missing security header", Unclassified},
		{"", Unclassified},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, InferCWE(tt.text), "InferCWE(%q)", tt.text)
	}
}

func TestInferCWE_FirstTextWins(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CWE-22", InferCWE("", "directory traversal", "sql injection"))
}
