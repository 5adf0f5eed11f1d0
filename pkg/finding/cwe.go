package finding

import (
	"strconv"
	"strings"
)

// Unclassified is the coarse CWE used when a finding carries no CWE and
// no keyword in its description maps to one.
const Unclassified = "unclassified"

// NormalizeCWE canonicalizes the many ways tools spell a CWE reference
// ("79", "CWE-79", "cwe-079", "CWE-79: Improper Neutralization...") into
// "CWE-79". Placeholders such as "NVD-CWE-Other", "-1" and "0" yield "".
func NormalizeCWE(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "NVD-CWE") || strings.HasPrefix(upper, "-") {
		return ""
	}
	upper = strings.TrimPrefix(upper, "CWE")
	upper = strings.TrimLeft(upper, "-_: ")

	end := 0
	for end < len(upper) && upper[end] >= '0' && upper[end] <= '9' {
		end++
	}
	if end == 0 {
		return ""
	}
	n, err := strconv.Atoi(upper[:end])
	if err != nil || n <= 0 {
		return ""
	}
	return "CWE-" + strconv.Itoa(n)
}

// FirstCWE returns the first entry of raw that normalizes to a CWE.
func FirstCWE(raw ...string) string {
	for _, r := range raw {
		if c := NormalizeCWE(r); c != "" {
			return c
		}
	}
	return ""
}

type cweKeyword struct {
	keyword string
	cwe     string
}

// Checked in order; the first keyword contained in the text wins.
var cweKeywords = []cweKeyword{
	{"nosql injection", "CWE-943"},
	{"sql injection", "CWE-89"},
	{"cross-site scripting", "CWE-79"},
	{"cross site scripting", "CWE-79"},
	{"xss", "CWE-79"},
	{"path traversal", "CWE-22"},
	{"directory traversal", "CWE-22"},
	{"command injection", "CWE-78"},
	{"os command", "CWE-78"},
	{"server-side request forgery", "CWE-918"},
	{"server side request forgery", "CWE-918"},
	{"ssrf", "CWE-918"},
	{"xml external entit", "CWE-611"},
	{"xxe", "CWE-611"},
	{"open redirect", "CWE-601"},
	{"hardcoded secret", "CWE-798"},
	{"hard-coded secret", "CWE-798"},
	{"hardcoded password", "CWE-798"},
	{"hard-coded credential", "CWE-798"},
	{"prototype pollution", "CWE-1321"},
	{"deserializ", "CWE-502"},
	{"cross-site request forgery", "CWE-352"},
	{"csrf", "CWE-352"},
	{"redos", "CWE-1333"},
	{"regular expression denial", "CWE-1333"},
	{"weak crypto", "CWE-327"},
	{"weak hash", "CWE-327"},
	{"eval", "CWE-95"},
}

// InferCWE looks for well-known vulnerability phrases in the given texts.
// It returns Unclassified when nothing matches.
func InferCWE(texts ...string) string {
	for _, t := range texts {
		lower := strings.ToLower(t)
		if lower == "" {
			continue
		}
		for _, kw := range cweKeywords {
			if strings.Contains(lower, kw.keyword) {
				return kw.cwe
			}
		}
	}
	return Unclassified
}
