package defaults

import "strings"

// OWASPCategory is an OWASP Top 10 2021 category.
type OWASPCategory struct {
	Code string // e.g., "A03:2021"
	Name string // e.g., "Injection"
	URL  string
}

// FullName returns "A03:2021 - Injection".
func (c OWASPCategory) FullName() string {
	if c.Code == "" {
		return ""
	}
	return c.Code + " - " + c.Name
}

// OWASPTop10 contains the OWASP Top 10 2021 categories indexed by code.
var OWASPTop10 = map[string]OWASPCategory{
	"A01:2021": {"A01:2021", "Broken Access Control", "https://owasp.org/Top10/A01_2021-Broken_Access_Control/"},
	"A02:2021": {"A02:2021", "Cryptographic Failures", "https://owasp.org/Top10/A02_2021-Cryptographic_Failures/"},
	"A03:2021": {"A03:2021", "Injection", "https://owasp.org/Top10/A03_2021-Injection/"},
	"A04:2021": {"A04:2021", "Insecure Design", "https://owasp.org/Top10/A04_2021-Insecure_Design/"},
	"A05:2021": {"A05:2021", "Security Misconfiguration", "https://owasp.org/Top10/A05_2021-Security_Misconfiguration/"},
	"A06:2021": {"A06:2021", "Vulnerable and Outdated Components", "https://owasp.org/Top10/A06_2021-Vulnerable_and_Outdated_Components/"},
	"A07:2021": {"A07:2021", "Identification and Authentication Failures", "https://owasp.org/Top10/A07_2021-Identification_and_Authentication_Failures/"},
	"A08:2021": {"A08:2021", "Software and Data Integrity Failures", "https://owasp.org/Top10/A08_2021-Software_and_Data_Integrity_Failures/"},
	"A09:2021": {"A09:2021", "Security Logging and Monitoring Failures", "https://owasp.org/Top10/A09_2021-Security_Logging_and_Monitoring_Failures/"},
	"A10:2021": {"A10:2021", "Server-Side Request Forgery", "https://owasp.org/Top10/A10_2021-Server-Side_Request_Forgery_%28SSRF%29/"},
}

// cweOWASP maps the CWEs seen in the benchmark targets to their OWASP
// Top 10 2021 category, following the OWASP published CWE lists.
var cweOWASP = map[string]string{
	"CWE-22":   "A01:2021",
	"CWE-200":  "A01:2021",
	"CWE-284":  "A01:2021",
	"CWE-352":  "A01:2021",
	"CWE-601":  "A01:2021",
	"CWE-639":  "A01:2021",
	"CWE-862":  "A01:2021",
	"CWE-259":  "A07:2021",
	"CWE-295":  "A07:2021",
	"CWE-327":  "A02:2021",
	"CWE-328":  "A02:2021",
	"CWE-330":  "A02:2021",
	"CWE-338":  "A02:2021",
	"CWE-319":  "A02:2021",
	"CWE-20":   "A03:2021",
	"CWE-78":   "A03:2021",
	"CWE-79":   "A03:2021",
	"CWE-89":   "A03:2021",
	"CWE-94":   "A03:2021",
	"CWE-95":   "A03:2021",
	"CWE-943":  "A03:2021",
	"CWE-1321": "A03:2021",
	"CWE-209":  "A04:2021",
	"CWE-434":  "A04:2021",
	"CWE-16":   "A05:2021",
	"CWE-611":  "A05:2021",
	"CWE-693":  "A05:2021",
	"CWE-1004": "A05:2021",
	"CWE-1021": "A05:2021",
	"CWE-1104": "A06:2021",
	"CWE-287":  "A07:2021",
	"CWE-384":  "A07:2021",
	"CWE-798":  "A07:2021",
	"CWE-502":  "A08:2021",
	"CWE-829":  "A08:2021",
	"CWE-778":  "A09:2021",
	"CWE-117":  "A09:2021",
	"CWE-918":  "A10:2021",
}

// OWASPForCWE returns the OWASP Top 10 category for a normalized CWE.
func OWASPForCWE(cwe string) (OWASPCategory, bool) {
	code, ok := cweOWASP[strings.ToUpper(strings.TrimSpace(cwe))]
	if !ok {
		return OWASPCategory{}, false
	}
	c, ok := OWASPTop10[code]
	return c, ok
}
