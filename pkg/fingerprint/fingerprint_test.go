package fingerprint

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
)

func engine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(DefaultConfig())
	require.NoError(t, err)
	return e
}

func sast(tool finding.Tool, path string, line int, cwe string) finding.Finding {
	return finding.Finding{
		Tool:     tool,
		Target:   "juice-shop",
		Category: finding.SAST,
		CWE:      cwe,
		Severity: finding.High,
		Location: finding.Location{Kind: finding.KindFile, Path: path, StartLine: line},
	}
}

func dast(tool finding.Tool, method, rawURL, param, cwe string) finding.Finding {
	return finding.Finding{
		Tool:     tool,
		Target:   "broken-crystals",
		Category: finding.DAST,
		CWE:      cwe,
		Severity: finding.High,
		Location: finding.Location{Kind: finding.KindURL, Method: method, URL: rawURL, Param: param},
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(Config{LineWindow: -1})
	assert.Error(t, err)

	_, err = New(Config{LineWindow: 3, IDPattern: "("})
	assert.Error(t, err)

	assert.Panics(t, func() { MustNew(Config{LineWindow: -1}) })
}

func TestHash_Stable(t *testing.T) {
	a := Hash("juice-shop", "sast", "CWE-89", "file:routes/search.ts#B3")
	b := Hash("juice-shop", "sast", "CWE-89", "file:routes/search.ts#B3")
	assert.Equal(t, a, b)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, Hash("juice-shop", "sast", "CWE-79", "file:routes/search.ts#B3"))
}

func TestCompute_DoesNotMutateInput(t *testing.T) {
	e := engine(t)
	f := sast(finding.Bearer, "/src/routes/search.ts", 23, "")
	f.Description = "SQL injection"
	before := f
	derived := e.Derive(f)

	assert.Equal(t, before, f)
	assert.NotEmpty(t, derived.Fingerprint)
	assert.Equal(t, "CWE-89", derived.NormalizedCWE)
	assert.True(t, derived.CWEInferred)
	assert.Equal(t, "file:routes/search.ts#B3", derived.NormalizedLocation)
}

func TestSAST_LineDriftWithinBand(t *testing.T) {
	e := engine(t)
	// window 3 -> lines 22..28 share bucket 3
	a := e.Fingerprint(sast(finding.Bearer, "routes/search.ts", 23, "CWE-89"))
	b := e.Fingerprint(sast(finding.NodeJsScan, "routes/search.ts", 25, "89"))
	assert.Equal(t, a, b)

	c := e.Fingerprint(sast(finding.NodeJsScan, "routes/search.ts", 30, "CWE-89"))
	assert.NotEqual(t, a, c)
}

func TestSAST_RepoRootPrefixesStripped(t *testing.T) {
	e := engine(t)
	want := e.Fingerprint(sast(finding.Bearer, "routes/search.ts", 23, "CWE-89"))
	for _, p := range []string{
		"/src/routes/search.ts",
		"./routes/search.ts",
		"/github/workspace/routes/search.ts",
		"/home/runner/targets/juice-shop/routes/search.ts",
		`C:\scan\juice-shop\routes\search.ts`,
		"file:///src/routes/search.ts",
	} {
		assert.Equal(t, want, e.Fingerprint(sast(finding.NodeJsScan, p, 23, "CWE-89")), p)
	}
}

func TestSAST_StripsToLastTargetDir(t *testing.T) {
	e := engine(t)
	for _, p := range []string{
		"routes/search.ts",
		"juice-shop/routes/search.ts",
		"src/juice-shop/juice-shop/routes/search.ts",
		"/home/runner/juice-shop/checkout/juice-shop/routes/search.ts",
	} {
		assert.Equal(t, "routes/search.ts", e.NormalizePath("juice-shop", p), p)
	}
	assert.Equal(t, "juice-shop.ts", e.NormalizePath("juice-shop", "src/juice-shop.ts"), "file names are never stripped")
}

func TestSAST_NestedSrcKept(t *testing.T) {
	e := engine(t)
	assert.Equal(t, "frontend/src/app/search.ts", e.NormalizePath("juice-shop", "frontend/src/app/search.ts"))
}

func TestSAST_UnicodeNormalization(t *testing.T) {
	e := engine(t)
	composed := "routes/caf\u00e9.ts"
	decomposed := "routes/cafe\u0301.ts"
	assert.Equal(t,
		e.Fingerprint(sast(finding.Bearer, composed, 5, "CWE-79")),
		e.Fingerprint(sast(finding.NodeJsScan, decomposed, 5, "CWE-79")))
}

func TestDistinctCWEsNeverMerge(t *testing.T) {
	e := engine(t)
	assert.NotEqual(t,
		e.Fingerprint(sast(finding.Bearer, "routes/search.ts", 23, "CWE-89")),
		e.Fingerprint(sast(finding.Bearer, "routes/search.ts", 23, "CWE-79")))
}

func TestDistinctTargetsNeverMerge(t *testing.T) {
	e := engine(t)
	a := sast(finding.Bearer, "app.js", 1, "CWE-89")
	b := a
	b.Target = "broken-crystals"
	assert.NotEqual(t, e.Fingerprint(a), e.Fingerprint(b))
}

func TestDAST_URLNormalization(t *testing.T) {
	e := engine(t)
	base := e.Fingerprint(dast(finding.ZAP, "GET", "http://bc:3000/api/users/42/profile?Search=x", "", "CWE-79"))

	same := []finding.Finding{
		dast(finding.Nuclei, "", "https://localhost/api/users/17/profile?search=y", "", "79"),
		dast(finding.Nuclei, "get", "/api/users/3fa85f64-5717-4562-b3fc-2c963f66afa6/profile/", "SEARCH", "CWE-79"),
		dast(finding.ZAP, "GET", "http://bc/api/users/9/profile#search", "", "CWE-79"),
	}
	for _, f := range same {
		assert.Equal(t, base, e.Fingerprint(f), f.Location.URL)
	}

	assert.NotEqual(t, base, e.Fingerprint(dast(finding.ZAP, "POST", "http://bc/api/users/1/profile?search=x", "", "CWE-79")))
	assert.NotEqual(t, base, e.Fingerprint(dast(finding.ZAP, "GET", "http://bc/api/users/1/profile?q=x", "", "CWE-79")))
}

func TestDAST_UnparsableURLKeysLikeParsed(t *testing.T) {
	e := engine(t)
	base := e.Fingerprint(dast(finding.ZAP, "GET", "http://bc:3000/api/users/42/profile?Search=x", "", "CWE-79"))

	for _, raw := range []string{
		"http://bc:port/api/users/42/profile?search=x",
		"http://bc:port/api/users/42/profile#search",
		"https://bc:badport/api/users/7/profile?zeta=1&search=x",
	} {
		_, err := url.Parse(raw)
		require.Error(t, err, raw)
		assert.Equal(t, base, e.Fingerprint(dast(finding.Nuclei, "", raw, "", "CWE-79")), raw)
	}

	method, templated, param := e.URLParts(finding.Location{Kind: finding.KindURL, URL: "http://bc:port"})
	assert.Equal(t, []string{"GET", "/", ""}, []string{method, templated, param})
}

func TestURLParts(t *testing.T) {
	e := engine(t)
	m, p, q := e.URLParts(finding.Location{Kind: finding.KindURL, URL: "http://dvwa/vulnerabilities/sqli/?Submit=Submit&id=1"})
	assert.Equal(t, "GET", m)
	assert.Equal(t, "/vulnerabilities/sqli", p)
	assert.Equal(t, "submit", q, "first query key in sorted order")

	_, p, _ = e.URLParts(finding.Location{Kind: finding.KindURL, URL: "http://dvwa"})
	assert.Equal(t, "/", p)
}

func TestSCA_VersionIgnored(t *testing.T) {
	e := engine(t)
	mk := func(tool finding.Tool, name, version string) finding.Finding {
		return finding.Finding{Tool: tool, Target: "juice-shop", Category: finding.SCA, CWE: "CWE-1321",
			Location: finding.Location{Kind: finding.KindPackage, Package: name, Version: version}}
	}
	assert.Equal(t, e.Fingerprint(mk(finding.NpmAudit, "lodash", "<4.17.19")), e.Fingerprint(mk(finding.DepCheck, "Lodash", "4.17.15")))
	assert.NotEqual(t, e.Fingerprint(mk(finding.NpmAudit, "lodash", "")), e.Fingerprint(mk(finding.NpmAudit, "underscore", "")))
}

func TestContainer_LayerIgnored(t *testing.T) {
	e := engine(t)
	mk := func(tool finding.Tool, layer string) finding.Finding {
		return finding.Finding{Tool: tool, Target: "dvwa", Category: finding.Container, CWE: "CWE-787",
			Location: finding.Location{Kind: finding.KindImage, Package: "libssl1.1", Version: "1.1.1n", Layer: layer}}
	}
	assert.Equal(t, e.Fingerprint(mk(finding.Trivy, "sha256:a")), e.Fingerprint(mk(finding.Grype, "sha256:b")))
}

func TestIaC_Resource(t *testing.T) {
	e := engine(t)
	loc := e.NormalizeLocation("juice-shop", finding.Location{Kind: finding.KindResource, Path: "/juice-shop/Dockerfile", Resource: "Dockerfile.USER", RuleID: "ckv_docker_3"})
	assert.Equal(t, "res:Dockerfile|Dockerfile.USER|CKV_DOCKER_3", loc)
}

func TestNormalizeCWE_Inference(t *testing.T) {
	e := engine(t)
	f := finding.Finding{Description: "Missing header"}
	cwe, inferred := e.NormalizeCWE(f)
	assert.Equal(t, finding.Unclassified, cwe)
	assert.True(t, inferred)

	f.CWE = "cwe-22"
	cwe, inferred = e.NormalizeCWE(f)
	assert.Equal(t, "CWE-22", cwe)
	assert.False(t, inferred)
}

func TestBucketAndBoundary(t *testing.T) {
	e := engine(t)
	assert.Equal(t, 7, e.BandWidth())
	assert.Equal(t, 0, e.Bucket(1))
	assert.Equal(t, 0, e.Bucket(7))
	assert.Equal(t, 1, e.Bucket(8))
	assert.True(t, e.OnBoundary(1))
	assert.True(t, e.OnBoundary(7))
	assert.True(t, e.OnBoundary(8))
	assert.False(t, e.OnBoundary(4))
	assert.False(t, e.OnBoundary(0))

	exact, err := New(Config{LineWindow: 0})
	require.NoError(t, err)
	assert.False(t, exact.OnBoundary(5))
	assert.Equal(t, 5-1, exact.Bucket(5))
}

func TestApply_PreservesOrder(t *testing.T) {
	e := engine(t)
	in := []finding.Finding{
		sast(finding.Bearer, "a.ts", 1, "CWE-89"),
		sast(finding.Bearer, "b.ts", 1, "CWE-89"),
	}
	out := e.Apply(in)
	require.Len(t, out, 2)
	assert.Equal(t, "file:a.ts#B0", out[0].NormalizedLocation)
	assert.Equal(t, "file:b.ts#B0", out[1].NormalizedLocation)
	assert.Empty(t, in[0].Fingerprint)
}
