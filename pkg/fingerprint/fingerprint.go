// Package fingerprint computes the clustering key of a finding.
//
// The key is built from target, category, normalized CWE and normalized
// location, then hashed with 128-bit murmur3. Location normalization is
// category-aware:
//
//   - file locations (SAST) drop repository-root prefixes and are
//     bucketed into bands of 2*window+1 lines
//   - URL locations (DAST) keep method, templated path and the
//     lower-cased parameter; ID-like path segments become {id}
//   - package locations (SCA) keep only the lower-cased package name
//   - image locations (container) keep package and version, not layer
//   - resource locations (IaC) keep path, resource and rule id
//
// Two findings fall in the same cluster exactly when their fingerprints
// are equal.
package fingerprint

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
	"golang.org/x/text/unicode/norm"

	"github.com/candyshop-benchmark/candyshop/pkg/defaults"
	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/regexcache"
)

// Config controls location normalization.
type Config struct {
	// LineWindow is the ±line tolerance; bands are 2*LineWindow+1 wide.
	LineWindow int
	// RepoRoots are path prefixes removed from file paths.
	RepoRoots []string
	// IDPattern matches URL path segments replaced by IDPlaceholder.
	IDPattern     string
	IDPlaceholder string
	// DefaultMethod is used for URL findings without a method.
	DefaultMethod string
}

// DefaultConfig returns the stock normalization settings.
func DefaultConfig() Config {
	return Config{
		LineWindow:    defaults.LineWindow,
		RepoRoots:     append([]string(nil), defaults.RepoRoots...),
		IDPattern:     defaults.IDSegmentPattern,
		IDPlaceholder: defaults.IDPlaceholder,
		DefaultMethod: defaults.DefaultMethod,
	}
}

// Engine computes fingerprints. It is safe for concurrent use.
type Engine struct {
	cfg   Config
	roots []string
	idRe  *regexp.Regexp
}

// New validates cfg and returns an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.LineWindow < 0 {
		return nil, fmt.Errorf("fingerprint: line window must be >= 0, got %d", cfg.LineWindow)
	}
	if cfg.IDPlaceholder == "" {
		cfg.IDPlaceholder = defaults.IDPlaceholder
	}
	if cfg.DefaultMethod == "" {
		cfg.DefaultMethod = defaults.DefaultMethod
	}
	e := &Engine{cfg: cfg}
	if cfg.IDPattern != "" {
		re, err := regexcache.Get(cfg.IDPattern)
		if err != nil {
			return nil, fmt.Errorf("fingerprint: id pattern: %w", err)
		}
		e.idRe = re
	}
	for _, r := range cfg.RepoRoots {
		r = cleanSlashes(r)
		if r == "" || r == "/" {
			continue
		}
		e.roots = append(e.roots, strings.TrimSuffix(r, "/")+"/")
	}
	// Longest prefix first.
	sort.Slice(e.roots, func(i, j int) bool {
		if len(e.roots[i]) != len(e.roots[j]) {
			return len(e.roots[i]) > len(e.roots[j])
		}
		return e.roots[i] < e.roots[j]
	})
	return e, nil
}

// MustNew is New for configurations known to be valid.
func MustNew(cfg Config) *Engine {
	e, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// BandWidth is the number of lines that share a bucket.
func (e *Engine) BandWidth() int {
	return 2*e.cfg.LineWindow + 1
}

// Key is everything the engine derives for one finding.
type Key struct {
	Fingerprint        string
	NormalizedCWE      string
	CWEInferred        bool
	NormalizedLocation string
}

// Compute derives the fingerprint key of f. It never modifies f.
func (e *Engine) Compute(f finding.Finding) Key {
	cwe, inferred := e.NormalizeCWE(f)
	loc := e.NormalizeLocation(f.Target, f.Location)
	return Key{
		Fingerprint:        Hash(f.Target, string(f.Category), cwe, loc),
		NormalizedCWE:      cwe,
		CWEInferred:        inferred,
		NormalizedLocation: loc,
	}
}

// Fingerprint returns only the fingerprint of f.
func (e *Engine) Fingerprint(f finding.Finding) string {
	return e.Compute(f).Fingerprint
}

// Derive returns a copy of f with the fingerprint fields filled in.
func (e *Engine) Derive(f finding.Finding) finding.Finding {
	k := e.Compute(f)
	f.Fingerprint = k.Fingerprint
	f.NormalizedCWE = k.NormalizedCWE
	f.CWEInferred = k.CWEInferred
	f.NormalizedLocation = k.NormalizedLocation
	return f
}

// Apply returns derived copies of every finding, in input order.
func (e *Engine) Apply(findings []finding.Finding) []finding.Finding {
	out := make([]finding.Finding, len(findings))
	for i, f := range findings {
		out[i] = e.Derive(f)
	}
	return out
}

// Hash joins the key parts with '|' and returns the 128-bit murmur3 hash
// as 32 hex characters.
func Hash(target, category, cwe, location string) string {
	h1, h2 := murmur3.Sum128([]byte(target + "|" + category + "|" + cwe + "|" + location))
	return fmt.Sprintf("%016x%016x", h1, h2)
}

// NormalizeCWE returns the canonical CWE of f. When the tool reported
// none, the CWE is inferred from the description and rule id, and the
// second result is true.
func (e *Engine) NormalizeCWE(f finding.Finding) (string, bool) {
	if c := finding.NormalizeCWE(f.CWE); c != "" {
		return c, false
	}
	return finding.InferCWE(f.Description, f.RawID), true
}

// NormalizeLocation renders loc in the category-aware canonical form
// used in fingerprints.
func (e *Engine) NormalizeLocation(target string, loc finding.Location) string {
	switch loc.Kind {
	case finding.KindFile:
		p := e.NormalizePath(target, loc.Path)
		if loc.StartLine <= 0 {
			return "file:" + p
		}
		return "file:" + p + "#B" + strconv.Itoa(e.Bucket(loc.StartLine))
	case finding.KindURL:
		method, p, param := e.URLParts(loc)
		return "url:" + method + " " + p + "?" + param
	case finding.KindPackage:
		return "pkg:" + strings.ToLower(strings.TrimSpace(nfc(loc.Package)))
	case finding.KindImage:
		return "img:" + strings.ToLower(strings.TrimSpace(nfc(loc.Package))) + "@" + strings.TrimSpace(loc.Version)
	case finding.KindResource:
		return "res:" + e.NormalizePath(target, loc.Path) + "|" + strings.TrimSpace(loc.Resource) + "|" + strings.ToUpper(strings.TrimSpace(loc.RuleID))
	}
	return "raw:" + nfc(loc.String())
}

// Bucket returns the line band of a 1-based line number.
func (e *Engine) Bucket(line int) int {
	if line <= 0 {
		return 0
	}
	return (line - 1) / e.BandWidth()
}

// OnBoundary reports whether line sits on the first or last line of its
// band, where a ±1 drift moves it into the neighbouring band.
func (e *Engine) OnBoundary(line int) bool {
	if line <= 0 || e.BandWidth() == 1 {
		return false
	}
	off := (line - 1) % e.BandWidth()
	return off == 0 || off == e.BandWidth()-1
}

// NormalizePath makes a file path comparable across tools: NFC, forward
// slashes, cleaned, without repository-root prefixes, without everything
// up to the last "<target>/" directory and without a leading slash.
func (e *Engine) NormalizePath(target, p string) string {
	p = cleanSlashes(nfc(strings.TrimSpace(p)))
	p = strings.TrimPrefix(p, "file://")
	if p == "" {
		return ""
	}
	p = path.Clean(p)
	for _, root := range e.roots {
		if strings.HasPrefix(p, root) {
			p = strings.TrimPrefix(p, root)
			break
		}
	}
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimLeft(p, "/")
	if target != "" {
		segs := strings.Split(p, "/")
		for i := len(segs) - 2; i >= 0; i-- {
			if strings.EqualFold(segs[i], target) {
				p = strings.Join(segs[i+1:], "/")
				break
			}
		}
	}
	return p
}

// URLParts returns the method, templated path and parameter of a URL
// location. The parameter is the explicit one if set, else the fragment
// ("/login.php#username"), else the first query key in sorted order.
func (e *Engine) URLParts(loc finding.Location) (method, templated, param string) {
	method = strings.ToUpper(strings.TrimSpace(loc.Method))
	if method == "" {
		method = e.cfg.DefaultMethod
	}
	raw := nfc(strings.TrimSpace(loc.URL))
	param = strings.TrimSpace(loc.Param)

	var rawPath, fragment, rawQuery string
	if u, err := url.Parse(raw); err == nil {
		rawPath, fragment, rawQuery = u.EscapedPath(), u.Fragment, u.RawQuery
		if unescaped, uerr := url.PathUnescape(rawPath); uerr == nil {
			rawPath = unescaped
		}
	} else {
		rawPath, fragment, rawQuery = splitRawURL(raw)
	}
	if param == "" {
		param = fragment
	}
	if param == "" {
		param = firstQueryKey(rawQuery)
	}
	return method, e.TemplatePath(rawPath), strings.ToLower(param)
}

// splitRawURL splits a URL that url.Parse rejects (bad port, bad escape)
// into path, fragment and query, dropping scheme and host so it keys the
// same as its well-formed twin.
func splitRawURL(raw string) (p, fragment, query string) {
	p, fragment, _ = strings.Cut(raw, "#")
	p, query, _ = strings.Cut(p, "?")
	if _, rest, ok := strings.Cut(p, "://"); ok {
		p = "/"
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			p = rest[i:]
		}
	}
	return p, fragment, query
}

// firstQueryKey returns the smallest key of a raw query string. Keys
// that fail to unescape are used as written.
func firstQueryKey(rawQuery string) string {
	var keys []string
	for _, pair := range strings.Split(rawQuery, "&") {
		k, _, _ := strings.Cut(pair, "=")
		if k == "" {
			continue
		}
		if unescaped, err := url.QueryUnescape(k); err == nil {
			k = unescaped
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return keys[0]
}

// TemplatePath replaces ID-like segments with the placeholder and drops
// trailing slashes. The empty path becomes "/".
func (e *Engine) TemplatePath(p string) string {
	segs := strings.Split(p, "/")
	out := segs[:0]
	for _, s := range segs {
		if s == "" {
			continue
		}
		if e.idRe != nil && e.idRe.MatchString(s) {
			s = e.cfg.IDPlaceholder
		}
		out = append(out, s)
	}
	return "/" + strings.Join(out, "/")
}

func nfc(s string) string {
	return norm.NFC.String(s)
}

func cleanSlashes(s string) string {
	return strings.ReplaceAll(s, "\\", "/")
}
