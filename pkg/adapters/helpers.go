package adapters

import (
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/go-json-experiment/json/jsontext"

	"github.com/candyshop-benchmark/candyshop/pkg/finding"
	"github.com/candyshop-benchmark/candyshop/pkg/jsonutil"
)

var errUnexpectedShape = errors.New("unexpected document structure")

// decodeRecords decodes each raw record into T, skipping records that are
// not objects. The raw bytes are kept next to the decoded value.
func decodeRecords[T any](values []jsontext.Value) ([]T, []jsontext.Value, error) {
	out := make([]T, 0, len(values))
	raws := make([]jsontext.Value, 0, len(values))
	for _, v := range values {
		if v.Kind() != '{' {
			continue
		}
		var rec T
		if err := jsonutil.UnmarshalLenient(v, &rec); err != nil {
			return nil, nil, err
		}
		out = append(out, rec)
		raws = append(raws, v)
	}
	return out, raws, nil
}

// objectKeys returns the keys of a JSON object in sorted order.
func objectKeys(m map[string]jsontext.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cweFromValues extracts the first CWE from heterogeneous entries such as
// "CWE-79", 79 or {"cweId": "CWE-79"}.
func cweFromValues(values []jsontext.Value) string {
	for _, v := range values {
		switch v.Kind() {
		case '"', '0':
			var s jsonutil.Scalar
			if err := jsonutil.UnmarshalLenient(v, &s); err == nil {
				if c := finding.NormalizeCWE(s.String()); c != "" {
					return c
				}
			}
		case '{':
			var obj struct {
				CWEID jsonutil.Scalar `json:"cweId"`
				CWE   jsonutil.Scalar `json:"cwe"`
				ID    jsonutil.Scalar `json:"id"`
			}
			if err := jsonutil.UnmarshalLenient(v, &obj); err == nil {
				if c := finding.FirstCWE(obj.CWEID.String(), obj.CWE.String(), obj.ID.String()); c != "" {
					return c
				}
			}
		}
	}
	return ""
}

// atoi parses a scalar line number, returning 0 when it is not a number.
func atoi(s jsonutil.Scalar) int {
	n, err := strconv.Atoi(strings.TrimSpace(s.String()))
	if err != nil {
		f, ferr := strconv.ParseFloat(strings.TrimSpace(s.String()), 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return n
}

// lineRange returns the first and last element of a line range list.
func lineRange(r []jsonutil.Scalar) (start, end int) {
	if len(r) == 0 {
		return 0, 0
	}
	start = atoi(r[0])
	end = atoi(r[len(r)-1])
	if end < start {
		end = start
	}
	return start, end
}

// parsePURL splits a package URL ("pkg:npm/%40scope/name@1.2.3") into
// its name and version.
func parsePURL(purl string) (name, version string) {
	s := strings.TrimPrefix(strings.TrimSpace(purl), "pkg:")
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i > 0 && i > strings.LastIndex(s, "/") {
		version = s[i+1:]
		s = s[:i]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if unescaped, err := url.PathUnescape(s); err == nil {
		s = unescaped
	}
	return s, version
}

// requestMethod returns the HTTP method on the first line of a raw request.
func requestMethod(request string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(request), "\n")
	method, _, ok := strings.Cut(line, " ")
	if !ok {
		return ""
	}
	for _, r := range method {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return method
}
