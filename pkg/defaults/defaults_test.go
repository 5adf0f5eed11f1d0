package defaults

import (
	"regexp"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineWindowBandWidth(t *testing.T) {
	assert.Equal(t, 3, LineWindow)
	assert.Equal(t, 7, 2*LineWindow+1)
}

func TestIDSegmentPattern(t *testing.T) {
	re := regexp.MustCompile(IDSegmentPattern)
	for _, s := range []string{"42", "0", "3fa85f64-5717-4562-b3fc-2c963f66afa6", "5f1e9a0c2b7d4e8f"} {
		assert.True(t, re.MatchString(s), s)
	}
	for _, s := range []string{"login.php", "api", "users", "v1", "rest"} {
		assert.False(t, re.MatchString(s), s)
	}
}

func TestKnownTargetsSorted(t *testing.T) {
	assert.True(t, sort.StringsAreSorted(KnownTargets))
	assert.Contains(t, KnownTargets, "juice-shop")
	assert.Contains(t, KnownTargets, "dvwa")
}

func TestConcurrency(t *testing.T) {
	n := Concurrency()
	assert.GreaterOrEqual(t, n, 1)
	assert.LessOrEqual(t, n, 16)
}

func TestOWASPForCWE(t *testing.T) {
	c, ok := OWASPForCWE("CWE-89")
	require.True(t, ok)
	assert.Equal(t, "A03:2021 - Injection", c.FullName())

	c, ok = OWASPForCWE("cwe-918")
	require.True(t, ok)
	assert.Equal(t, "Server-Side Request Forgery", c.Name)

	_, ok = OWASPForCWE("CWE-99999")
	assert.False(t, ok)
	assert.Empty(t, OWASPCategory{}.FullName())
}

func TestOWASPTop10Complete(t *testing.T) {
	assert.Len(t, OWASPTop10, 10)
	for _, code := range cweOWASP {
		_, ok := OWASPTop10[code]
		assert.True(t, ok, code)
	}
}
