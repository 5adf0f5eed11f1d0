// Package regexcache caches compiled regular expressions. Ground-truth
// location patterns are matched against every candidate cluster of a
// target, so each pattern is compiled once per process.
//
// Usage:
//
//	ok, err := regexcache.MatchString(`^routes/.*\.ts$`, path)
package regexcache

import (
	"regexp"
	"sync"
)

var cache sync.Map

// Get returns a compiled regexp for the given pattern, compiling and
// caching it on first use.
func Get(pattern string) (*regexp.Regexp, error) {
	if cached, ok := cache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// MustGet is Get for patterns known at compile time. It panics on an
// invalid pattern.
func MustGet(pattern string) *regexp.Regexp {
	re, err := Get(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// MatchString reports whether s contains any match of pattern.
func MatchString(pattern, s string) (bool, error) {
	re, err := Get(pattern)
	if err != nil {
		return false, err
	}
	return re.MatchString(s), nil
}

// Clear removes all cached regular expressions.
func Clear() {
	cache.Range(func(key, _ any) bool {
		cache.Delete(key)
		return true
	})
}

// Size returns the number of cached regular expressions.
func Size() int {
	n := 0
	cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
