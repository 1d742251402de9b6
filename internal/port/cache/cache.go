// Package cache defines the port interface for caching.
package cache

import "regexp"

// Patterns memoizes compiled subject-ignore patterns keyed by their source.
type Patterns interface {
	Get(pattern string) (*regexp.Regexp, bool)
	Set(pattern string, re *regexp.Regexp)
}
