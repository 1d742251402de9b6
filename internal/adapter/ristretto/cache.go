// Package ristretto implements the cache port using dgraph-io/ristretto as an in-process cache.
package ristretto

import (
	"regexp"

	"github.com/dgraph-io/ristretto/v2"
)

// Patterns caches compiled regular expressions. Every entry costs 1, so
// maxEntries bounds the number of distinct patterns held.
type Patterns struct {
	c *ristretto.Cache[string, *regexp.Regexp]
}

// NewPatterns creates a ristretto-backed pattern cache.
func NewPatterns(maxEntries int64) (*Patterns, error) {
	if maxEntries < 1 {
		maxEntries = 1
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *regexp.Regexp]{
		NumCounters: maxEntries * 10, // ~10x expected items
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Patterns{c: c}, nil
}

// Get retrieves a compiled pattern.
func (p *Patterns) Get(pattern string) (*regexp.Regexp, bool) {
	return p.c.Get(pattern)
}

// Set stores a compiled pattern and waits for the write to become visible.
func (p *Patterns) Set(pattern string, re *regexp.Regexp) {
	p.c.Set(pattern, re, 1)
	p.c.Wait()
}

// Close shuts down the cache and releases resources.
func (p *Patterns) Close() {
	p.c.Close()
}
