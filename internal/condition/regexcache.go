package condition

import (
	"regexp"
	"sync"
)

// neverMatch is inserted on compile failure so repeated lookups of a bad
// pattern stay O(1) instead of re-attempting compilation.
var neverMatch = regexp.MustCompile(`$.^`)

// RegexCache is a shared, concurrency-safe cache of compiled regexes keyed
// by pattern source. Policy compilation and condition evaluation share one
// instance so a pattern is compiled at most once.
type RegexCache struct {
	mu    sync.RWMutex
	cache map[string]*regexp.Regexp
}

// NewRegexCache returns an empty cache.
func NewRegexCache() *RegexCache {
	return &RegexCache{cache: make(map[string]*regexp.Regexp)}
}

// Get returns the compiled regex for source, compiling and caching it on
// first use. A pattern that fails to compile is cached as neverMatch so
// later lookups don't retry the failing compilation.
func (c *RegexCache) Get(source string) *regexp.Regexp {
	c.mu.RLock()
	if re, ok := c.cache[source]; ok {
		c.mu.RUnlock()
		return re
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if re, ok := c.cache[source]; ok {
		return re
	}
	re, err := regexp.Compile(source)
	if err != nil {
		re = neverMatch
	}
	c.cache[source] = re
	return re
}

// Reject forces source to resolve to neverMatch without attempting to
// compile it, for patterns rejected on safety grounds before reaching
// regexp.Compile (overlong source, nested quantifiers).
func (c *RegexCache) Reject(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[source] = neverMatch
}

// Len reports the number of distinct patterns cached, for tests and metrics.
func (c *RegexCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
