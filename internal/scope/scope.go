// Package scope filters discovered paths with include/exclude globs.
package scope

import (
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Rules defines path scope. Patterns use doublestar syntax ("/api/**",
// "/v*/users", "**/internal/**").
type Rules struct {
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// IsEmpty reports whether the rules filter nothing.
func (r Rules) IsEmpty() bool {
	return len(r.Include) == 0 && len(r.Exclude) == 0
}

// Checker validates paths against scope rules. A nil Checker allows
// everything.
type Checker struct {
	mu      sync.RWMutex
	include []string
	exclude []string
}

// NewChecker creates a checker, rejecting malformed patterns.
func NewChecker(rules Rules) (*Checker, error) {
	c := &Checker{}
	for _, p := range rules.Include {
		if err := c.AddInclude(p); err != nil {
			return nil, err
		}
	}
	for _, p := range rules.Exclude {
		if err := c.AddExclude(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// AddInclude adds an include pattern.
func (c *Checker) AddInclude(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid include pattern %q", pattern)
	}
	c.mu.Lock()
	c.include = append(c.include, pattern)
	c.mu.Unlock()
	return nil
}

// AddExclude adds an exclude pattern.
func (c *Checker) AddExclude(pattern string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid exclude pattern %q", pattern)
	}
	c.mu.Lock()
	c.exclude = append(c.exclude, pattern)
	c.mu.Unlock()
	return nil
}

// Allows reports whether path is in scope. Excludes always win. Paths the
// caller listed explicitly skip the include check.
func (c *Checker) Allows(path string, explicit bool) bool {
	if c == nil {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if matchAny(c.exclude, path) {
		return false
	}
	if explicit || len(c.include) == 0 {
		return true
	}
	return matchAny(c.include, path)
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, path); ok {
			return true
		}
	}
	return false
}
