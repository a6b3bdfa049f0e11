package static

import (
	"fmt"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultMaxAge is the max-age of the catch-all rule used when no cache
// rules are configured.
const DefaultMaxAge = 3600

// CacheRule maps request paths matching Pattern to a Cache-Control max-age.
type CacheRule struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	MaxAge  int    `json:"max_age" yaml:"max_age"`
}

// CacheRules is an ordered list of cache rules. The first rule whose pattern
// matches wins, so a catch-all placed first shadows everything after it.
type CacheRules []CacheRule

// DefaultCacheRules returns the single rule "**" -> DefaultMaxAge.
func DefaultCacheRules() CacheRules {
	return CacheRules{{Pattern: "**", MaxAge: DefaultMaxAge}}
}

// CacheFor returns a single catch-all rule with the given max-age.
func CacheFor(maxAge int) CacheRules {
	return CacheRules{{Pattern: "**", MaxAge: maxAge}}
}

// Validate checks every pattern and max-age.
func (c CacheRules) Validate() error {
	for _, rule := range c {
		if !doublestar.ValidatePattern(rule.Pattern) {
			return fmt.Errorf("validate cache rules: invalid pattern %q", rule.Pattern)
		}
		if rule.MaxAge < 0 {
			return fmt.Errorf("validate cache rules: negative max-age %d for %q", rule.MaxAge, rule.Pattern)
		}
	}
	return nil
}

// MaxAge returns the max-age of the first rule matching the full request
// path. ok is false when no rule matches.
func (c CacheRules) MaxAge(requestPath string) (maxAge int, ok bool) {
	for _, rule := range c {
		matched, err := doublestar.Match(rule.Pattern, requestPath)
		if err != nil {
			continue
		}
		if matched {
			return rule.MaxAge, true
		}
	}
	return 0, false
}

// CacheControl returns the Cache-Control value for requestPath, or "" when
// no rule matches.
func (c CacheRules) CacheControl(requestPath string) string {
	maxAge, ok := c.MaxAge(requestPath)
	if !ok {
		return ""
	}
	return "max-age=" + strconv.Itoa(maxAge)
}
