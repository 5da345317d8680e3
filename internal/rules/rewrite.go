package rules

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

// RewriteRules maps regular expressions to replacement URLs in order.
// Replacements use regexp expansion syntax ($1, ${name}).
type RewriteRules struct {
	rules    Ordered[string]
	compiled []rewriteRule
}

type rewriteRule struct {
	pattern     string
	re          *regexp.Regexp
	replacement string
}

// Add compiles pattern and appends, or replaces, its rule.
func (r *RewriteRules) Add(pattern, replacement string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	r.rules.Set(pattern, replacement)
	for i := range r.compiled {
		if r.compiled[i].pattern == pattern {
			r.compiled[i].replacement = replacement
			return nil
		}
	}
	r.compiled = append(r.compiled, rewriteRule{pattern: pattern, re: re, replacement: replacement})
	return nil
}

// Len returns the number of rules.
func (r *RewriteRules) Len() int {
	return len(r.compiled)
}

// Rewrite applies the first rule whose pattern matches rawURL. It reports
// false when no rule matches.
func (r *RewriteRules) Rewrite(rawURL string) (string, bool) {
	for _, rule := range r.compiled {
		if rule.re.MatchString(rawURL) {
			return rule.re.ReplaceAllString(rawURL, rule.replacement), true
		}
	}
	return rawURL, false
}

func (r *RewriteRules) compile() error {
	r.compiled = r.compiled[:0]
	for pattern, replacement := range r.rules.All() {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
		}
		r.compiled = append(r.compiled, rewriteRule{pattern: pattern, re: re, replacement: replacement})
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (r RewriteRules) MarshalJSON() ([]byte, error) {
	return r.rules.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler. Every pattern must compile.
func (r *RewriteRules) UnmarshalJSON(data []byte) error {
	if err := r.rules.UnmarshalJSON(data); err != nil {
		return err
	}
	return r.compile()
}

// UnmarshalYAML implements yaml.Unmarshaler. Every pattern must compile.
func (r *RewriteRules) UnmarshalYAML(value *yaml.Node) error {
	if err := r.rules.UnmarshalYAML(value); err != nil {
		return err
	}
	return r.compile()
}
