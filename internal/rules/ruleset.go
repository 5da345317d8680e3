package rules

import (
	"iter"

	"gopkg.in/yaml.v3"
)

// RuleSet maps hostnames to cleaning rules in insertion order. Hostnames are
// case-sensitive and compared exactly as stored.
type RuleSet struct {
	rules Ordered[CleaningRuleProperties]
}

// NewRuleSet creates an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{}
}

// Set adds or replaces the rule for hostname.
func (rs *RuleSet) Set(hostname string, props CleaningRuleProperties) {
	rs.rules.Set(hostname, props)
}

// Get returns the rule for hostname.
func (rs *RuleSet) Get(hostname string) (CleaningRuleProperties, bool) {
	return rs.rules.Get(hostname)
}

// Delete removes the rule for hostname.
func (rs *RuleSet) Delete(hostname string) {
	rs.rules.Delete(hostname)
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	return rs.rules.Len()
}

// Hostnames returns the rule hostnames in order.
func (rs *RuleSet) Hostnames() []string {
	return rs.rules.Keys()
}

// All iterates over every rule in order.
func (rs *RuleSet) All() iter.Seq2[string, CleaningRuleProperties] {
	return rs.rules.All()
}

// Enabled iterates in order over the rules enabled for category.
func (rs *RuleSet) Enabled(category Category) iter.Seq2[string, CleaningRuleProperties] {
	return func(yield func(string, CleaningRuleProperties) bool) {
		for host, props := range rs.rules.All() {
			if !props.Enabled(category) {
				continue
			}
			if !yield(host, props) {
				return
			}
		}
	}
}

// MarshalJSON implements json.Marshaler.
func (rs RuleSet) MarshalJSON() ([]byte, error) {
	return rs.rules.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (rs *RuleSet) UnmarshalJSON(data []byte) error {
	return rs.rules.UnmarshalJSON(data)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (rs *RuleSet) UnmarshalYAML(value *yaml.Node) error {
	return rs.rules.UnmarshalYAML(value)
}
