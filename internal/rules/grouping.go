package rules

import (
	"iter"

	"gopkg.in/yaml.v3"
)

// GroupingRuleProperties configures a grouping rule for one hostname.
type GroupingRuleProperties struct {
	Subdomains bool `json:"subdomains" yaml:"subdomains"`
}

// DefaultGroupingRule is applied to newly created grouping rules.
var DefaultGroupingRule = GroupingRuleProperties{Subdomains: true}

// GroupingRules assigns bookmarks to folders by hostname. Folders and the
// hostnames within each folder are kept in order.
type GroupingRules struct {
	folders Ordered[Ordered[GroupingRuleProperties]]
}

// GroupingMatch is the folder selected for a URL.
type GroupingMatch struct {
	FolderID string
	Hostname string
}

// Add adds or replaces the rule for hostname under folderID.
func (g *GroupingRules) Add(folderID, hostname string, props GroupingRuleProperties) {
	hosts, _ := g.folders.Get(folderID)
	hosts.Set(hostname, props)
	g.folders.Set(folderID, hosts)
}

// Len returns the number of folders with rules.
func (g *GroupingRules) Len() int {
	return g.folders.Len()
}

// Folders iterates over folder ids and their hostname rules in order.
func (g *GroupingRules) Folders() iter.Seq2[string, iter.Seq2[string, GroupingRuleProperties]] {
	return func(yield func(string, iter.Seq2[string, GroupingRuleProperties]) bool) {
		for id, hosts := range g.folders.All() {
			if !yield(id, hosts.All()) {
				return
			}
		}
	}
}

// FolderFor returns the first folder with a hostname rule matching rawURL,
// using the same host semantics as Matches.
func (g *GroupingRules) FolderFor(rawURL string) (GroupingMatch, bool, error) {
	host, err := HostOf(rawURL)
	if err != nil {
		return GroupingMatch{}, false, err
	}
	for id, hosts := range g.folders.All() {
		for hostname, props := range hosts.All() {
			if hostMatches(host, hostname, props.Subdomains) {
				return GroupingMatch{FolderID: id, Hostname: hostname}, true, nil
			}
		}
	}
	return GroupingMatch{}, false, nil
}

// MarshalJSON implements json.Marshaler.
func (g GroupingRules) MarshalJSON() ([]byte, error) {
	return g.folders.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *GroupingRules) UnmarshalJSON(data []byte) error {
	return g.folders.UnmarshalJSON(data)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (g *GroupingRules) UnmarshalYAML(value *yaml.Node) error {
	return g.folders.UnmarshalYAML(value)
}
