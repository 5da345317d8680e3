package rules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupingRules_FolderFor(t *testing.T) {
	var g GroupingRules
	require.NoError(t, json.Unmarshal([]byte(`{
		"12": {"docs.example.com": {"subdomains": false}},
		"7": {"example.com": {"subdomains": true}, "news.test": {"subdomains": false}}
	}`), &g))

	assert.Equal(t, 2, g.Len())

	m, ok, err := g.FolderFor("https://docs.example.com/guide")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, GroupingMatch{FolderID: "12", Hostname: "docs.example.com"}, m)

	m, ok, err = g.FolderFor("https://www.example.com/")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "7", m.FolderID)

	_, ok, err = g.FolderFor("https://sub.news.test/")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = g.FolderFor("relative/path")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestGroupingRules_AddAndMarshal(t *testing.T) {
	var g GroupingRules
	g.Add("5", "b.test", DefaultGroupingRule)
	g.Add("3", "a.test", GroupingRuleProperties{})
	g.Add("5", "c.test", GroupingRuleProperties{})

	out, err := json.Marshal(g)
	require.NoError(t, err)
	assert.Equal(t, `{"5":{"b.test":{"subdomains":true},"c.test":{"subdomains":false}},"3":{"a.test":{"subdomains":false}}}`, string(out))

	var folders []string
	counts := map[string]int{}
	for id, hosts := range g.Folders() {
		folders = append(folders, id)
		for range hosts {
			counts[id]++
		}
	}
	assert.Equal(t, []string{"5", "3"}, folders)
	assert.Equal(t, map[string]int{"5": 2, "3": 1}, counts)
}
