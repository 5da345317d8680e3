package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	exact := CleaningRuleProperties{Subdomains: false, Bookmarks: true}
	withSubs := CleaningRuleProperties{Subdomains: true, Bookmarks: true}

	tests := []struct {
		name     string
		url      string
		hostname string
		props    CleaningRuleProperties
		want     bool
	}{
		{"exact host without subdomains", "https://example.com/a", "example.com", exact, true},
		{"exact host with subdomains", "https://example.com/a", "example.com", withSubs, true},
		{"subdomain requires flag", "https://sub.example.com/", "example.com", exact, false},
		{"subdomain with flag", "https://sub.example.com/", "example.com", withSubs, true},
		{"nested subdomain with flag", "https://a.b.example.com/", "example.com", withSubs, true},
		{"unrelated host", "https://other.org/", "example.com", withSubs, false},
		{"suffix without dot boundary", "https://notexample.com/", "example.com", withSubs, false},
		{"port is ignored", "http://example.com:8080/x", "example.com", exact, true},
		{"url host is lower-cased", "https://EXAMPLE.com/", "example.com", exact, true},
		{"rule hostname is not case folded", "https://example.com/", "Example.com", exact, false},
		{"rule hostname trailing dot kept", "https://example.com/", "example.com.", withSubs, false},
		{"empty rule hostname never matches", "https://example.com/", "", withSubs, false},
		{"idn host converted to ascii", "https://bücher.example/", "xn--bcher-kva.example", exact, true},
		{"idn subdomain", "https://www.bücher.example/", "xn--bcher-kva.example", withSubs, true},
		{"userinfo is not the host", "https://example.com@evil.test/", "example.com", withSubs, false},
		{"ipv4 literal", "http://127.0.0.1/", "127.0.0.1", exact, true},
		{"ipv6 literal keeps brackets", "http://[::1]:9191/", "[::1]", exact, true},
		{"bare ipv6 rule hostname", "http://[::1]/", "::1", exact, false},
		{"ipv6 literal is lower-cased", "http://[FE80::1]/", "[fe80::1]", exact, true},
		{"percent-encoded host", "https://ex%61mple.com/", "example.com", exact, true},
		{"percent-encoded idn host", "https://b%C3%BCcher.example/", "xn--bcher-kva.example", exact, true},
		{"percent-encoded host after userinfo", "https://user%40x@ex%61mple.com/", "example.com", exact, true},
		{"no host", "about:blank", "example.com", withSubs, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(tt.url, tt.hostname, tt.props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatches_InvalidURL(t *testing.T) {
	for _, raw := range []string{
		"example.com/path",
		"://missing-scheme",
		"http://[::1",
		"%zz",
		"http://ex%2Fample.com/",
		"http://ex%zzample.com/",
	} {
		t.Run(raw, func(t *testing.T) {
			got, err := Matches(raw, "example.com", DefaultCleaningRule)
			assert.False(t, got)
			assert.ErrorIs(t, err, ErrInvalidURL)
		})
	}
}

func TestHostOf(t *testing.T) {
	host, err := HostOf("https://WWW.Example.COM:443/path?q=1")
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", host)

	host, err = HostOf("https://my_host.example/")
	require.NoError(t, err)
	assert.Equal(t, "my_host.example", host)

	host, err = HostOf("http://[2001:DB8::1]:8080/")
	require.NoError(t, err)
	assert.Equal(t, "[2001:db8::1]", host)

	host, err = HostOf("HTTPS://%57WW.Example.com/")
	require.NoError(t, err)
	assert.Equal(t, "www.example.com", host)

	host, err = HostOf("https://example.com/a%20b?q=%41#%42")
	require.NoError(t, err)
	assert.Equal(t, "example.com", host)
}

func TestRuleSet_Match(t *testing.T) {
	rs := NewRuleSet()
	rs.Set("docs.example.com", CleaningRuleProperties{History: true})
	rs.Set("example.com", CleaningRuleProperties{Subdomains: true, Bookmarks: true, History: true})
	rs.Set("tracker.test", CleaningRuleProperties{Subdomains: true, Bookmarks: true})

	t.Run("first enabled match wins", func(t *testing.T) {
		res, err := rs.Match("https://docs.example.com/", CategoryHistory)
		require.NoError(t, err)
		assert.True(t, res.Matched)
		assert.Equal(t, "docs.example.com", res.Hostname)
		assert.Equal(t, 0, res.RuleIndex)
	})

	t.Run("disabled rules are skipped", func(t *testing.T) {
		res, err := rs.Match("https://docs.example.com/", CategoryBookmarks)
		require.NoError(t, err)
		assert.True(t, res.Matched)
		assert.Equal(t, "example.com", res.Hostname)
		assert.Equal(t, 1, res.RuleIndex)
	})

	t.Run("category disabled everywhere", func(t *testing.T) {
		res, err := rs.Match("https://ads.tracker.test/", CategoryHistory)
		require.NoError(t, err)
		assert.False(t, res.Matched)
		assert.Equal(t, -1, res.RuleIndex)
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := rs.Match("not a url", CategoryHistory)
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("unknown category", func(t *testing.T) {
		_, err := rs.Match("https://example.com/", Category("downloads"))
		assert.ErrorIs(t, err, ErrUnknownCategory)
	})
}

func TestRuleSet_Match_NoEnabledRules(t *testing.T) {
	onlyBookmarks := NewRuleSet()
	onlyBookmarks.Set("example.com", CleaningRuleProperties{Bookmarks: true})

	for name, rs := range map[string]*RuleSet{
		"empty":                 NewRuleSet(),
		"category disabled all": onlyBookmarks,
	} {
		t.Run(name, func(t *testing.T) {
			res, err := rs.Match("not a url", CategoryHistory)
			require.NoError(t, err)
			assert.False(t, res.Matched)
			assert.Equal(t, -1, res.RuleIndex)
		})
	}

	_, err := onlyBookmarks.Match("not a url", CategoryBookmarks)
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("history")
	require.NoError(t, err)
	assert.Equal(t, CategoryHistory, c)

	_, err = ParseCategory("History")
	assert.ErrorIs(t, err, ErrUnknownCategory)
}

func TestCleaningRuleProperties_Enabled(t *testing.T) {
	assert.False(t, DefaultCleaningRule.Enabled(CategoryBookmarks))
	assert.True(t, DefaultCleaningRule.Enabled(CategoryHistory))
	assert.True(t, DefaultCleaningRule.Subdomains)
	assert.False(t, DefaultCleaningRule.Enabled(Category("other")))
}
