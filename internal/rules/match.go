package rules

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// hostProfile converts hosts to ASCII the way browsers do: non-transitional
// UTS #46 processing without STD3 restrictions.
var hostProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(false),
	idna.CheckHyphens(false),
	idna.BidiRule(),
)

// HostOf returns the normalized host of rawURL the way a browser reports
// it: the port is dropped, percent-escapes are decoded, IDN labels are
// converted to ASCII, IPv6 literals keep their brackets and the result is
// lower-cased. URLs without a scheme wrap ErrInvalidURL.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(unescapeHost(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("%w: missing scheme in %q", ErrInvalidURL, rawURL)
	}

	host := u.Hostname()
	if host == "" {
		return "", nil
	}
	if ip := net.ParseIP(host); ip != nil {
		if strings.Contains(host, ":") {
			return "[" + strings.ToLower(host) + "]", nil
		}
		return host, nil
	}

	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: host %q: %v", ErrInvalidURL, host, err)
	}
	return strings.ToLower(ascii), nil
}

// unescapeHost percent-decodes the host of rawURL. net/url rejects escaped
// ASCII in hosts, browsers decode it before IDN processing. rawURL is
// returned unchanged when the decoded host would change how it parses.
func unescapeHost(rawURL string) string {
	i := strings.Index(rawURL, "://")
	if i < 0 {
		return rawURL
	}
	start := i + len("://")
	end := len(rawURL)
	if j := strings.IndexAny(rawURL[start:], "/?#"); j >= 0 {
		end = start + j
	}

	authority := rawURL[start:end]
	hostStart := strings.LastIndex(authority, "@") + 1
	escaped := authority[hostStart:]
	if !strings.Contains(escaped, "%") || strings.HasPrefix(escaped, "[") {
		return rawURL
	}
	host, err := url.PathUnescape(escaped)
	if err != nil || strings.ContainsAny(host, "/?#@[]\\ %") {
		return rawURL
	}
	return rawURL[:start] + authority[:hostStart] + host + rawURL[end:]
}

// Matches reports whether rawURL falls under the rule for hostname. The URL
// host must equal hostname, or end in "."+hostname when subdomains are
// enabled. hostname is compared as stored; an empty hostname never matches.
func Matches(rawURL, hostname string, props CleaningRuleProperties) (bool, error) {
	host, err := HostOf(rawURL)
	if err != nil {
		return false, err
	}
	return hostMatches(host, hostname, props.Subdomains), nil
}

func hostMatches(host, hostname string, subdomains bool) bool {
	if hostname == "" {
		return false
	}
	if host == hostname {
		return true
	}
	return subdomains && strings.HasSuffix(host, "."+hostname)
}

// MatchResult reports which rule, if any, matched a URL.
type MatchResult struct {
	Matched   bool
	Hostname  string
	RuleIndex int // position among all rules, -1 when unmatched
	Rule      CleaningRuleProperties
}

// Match checks rawURL against the rules enabled for category in order and
// returns the first match.
func (rs *RuleSet) Match(rawURL string, category Category) (MatchResult, error) {
	if _, err := ParseCategory(string(category)); err != nil {
		return MatchResult{RuleIndex: -1}, err
	}
	// nothing can match, so the url is not looked at
	if !rs.anyEnabled(category) {
		return MatchResult{RuleIndex: -1}, nil
	}
	host, err := HostOf(rawURL)
	if err != nil {
		return MatchResult{RuleIndex: -1}, err
	}

	i := 0
	for hostname, props := range rs.All() {
		if props.Enabled(category) && hostMatches(host, hostname, props.Subdomains) {
			return MatchResult{
				Matched:   true,
				Hostname:  hostname,
				RuleIndex: i,
				Rule:      props,
			}, nil
		}
		i++
	}
	return MatchResult{RuleIndex: -1}, nil
}

func (rs *RuleSet) anyEnabled(category Category) bool {
	for range rs.Enabled(category) {
		return true
	}
	return false
}
