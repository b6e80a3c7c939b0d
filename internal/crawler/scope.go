package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// defaultScopeDepth is how many leading path segments anchor the crawl when
// no include prefixes are given.
const defaultScopeDepth = 2

// ScopeConfig decides which URLs belong to a crawl. Build one with NewScope
// and treat it as immutable afterwards.
type ScopeConfig struct {
	host            string
	includePrefixes []string
	explicit        bool
	excludes        []*regexp.Regexp
	scopeDepth      int
}

// NewScope derives the crawl scope from the seed URL. When includePrefixes
// is empty, the seed's leading path segments become the scope anchor; deep
// seeds also register ancestor prefixes at decreasing depth so sibling
// sections stay reachable. Exclude patterns are compiled as Go regexps and
// matched against both the full URL and the bare path.
func NewScope(seedURL string, includePrefixes, excludePatterns []string) (*ScopeConfig, error) {
	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	if seed.Host == "" {
		return nil, fmt.Errorf("seed url %q has no host", seedURL)
	}

	s := &ScopeConfig{
		host:       strings.ToLower(seed.Host),
		scopeDepth: defaultScopeDepth,
	}

	for _, pattern := range excludePatterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile exclude pattern %q: %w", pattern, err)
		}
		s.excludes = append(s.excludes, re)
	}

	if len(includePrefixes) > 0 {
		s.explicit = true
		for _, p := range includePrefixes {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			s.includePrefixes = append(s.includePrefixes, p)
		}
		return s, nil
	}

	// Derive default prefixes from the seed path.
	segments := splitPath(seed.Path)
	if len(segments) == 0 {
		s.includePrefixes = []string{"/"}
		return s, nil
	}
	for depth := min(len(segments), s.scopeDepth); depth >= 1; depth-- {
		s.includePrefixes = append(s.includePrefixes, "/"+strings.Join(segments[:depth], "/"))
	}
	return s, nil
}

// InScope reports whether a URL belongs to this crawl. Rules apply in order:
// host mismatch rejects, any exclude pattern rejects, then the URL must match
// an include prefix. Explicit prefixes match exhaustively; prefixes derived
// from the seed also accept URLs sharing their leading segments.
func (s *ScopeConfig) InScope(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.ToLower(u.Host) != s.host {
		return false
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	for _, re := range s.excludes {
		if re.MatchString(rawURL) || re.MatchString(p) {
			return false
		}
	}

	for _, prefix := range s.includePrefixes {
		if matchPrefix(p, prefix) {
			return true
		}
	}
	// Explicit include prefixes are exhaustive: no prefix match, no page.
	if s.explicit {
		return false
	}

	// For derived prefixes, fall back to matching on the URL's leading
	// segments so sibling sections at the same depth stay in scope.
	segments := splitPath(p)
	if len(segments) < s.scopeDepth {
		return false
	}
	lead := "/" + strings.Join(segments[:s.scopeDepth], "/")
	for _, prefix := range s.includePrefixes {
		prefixSegments := splitPath(prefix)
		if len(prefixSegments) < s.scopeDepth {
			continue
		}
		if lead == "/"+strings.Join(prefixSegments[:s.scopeDepth], "/") {
			return true
		}
	}
	return false
}

// matchPrefix treats an include prefix as a path component boundary: /docs
// matches /docs and /docs/api but not /docs-v2.
func matchPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	if strings.HasSuffix(prefix, "/") {
		return strings.HasPrefix(p, prefix) || p == strings.TrimSuffix(prefix, "/")
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
