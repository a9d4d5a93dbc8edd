// Package utils holds path helpers shared by the built-in modules.
package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// IgnoreMatcher decides whether a path below a watched root should be
// skipped. Patterns are globs: * and ? stay within one path segment, **
// spans segments, [...] and [!...] are character classes. A bare name such
// as "node_modules" matches that directory anywhere along with everything
// below it.
type IgnoreMatcher struct {
	patterns []string
	regexps  []*regexp.Regexp
}

// NewIgnoreMatcher compiles patterns. An empty list matches nothing.
func NewIgnoreMatcher(patterns []string) (*IgnoreMatcher, error) {
	m := &IgnoreMatcher{patterns: append([]string(nil), patterns...)}
	for _, p := range patterns {
		for _, variant := range expand(normalize(p)) {
			re, err := globToRegexp(variant)
			if err != nil {
				return nil, fmt.Errorf("invalid ignore pattern %q: %w", p, err)
			}
			m.regexps = append(m.regexps, re)
		}
	}
	return m, nil
}

// Patterns returns the patterns the matcher was built from
func (m *IgnoreMatcher) Patterns() []string {
	return m.patterns
}

// Match reports whether rel, a slash or OS separated path relative to the
// watched root, is ignored.
func (m *IgnoreMatcher) Match(rel string) bool {
	if m == nil {
		return false
	}
	rel = normalize(filepath.ToSlash(rel))
	for _, re := range m.regexps {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}

func normalize(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "\\", "/")
	pattern = strings.TrimPrefix(pattern, "./")
	return strings.TrimSuffix(pattern, "/")
}

// expand adds the variants a user expects from a short pattern: bare names
// match at any depth together with their contents, and relative file
// patterns match in any directory.
func expand(pattern string) []string {
	if !strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "**") {
		return []string{pattern, "**/" + pattern, pattern + "/**", "**/" + pattern + "/**"}
	}
	return []string{pattern, pattern + "/**"}
}

func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")

	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch {
		case c == '*' && strings.HasPrefix(pattern[i:], "**/"):
			// Zero or more leading directories
			b.WriteString("(?:.*/)?")
			i += 3
		case c == '*' && strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i += 2
		case c == '*':
			b.WriteString("[^/]*")
			i++
		case c == '?':
			b.WriteString("[^/]")
			i++
		case c == '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				i++
				continue
			}
			class := pattern[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 2
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}

	b.WriteString("$")
	return regexp.Compile(b.String())
}

// DefaultIgnores lists directories and files no watch module cares about
func DefaultIgnores() []string {
	return []string{
		".git",
		".hg",
		".svn",
		".lifetime",
		"node_modules",
		"vendor",
		".idea",
		".vscode",
		".DS_Store",
		"*.swp",
		"*~",
		"*.tmp",
	}
}
