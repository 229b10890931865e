package history

import (
	"fmt"
	"regexp"
)

// Filter narrows each commit's file list. An empty list leaves that filter
// kind unconfigured; every configured kind must pass for a file to survive.
// Patterns are regular expressions anchored at the start of the path only.
type Filter struct {
	IncludeExact    []string `yaml:"include" json:"include,omitempty"`
	ExcludeExact    []string `yaml:"exclude" json:"exclude,omitempty"`
	IncludePatterns []string `yaml:"include_patterns" json:"include_patterns,omitempty"`
	ExcludePatterns []string `yaml:"exclude_patterns" json:"exclude_patterns,omitempty"`
}

// Matcher is a compiled Filter.
type Matcher struct {
	include   map[string]struct{}
	exclude   map[string]struct{}
	includeRe []*regexp.Regexp
	excludeRe []*regexp.Regexp
}

// Compile validates the patterns and builds a Matcher.
func (f Filter) Compile() (*Matcher, error) {
	m := &Matcher{
		include: toSet(f.IncludeExact),
		exclude: toSet(f.ExcludeExact),
	}
	var err error
	if m.includeRe, err = compileAnchored(f.IncludePatterns); err != nil {
		return nil, fmt.Errorf("include pattern: %w", err)
	}
	if m.excludeRe, err = compileAnchored(f.ExcludePatterns); err != nil {
		return nil, fmt.Errorf("exclude pattern: %w", err)
	}
	return m, nil
}

// Match reports whether path passes every configured filter kind.
func (m *Matcher) Match(path string) bool {
	if m.include != nil {
		if _, ok := m.include[path]; !ok {
			return false
		}
	}
	if m.exclude != nil {
		if _, ok := m.exclude[path]; ok {
			return false
		}
	}
	if m.includeRe != nil && !matchAny(m.includeRe, path) {
		return false
	}
	if m.excludeRe != nil && matchAny(m.excludeRe, path) {
		return false
	}
	return true
}

// Apply returns the paths that Match, in their original order. The result
// is never nil.
func (m *Matcher) Apply(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if m.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

func toSet(vals []string) map[string]struct{} {
	if len(vals) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		set[v] = struct{}{}
	}
	return set
}

func compileAnchored(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	res := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`^(?:` + p + `)`)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func matchAny(res []*regexp.Regexp, path string) bool {
	for _, re := range res {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}
