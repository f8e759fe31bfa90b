// Package ignore implements the smart-ignore matcher from spec.md §4.4:
// patterns from five priority tiers (explicit unignore, project, templates,
// user-global, built-in defaults) are combined so staging can decide whether
// a working-tree path is tracked. The glob/negation/directory-only matching
// is grounded directly in gitcore/gitignore.go's parseIgnoreLine/matchGlob;
// this package generalizes it from a single .gitignore stack to rune's
// multi-tier, template-aware configuration (spec.md §6 .runeignore.yml).
package ignore

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// Source identifies which configuration tier a rule came from.
type Source int

const (
	// SourceUnignore is tier 1: explicit "!"-prefixed project-level overrides.
	SourceUnignore Source = iota
	// SourceProject is tier 2: .runeignore.yml patterns.
	SourceProject
	// SourceTemplate is tier 3: applied language/ecosystem templates.
	SourceTemplate
	// SourceUserGlobal is tier 4: the user's global ignore file.
	SourceUserGlobal
	// SourceBuiltin is tier 5: built-in defaults.
	SourceBuiltin
)

func (s Source) String() string {
	switch s {
	case SourceUnignore:
		return "unignore"
	case SourceProject:
		return "project"
	case SourceTemplate:
		return "template"
	case SourceUserGlobal:
		return "user-global"
	case SourceBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Rule is a single compiled pattern plus the metadata needed to report which
// rule decided a match.
type Rule struct {
	Source  Source
	Pattern string // pattern text with any leading "!" kept; a trailing "/" is stripped and recorded in dirOnly
	Index   int    // position within its source tier, for stable reporting
	negated bool
	dirOnly bool
}

// Result is returned by Check.
type Result struct {
	Ignored bool
	Rule    *Rule // the last-matching rule across all tiers, or nil
}

// Matcher evaluates paths against the five priority tiers. Rules are stored
// already ordered by priority (tier 1 first overall is evaluated last, since
// "higher priority wins" in spec.md §4.4 and ties within a tier resolve to
// the last match — so lower-priority tiers are applied first and higher
// ones can override them).
type Matcher struct {
	mu    sync.RWMutex
	tiers [5][]Rule // indexed by Source, ascending priority within applyOrder

	cacheMu sync.Mutex
	cache   map[string]Result
}

// applyOrder lists tiers from lowest to highest priority, so that later
// tiers in this slice override earlier ones when both match the same path.
var applyOrder = []Source{SourceBuiltin, SourceUserGlobal, SourceTemplate, SourceProject, SourceUnignore}

// NewMatcher returns an empty Matcher.
func NewMatcher() *Matcher {
	return &Matcher{cache: make(map[string]Result)}
}

// AddPatterns compiles and appends patterns to the given tier. An explicit
// "!"-prefixed pattern supplied under SourceProject is automatically routed
// to SourceUnignore so it outranks ordinary project patterns, matching
// spec.md §4.4 tier 1 semantics.
func (m *Matcher) AddPatterns(source Source, patterns []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, raw := range patterns {
		r, ok, err := compile(raw)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		r.Source = source
		dest := source
		if r.negated && source == SourceProject {
			dest = SourceUnignore
		}
		r.Index = len(m.tiers[dest])
		m.tiers[dest] = append(m.tiers[dest], r)
	}
	m.invalidateCache()
	return nil
}

func (m *Matcher) invalidateCache() {
	m.cacheMu.Lock()
	m.cache = make(map[string]Result)
	m.cacheMu.Unlock()
}

// compile parses one pattern line (gitignore syntax: "!" negation, trailing
// "/" directory-only, "*", "**", "?", "[...]").
func compile(raw string) (Rule, bool, error) {
	line := strings.TrimRight(raw, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return Rule{}, false, nil
	}

	r := Rule{Pattern: raw}
	if strings.HasPrefix(line, "!") {
		r.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if line == "" {
		return Rule{}, false, nil
	}
	if _, err := regexp.Compile(globToRegexSyntaxCheck(line)); err != nil {
		return Rule{}, false, fmt.Errorf("ignore: invalid pattern %q: %w", raw, err)
	}

	r.Pattern = line
	if r.negated {
		r.Pattern = "!" + r.Pattern
	}
	return r, true, nil
}

// Check evaluates path (forward-slash, repo-relative) against every tier in
// priority order and returns the decision of the last rule that matched,
// across all tiers combined (spec.md: "last match within a tier wins", and
// tiers are combined highest-priority-overrides-lower). Results are
// deterministic for a given configuration regardless of call order
// (testable property 10) and memoized per path and isDir. A rule also
// applies to a path when it matches one of the path's parent directories.
func (m *Matcher) Check(path string, isDir bool) Result {
	norm := filepath.ToSlash(path)
	key := norm
	if isDir {
		key += "\x00"
	}

	m.cacheMu.Lock()
	if cached, ok := m.cache[key]; ok {
		m.cacheMu.Unlock()
		return cached
	}
	m.cacheMu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result Result
	for _, src := range applyOrder {
		rules := m.tiers[src]
		for i := range rules {
			r := &rules[i]
			matched := (!r.dirOnly || isDir) && matchPattern(r, norm)
			// A rule matching a parent directory covers every path beneath it.
			for j := len(norm) - 1; j > 0 && !matched; j-- {
				if norm[j] == '/' {
					matched = matchPattern(r, norm[:j])
				}
			}
			if matched {
				ignored := !r.negated
				result = Result{Ignored: ignored, Rule: r}
			}
		}
	}

	m.cacheMu.Lock()
	m.cache[key] = result
	m.cacheMu.Unlock()

	return result
}

func matchPattern(r *Rule, path string) bool {
	pattern := strings.TrimPrefix(r.Pattern, "!")
	anchored := strings.Contains(strings.TrimPrefix(pattern, "**/"), "/")

	if anchored {
		return matchGlob(pattern, path)
	}

	base := path
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		base = path[idx+1:]
	}
	if matchGlob(pattern, base) {
		return true
	}
	return matchGlob(pattern, path)
}

// matchGlob matches a gitignore-style glob against name, handling "**" as
// zero-or-more path components.
func matchGlob(pattern, name string) bool {
	if !strings.Contains(pattern, "**") {
		matched, _ := filepath.Match(pattern, name)
		return matched
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(name, "/"))
}

func matchSegments(pat, name []string) bool {
	if len(pat) == 0 {
		return len(name) == 0
	}
	if pat[0] == "**" {
		if matchSegments(pat[1:], name) {
			return true
		}
		if len(name) == 0 {
			return false
		}
		return matchSegments(pat, name[1:])
	}
	if len(name) == 0 {
		return false
	}
	matched, _ := filepath.Match(pat[0], name[0])
	if !matched {
		return false
	}
	return matchSegments(pat[1:], name[1:])
}

// globToRegexSyntaxCheck is used only to validate bracket-expression syntax
// via regexp.Compile; filepath.Match is still the actual matcher.
func globToRegexSyntaxCheck(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*', '?', '.', '(', ')', '+', '|', '^', '$':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '[', ']':
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
