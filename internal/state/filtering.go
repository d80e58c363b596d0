package state

import (
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	"github.com/xyleth/desloppify-sub004/internal/types"
)

var (
	globMu    sync.Mutex
	globCache = make(map[string]glob.Glob)
)

// globMatch is fnmatch-style matching where * also spans "/".
// Supported syntax is *, ?, [seq] and [!seq]; see fnmatchToGlob.
// Patterns that fail to compile match nothing.
func globMatch(pattern, s string) bool {
	globMu.Lock()
	g, ok := globCache[pattern]
	if !ok {
		compiled, err := glob.Compile(fnmatchToGlob(pattern))
		if err == nil {
			g = compiled
		}
		globCache[pattern] = g
	}
	globMu.Unlock()
	return g != nil && g.Match(s)
}

// fnmatchToGlob escapes the parts of a pattern that fnmatch treats as
// literal but glob does not: braces, backslashes and a "[" with no
// closing "]".
func fnmatchToGlob(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch c {
		case '\\', '{', '}':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '[':
			end := strings.IndexByte(pattern[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(pattern[i : i+end+2])
			i += end + 1
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// MatchIgnorePattern returns the first ignore pattern that matches a finding,
// or "" when none does.
//
// A pattern with "*" is a glob against the finding ID when it contains "::",
// otherwise against the file. A "::" pattern without a glob is an ID prefix.
// Anything else must equal the file path.
func MatchIgnorePattern(findingID, file string, patterns []string) string {
	for _, p := range patterns {
		switch {
		case strings.Contains(p, "*"):
			target := file
			if strings.Contains(p, "::") {
				target = findingID
			}
			if globMatch(p, target) {
				return p
			}
		case strings.Contains(p, "::"):
			if strings.HasPrefix(findingID, p) {
				return p
			}
		default:
			if file == p || file == types.NormalizePath(p) {
				return p
			}
		}
	}
	return ""
}

// IsIgnored reports whether any ignore pattern matches.
func IsIgnored(findingID, file string, patterns []string) bool {
	return MatchIgnorePattern(findingID, file, patterns) != ""
}

// MatchesPattern is the targeting rule used by resolve and show: exact ID,
// glob over the ID, ID prefix, detector name, exact file, or directory prefix.
func MatchesPattern(f *types.Finding, pattern string) bool {
	id := f.ID
	switch {
	case id == pattern:
		return true
	case strings.Contains(pattern, "*") && globMatch(pattern, id):
		return true
	case strings.Contains(pattern, "::") && strings.HasPrefix(id, pattern):
		return true
	case f.Detector == pattern, f.File == pattern:
		return true
	}
	return strings.HasPrefix(f.File, strings.TrimRight(pattern, "/")+"/")
}

// InScanScope reports whether file belongs to the scan rooted at scanPath.
// Codebase-wide findings (file ".") are always in scope.
func InScanScope(file, scanPath string) bool {
	if scanPath == "" || scanPath == "." {
		return true
	}
	prefix := strings.TrimRight(scanPath, "/") + "/"
	return strings.HasPrefix(file, prefix) || file == scanPath || file == "."
}

// PathScoped restricts findings to those inside scanPath.
func PathScoped(findings map[string]*types.Finding, scanPath string) map[string]*types.Finding {
	if scanPath == "" || scanPath == "." {
		return findings
	}
	out := make(map[string]*types.Finding, len(findings))
	for id, f := range findings {
		if InScanScope(f.File, scanPath) {
			out[id] = f
		}
	}
	return out
}

// MatchesExclusion reports whether a path is covered by an exclusion.
//
// Exclusions match whole path components: "test" matches "test/a.go" and
// "src/test/b.go" but never "testimony.go". An exclusion containing "/"
// matches as a directory prefix.
func MatchesExclusion(relPath, exclusion string) bool {
	if exclusion == "" {
		return false
	}
	relPath = types.NormalizePath(relPath)
	for _, part := range strings.Split(relPath, "/") {
		if part == exclusion {
			return true
		}
	}
	if strings.Contains(exclusion, "/") {
		return strings.HasPrefix(relPath, strings.TrimRight(exclusion, "/")+"/")
	}
	return false
}

func matchesAnyExclusion(relPath string, exclusions []string) bool {
	for _, ex := range exclusions {
		if MatchesExclusion(relPath, ex) {
			return true
		}
	}
	return false
}

// StatusAll disables status filtering in MatchFindings.
const StatusAll = "all"

// MatchFindings returns non-suppressed findings matching pattern whose status
// equals statusFilter, sorted by ID. Pass StatusAll to accept any status.
// It never mutates state.
func MatchFindings(s *types.State, pattern, statusFilter string) []*types.Finding {
	var out []*types.Finding
	for _, f := range s.Findings {
		if f.Suppressed {
			continue
		}
		if statusFilter != StatusAll && string(f.Status) != statusFilter {
			continue
		}
		if MatchesPattern(f, pattern) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
