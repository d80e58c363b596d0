package detectors

import (
	"strings"
)

// ShouldExcludePath checks if a path matches any exclude patterns.
// Patterns can be:
//   - Directory prefixes: "vendor/" matches "vendor/foo.go"
//   - File suffixes: "_test.go" matches "foo_test.go"
//   - Anywhere in path: ".git/" matches "src/.git/config"
//
// Directories should be passed with a trailing slash so that "vendor/"
// prunes the whole subtree.
func ShouldExcludePath(relPath string, patterns []string) bool {
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		// Match at path component boundaries: "vendor/" matches
		// "vendor/foo" and "src/vendor/foo" but not "vendorized/bar".
		if strings.HasPrefix(relPath, pattern) ||
			strings.Contains(relPath, "/"+pattern) ||
			strings.HasSuffix(relPath, pattern) {
			return true
		}
	}
	return false
}

// ZoneForPath classifies a relative path into a scoring zone using path
// conventions. Overrides are consulted first when non-nil.
func ZoneForPath(relPath string, override func(string) string) string {
	if override != nil {
		if z := override(relPath); z != "" {
			return z
		}
	}
	p := "/" + strings.ToLower(relPath)
	switch {
	case strings.Contains(p, "/vendor/"), strings.Contains(p, "/node_modules/"), strings.Contains(p, "/third_party/"):
		return "vendor"
	case strings.HasSuffix(p, ".pb.go"), strings.HasSuffix(p, ".gen.go"), strings.HasSuffix(p, "_generated.go"),
		strings.Contains(p, "/generated/"):
		return "generated"
	case strings.HasSuffix(p, "_test.go"), strings.Contains(p, "/tests/"), strings.Contains(p, "/test/"),
		strings.Contains(p, "/testdata/"), strings.Contains(p, "/test_"), strings.HasSuffix(p, "_test.py"),
		strings.Contains(p, ".test."), strings.Contains(p, ".spec."):
		return "test"
	case strings.HasSuffix(p, ".yaml"), strings.HasSuffix(p, ".yml"), strings.HasSuffix(p, ".toml"),
		strings.HasSuffix(p, ".ini"), strings.HasSuffix(p, ".cfg"), strings.Contains(p, "/config/"):
		return "config"
	}
	return "production"
}
