// Package version reports the tool version written into state files.
package version

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Version is overridden at build time with -ldflags "-X .../version.Version=v1.2.3".
var Version = "v0.4.0"

// Canonical returns v with a leading "v", or "" when v is not valid semver.
func Canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

// IsNewer reports whether other is a valid version newer than the running tool.
func IsNewer(other string) bool {
	o, cur := Canonical(other), Canonical(Version)
	if o == "" || cur == "" {
		return false
	}
	return semver.Compare(o, cur) > 0
}
