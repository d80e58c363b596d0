package detectors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShouldExcludePath(t *testing.T) {
	patterns := []string{"vendor/", "_test.go", ".git/", ""}
	tests := []struct {
		path string
		want bool
	}{
		{"vendor/foo.go", true},
		{"src/vendor/foo.go", true},
		{"vendorized/bar.go", false},
		{"pkg/foo_test.go", true},
		{"src/.git/config", true},
		{"pkg/foo.go", false},
		{`vendor\win.go`, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldExcludePath(tt.path, patterns))
		})
	}
}

func TestZoneForPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"internal/state/merge.go", "production"},
		{"internal/state/merge_test.go", "test"},
		{"tests/test_api.py", "test"},
		{"src/app.spec.ts", "test"},
		{"vendor/github.com/x/y.go", "vendor"},
		{"web/node_modules/react/index.js", "vendor"},
		{"api/v1/service.pb.go", "generated"},
		{"deploy/values.yaml", "config"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, ZoneForPath(tt.path, nil))
		})
	}

	override := func(p string) string {
		if p == "tools/gen.go" {
			return "script"
		}
		return ""
	}
	assert.Equal(t, "script", ZoneForPath("tools/gen.go", override))
	assert.Equal(t, "production", ZoneForPath("tools/run.go", override))
}
