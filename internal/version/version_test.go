package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"v1.2.3", "v1.2.3"},
		{"1.2.3", "v1.2.3"},
		{"v1.2", "v1.2.0"},
		{" 2.0.0 ", "v2.0.0"},
		{"", ""},
		{"banana", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}

func TestIsNewer(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })
	Version = "v1.4.0"

	assert.True(t, IsNewer("1.5.0"))
	assert.True(t, IsNewer("v2.0.0"))
	assert.False(t, IsNewer("v1.4.0"))
	assert.False(t, IsNewer("v1.3.9"))
	assert.False(t, IsNewer("dev"))

	Version = "dev"
	assert.False(t, IsNewer("v9.0.0"))
}
