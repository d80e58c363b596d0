package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseModelJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"raw", `{"score": 80}`, 80, false},
		{"fenced", "```json\n{\"score\": 72}\n```", 72, false},
		{"fence without language", "```\n{\"score\": 64}\n```", 64, false},
		{"trailing comma", `{"score": 55, "findings": [],}`, 55, false},
		{"fenced with trailing comma", "```json\n{\"score\": 41,}\n```", 41, false},
		{"prose around object", "Here is my review:\n{\"score\": 90}\nThanks!", 90, false},
		{"empty", "   ", 0, true},
		{"no json", "I cannot review this.", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseModelJSON[dimensionResponse](tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Score)
		})
	}
}
