package refresh

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckIssueURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"empty", "", true},
		{"too short", "http://x", true},
		{"nine chars", "123456789", true},
		{"ten chars", "1234567890", false},
		{"normal", "https://example.com/archive/issue-42", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkIssueURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "FAILSAFE")
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheckSections(t *testing.T) {
	err := checkSections(0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "FAILSAFE")
	assert.Contains(t, err.Error(), "no sections")

	assert.NoError(t, checkSections(1))
}

func TestCheckTitlePattern(t *testing.T) {
	patterns := []string{"bear", "ewmba", "haas", "berkeley"}

	tests := []struct {
		title string
		ok    bool
	}{
		{"Blue Crew Review - EWMBA Weekly 11/3/25", true},
		{"Go Bears! This Week at Haas", true},
		{"BERKELEY bulletin", true},
		{"Random Marketing Mail", false},
		{"", false},
	}

	for _, tt := range tests {
		warning, ok := checkTitlePattern(tt.title, patterns)
		assert.Equal(t, tt.ok, ok, "title %q", tt.title)
		if !ok {
			assert.Contains(t, warning, tt.title)
		}
	}
}

func TestCheckStaleness(t *testing.T) {
	now := time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		title string
		want  string // substring of expected warning, empty for none
	}{
		{"fresh slash date", "EWMBA Weekly 11-17-25", ""},
		{"fresh with full year", "EWMBA Weekly 11/17/2025", ""},
		{"stale", "EWMBA Weekly 10-1-25", "days old"},
		{"exactly at limit", "EWMBA Weekly 11-6-25", ""},
		{"one past limit", "EWMBA Weekly 11-5-25", "days old"},
		{"no date", "EWMBA Weekly Digest", "Could not extract date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warning := checkStaleness(tt.title, now, 14)
			if tt.want == "" {
				assert.Empty(t, warning)
			} else {
				assert.True(t, strings.Contains(warning, tt.want),
					"warning %q should contain %q", warning, tt.want)
			}
		})
	}
}
