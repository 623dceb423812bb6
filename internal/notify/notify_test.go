package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"cohortdash/internal/model"
)

func TestFormatReportSuccess(t *testing.T) {
	msg := FormatReport(model.RunReport{
		JobName:    "Newsletter Refresh (8:10 AM)",
		Success:    true,
		DurationMs: 76500,
		Timestamp:  "2025-11-18T08:11:16Z",
		Details: model.RunDetails{
			NewsletterTitle:   "EWMBA Weekly 11-17-25",
			NewsletterURL:     "https://example.com/issue-42",
			SectionsProcessed: 5,
			Warnings:          []string{"Newsletter is 15 days old - may be stale"},
		},
	})

	assert.Contains(t, msg, "✅ <b>Newsletter Refresh (8:10 AM)</b>")
	assert.Contains(t, msg, "Duration: 76500ms")
	assert.Contains(t, msg, "Newsletter: EWMBA Weekly 11-17-25")
	assert.Contains(t, msg, "Sections: 5")
	assert.Contains(t, msg, "⚠️ Warnings:")
	assert.Contains(t, msg, "• Newsletter is 15 days old - may be stale")
	assert.NotContains(t, msg, "Error:")
}

func TestFormatReportFailure(t *testing.T) {
	msg := FormatReport(model.RunReport{
		JobName:    "Midnight Cache Refresh",
		Success:    false,
		DurationMs: 1200,
		Timestamp:  "2025-11-18T00:00:01Z",
		Details: model.RunDetails{
			Error: "FAILSAFE: newsletter has no sections - scraping may have failed",
		},
	})

	assert.Contains(t, msg, "❌ <b>Midnight Cache Refresh</b>")
	assert.Contains(t, msg, "Error: <code>FAILSAFE: newsletter has no sections - scraping may have failed</code>")
	assert.NotContains(t, msg, "Warnings:")
}

func TestFormatReportEscapesHTML(t *testing.T) {
	msg := FormatReport(model.RunReport{
		JobName: "Midnight Cache Refresh",
		Details: model.RunDetails{Error: `unexpected token "<div>"`},
	})

	assert.Contains(t, msg, "&lt;div&gt;")
	assert.NotContains(t, msg, "<div>")
}

func TestLogNotifier(t *testing.T) {
	n := &LogNotifier{}
	err := n.Send(context.Background(), model.RunReport{JobName: "Midnight Cache Refresh", Success: true})
	assert.NoError(t, err)
}
