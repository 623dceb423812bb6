// Package refresh implements the two scheduled data-refresh pipelines:
// the midnight calendar/cache refresh and the morning newsletter
// refresh. Both are linear, fail-fast, single-attempt runs that end with
// an operator notification and leave last-good cache data untouched on
// failure.
package refresh

import (
	"context"
	"time"

	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
	"cohortdash/internal/newsletter"
	"cohortdash/internal/notify"
)

// runLockName serializes the two pipelines against overlapping
// invocations (e.g. a manual trigger during a scheduled run).
const runLockName = "refresh-run"

// runLockTTL bounds how long a crashed run can block the next one.
const runLockTTL = 10 * time.Minute

// maxErrorLen caps the error text carried in notifications.
const maxErrorLen = 255

// CalendarSource produces the bucketed calendar events.
type CalendarSource interface {
	CohortEvents(ctx context.Context) (model.CohortEvents, error)
}

// NewsletterSource locates and scrapes the latest newsletter issue.
type NewsletterSource interface {
	LatestURL(ctx context.Context) (string, error)
	Scrape(ctx context.Context, url string) (newsletter.Scraped, error)
}

// Analyzer is the AI-backed transform surface the pipelines use.
type Analyzer interface {
	OrganizeNewsletter(ctx context.Context, sections []model.RawSection, issueURL, title string) (*model.NewsletterData, error)
	ExtractTimeSensitive(ctx context.Context, data *model.NewsletterData) (*model.NewsletterData, error)
	AnalyzeMyWeek(ctx context.Context, events model.CohortEvents, news *model.NewsletterData) (*model.MyWeekData, error)
}

func truncateError(err error) string {
	s := err.Error()
	if len(s) > maxErrorLen {
		s = s[:maxErrorLen]
	}
	return s
}

// sendReport dispatches a notification. Delivery failure is logged and
// never fails the run.
func sendReport(ctx context.Context, notifier notify.Notifier, report model.RunReport) {
	if notifier == nil {
		return
	}
	if err := notifier.Send(ctx, report); err != nil {
		appLog.Error("notification dispatch failed", err, "job", report.JobName)
	}
}

func nowISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
