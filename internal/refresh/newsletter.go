package refresh

import (
	"context"
	"fmt"
	"time"

	"cohortdash/internal/cache"
	"cohortdash/internal/config"
	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
	"cohortdash/internal/notify"
)

const newsletterJobName = "Newsletter Refresh (8:10 AM)"

// NewsletterResult summarizes a successful morning refresh.
type NewsletterResult struct {
	DurationMs        int64
	NewsletterURL     string
	NewsletterTitle   string
	SectionsProcessed int
	Warnings          []string
}

// NewsletterRefresh is the morning pipeline: resolve the latest issue,
// scrape it, organize and enrich it with AI, refresh the calendar and
// my-week summaries, and write the full dashboard snapshot through to
// the cache. Failsafe checks gate the scrape results; non-fatal
// violations accumulate as warnings owned by the run.
type NewsletterRefresh struct {
	Newsletter NewsletterSource
	Calendar   CalendarSource
	Analyzer   Analyzer
	Store      cache.Store
	Notifier   notify.Notifier
	Failsafe   config.NewsletterConfig

	// Now is overridable in tests.
	Now func() time.Time
}

func (r *NewsletterRefresh) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes the pipeline once, fail-fast. The start time is captured
// before any stage so the failure report carries the real elapsed time.
func (r *NewsletterRefresh) Run(ctx context.Context) (NewsletterResult, error) {
	start := r.now()

	if err := r.Store.TryLock(ctx, runLockName, runLockTTL); err != nil {
		return NewsletterResult{}, err
	}
	defer func() {
		if err := r.Store.Unlock(context.WithoutCancel(ctx), runLockName); err != nil {
			appLog.Error("release run lock failed", err, "job", newsletterJobName)
		}
	}()

	res, err := r.run(ctx, start)
	if err != nil {
		sendReport(ctx, r.Notifier, model.RunReport{
			JobName:    newsletterJobName,
			Success:    false,
			DurationMs: r.now().Sub(start).Milliseconds(),
			Timestamp:  nowISO(r.now()),
			Details: model.RunDetails{
				Error:    truncateError(err),
				Warnings: res.Warnings,
			},
		})
		return NewsletterResult{}, err
	}

	sendReport(ctx, r.Notifier, model.RunReport{
		JobName:    newsletterJobName,
		Success:    true,
		DurationMs: res.DurationMs,
		Timestamp:  nowISO(r.now()),
		Details: model.RunDetails{
			NewsletterTitle:   res.NewsletterTitle,
			NewsletterURL:     res.NewsletterURL,
			SectionsProcessed: res.SectionsProcessed,
			Warnings:          res.Warnings,
		},
	})
	return res, nil
}

// run returns partial results even on error so accumulated warnings
// reach the failure notification.
func (r *NewsletterRefresh) run(ctx context.Context, start time.Time) (NewsletterResult, error) {
	var res NewsletterResult
	appLog.Info("newsletter refresh started")

	latestURL, err := r.Newsletter.LatestURL(ctx)
	if err != nil {
		return res, fmt.Errorf("resolve newsletter URL: %w", err)
	}
	if err := checkIssueURL(latestURL); err != nil {
		return res, err
	}
	res.NewsletterURL = latestURL

	raw, err := r.Newsletter.Scrape(ctx, latestURL)
	if err != nil {
		return res, fmt.Errorf("scrape newsletter: %w", err)
	}
	if err := checkSections(len(raw.Sections)); err != nil {
		return res, err
	}
	if warning, ok := checkTitlePattern(raw.Title, r.Failsafe.TitlePatterns); !ok {
		appLog.Info("newsletter title pattern mismatch", "title", raw.Title)
		res.Warnings = append(res.Warnings, warning)
	}

	newsletterStart := r.now()
	organized, err := r.Analyzer.OrganizeNewsletter(ctx, raw.Sections, latestURL, raw.Title)
	if err != nil {
		return res, err
	}

	enriched, err := r.Analyzer.ExtractTimeSensitive(ctx, organized)
	if err != nil {
		return res, err
	}
	newsletterMs := r.now().Sub(newsletterStart).Milliseconds()

	calendarStart := r.now()
	cohortEvents, err := r.Calendar.CohortEvents(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch calendar: %w", err)
	}
	calendarMs := r.now().Sub(calendarStart).Milliseconds()

	myWeek, err := r.Analyzer.AnalyzeMyWeek(ctx, cohortEvents, enriched)
	if err != nil {
		return res, err
	}

	if warning := checkStaleness(enriched.Title, r.now(), r.Failsafe.StaleAfterDays); warning != "" {
		appLog.Info("newsletter staleness warning", "title", enriched.Title)
		res.Warnings = append(res.Warnings, warning)
	}

	if err := r.Store.Set(ctx, cache.KeyNewsletterData, enriched); err != nil {
		return res, err
	}
	if err := r.Store.Set(ctx, cache.KeyCohortEvents, cohortEvents); err != nil {
		return res, err
	}
	if err := r.Store.Set(ctx, cache.KeyMyWeekData, myWeek); err != nil {
		return res, err
	}

	dashboard := model.DashboardData{
		NewsletterData: enriched,
		CohortEvents:   cohortEvents,
		MyWeekData:     myWeek,
		ProcessingInfo: model.ProcessingInfo{
			TotalTimeMs:      r.now().Sub(start).Milliseconds(),
			NewsletterTimeMs: newsletterMs,
			CalendarTimeMs:   calendarMs,
			MyWeekTimeMs:     myWeek.ProcessingTimeMs,
			Timestamp:        nowISO(r.now()),
		},
	}
	if err := r.Store.Set(ctx, cache.KeyDashboardData, dashboard); err != nil {
		return res, err
	}

	res.NewsletterTitle = enriched.Title
	res.SectionsProcessed = len(enriched.Sections)
	res.DurationMs = r.now().Sub(start).Milliseconds()

	appLog.Info("newsletter refresh completed",
		"duration_ms", res.DurationMs,
		"sections", res.SectionsProcessed,
		"warnings", len(res.Warnings),
	)
	return res, nil
}
