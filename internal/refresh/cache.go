package refresh

import (
	"context"
	"fmt"
	"time"

	"cohortdash/internal/cache"
	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
	"cohortdash/internal/notify"
)

const cacheJobName = "Midnight Cache Refresh"

// CacheResult summarizes a successful midnight refresh.
type CacheResult struct {
	DurationMs int64
	EventCount int
}

// CacheRefresh is the midnight pipeline: fetch calendar, regenerate the
// my-week summaries without newsletter data, write through to the cache.
type CacheRefresh struct {
	Calendar CalendarSource
	Analyzer Analyzer
	Store    cache.Store
	Notifier notify.Notifier

	// now is overridable in tests.
	Now func() time.Time
}

func (r *CacheRefresh) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes the pipeline once. The first error aborts the run, sends
// a failure notification, and leaves the cache untouched.
func (r *CacheRefresh) Run(ctx context.Context) (CacheResult, error) {
	start := r.now()

	if err := r.Store.TryLock(ctx, runLockName, runLockTTL); err != nil {
		return CacheResult{}, err
	}
	defer func() {
		if err := r.Store.Unlock(context.WithoutCancel(ctx), runLockName); err != nil {
			appLog.Error("release run lock failed", err, "job", cacheJobName)
		}
	}()

	res, err := r.run(ctx, start)
	if err != nil {
		sendReport(ctx, r.Notifier, model.RunReport{
			JobName:    cacheJobName,
			Success:    false,
			DurationMs: r.now().Sub(start).Milliseconds(),
			Timestamp:  nowISO(r.now()),
			Details:    model.RunDetails{Error: truncateError(err)},
		})
		return CacheResult{}, err
	}

	sendReport(ctx, r.Notifier, model.RunReport{
		JobName:    cacheJobName,
		Success:    true,
		DurationMs: res.DurationMs,
		Timestamp:  nowISO(r.now()),
		Details:    model.RunDetails{EventCount: res.EventCount},
	})
	return res, nil
}

func (r *CacheRefresh) run(ctx context.Context, start time.Time) (CacheResult, error) {
	appLog.Info("midnight cache refresh started")

	cohortEvents, err := r.Calendar.CohortEvents(ctx)
	if err != nil {
		return CacheResult{}, fmt.Errorf("fetch calendar: %w", err)
	}

	// The midnight run regenerates summaries without newsletter input.
	myWeek, err := r.Analyzer.AnalyzeMyWeek(ctx, cohortEvents, &model.NewsletterData{})
	if err != nil {
		return CacheResult{}, err
	}

	if err := r.Store.Set(ctx, cache.KeyCohortEvents, cohortEvents); err != nil {
		return CacheResult{}, err
	}
	if err := r.Store.Set(ctx, cache.KeyMyWeekData, myWeek); err != nil {
		return CacheResult{}, err
	}

	res := CacheResult{
		DurationMs: r.now().Sub(start).Milliseconds(),
		EventCount: cohortEvents.Total(),
	}
	appLog.Info("midnight cache refresh completed", "duration_ms", res.DurationMs, "events", res.EventCount)
	return res, nil
}
