// Package notify dispatches per-run reports to an operator channel.
package notify

import (
	"context"

	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
)

// Notifier delivers one RunReport per refresh run.
type Notifier interface {
	Send(ctx context.Context, report model.RunReport) error
}

// LogNotifier writes reports to the application log. It is the default
// when no outbound channel is configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, report model.RunReport) error {
	if report.Success {
		appLog.Info("run report",
			"job", report.JobName,
			"duration_ms", report.DurationMs,
			"warnings", len(report.Details.Warnings),
		)
	} else {
		appLog.Info("run report (failure)",
			"job", report.JobName,
			"duration_ms", report.DurationMs,
			"error", report.Details.Error,
		)
	}
	return nil
}
