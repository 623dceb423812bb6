package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
)

const maxEventsInPrompt = 40

// weekPayload is the schema of the per-cohort my-week response.
type weekPayload struct {
	Overview  string   `json:"overview"`
	KeyEvents []string `json:"keyEvents"`
	Deadlines []string `json:"deadlines"`
}

// AnalyzeMyWeek produces a natural-language weekly digest per cohort
// from the calendar events and any organized newsletter data. A nil or
// empty newsletter is fine; the midnight refresh runs without one.
func (c *Client) AnalyzeMyWeek(ctx context.Context, events model.CohortEvents, news *model.NewsletterData) (*model.MyWeekData, error) {
	start := time.Now()
	out := &model.MyWeekData{}

	blue, err := c.analyzeCohort(ctx, model.CohortBlue, events.Blue, news)
	if err != nil {
		return nil, fmt.Errorf("my-week analysis (blue): %w", err)
	}
	out.Blue = blue

	gold, err := c.analyzeCohort(ctx, model.CohortGold, events.Gold, news)
	if err != nil {
		return nil, fmt.Errorf("my-week analysis (gold): %w", err)
	}
	out.Gold = gold

	out.ProcessingTimeMs = time.Since(start).Milliseconds()
	appLog.Info("my-week analysis completed", "ms", out.ProcessingTimeMs)
	return out, nil
}

func (c *Client) analyzeCohort(ctx context.Context, cohort model.Cohort, events []model.CalendarEvent, news *model.NewsletterData) (*model.WeekSummary, error) {
	var payload weekPayload
	if err := c.generateJSON(ctx, buildWeekPrompt(cohort, events, news), &payload); err != nil {
		return nil, err
	}
	if payload.Overview == "" {
		return nil, fmt.Errorf("%w: empty overview", ErrBadResponse)
	}
	return &model.WeekSummary{
		Overview:  payload.Overview,
		KeyEvents: payload.KeyEvents,
		Deadlines: payload.Deadlines,
	}, nil
}

func buildWeekPrompt(cohort model.Cohort, events []model.CalendarEvent, news *model.NewsletterData) string {
	var b strings.Builder
	fmt.Fprintf(&b, `Write a short "my week" summary for the %s cohort of an evening/weekend MBA program.

Upcoming calendar events:
`, cohort)

	if len(events) == 0 {
		b.WriteString("(none)\n")
	}
	for i, ev := range events {
		if i >= maxEventsInPrompt {
			break
		}
		line := ev.Start + " " + ev.Title
		if ev.Location != "" {
			line += " @ " + ev.Location
		}
		b.WriteString(line + "\n")
	}

	if news != nil && len(news.Sections) > 0 {
		b.WriteString("\nTime-sensitive newsletter items:\n")
		for _, sec := range news.Sections {
			for _, item := range sec.Items {
				if item.TimeSensitive == nil {
					continue
				}
				fmt.Fprintf(&b, "%s (dates: %s, priority: %s)\n",
					item.Title,
					strings.Join(item.TimeSensitive.Dates, ", "),
					item.TimeSensitive.Priority,
				)
			}
		}
	}

	b.WriteString(`
Respond with JSON only, in this exact format:
{"overview": "2-3 sentence plain-language summary", "keyEvents": ["..."], "deadlines": ["..."]}`)
	return b.String()
}
