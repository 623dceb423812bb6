package ics

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cohortdash/internal/config"
	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
)

// Reader produces the normalized, windowed, sorted event list consumed
// by the refresh pipelines and the events API.
type Reader struct {
	fetcher *Fetcher
	loc     *time.Location

	daysAhead int
	daysBack  int
	limit     int

	// now is overridable in tests.
	now func() time.Time
}

// NewReader creates a Reader over the configured calendar sources.
func NewReader(cfg config.CalendarConfig, loc *time.Location) *Reader {
	if loc == nil {
		loc = time.Local
	}
	return &Reader{
		fetcher:   NewFetcher(cfg),
		loc:       loc,
		daysAhead: cfg.DaysAhead,
		daysBack:  cfg.DaysBack,
		limit:     cfg.Limit,
		now:       time.Now,
	}
}

// Upcoming returns events within [now - daysBack, now + daysAhead],
// sorted ascending by start and truncated to the configured limit.
// It fails only when every ICS source fails.
func (r *Reader) Upcoming(ctx context.Context) ([]model.CalendarEvent, error) {
	res, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch ICS: %w", err)
	}

	parsed, err := ParseICS(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse ICS: %w", err)
	}

	now := r.now()
	rangeStart := now.AddDate(0, 0, -r.daysBack)
	rangeEnd := now.AddDate(0, 0, r.daysAhead)

	occs, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: r.loc,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
	})
	if err != nil {
		return nil, err
	}

	events := make([]model.CalendarEvent, 0, len(occs))
	for _, occ := range occs {
		if occ.Start.Before(rangeStart) || occ.Start.After(rangeEnd) {
			continue
		}
		events = append(events, occurrenceToEvent(occ, res.Source))
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start < events[j].Start
	})

	if r.limit > 0 && len(events) > r.limit {
		events = events[:r.limit]
	}

	appLog.Info("calendar read completed", "source", res.Source, "events", len(events))
	return events, nil
}

// CohortEvents buckets events into the two cohorts and the auxiliary
// source lists. Events tagged for a single cohort go only there;
// untagged events are shared and appear in both cohorts.
func (r *Reader) CohortEvents(ctx context.Context) (model.CohortEvents, error) {
	events, err := r.Upcoming(ctx)
	if err != nil {
		return model.CohortEvents{}, err
	}
	return BucketCohorts(events), nil
}

// BucketCohorts assigns events to cohort and auxiliary buckets based on
// ICS categories and summary tags.
func BucketCohorts(events []model.CalendarEvent) model.CohortEvents {
	var out model.CohortEvents

	for _, ev := range events {
		switch classifyAux(ev) {
		case "launch":
			out.Launch = append(out.Launch, ev)
		case "calBears":
			out.CalBears = append(out.CalBears, ev)
		case "campusGroups":
			out.CampusGroups = append(out.CampusGroups, ev)
		case "academicCalendar":
			out.AcademicCalendar = append(out.AcademicCalendar, ev)
		case "cmg":
			out.CMG = append(out.CMG, ev)
		}
		out.Original = append(out.Original, ev)

		blue, gold := classifyCohort(ev)
		if blue {
			bv := ev
			bv.Cohort = model.CohortBlue
			out.Blue = append(out.Blue, bv)
		}
		if gold {
			gv := ev
			gv.Cohort = model.CohortGold
			out.Gold = append(out.Gold, gv)
		}
	}

	return out
}

// classifyCohort reports which cohorts an event belongs to. Untagged
// events are shared.
func classifyCohort(ev model.CalendarEvent) (blue, gold bool) {
	blue = hasTag(ev, "blue")
	gold = hasTag(ev, "gold")
	if !blue && !gold {
		return true, true
	}
	return blue, gold
}

func hasTag(ev model.CalendarEvent, tag string) bool {
	for _, c := range ev.Categories {
		if strings.EqualFold(c, tag) {
			return true
		}
	}
	title := strings.ToLower(ev.Title)
	return strings.Contains(title, "["+tag+"]") ||
		strings.Contains(title, "("+tag+")") ||
		strings.Contains(title, tag+" cohort")
}

func classifyAux(ev model.CalendarEvent) string {
	probe := strings.ToLower(ev.Title + " " + strings.Join(ev.Categories, " "))
	switch {
	case strings.Contains(probe, "launch"):
		return "launch"
	case strings.Contains(probe, "cal bears"), strings.Contains(probe, "calbears"):
		return "calBears"
	case strings.Contains(probe, "campus group"), strings.Contains(probe, "campusgroups"):
		return "campusGroups"
	case strings.Contains(probe, "academic calendar"), strings.Contains(probe, "academic"):
		return "academicCalendar"
	case strings.Contains(probe, "cmg"), strings.Contains(probe, "career"):
		return "cmg"
	default:
		return ""
	}
}

// occurrenceToEvent converts an expanded occurrence to the wire shape.
//
// All-day timestamps are rebuilt from the local date components of the
// occurrence start at UTC midnight, so an all-day event on Nov 4 stays
// Nov 4 regardless of server timezone.
func occurrenceToEvent(occ Occurrence, source string) model.CalendarEvent {
	ev := model.CalendarEvent{
		UID:         occ.UID,
		Title:       occ.Summary,
		Start:       formatForStorage(occ.Start, occ.AllDay),
		Location:    occ.Location,
		URL:         occ.URL,
		AllDay:      occ.AllDay,
		Description: occ.Description,
		Source:      source,
		Organizer:   occ.Organizer,
		Status:      occ.Status,
		Categories:  occ.Categories,
	}
	if ev.Title == "" {
		ev.Title = "Untitled"
	}
	if !occ.End.IsZero() {
		ev.End = formatForStorage(occ.End, occ.AllDay)
	}
	return ev
}

func formatForStorage(t time.Time, allDay bool) string {
	if allDay {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	}
	return t.Format(time.RFC3339)
}
