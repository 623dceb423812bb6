package ics

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortdash/internal/config"
	"cohortdash/internal/model"
)

func serveICS(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func testReader(t *testing.T, icsBody string, now time.Time, limit int) *Reader {
	t.Helper()
	server := serveICS(t, icsBody)

	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	r := NewReader(config.CalendarConfig{
		URL:       server.URL,
		DaysAhead: 150,
		DaysBack:  120,
		Limit:     limit,
		CacheDir:  t.TempDir(),
	}, loc)
	r.now = func() time.Time { return now }
	return r
}

func TestUpcomingAllDayNormalization(t *testing.T) {
	body := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:quiz@example.edu
DTSTART;VALUE=DATE:20251104
SUMMARY:Quiz 1
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	r := testReader(t, body, now, 150)

	events, err := r.Upcoming(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.True(t, ev.AllDay)
	// All-day events keep their calendar day regardless of server or
	// display timezone: midnight UTC on the source date.
	assert.Equal(t, "2025-11-04T00:00:00Z", ev.Start)
	assert.Equal(t, "Quiz 1", ev.Title)
}

func TestUpcomingSortedAndCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\nVERSION:2.0\nPRODID:-//test//EN\n")
	// Emit events in reverse chronological order to prove sorting.
	for i := 9; i >= 0; i-- {
		fmt.Fprintf(&b, "BEGIN:VEVENT\nUID:ev-%d@example.edu\nDTSTART:2025110%dT1%d0000Z\nSUMMARY:Event %d\nEND:VEVENT\n", i, (i%9)+1, i, i)
	}
	b.WriteString("END:VCALENDAR\n")

	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	r := testReader(t, b.String(), now, 5)

	events, err := r.Upcoming(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, len(events), 5)

	for i := 1; i < len(events); i++ {
		assert.LessOrEqual(t, events[i-1].Start, events[i].Start,
			"events must be sorted ascending by start")
	}
}

func TestUpcomingWindowFiltering(t *testing.T) {
	body := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:ancient@example.edu
DTSTART:20240101T100000Z
SUMMARY:Ancient
END:VEVENT
BEGIN:VEVENT
UID:recent@example.edu
DTSTART:20251001T100000Z
SUMMARY:Recent
END:VEVENT
BEGIN:VEVENT
UID:far@example.edu
DTSTART:20270101T100000Z
SUMMARY:Far Future
END:VEVENT
END:VCALENDAR
`
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	r := testReader(t, body, now, 150)

	events, err := r.Upcoming(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Recent", events[0].Title)
}

func TestUpcomingAllSourcesFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	r := NewReader(config.CalendarConfig{
		URL:       server.URL,
		File:      "/nonexistent/calendar.ics",
		DaysAhead: 150,
		DaysBack:  120,
		Limit:     150,
		CacheDir:  t.TempDir(),
	}, time.UTC)

	_, err := r.Upcoming(context.Background())
	assert.Error(t, err)
}

func TestBucketCohorts(t *testing.T) {
	events := []model.CalendarEvent{
		{Title: "Ops Lecture", Categories: []string{"Blue"}},
		{Title: "Finance Lecture", Categories: []string{"Gold"}},
		{Title: "[blue] Study Group"},
		{Title: "Commencement"},
		{Title: "Cal Bears Tailgate", Categories: []string{"Cal Bears"}},
	}

	buckets := BucketCohorts(events)

	assert.Len(t, buckets.Blue, 4) // two tagged blue + two shared
	assert.Len(t, buckets.Gold, 3) // one tagged gold + two shared
	assert.Len(t, buckets.Original, 5)
	assert.Len(t, buckets.CalBears, 1)

	for _, ev := range buckets.Blue {
		assert.Equal(t, model.CohortBlue, ev.Cohort)
	}
	for _, ev := range buckets.Gold {
		assert.Equal(t, model.CohortGold, ev.Cohort)
	}
}
