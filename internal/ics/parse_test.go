package ics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timedEventICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:timed-1@example.edu
DTSTART:20251104T180000Z
DTEND:20251104T210000Z
SUMMARY:Marketing Lecture
LOCATION:Room N340
DESCRIPTION:Week 10 lecture
ORGANIZER:mailto:prof@example.edu
STATUS:CONFIRMED
CATEGORIES:Gold,Academic
URL:https://example.edu/events/1
END:VEVENT
END:VCALENDAR
`

const allDayEventICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:allday-1@example.edu
DTSTART;VALUE=DATE:20251104
DTEND;VALUE=DATE:20251105
SUMMARY:Quiz 1
END:VEVENT
END:VCALENDAR
`

const midnightBoundsICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
UID:midnight-1@example.edu
DTSTART:20251104T000000Z
DTEND:20251105T000000Z
SUMMARY:Residency Day
END:VEVENT
END:VCALENDAR
`

func TestParseICSTimedEvent(t *testing.T) {
	events, err := ParseICS([]byte(timedEventICS))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "timed-1@example.edu", ev.UID)
	assert.Equal(t, "Marketing Lecture", ev.Summary)
	assert.Equal(t, "Room N340", ev.Location)
	assert.Equal(t, "Week 10 lecture", ev.Description)
	assert.Equal(t, "prof@example.edu", ev.Organizer)
	assert.Equal(t, "CONFIRMED", ev.Status)
	assert.Equal(t, []string{"Gold", "Academic"}, ev.Categories)
	assert.Equal(t, "https://example.edu/events/1", ev.URL)
	assert.False(t, ev.AllDay)
	assert.Equal(t, 18, ev.Start.UTC().Hour())
}

func TestParseICSAllDayByValueDate(t *testing.T) {
	events, err := ParseICS([]byte(allDayEventICS))
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.True(t, ev.AllDay)
	assert.Equal(t, 2025, ev.Start.Year())
	assert.Equal(t, 11, int(ev.Start.Month()))
	assert.Equal(t, 4, ev.Start.Day())
}

func TestParseICSAllDayByMidnightBounds(t *testing.T) {
	// Some feeds emit all-day events as DATE-TIME with both bounds on
	// midnight.
	events, err := ParseICS([]byte(midnightBoundsICS))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
}

func TestParseICSSkipsEventWithoutUID(t *testing.T) {
	body := `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//EN
BEGIN:VEVENT
DTSTART:20251104T180000Z
SUMMARY:No UID
END:VEVENT
BEGIN:VEVENT
UID:ok@example.edu
DTSTART:20251105T180000Z
SUMMARY:Has UID
END:VEVENT
END:VCALENDAR
`
	events, err := ParseICS([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok@example.edu", events[0].UID)
}

func TestParseICSEmptyBody(t *testing.T) {
	_, err := ParseICS(nil)
	assert.Error(t, err)
}
