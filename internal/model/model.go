package model

import "time"

// Cohort identifies one of the two parallel student groups.
type Cohort string

const (
	CohortBlue Cohort = "blue"
	CohortGold Cohort = "gold"
)

// CalendarEvent represents one occurrence from any calendar source,
// after recurrence expansion and timezone normalization.
//
// Start is always an RFC3339 timestamp. For all-day events it is rebuilt
// from the local date components of the parsed start at UTC midnight, so
// the calendar day never shifts with the server timezone.
type CalendarEvent struct {
	UID         string   `json:"uid,omitempty"`
	Title       string   `json:"title"`
	Start       string   `json:"start"`
	End         string   `json:"end,omitempty"`
	Location    string   `json:"location,omitempty"`
	URL         string   `json:"url,omitempty"`
	AllDay      bool     `json:"allDay"`
	Description string   `json:"description,omitempty"`
	Cohort      Cohort   `json:"cohort,omitempty"`
	Source      string   `json:"source,omitempty"`
	Organizer   string   `json:"organizer,omitempty"`
	Status      string   `json:"status,omitempty"`
	Categories  []string `json:"categories,omitempty"`
}

// StartTime parses the event start. A zero time and false are returned
// when the stored value is not a valid RFC3339 timestamp.
func (e CalendarEvent) StartTime() (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, e.Start)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// CohortEvents maps cohort keys and auxiliary source keys to ordered
// event sequences. Within each sequence events are sorted ascending by
// start time.
type CohortEvents struct {
	Blue             []CalendarEvent `json:"blue"`
	Gold             []CalendarEvent `json:"gold"`
	Launch           []CalendarEvent `json:"launch,omitempty"`
	CalBears         []CalendarEvent `json:"calBears,omitempty"`
	CampusGroups     []CalendarEvent `json:"campusGroups,omitempty"`
	AcademicCalendar []CalendarEvent `json:"academicCalendar,omitempty"`
	CMG              []CalendarEvent `json:"cmg,omitempty"`
	Original         []CalendarEvent `json:"original,omitempty"`
}

// Total returns the number of cohort-visible events (blue + gold).
func (c CohortEvents) Total() int {
	return len(c.Blue) + len(c.Gold)
}

// RawSection is one block of newsletter content as scraped, before any
// AI organization.
type RawSection struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
	Text  string `json:"text,omitempty"`
}

// TimeSensitive carries per-item scheduling metadata extracted by the
// second AI pass. Dates are pre-validated date-like strings.
type TimeSensitive struct {
	Dates     []string `json:"dates"`
	Deadline  string   `json:"deadline,omitempty"`
	EventType string   `json:"eventType"`
	Priority  string   `json:"priority"`
}

// NewsletterItem is one entry within an organized newsletter section.
type NewsletterItem struct {
	Title         string         `json:"title"`
	HTML          string         `json:"html"`
	TimeSensitive *TimeSensitive `json:"timeSensitive,omitempty"`
}

// NewsletterSection groups organized items under a section heading.
type NewsletterSection struct {
	SectionTitle string           `json:"sectionTitle"`
	Items        []NewsletterItem `json:"items"`
}

// AIDebugInfo records how the organizer arrived at its structure.
type AIDebugInfo struct {
	Reasoning        string   `json:"reasoning,omitempty"`
	SectionDecisions []string `json:"sectionDecisions,omitempty"`
	EdgeCasesHandled []string `json:"edgeCasesHandled,omitempty"`
	TotalSections    int      `json:"totalSections,omitempty"`
	ProcessingTimeMs int64    `json:"processingTime,omitempty"`
}

// NewsletterData is the organized newsletter as produced by the AI
// organizer and enriched by the time-sensitive extractor.
type NewsletterData struct {
	Title     string              `json:"title"`
	SourceURL string              `json:"sourceUrl,omitempty"`
	Sections  []NewsletterSection `json:"sections"`
	AIDebug   *AIDebugInfo        `json:"aiDebugInfo,omitempty"`
}

// WeekSummary is the natural-language "my week" digest for one cohort.
type WeekSummary struct {
	Overview  string   `json:"overview"`
	KeyEvents []string `json:"keyEvents,omitempty"`
	Deadlines []string `json:"deadlines,omitempty"`
}

// MyWeekData holds per-cohort summaries plus the time spent generating
// them.
type MyWeekData struct {
	Blue             *WeekSummary `json:"blue,omitempty"`
	Gold             *WeekSummary `json:"gold,omitempty"`
	ProcessingTimeMs int64        `json:"processingTime"`
}

// ProcessingInfo records stage timings for one refresh run.
type ProcessingInfo struct {
	TotalTimeMs      int64  `json:"totalTime"`
	NewsletterTimeMs int64  `json:"newsletterTime"`
	CalendarTimeMs   int64  `json:"calendarTime"`
	MyWeekTimeMs     int64  `json:"myWeekTime"`
	Timestamp        string `json:"timestamp"`
}

// DashboardData is the composite cache payload written as a single key
// after a successful refresh cycle. It is fully replaced on each run,
// never partially updated.
type DashboardData struct {
	NewsletterData *NewsletterData `json:"newsletterData"`
	CohortEvents   CohortEvents    `json:"cohortEvents"`
	MyWeekData     *MyWeekData     `json:"myWeekData"`
	ProcessingInfo ProcessingInfo  `json:"processingInfo"`
}

// RunDetails is the free-form portion of a RunReport.
type RunDetails struct {
	Error             string   `json:"error,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
	NewsletterTitle   string   `json:"newsletterTitle,omitempty"`
	NewsletterURL     string   `json:"newsletterUrl,omitempty"`
	SectionsProcessed int      `json:"sectionsProcessed,omitempty"`
	EventCount        int      `json:"eventCount,omitempty"`
}

// RunReport is the notification payload dispatched once per refresh run.
type RunReport struct {
	JobName    string     `json:"jobName"`
	Success    bool       `json:"success"`
	DurationMs int64      `json:"durationMs"`
	Timestamp  string     `json:"timestamp"`
	Details    RunDetails `json:"details"`
}
