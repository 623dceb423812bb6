package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cohortdash/internal/model"
)

func weekEvents() model.CohortEvents {
	return model.CohortEvents{
		Blue: []model.CalendarEvent{{Title: "Ops lecture", Start: "2025-11-18T18:00:00Z"}},
		Gold: []model.CalendarEvent{{Title: "Stats quiz", Start: "2025-11-19T18:00:00Z"}},
	}
}

func TestAnalyzeMyWeek(t *testing.T) {
	c, calls := newTestClient(t,
		geminiText(`{"overview": "A busy week for blue.", "keyEvents": ["Ops lecture"], "deadlines": []}`),
		geminiText(`{"overview": "A quiz week for gold.", "keyEvents": ["Stats quiz"], "deadlines": ["Problem set 4"]}`),
	)

	data, err := c.AnalyzeMyWeek(context.Background(), weekEvents(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, *calls)

	require.NotNil(t, data.Blue)
	assert.Equal(t, "A busy week for blue.", data.Blue.Overview)
	assert.Equal(t, []string{"Ops lecture"}, data.Blue.KeyEvents)

	require.NotNil(t, data.Gold)
	assert.Equal(t, "A quiz week for gold.", data.Gold.Overview)
	assert.Equal(t, []string{"Problem set 4"}, data.Gold.Deadlines)
}

func TestAnalyzeMyWeekEmptyOverview(t *testing.T) {
	c, _ := newTestClient(t, geminiText(`{"overview": "", "keyEvents": [], "deadlines": []}`))

	_, err := c.AnalyzeMyWeek(context.Background(), weekEvents(), nil)
	assert.ErrorIs(t, err, ErrBadResponse)
}

func TestBuildWeekPromptIncludesNewsletterItems(t *testing.T) {
	news := &model.NewsletterData{
		Sections: []model.NewsletterSection{
			{
				SectionTitle: "Academics",
				Items: []model.NewsletterItem{
					{Title: "Drop deadline", TimeSensitive: &model.TimeSensitive{
						Dates:    []string{"2025-11-21"},
						Priority: "high",
					}},
					{Title: "Reading list"},
				},
			},
		},
	}

	prompt := buildWeekPrompt(model.CohortBlue, weekEvents().Blue, news)
	assert.Contains(t, prompt, "blue cohort")
	assert.Contains(t, prompt, "Ops lecture")
	assert.Contains(t, prompt, "Drop deadline (dates: 2025-11-21, priority: high)")
	assert.NotContains(t, prompt, "Reading list")
}

func TestBuildWeekPromptNoEvents(t *testing.T) {
	prompt := buildWeekPrompt(model.CohortGold, nil, nil)
	assert.Contains(t, prompt, "(none)")
}
