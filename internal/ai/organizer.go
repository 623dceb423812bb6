package ai

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
)

const maxSectionTextLen = 4000

// organizedPayload is the schema the organizer prompt asks for.
type organizedPayload struct {
	Title    string `json:"title"`
	Sections []struct {
		SectionTitle string `json:"sectionTitle"`
		Items        []struct {
			Title string `json:"title"`
			HTML  string `json:"html"`
		} `json:"items"`
	} `json:"sections"`
	Reasoning string `json:"reasoning"`
}

// OrganizeNewsletter sends the raw scraped sections through the
// completion API and returns the structured newsletter. A response that
// does not match the schema is an ErrBadResponse.
func (c *Client) OrganizeNewsletter(ctx context.Context, sections []model.RawSection, issueURL, title string) (*model.NewsletterData, error) {
	start := time.Now()

	var payload organizedPayload
	if err := c.generateJSON(ctx, buildOrganizePrompt(sections, title), &payload); err != nil {
		return nil, fmt.Errorf("organize newsletter: %w", err)
	}
	if payload.Sections == nil {
		return nil, fmt.Errorf("%w: organizer returned no sections field", ErrBadResponse)
	}

	out := &model.NewsletterData{
		Title:     payload.Title,
		SourceURL: issueURL,
	}
	if out.Title == "" {
		out.Title = title
	}

	for _, sec := range payload.Sections {
		ms := model.NewsletterSection{SectionTitle: sec.SectionTitle}
		for _, item := range sec.Items {
			ms.Items = append(ms.Items, model.NewsletterItem{
				Title: item.Title,
				HTML:  item.HTML,
			})
		}
		out.Sections = append(out.Sections, ms)
	}

	out.AIDebug = &model.AIDebugInfo{
		Reasoning:        payload.Reasoning,
		TotalSections:    len(out.Sections),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}

	appLog.Info("newsletter organized", "sections", len(out.Sections), "ms", out.AIDebug.ProcessingTimeMs)
	return out, nil
}

// timeSensitivePayload is the schema of the per-item extraction pass.
type timeSensitivePayload struct {
	HasDates  bool     `json:"hasDates"`
	Dates     []string `json:"dates"`
	Deadline  string   `json:"deadline"`
	EventType string   `json:"eventType"`
	Priority  string   `json:"priority"`
}

// dateLikeRe accepts ISO dates and common M/D/YY(YY) forms.
var dateLikeRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}|\d{1,2}[-/]\d{1,2}([-/]\d{2,4})?)$`)

// ExtractTimeSensitive runs a second pass per item to attach scheduling
// metadata. Items without extractable dates are left untouched. API and
// schema errors abort the whole pass.
func (c *Client) ExtractTimeSensitive(ctx context.Context, data *model.NewsletterData) (*model.NewsletterData, error) {
	for si := range data.Sections {
		for ii := range data.Sections[si].Items {
			item := &data.Sections[si].Items[ii]

			var payload timeSensitivePayload
			if err := c.generateJSON(ctx, buildExtractPrompt(item.Title, item.HTML), &payload); err != nil {
				return nil, fmt.Errorf("extract time-sensitive data for %q: %w", item.Title, err)
			}

			if !payload.HasDates {
				continue
			}

			dates := validDates(payload.Dates)
			if len(dates) == 0 {
				continue
			}

			item.TimeSensitive = &model.TimeSensitive{
				Dates:     dates,
				Deadline:  payload.Deadline,
				EventType: defaultString(payload.EventType, "other"),
				Priority:  defaultString(payload.Priority, "medium"),
			}
		}
	}
	return data, nil
}

func validDates(in []string) []string {
	var out []string
	for _, d := range in {
		d = strings.TrimSpace(d)
		if dateLikeRe.MatchString(d) {
			out = append(out, d)
		}
	}
	return out
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func buildOrganizePrompt(sections []model.RawSection, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are organizing a weekly MBA program newsletter titled %q into clean sections for a dashboard.

Group related announcements, keep every item, and preserve each item's HTML.

Raw sections:
`, title)

	for i, sec := range sections {
		text := sec.Text
		if text == "" {
			text = sec.HTML
		}
		if len(text) > maxSectionTextLen {
			text = text[:maxSectionTextLen]
		}
		fmt.Fprintf(&b, "\n--- section %d: %s ---\n%s\n", i+1, sec.Title, text)
	}

	b.WriteString(`
Respond with JSON only, in this exact format:
{"title": "newsletter title", "sections": [{"sectionTitle": "...", "items": [{"title": "...", "html": "..."}]}], "reasoning": "one sentence on how you grouped things"}`)
	return b.String()
}

func buildExtractPrompt(title, html string) string {
	if len(html) > maxSectionTextLen {
		html = html[:maxSectionTextLen]
	}
	return fmt.Sprintf(`Extract time-sensitive information from this newsletter item.

Title: %s

Content:
%s

Respond with JSON only, in this exact format:
{"hasDates": true|false, "dates": ["YYYY-MM-DD"], "deadline": "YYYY-MM-DD or empty", "eventType": "deadline|event|social|academic|other", "priority": "high|medium|low"}

Set hasDates to false when the item mentions no concrete dates.`, title, html)
}
