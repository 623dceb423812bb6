package refresh

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Failsafes guard against caching garbage when the newsletter scrape
// degrades. Two checks are fatal (bad URL, zero sections); the rest
// accumulate warnings that ride along in the success notification.

const minIssueURLLen = 10

// checkIssueURL is fatal: an empty or implausibly short URL means the
// archive resolution went wrong.
func checkIssueURL(url string) error {
	if len(url) < minIssueURLLen {
		return fmt.Errorf("FAILSAFE: newsletter URL is empty or invalid: %q", url)
	}
	return nil
}

// checkSections is fatal: zero sections implies the scrape failed even
// though the page fetched.
func checkSections(count int) error {
	if count == 0 {
		return fmt.Errorf("FAILSAFE: newsletter has no sections - scraping may have failed")
	}
	return nil
}

// checkTitlePattern returns a warning when the title contains none of
// the expected organization-name substrings. Titles vary, so this never
// aborts the run.
func checkTitlePattern(title string, patterns []string) (string, bool) {
	lower := strings.ToLower(title)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return "", true
		}
	}
	return fmt.Sprintf("Title doesn't match expected patterns: %q", title), false
}

// titleDateRe extracts an M-D-YY(YY) or M/D/YY(YY) date from a title.
var titleDateRe = regexp.MustCompile(`(\d{1,2})[-/](\d{1,2})[-/](\d{2,4})`)

// checkStaleness extracts a date from the newsletter title and warns
// when it is older than staleAfterDays, or when no date is extractable.
// The returned warning is empty when the title looks fresh.
func checkStaleness(title string, now time.Time, staleAfterDays int) string {
	m := titleDateRe.FindStringSubmatch(title)
	if m == nil {
		return fmt.Sprintf("Could not extract date from title: %q", title)
	}

	month := m[1]
	day := m[2]
	year := m[3]
	if len(year) == 2 {
		year = "20" + year
	}

	issued, err := time.Parse("2006-1-2", fmt.Sprintf("%s-%s-%s", year, month, day))
	if err != nil {
		return fmt.Sprintf("Could not extract date from title: %q", title)
	}

	days := int(now.Sub(issued).Hours() / 24)
	if days > staleAfterDays {
		return fmt.Sprintf("Newsletter is %d days old - may be stale", days)
	}
	return ""
}
