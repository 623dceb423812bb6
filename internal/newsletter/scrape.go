package newsletter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	appLog "cohortdash/internal/log"
	"cohortdash/internal/model"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; cohortdash/1.0)"

// ErrNoIssues is returned when the archive page contains no issue links.
var ErrNoIssues = errors.New("newsletter: no issue links found in archive")

// Scraped is the raw newsletter before AI organization.
type Scraped struct {
	Title    string
	Sections []model.RawSection
}

// Scraper locates and extracts newsletter issues from an archive page.
type Scraper struct {
	httpClient     *http.Client
	archiveURL     string
	renderFallback bool
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Scraper) {
		s.httpClient.Timeout = d
	}
}

// WithRenderFallback enables headless rendering of the archive page when
// static HTML yields no issue links.
func WithRenderFallback(enabled bool) Option {
	return func(s *Scraper) {
		s.renderFallback = enabled
	}
}

// NewScraper creates a Scraper for the given archive URL.
func NewScraper(archiveURL string, opts ...Option) *Scraper {
	s := &Scraper{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		archiveURL: archiveURL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LatestURL returns the URL of the most recent newsletter issue from the
// archive page. Archive pages list issues newest-first, so the first
// issue-looking link wins.
func (s *Scraper) LatestURL(ctx context.Context) (string, error) {
	if s.archiveURL == "" {
		return "", errors.New("newsletter: archive URL is not configured")
	}

	body, err := s.get(ctx, s.archiveURL)
	if err != nil {
		return "", fmt.Errorf("fetch archive: %w", err)
	}

	link, err := firstIssueLink(body, s.archiveURL)
	if errors.Is(err, ErrNoIssues) && s.renderFallback {
		appLog.Info("newsletter archive had no static links, rendering", "url", s.archiveURL)
		rendered, rerr := renderPage(ctx, s.archiveURL)
		if rerr != nil {
			return "", fmt.Errorf("render archive: %w", rerr)
		}
		link, err = firstIssueLink(rendered, s.archiveURL)
	}
	if err != nil {
		return "", err
	}

	appLog.Info("newsletter latest URL resolved", "url", link)
	return link, nil
}

// Scrape fetches one newsletter issue and extracts its title and raw
// sections.
func (s *Scraper) Scrape(ctx context.Context, issueURL string) (Scraped, error) {
	parsed, err := url.Parse(issueURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Scraped{}, fmt.Errorf("newsletter: invalid issue URL %q", issueURL)
	}

	body, err := s.get(ctx, issueURL)
	if err != nil {
		return Scraped{}, fmt.Errorf("fetch issue: %w", err)
	}

	article, err := readability.FromReader(strings.NewReader(body), parsed)
	if err != nil {
		return Scraped{}, fmt.Errorf("parse issue: %w", err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = pageTitle(body)
	}

	sections := splitSections(article.Content)
	appLog.Info("newsletter scraped", "url", issueURL, "title", title, "sections", len(sections))

	return Scraped{Title: title, Sections: sections}, nil
}

func (s *Scraper) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// issueHrefRe matches hrefs that look like newsletter issue permalinks
// (Mailchimp campaign archives and similar).
var issueHrefRe = regexp.MustCompile(`(?i)(campaign-archive|/issues?/|permalink|/e/)`)

// firstIssueLink walks anchors in document order and returns the first
// href matching the issue-link shape, resolved against baseURL.
func firstIssueLink(doc, baseURL string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}

	tok := html.NewTokenizer(strings.NewReader(doc))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			return "", ErrNoIssues
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, hasAttr := tok.TagName()
		if string(name) != "a" || !hasAttr {
			continue
		}
		for {
			key, val, more := tok.TagAttr()
			if string(key) == "href" {
				href := strings.TrimSpace(string(val))
				if href != "" && issueHrefRe.MatchString(href) {
					ref, perr := url.Parse(href)
					if perr == nil {
						return base.ResolveReference(ref).String(), nil
					}
				}
			}
			if !more {
				break
			}
		}
	}
}

var (
	headingRe   = regexp.MustCompile(`(?is)<h[1-3][^>]*>(.*?)</h[1-3]>`)
	tagStripRe  = regexp.MustCompile(`(?s)<[^>]+>`)
	pageTitleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
)

// splitSections partitions article HTML into sections at h1-h3 headings.
// Content before the first heading becomes an untitled leading section.
func splitSections(content string) []model.RawSection {
	matches := headingRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		text := strings.TrimSpace(stripTags(content))
		if text == "" {
			return nil
		}
		return []model.RawSection{{Title: "", HTML: content, Text: text}}
	}

	var sections []model.RawSection

	if lead := strings.TrimSpace(content[:matches[0][0]]); stripTags(lead) != "" {
		sections = append(sections, model.RawSection{
			HTML: lead,
			Text: strings.TrimSpace(stripTags(lead)),
		})
	}

	for i, m := range matches {
		title := strings.TrimSpace(stripTags(content[m[2]:m[3]]))
		bodyStart := m[1]
		bodyEnd := len(content)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		body := content[bodyStart:bodyEnd]
		text := strings.TrimSpace(stripTags(body))
		if title == "" && text == "" {
			continue
		}
		sections = append(sections, model.RawSection{Title: title, HTML: body, Text: text})
	}

	return sections
}

func stripTags(s string) string {
	return tagStripRe.ReplaceAllString(s, " ")
}

func pageTitle(doc string) string {
	if m := pageTitleRe.FindStringSubmatch(doc); len(m) > 1 {
		return strings.TrimSpace(stripTags(m[1]))
	}
	return ""
}
