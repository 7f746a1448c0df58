// Package confluence scrapes wiki pages for meeting minutes and updates.
package confluence

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	backoff "github.com/cenkalti/backoff/v4"

	"roundup/internal/config"
	"roundup/internal/core"
	"roundup/internal/logger"
	"roundup/internal/normalize"
	"roundup/internal/summarize"
)

const (
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// lookbackDays is the window within which linked meeting pages are
	// eligible for inclusion at all.
	lookbackDays = 7

	// maxMeetingLinks bounds sub-page fetch fan-out and summarization cost
	// per run.
	maxMeetingLinks = 3

	// indexLinkThreshold distinguishes "this page links to meetings" from
	// "this page happens to mention one date".
	indexLinkThreshold = 2

	// maxPageText caps how much page text is passed to the summarizer.
	maxPageText = 15000

	// previewLength caps the body preview taken from non-index pages.
	previewLength = 500

	// Retry policy for page fetches.
	fetchAttempts       = 3
	fetchBackoffInitial = 2 * time.Second
	fetchBackoffMax     = 10 * time.Second
)

var (
	isoDatePattern     = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
	ticketPattern      = regexp.MustCompile(`[A-Z][A-Z0-9]+-\d+`)
	votePattern        = regexp.MustCompile(`(?i)marked ready for vote`)
	titleSuffixPattern = regexp.MustCompile(`\s*-\s*.*\s*-\s*Confluence\s*$`)
	lastUpdatedPattern = regexp.MustCompile(`(?i)last updated[^\n]*?on\s+(\w+\s+\d{1,2},?\s+\d{4})`)
	attendeesPattern   = regexp.MustCompile(`(?i)attendees[^\n]*\n((?:[^\n]+\n?)*?)(?:\n\n|$)`)
	newlineRunPattern  = regexp.MustCompile(`\n{3,}`)
)

// MeetingLink is one dated sub-page discovered on an index page.
type MeetingLink struct {
	URL   string
	Date  time.Time
	Title string
}

// Scraper extracts digest content from configured Confluence sources.
type Scraper struct {
	client     *http.Client
	baseURL    string
	summarizer summarize.Summarizer // nil when no AI capability is configured
	fallback   NoteStats

	// Retry intervals, overridable in tests.
	backoffInitial time.Duration
	backoffMax     time.Duration
}

// NewScraper creates a Confluence scraper. baseURL resolves relative meeting
// links; summarizer may be nil, which selects the deterministic NoteStats
// fallback for all summaries.
func NewScraper(baseURL string, timeout time.Duration, summarizer summarize.Summarizer) *Scraper {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Scraper{
		client:         &http.Client{Timeout: timeout},
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		summarizer:     summarizer,
		backoffInitial: fetchBackoffInitial,
		backoffMax:     fetchBackoffMax,
	}
}

// fetchPage fetches a page with bounded retry. The final failure is returned
// to the caller, which downgrades it to a per-source skip.
func (s *Scraper) fetchPage(ctx context.Context, url string) (string, error) {
	var body string

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to build request for %s: %w", url, err))
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch %s: %w", url, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("failed to fetch %s: status code %d", url, resp.StatusCode)
		}

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body from %s: %w", url, err)
		}
		body = string(data)
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.backoffInitial
	bo.MaxInterval = s.backoffMax

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, fetchAttempts-1), ctx))
	if err != nil {
		return "", err
	}
	return body, nil
}

// mainContent selects the page's main-content region, falling back to body.
func mainContent(doc *goquery.Document) *goquery.Selection {
	sel := doc.Find("#main-content")
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	return sel
}

// isIndexPage reports whether a page is an index listing multiple meetings:
// at least indexLinkThreshold outbound links whose text contains an ISO date.
func isIndexPage(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}

	count := 0
	mainContent(doc).Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		if isoDatePattern.MatchString(a.Text()) {
			count++
		}
	})
	return count >= indexLinkThreshold
}

// extractMeetingLinks scans the main-content region for links whose text
// contains an ISO date, keeps those within the lookback window, and returns
// the maxMeetingLinks most recent, newest first.
func (s *Scraper) extractMeetingLinks(html string, now time.Time) []MeetingLink {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	cutoff := now.AddDate(0, 0, -lookbackDays)
	var links []MeetingLink

	mainContent(doc).Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		text := strings.TrimSpace(a.Text())
		match := isoDatePattern.FindString(text)
		if match == "" {
			return
		}

		date, err := time.Parse("2006-01-02", match)
		if err != nil || date.Before(cutoff) {
			return
		}

		href, _ := a.Attr("href")
		if strings.HasPrefix(href, "/") {
			href = s.baseURL + href
		}

		links = append(links, MeetingLink{URL: href, Date: date, Title: text})
	})

	sort.SliceStable(links, func(i, j int) bool { return links[i].Date.After(links[j].Date) })
	if len(links) > maxMeetingLinks {
		links = links[:maxMeetingLinks]
	}
	return links
}

// extractMainText extracts clean, newline-structured text from a meeting
// notes page, capped at maxPageText characters.
func extractMainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, header, footer").Remove()

	sel := mainContent(doc)
	var b strings.Builder
	sel.Find("p, h1, h2, h3, h4, h5, h6, li, td, th, blockquote, pre").Each(func(_ int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		if text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}
	})

	text := b.String()
	if text == "" {
		text = strings.TrimSpace(sel.Text())
	}

	text = newlineRunPattern.ReplaceAllString(text, "\n\n")
	return normalize.Truncate(text, maxPageText)
}

// summarizeMeeting runs the configured summarizer, downgrading any failure
// to the deterministic fallback.
func (s *Scraper) summarizeMeeting(ctx context.Context, text, title string) string {
	if s.summarizer != nil {
		out, err := s.summarizer.Summarize(ctx, text, title)
		if err == nil {
			return strings.TrimSpace(out)
		}
		logger.Warn("AI summarization failed, using fallback", "meeting", title, "error", err.Error())
	}
	out, _ := s.fallback.Summarize(ctx, text, title)
	return out
}

// ScrapeSource scrapes one configured source, following links when the page
// is a meeting index. It returns nil when the source yields nothing; no
// failure escapes to the caller.
func (s *Scraper) ScrapeSource(ctx context.Context, source config.ConfluenceSource) *core.PageContent {
	logger.Info("Scraping Confluence source", "work_group", source.WorkGroup, "url", source.URL)

	html, err := s.fetchPage(ctx, source.URL)
	if err != nil {
		logger.Error("Failed to scrape source", err, "url", source.URL)
		return nil
	}

	if isIndexPage(html) {
		logger.Info("Detected index page, looking for meeting links", "url", source.URL)
		if content := s.scrapeIndexPage(ctx, source, html); content != nil {
			return content
		}
	}

	return s.scrapeSinglePage(source, html)
}

// scrapeIndexPage fetches and summarizes each in-window meeting sub-page.
// A failure on one meeting skips that meeting only.
func (s *Scraper) scrapeIndexPage(ctx context.Context, source config.ConfluenceSource, html string) *core.PageContent {
	links := s.extractMeetingLinks(html, time.Now())
	if len(links) == 0 {
		return nil
	}
	logger.Info("Found recent meetings", "count", len(links), "source", source.Name)

	var summaries []string
	var decisions []string
	var mostRecent *time.Time

	for _, meeting := range links {
		meetingHTML, err := s.fetchPage(ctx, meeting.URL)
		if err != nil {
			logger.Warn("Failed to fetch meeting page", "url", meeting.URL, "error", err.Error())
			continue
		}

		text := extractMainText(meetingHTML)
		summary := s.summarizeMeeting(ctx, text, meeting.Title)
		summaries = append(summaries, fmt.Sprintf("**%s**: %s", meeting.Date.Format("Jan 02"), summary))

		if mostRecent == nil || meeting.Date.After(*mostRecent) {
			d := meeting.Date
			mostRecent = &d
		}

		if votes := len(votePattern.FindAllString(text, -1)); votes > 0 {
			decisions = append(decisions, fmt.Sprintf("%d tickets ready for vote", votes))
		}
	}

	if len(summaries) == 0 {
		return nil
	}
	if decisions == nil {
		decisions = []string{}
	}

	return &core.PageContent{
		SourceName:   source.Name,
		WorkGroup:    source.WorkGroup,
		URL:          source.URL,
		Title:        source.Name,
		Content:      strings.Join(summaries, "\n\n"),
		LastModified: mostRecent,
		ScrapedAt:    time.Now().UTC(),
		MeetingDate:  mostRecent,
		Decisions:    decisions,
		ActionItems:  []string{},
	}
}

// scrapeSinglePage extracts a preview directly from a non-index page.
func (s *Scraper) scrapeSinglePage(source config.ConfluenceSource, html string) *core.PageContent {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Error("Failed to parse page", err, "url", source.URL)
		return nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = source.Name
	}
	title = titleSuffixPattern.ReplaceAllString(title, "")

	content := normalize.Truncate(strings.Join(strings.Fields(mainContent(doc).Text()), " "), previewLength)

	var lastModified *time.Time
	if m := lastUpdatedPattern.FindStringSubmatch(html); m != nil {
		if parsed, err := dateparse.ParseAny(m[1]); err == nil {
			lastModified = &parsed
		}
	}

	return &core.PageContent{
		SourceName:   source.Name,
		WorkGroup:    source.WorkGroup,
		URL:          source.URL,
		Title:        title,
		Content:      content,
		LastModified: lastModified,
		ScrapedAt:    time.Now().UTC(),
		Decisions:    []string{},
		ActionItems:  []string{},
	}
}

// ScrapeAll scrapes every configured source sequentially, returning the
// successful results. It never fails as a whole.
func (s *Scraper) ScrapeAll(ctx context.Context, sources []config.ConfluenceSource) []core.PageContent {
	var results []core.PageContent
	for _, source := range sources {
		if content := s.ScrapeSource(ctx, source); content != nil {
			results = append(results, *content)
		}
	}
	logger.Info("Confluence scrape complete", "scraped", len(results), "configured", len(sources))
	return results
}
