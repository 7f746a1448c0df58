package digest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"roundup/internal/core"
	"roundup/internal/normalize"
)

const (
	// freshDays is the window within which content counts as having updates.
	freshDays = 7

	// agingDays is the window beyond fresh within which content is shown
	// with a relative age. Older content gets an absolute date.
	agingDays = 30

	// DefaultTitle heads the digest email subject.
	DefaultTitle = "FHIR Community Digest"
)

var isoDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// freshnessLabel renders a timestamp relative to now. Within a week the
// label is relative, within a month it is a day count, beyond that it is
// the absolute date.
func freshnessLabel(t time.Time, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return "today"
	case days == 1:
		return "yesterday"
	case days <= agingDays:
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("Jan 2, 2006")
	}
}

// latestContentDate finds the most recent ISO date mentioned in the text.
// Used when a page carries no explicit modification timestamp.
func latestContentDate(text string) *time.Time {
	var latest *time.Time
	for _, match := range isoDatePattern.FindAllString(text, -1) {
		parsed, err := time.Parse("2006-01-02", match)
		if err != nil {
			continue
		}
		if latest == nil || parsed.After(*latest) {
			latest = &parsed
		}
	}
	return latest
}

// SummarizeConfluence converts one scraped page into a digest-ready summary.
func SummarizeConfluence(page core.PageContent, now time.Time) core.ContentSummary {
	effective := page.LastModified
	if effective == nil {
		effective = page.MeetingDate
	}
	if effective == nil {
		effective = latestContentDate(page.Content)
	}

	hasUpdates := effective != nil && now.Sub(*effective) <= freshDays*24*time.Hour
	isTrending := hasUpdates && len(page.Decisions) > 0

	body := page.Content
	if !normalize.IsGeneratedSummary(body) {
		body = normalize.Clean(body)
	}

	var parts []string
	if effective != nil {
		parts = append(parts, fmt.Sprintf("Updated %s.", freshnessLabel(*effective, now)))
	}
	if body != "" {
		parts = append(parts, body)
	}
	if len(page.Decisions) > 0 && !normalize.IsGeneratedSummary(page.Content) {
		parts = append(parts, fmt.Sprintf("%d decision(s) recorded.", len(page.Decisions)))
	}
	if len(parts) == 0 {
		parts = append(parts, "No content extracted.")
	}

	return core.ContentSummary{
		SourceType:   core.SourceConfluence,
		SourceName:   page.SourceName,
		WorkGroup:    page.WorkGroup,
		URL:          page.URL,
		Summary:      strings.Join(parts, " "),
		IsTrending:   isTrending,
		HasUpdates:   hasUpdates,
		LastActivity: effective,
	}
}

// SummarizeZulip converts one aggregated stream into a digest-ready summary.
func SummarizeZulip(thread core.ChatThreadContent) core.ContentSummary {
	header := fmt.Sprintf("%s: %d messages (%d in the last day) from %d participants.",
		thread.TopicLabel, thread.MessageCount, thread.RecentMessageCount, thread.ParticipantCount)

	summary := header
	if thread.Content != "" {
		summary = header + "\n\n" + thread.Content
	}

	scraped := thread.ScrapedAt
	return core.ContentSummary{
		SourceType:       core.SourceZulip,
		SourceName:       thread.SourceName,
		WorkGroup:        thread.WorkGroup,
		URL:              thread.URL,
		Summary:          summary,
		IsTrending:       thread.IsTrending,
		HasUpdates:       thread.MessageCount > 0,
		LastActivity:     &scraped,
		ParticipantCount: thread.ParticipantCount,
	}
}

// CreateDigest assembles the two source sections into a dated digest.
// Wiki content sorts fresh-first then by work group; chat content sorts
// trending-first then fresh-first.
func CreateDigest(pages []core.PageContent, threads []core.ChatThreadContent, now time.Time) core.Digest {
	wiki := make([]core.ContentSummary, 0, len(pages))
	for _, page := range pages {
		wiki = append(wiki, SummarizeConfluence(page, now))
	}
	sort.SliceStable(wiki, func(i, j int) bool {
		if wiki[i].HasUpdates != wiki[j].HasUpdates {
			return wiki[i].HasUpdates
		}
		return wiki[i].WorkGroup < wiki[j].WorkGroup
	})

	chat := make([]core.ContentSummary, 0, len(threads))
	for _, thread := range threads {
		chat = append(chat, SummarizeZulip(thread))
	}
	sort.SliceStable(chat, func(i, j int) bool {
		if chat[i].IsTrending != chat[j].IsTrending {
			return chat[i].IsTrending
		}
		return chat[i].HasUpdates && !chat[j].HasUpdates
	})

	return core.Digest{
		ID:          uuid.NewString(),
		Date:        now,
		GeneratedAt: now,
		Sections: []core.DigestSection{
			{Title: "Confluence Updates", SourceType: core.SourceConfluence, Summaries: wiki},
			{Title: "Zulip Discussions", SourceType: core.SourceZulip, Summaries: chat},
		},
	}
}

// FormatSubject builds the email subject line for a digest.
func FormatSubject(title string, date time.Time) string {
	if title == "" {
		title = DefaultTitle
	}
	return fmt.Sprintf("%s - %s", title, date.Format("Monday, January 2, 2006"))
}
