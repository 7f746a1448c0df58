package core

import (
	"fmt"
	"strings"
	"time"
)

// SourceType tags which pipeline produced a piece of digest content.
type SourceType string

const (
	SourceConfluence SourceType = "confluence"
	SourceZulip      SourceType = "zulip"
)

// PageContent is the result of extracting one Confluence source.
type PageContent struct {
	SourceName   string     `json:"source_name"`   // Configured display name of the source
	WorkGroup    string     `json:"work_group"`    // Owning work group
	URL          string     `json:"url"`           // URL the source was scraped from
	Title        string     `json:"title"`         // Page title (or source name for index pages)
	Content      string     `json:"content"`       // Normalized body text or combined meeting summaries
	LastModified *time.Time `json:"last_modified"` // Last page modification, when discoverable
	ScrapedAt    time.Time  `json:"scraped_at"`    // When the scrape ran
	MeetingDate  *time.Time `json:"meeting_date"`  // Most recent meeting date for index pages
	Decisions    []string   `json:"decisions"`     // Decision notes (never nil)
	ActionItems  []string   `json:"action_items"`  // Action item notes (never nil)
}

// ChatThreadContent is the result of extracting one Zulip source.
type ChatThreadContent struct {
	SourceName         string    `json:"source_name"`          // Configured display name of the source
	WorkGroup          string    `json:"work_group"`           // Owning work group
	URL                string    `json:"url"`                  // Link to the channel
	StreamName         string    `json:"stream_name"`          // Zulip stream name
	StreamID           int       `json:"stream_id"`            // Zulip stream ID
	TopicLabel         string    `json:"topic_label"`          // e.g. "3 active topic(s)"
	MessageCount       int       `json:"message_count"`        // Messages in the lookback window (retained topics)
	RecentMessageCount int       `json:"recent_message_count"` // Messages in the recent window
	ParticipantCount   int       `json:"participant_count"`    // Distinct senders across retained topics
	IsTrending         bool      `json:"is_trending"`          // RecentMessageCount met the trending threshold
	ScrapedAt          time.Time `json:"scraped_at"`           // When the scrape ran
	Content            string    `json:"content"`              // Combined per-topic summaries
}

// ContentSummary is the digest-ready record consumed by formatting,
// regardless of source type.
type ContentSummary struct {
	SourceType       SourceType `json:"source_type"`
	SourceName       string     `json:"source_name"`
	WorkGroup        string     `json:"work_group"`
	URL              string     `json:"url"`
	Summary          string     `json:"summary"`
	IsTrending       bool       `json:"is_trending"`
	HasUpdates       bool       `json:"has_updates"`
	LastActivity     *time.Time `json:"last_activity"`
	ParticipantCount int        `json:"participant_count"`
}

// DigestSection is a titled, ordered run of summaries from one source type.
type DigestSection struct {
	Title      string           `json:"title"`
	SourceType SourceType       `json:"source_type"`
	Summaries  []ContentSummary `json:"summaries"`
}

// Digest is built once per run and immutable after construction.
type Digest struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	GeneratedAt time.Time       `json:"generated_at"`
	Sections    []DigestSection `json:"sections"`
}

// ToPlainText renders the digest as a plain text email body.
func (d Digest) ToPlainText() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Community Digest - %s\n", d.Date.Format("Monday, January 2, 2006")))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, section := range d.Sections {
		b.WriteString(section.Title + "\n")
		b.WriteString(strings.Repeat("-", len(section.Title)) + "\n\n")

		if len(section.Summaries) == 0 {
			b.WriteString("No updates.\n\n")
			continue
		}

		for _, s := range section.Summaries {
			marker := ""
			if s.IsTrending {
				marker = "[trending] "
			}
			b.WriteString(fmt.Sprintf("%s%s (%s)\n", marker, s.SourceName, s.WorkGroup))
			b.WriteString(s.Summary + "\n")
			b.WriteString(s.URL + "\n\n")
		}
	}

	b.WriteString(fmt.Sprintf("Generated at %s\n", d.GeneratedAt.Format(time.RFC1123)))
	return b.String()
}
