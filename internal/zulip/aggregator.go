package zulip

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"roundup/internal/config"
	"roundup/internal/core"
	"roundup/internal/logger"
	"roundup/internal/normalize"
	"roundup/internal/summarize"
)

const (
	// TrendingThreshold is the recent-message count at which a stream is
	// surfaced with visual priority in the digest.
	TrendingThreshold = 5

	// maxTopics caps how many topics are rendered per stream.
	maxTopics = 5

	// transcriptTail is how many trailing messages feed the summarizer.
	transcriptTail = 20

	// maxMessageChars bounds each message's contribution to a transcript.
	maxMessageChars = 500
)

// topicSummary is one retained topic's digest entry before rendering.
type topicSummary struct {
	Topic       string
	Summary     string
	URL         string
	Count       int
	RecentCount int
}

// Aggregator turns a stream's recent history into digest content.
type Aggregator struct {
	client       *Client
	lookbackDays int
	recentHours  int
	summarizer   summarize.Summarizer // nil when no AI capability is configured
	fallback     TranscriptQuote
}

// NewAggregator creates a chat aggregator. summarizer may be nil, which
// selects the deterministic TranscriptQuote fallback for topic summaries.
func NewAggregator(client *Client, lookbackDays, recentHours int, summarizer summarize.Summarizer) *Aggregator {
	if lookbackDays <= 0 {
		lookbackDays = 7
	}
	if recentHours <= 0 {
		recentHours = 24
	}
	return &Aggregator{
		client:       client,
		lookbackDays: lookbackDays,
		recentHours:  recentHours,
		summarizer:   summarizer,
	}
}

// groupByTopic partitions messages by topic label. Every message lands in
// exactly one group.
func groupByTopic(messages []Message) map[string][]Message {
	topics := make(map[string][]Message)
	for _, msg := range messages {
		topics[msg.Subject] = append(topics[msg.Subject], msg)
	}
	return topics
}

// filterRecentTopics keeps only topics with at least one message at or after
// recentSince. Topics without recent activity are dropped entirely.
func filterRecentTopics(topics map[string][]Message, recentSince time.Time) map[string][]Message {
	recentTS := recentSince.Unix()
	filtered := make(map[string][]Message)
	for topic, messages := range topics {
		for _, msg := range messages {
			if msg.Timestamp >= recentTS {
				filtered[topic] = messages
				break
			}
		}
	}
	return filtered
}

// buildTranscript renders the most recent transcriptTail messages in
// chronological "sender: content" lines.
func buildTranscript(messages []Message) string {
	sorted := make([]Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	if len(sorted) > transcriptTail {
		sorted = sorted[len(sorted)-transcriptTail:]
	}

	var lines []string
	for _, msg := range sorted {
		sender := msg.SenderFullName
		if sender == "" {
			sender = "Unknown"
		}
		content := normalize.Truncate(msg.Content, maxMessageChars)
		lines = append(lines, fmt.Sprintf("%s: %s", sender, content))
	}
	return strings.Join(lines, "\n")
}

// buildThreadURL builds a narrow link to one topic.
func (a *Aggregator) buildThreadURL(streamName, topic string) string {
	encodedStream := url.PathEscape(strings.ReplaceAll(streamName, " ", "-"))
	encodedTopic := url.PathEscape(strings.ReplaceAll(topic, " ", ".20"))
	return fmt.Sprintf("%s/#narrow/channel/%s/topic/%s", a.client.Site(), encodedStream, encodedTopic)
}

// buildChannelURL builds a narrow link to the stream itself.
func (a *Aggregator) buildChannelURL(source config.ZulipSource) string {
	encodedStream := url.PathEscape(strings.ReplaceAll(source.StreamName, " ", "-"))
	return fmt.Sprintf("%s/#narrow/channel/%d-%s", a.client.Site(), source.StreamID, encodedStream)
}

// summarizeTopic runs the configured summarizer on a topic transcript,
// downgrading any failure to the deterministic fallback.
func (a *Aggregator) summarizeTopic(ctx context.Context, transcript, label string) string {
	if a.summarizer != nil {
		out, err := a.summarizer.Summarize(ctx, transcript, label)
		if err == nil {
			return strings.TrimSpace(out)
		}
		logger.Warn("AI summarization failed, using fallback", "thread", label, "error", err.Error())
	}
	out, _ := a.fallback.Summarize(ctx, transcript, label)
	return out
}

// ScrapeSource aggregates one stream's recent discussions. It returns nil
// when the stream has no activity in the lookback window or no topic with
// recent activity.
func (a *Aggregator) ScrapeSource(ctx context.Context, source config.ZulipSource) *core.ChatThreadContent {
	logger.Info("Scraping Zulip stream", "source", source.Name, "stream", source.StreamName)

	now := time.Now().UTC()
	lookbackSince := now.Add(-time.Duration(a.lookbackDays) * 24 * time.Hour)
	recentSince := now.Add(-time.Duration(a.recentHours) * time.Hour)

	messages := a.client.GetMessages(ctx, source.StreamName, lookbackSince)
	if len(messages) == 0 {
		logger.Info("No messages in lookback window", "stream", source.StreamName, "days", a.lookbackDays)
		return nil
	}

	recentTopics := filterRecentTopics(groupByTopic(messages), recentSince)
	if len(recentTopics) == 0 {
		logger.Info("No recent topic activity", "stream", source.StreamName, "hours", a.recentHours)
		return nil
	}

	var summaries []topicSummary
	participants := make(map[string]bool)
	totalMessages := 0
	recentMessages := 0
	recentTS := recentSince.Unix()

	// Topic names first for deterministic ordering, then ranked by recency.
	topicNames := make([]string, 0, len(recentTopics))
	for topic := range recentTopics {
		topicNames = append(topicNames, topic)
	}
	sort.Strings(topicNames)

	for _, topic := range topicNames {
		topicMessages := recentTopics[topic]
		totalMessages += len(topicMessages)

		recentCount := 0
		for _, msg := range topicMessages {
			if msg.Timestamp >= recentTS {
				recentCount++
			}
			sender := msg.SenderFullName
			if sender == "" {
				sender = "Unknown"
			}
			participants[sender] = true
		}
		recentMessages += recentCount

		label := fmt.Sprintf("%s > %s", source.StreamName, topic)
		summary := a.summarizeTopic(ctx, buildTranscript(topicMessages), label)

		summaries = append(summaries, topicSummary{
			Topic:       topic,
			Summary:     summary,
			URL:         a.buildThreadURL(source.StreamName, topic),
			Count:       len(topicMessages),
			RecentCount: recentCount,
		})
	}

	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].RecentCount > summaries[j].RecentCount })
	if len(summaries) > maxTopics {
		summaries = summaries[:maxTopics]
	}

	var parts []string
	for _, ts := range summaries {
		parts = append(parts, fmt.Sprintf("**%s** (%d new): %s", ts.Topic, ts.RecentCount, ts.Summary))
	}

	return &core.ChatThreadContent{
		SourceName:         source.Name,
		WorkGroup:          source.WorkGroup,
		URL:                a.buildChannelURL(source),
		StreamName:         source.StreamName,
		StreamID:           source.StreamID,
		TopicLabel:         fmt.Sprintf("%d active topic(s)", len(recentTopics)),
		MessageCount:       totalMessages,
		RecentMessageCount: recentMessages,
		ParticipantCount:   len(participants),
		IsTrending:         recentMessages >= TrendingThreshold,
		ScrapedAt:          now,
		Content:            strings.Join(parts, "\n\n"),
	}
}

// ScrapeAll aggregates every configured stream sequentially, returning the
// ones with activity. It never fails as a whole.
func (a *Aggregator) ScrapeAll(ctx context.Context, sources []config.ZulipSource) []core.ChatThreadContent {
	var results []core.ChatThreadContent
	for _, source := range sources {
		if content := a.ScrapeSource(ctx, source); content != nil {
			results = append(results, *content)
		}
	}
	logger.Info("Zulip scrape complete", "active", len(results), "configured", len(sources))
	return results
}
