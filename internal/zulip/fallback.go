package zulip

import (
	"context"
	"regexp"
	"strings"

	"roundup/internal/normalize"
)

const maxQuoteLength = 100

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// TranscriptQuote produces a deterministic topic summary by quoting the
// opening message of the transcript. It backs up the AI summarizer and
// stands alone when none is configured.
type TranscriptQuote struct{}

// Summarize quotes the first non-empty line of the transcript, trimmed of
// the sender prefix and any markup.
func (TranscriptQuote) Summarize(_ context.Context, text string, _ string) (string, error) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.Index(line, ": "); idx >= 0 {
			line = line[idx+2:]
		}
		line = htmlTagPattern.ReplaceAllString(line, "")
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			continue
		}
		if len(line) > maxQuoteLength {
			line = normalize.Truncate(line, maxQuoteLength) + "..."
		}
		return `Discussion started: "` + line + `"`, nil
	}
	return "No messages in this thread.", nil
}
