// Package normalize reduces scraped wiki text to digest-sized plain text.
package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// maxCleanLength caps cleaned content before it reaches the digest.
	maxCleanLength = 500
	// minSentenceOffset is the earliest point at which a sentence boundary
	// is an acceptable truncation target.
	minSentenceOffset = 100
)

// generatedSummaryPattern matches the "**Jan 15**:" markers that the
// summarization stage prefixes onto meeting summaries. Text carrying one was
// already produced by a summarizer and must not be re-truncated.
var generatedSummaryPattern = regexp.MustCompile(`\*\*[A-Z][a-z]{2} \d{1,2}\*\*:`)

// dateListPattern matches runs of 3 or more ISO dates, the signature of a
// meeting-index listing pasted into page text.
var dateListPattern = regexp.MustCompile(`(\d{4}-\d{2}-\d{2}[\s,;]*){3,}`)

var whitespacePattern = regexp.MustCompile(`\s+`)

// noisePhrases are boilerplate fragments Confluence injects around page
// bodies. They carry no meeting signal and are stripped before truncation.
var noisePhrases = []string{
	"Powered by Atlassian Confluence",
	"Evaluate Confluence today",
	"Report a bug",
	"Atlassian News",
	"Skip to content",
	"Skip to breadcrumbs",
	"Skip to header menu",
	"Skip to action menu",
	"Skip to quick search",
	"A t tachments",
	"Created by Unknown User",
}

// Truncate cuts text to at most max bytes without splitting a multi-byte
// rune. Text at or under the cap is returned unchanged.
func Truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// IsGeneratedSummary reports whether text was already produced by a
// summarization stage.
func IsGeneratedSummary(text string) bool {
	return generatedSummaryPattern.MatchString(text)
}

// Clean strips markup noise and collapses whitespace, truncating at a
// sentence boundary when the result exceeds the length cap. Generated
// summaries pass through unchanged.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	if IsGeneratedSummary(text) {
		return text
	}

	for _, phrase := range noisePhrases {
		text = strings.ReplaceAll(text, phrase, " ")
	}
	text = dateListPattern.ReplaceAllString(text, "[meeting dates] ")
	text = strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))

	if len(text) <= maxCleanLength {
		return text
	}

	if idx := strings.LastIndex(Truncate(text, maxCleanLength), ". "); idx > minSentenceOffset {
		return text[:idx+1]
	}
	return Truncate(text, maxCleanLength) + "..."
}
