package confluence

import (
	"context"
	"fmt"
	"strings"
)

// NoteStats is the deterministic fallback summarizer for meeting notes. It
// implements the same contract as the AI summarizer by counting the signals
// a meeting page reliably carries: ticket IDs, "ready for vote" markers, and
// attendee lines.
type NoteStats struct{}

// Summarize renders a short stats line for the meeting text. It never fails.
func (NoteStats) Summarize(_ context.Context, text string, _ string) (string, error) {
	seen := make(map[string]bool)
	var tickets []string
	for _, t := range ticketPattern.FindAllString(text, -1) {
		if !seen[t] {
			seen[t] = true
			tickets = append(tickets, t)
		}
	}

	votes := len(votePattern.FindAllString(text, -1))
	attendees := countAttendees(text)

	var parts []string
	if attendees > 0 {
		parts = append(parts, fmt.Sprintf("%d attendees", attendees))
	}
	if len(tickets) > 0 {
		shown := tickets
		if len(shown) > 3 {
			shown = shown[:3]
		}
		parts = append(parts, fmt.Sprintf("Discussed %d tickets (%s)", len(tickets), strings.Join(shown, ", ")))
	}
	if votes > 0 {
		parts = append(parts, fmt.Sprintf("%d ticket(s) marked ready for vote", votes))
	}

	if len(parts) == 0 {
		return "Meeting notes available - click to view details.", nil
	}
	return strings.Join(parts, " | "), nil
}

// countAttendees counts non-empty lines under an "Attendees" heading.
func countAttendees(text string) int {
	m := attendeesPattern.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	count := 0
	for _, line := range strings.Split(m[1], "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}
