package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToPlainTextEmptySections(t *testing.T) {
	d := Digest{
		Date:        time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Date(2026, 8, 24, 6, 0, 0, 0, time.UTC),
		Sections: []DigestSection{
			{Title: "Confluence Updates", SourceType: SourceConfluence},
			{Title: "Zulip Discussions", SourceType: SourceZulip},
		},
	}

	text := d.ToPlainText()
	assert.Contains(t, text, "Community Digest - Monday, August 24, 2026")
	assert.Equal(t, 2, strings.Count(text, "No updates."))
}

func TestToPlainTextTrendingMarker(t *testing.T) {
	d := Digest{
		Date: time.Now(),
		Sections: []DigestSection{{
			Title: "Zulip Discussions",
			Summaries: []ContentSummary{
				{SourceName: "Hot Stream", WorkGroup: "WG", Summary: "busy", URL: "https://x", IsTrending: true},
				{SourceName: "Calm Stream", WorkGroup: "WG", Summary: "quiet", URL: "https://y"},
			},
		}},
	}

	text := d.ToPlainText()
	assert.Contains(t, text, "[trending] Hot Stream (WG)")
	assert.NotContains(t, text, "[trending] Calm Stream")
}
