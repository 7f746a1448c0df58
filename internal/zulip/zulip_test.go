package zulip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roundup/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.Zulip{
		Site:   server.URL,
		Email:  "bot@example.org",
		APIKey: "secret",
	}, 5*time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func writeMessages(w http.ResponseWriter, msgs []Message) {
	_ = json.NewEncoder(w).Encode(messagesResponse{Messages: msgs})
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(config.Zulip{Site: "https://chat.example.org"}, 0); err == nil {
		t.Error("expected error for missing credentials")
	}
}

func TestGetMessagesStopsPastWindow(t *testing.T) {
	now := time.Now().Unix()
	since := time.Unix(now-3600, 0)

	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		writeMessages(w, []Message{
			{ID: 10, Timestamp: now - 7200, Subject: "old"},
			{ID: 11, Timestamp: now - 600, Subject: "fresh"},
			{ID: 12, Timestamp: now - 60, Subject: "fresh"},
		})
	}))

	msgs := client.GetMessages(context.Background(), "test stream", since)
	if calls != 1 {
		t.Errorf("made %d API calls, want 1 (page reached past window)", calls)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 in-window", len(msgs))
	}
	for _, m := range msgs {
		if m.Timestamp < since.Unix() {
			t.Errorf("kept message outside window: %+v", m)
		}
	}
}

func TestGetMessagesStopsOnEmptyPage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessages(w, nil)
	}))

	msgs := client.GetMessages(context.Background(), "empty stream", time.Unix(0, 0))
	if len(msgs) != 0 {
		t.Errorf("got %d messages from empty stream", len(msgs))
	}
}

func TestGetMessagesStopsOnNonAdvancingAnchor(t *testing.T) {
	now := time.Now().Unix()

	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// Always-fresh page that never advances the anchor.
		writeMessages(w, []Message{
			{ID: 42, Timestamp: now, Subject: "loop"},
		})
	}))

	msgs := client.GetMessages(context.Background(), "looping stream", time.Unix(now-3600, 0))
	if calls != 2 {
		t.Errorf("made %d API calls, want 2 (anchor stopped advancing)", calls)
	}
	if len(msgs) != 2 {
		t.Errorf("got %d messages, want 2", len(msgs))
	}
}

func TestGetMessagesSafetyCap(t *testing.T) {
	now := time.Now().Unix()

	nextID := int64(100000)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Every page is fully in-window with strictly decreasing IDs, so
		// only the cap can stop pagination.
		var msgs []Message
		for i := 0; i < pageSize; i++ {
			nextID--
			msgs = append(msgs, Message{ID: nextID, Timestamp: now, Subject: "busy"})
		}
		writeMessages(w, msgs)
	}))

	msgs := client.GetMessages(context.Background(), "busy stream", time.Unix(now-3600, 0))
	if len(msgs) != maxMessages {
		t.Errorf("got %d messages, want cap of %d", len(msgs), maxMessages)
	}
}

func TestGetStreamID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/users/me/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(subscriptionsResponse{Subscriptions: []streamInfo{
			{Name: "implementers", StreamID: 179},
		}})
	})
	mux.HandleFunc("/api/v1/streams", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(streamsResponse{Streams: []streamInfo{
			{Name: "terminology", StreamID: 210},
		}})
	})
	client, _ := newTestClient(t, mux)

	id, err := client.GetStreamID(context.Background(), "Implementers")
	if err != nil || id != 179 {
		t.Errorf("subscription lookup: id=%d err=%v", id, err)
	}

	id, err = client.GetStreamID(context.Background(), "terminology")
	if err != nil || id != 210 {
		t.Errorf("public stream lookup: id=%d err=%v", id, err)
	}

	if _, err := client.GetStreamID(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error for unknown stream")
	}
}

func TestGroupByTopicPartitions(t *testing.T) {
	msgs := []Message{
		{ID: 1, Subject: "a"},
		{ID: 2, Subject: "b"},
		{ID: 3, Subject: "a"},
	}
	topics := groupByTopic(msgs)
	if len(topics) != 2 {
		t.Fatalf("got %d topics, want 2", len(topics))
	}
	total := 0
	for _, group := range topics {
		total += len(group)
	}
	if total != len(msgs) {
		t.Errorf("partition lost messages: %d grouped of %d", total, len(msgs))
	}
}

func TestFilterRecentTopicsDropsQuiet(t *testing.T) {
	now := time.Now()
	recentSince := now.Add(-24 * time.Hour)

	topics := map[string][]Message{
		"active": {
			{ID: 1, Timestamp: now.Add(-48 * time.Hour).Unix()},
			{ID: 2, Timestamp: now.Add(-1 * time.Hour).Unix()},
		},
		"quiet": {
			{ID: 3, Timestamp: now.Add(-72 * time.Hour).Unix()},
		},
	}

	filtered := filterRecentTopics(topics, recentSince)
	if len(filtered) != 1 {
		t.Fatalf("got %d topics, want 1", len(filtered))
	}
	if len(filtered["active"]) != 2 {
		t.Error("active topic lost its older in-window messages")
	}
}

func TestScrapeSourceAggregates(t *testing.T) {
	now := time.Now()
	mkMsg := func(id int64, ago time.Duration, topic, sender, content string) Message {
		return Message{ID: id, Timestamp: now.Add(-ago).Unix(), Subject: topic, SenderFullName: sender, Content: content}
	}

	served := false
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if served {
			// Second page reaches past the window.
			writeMessages(w, []Message{mkMsg(1, 200*24*time.Hour, "ancient", "Eve", "old news")})
			return
		}
		served = true
		writeMessages(w, []Message{
			mkMsg(10, 48*time.Hour, "subscription question", "Alice", "How do I subscribe?"),
			mkMsg(11, 30*time.Hour, "subscription question", "Bob", "Use the topic API."),
			mkMsg(12, 12*time.Hour, "subscription question", "Alice", "That worked, thanks."),
			mkMsg(13, 6*time.Hour, "subscription question", "Carol", "Same question here."),
			mkMsg(14, 3*time.Hour, "subscription question", "Alice", "See above."),
			mkMsg(15, 1*time.Hour, "subscription question", "Dan", "Thanks all."),
		})
	})

	client, _ := newTestClient(t, mux)
	agg := NewAggregator(client, 7, 24, nil)

	source := config.ZulipSource{
		Name:       "Subscriptions",
		WorkGroup:  "FHIR-I",
		StreamName: "subscriptions",
		StreamID:   179,
	}
	thread := agg.ScrapeSource(context.Background(), source)
	if thread == nil {
		t.Fatal("ScrapeSource returned nil")
	}

	if thread.MessageCount != 6 {
		t.Errorf("MessageCount = %d, want 6", thread.MessageCount)
	}
	if thread.RecentMessageCount != 4 {
		t.Errorf("RecentMessageCount = %d, want 4", thread.RecentMessageCount)
	}
	if thread.ParticipantCount != 4 {
		t.Errorf("ParticipantCount = %d, want 4", thread.ParticipantCount)
	}
	if thread.IsTrending {
		t.Error("IsTrending = true with 4 recent messages, threshold is 5")
	}
	if thread.TopicLabel != "1 active topic(s)" {
		t.Errorf("TopicLabel = %q", thread.TopicLabel)
	}
	if !strings.Contains(thread.Content, "**subscription question** (4 new):") {
		t.Errorf("content missing topic entry:\n%s", thread.Content)
	}
	if !strings.Contains(thread.Content, `Discussion started: "How do I subscribe?"`) {
		t.Errorf("content missing fallback quote:\n%s", thread.Content)
	}

	wantURL := fmt.Sprintf("%s/#narrow/channel/179-subscriptions", client.Site())
	if thread.URL != wantURL {
		t.Errorf("URL = %q, want %q", thread.URL, wantURL)
	}
}

func TestScrapeSourceNoRecentActivity(t *testing.T) {
	now := time.Now()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessages(w, []Message{
			{ID: 1, Timestamp: now.Add(-72 * time.Hour).Unix(), Subject: "stale topic"},
			{ID: 2, Timestamp: now.Add(-200 * 24 * time.Hour).Unix(), Subject: "ancient"},
		})
	}))
	agg := NewAggregator(client, 7, 24, nil)

	thread := agg.ScrapeSource(context.Background(), config.ZulipSource{StreamName: "quiet"})
	if thread != nil {
		t.Errorf("expected nil for stream without recent activity, got %+v", thread)
	}
}

func TestBuildThreadURLEncoding(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())
	agg := NewAggregator(client, 7, 24, nil)

	got := agg.buildThreadURL("implementers stream", "my topic name")
	if !strings.Contains(got, "/#narrow/channel/implementers-stream/topic/my.20topic.20name") {
		t.Errorf("thread URL encoding wrong: %q", got)
	}
}

func TestTranscriptQuote(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips sender and markup",
			in:   "Alice: <p>Hello   <b>world</b></p>\nBob: second line",
			want: `Discussion started: "Hello world"`,
		},
		{
			name: "truncates long openers",
			in:   "Alice: " + strings.Repeat("x", 150),
			want: `Discussion started: "` + strings.Repeat("x", 100) + `..."`,
		},
		{
			name: "truncates multi-byte openers on a rune boundary",
			in:   "Alice: " + strings.Repeat("é", 120),
			want: `Discussion started: "` + strings.Repeat("é", 50) + `..."`,
		},
		{
			name: "empty transcript",
			in:   "",
			want: "No messages in this thread.",
		},
		{
			name: "skips blank lines",
			in:   "\n\nBob: actual content",
			want: `Discussion started: "actual content"`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := TranscriptQuote{}.Summarize(context.Background(), tc.in, "")
			if err != nil {
				t.Fatalf("Summarize error: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBuildTranscriptChronological(t *testing.T) {
	msgs := []Message{
		{ID: 2, Timestamp: 200, SenderFullName: "Bob", Content: "second"},
		{ID: 1, Timestamp: 100, SenderFullName: "Alice", Content: "first"},
	}
	got := buildTranscript(msgs)
	want := "Alice: first\nBob: second"
	if got != want {
		t.Errorf("transcript = %q, want %q", got, want)
	}
}
