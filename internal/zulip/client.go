// Package zulip aggregates recent chat activity from Zulip streams.
package zulip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"roundup/internal/config"
	"roundup/internal/logger"
)

const (
	// pageSize is the number of messages requested per pagination step.
	pageSize = 100

	// maxMessages is the hard safety cap on accumulated messages per stream.
	// It guarantees termination even against a misbehaving remote history.
	maxMessages = 500
)

// Message is one chat message as returned by the messages endpoint.
type Message struct {
	ID             int64  `json:"id"`
	Timestamp      int64  `json:"timestamp"`
	Subject        string `json:"subject"`
	SenderFullName string `json:"sender_full_name"`
	Content        string `json:"content"`
}

type messagesResponse struct {
	Messages []Message `json:"messages"`
}

type subscriptionsResponse struct {
	Subscriptions []streamInfo `json:"subscriptions"`
}

type streamsResponse struct {
	Streams []streamInfo `json:"streams"`
}

type streamInfo struct {
	Name     string `json:"name"`
	StreamID int    `json:"stream_id"`
}

// Client is an authenticated Zulip API client.
type Client struct {
	site       string
	email      string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Zulip client from config. Both the bot email and API
// key are required.
func NewClient(cfg config.Zulip, timeout time.Duration) (*Client, error) {
	if cfg.Email == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("zulip email and API key must be set")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		site:       strings.TrimSuffix(cfg.Site, "/"),
		email:      cfg.Email,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Site returns the configured server URL.
func (c *Client) Site() string {
	return c.site
}

// apiGet makes an authenticated GET request against the v1 API and decodes
// the JSON response into out.
func (c *Client) apiGet(ctx context.Context, endpoint string, params url.Values, out any) error {
	reqURL := fmt.Sprintf("%s/api/v1/%s", c.site, endpoint)
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", endpoint, err)
	}
	req.SetBasicAuth(c.email, c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("request to %s failed: status code %d", endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// GetStreamID resolves a stream name to its ID, checking the bot's
// subscriptions first and all public streams second.
func (c *Client) GetStreamID(ctx context.Context, streamName string) (int, error) {
	var subs subscriptionsResponse
	if err := c.apiGet(ctx, "users/me/subscriptions", nil, &subs); err == nil {
		for _, s := range subs.Subscriptions {
			if strings.EqualFold(s.Name, streamName) {
				return s.StreamID, nil
			}
		}
	}

	var streams streamsResponse
	if err := c.apiGet(ctx, "streams", nil, &streams); err != nil {
		return 0, fmt.Errorf("failed to list streams: %w", err)
	}
	for _, s := range streams.Streams {
		if strings.EqualFold(s.Name, streamName) {
			return s.StreamID, nil
		}
	}
	return 0, fmt.Errorf("stream %q not found", streamName)
}

// GetMessages pages backwards through a stream's history and returns every
// message with a timestamp at or after since. Stop conditions, checked in
// order each iteration: empty page, page reaching past the window,
// non-advancing anchor, and the maxMessages safety cap.
func (c *Client) GetMessages(ctx context.Context, streamName string, since time.Time) []Message {
	narrow, _ := json.Marshal([]map[string]string{{"operator": "channel", "operand": streamName}})
	sinceTS := since.Unix()
	anchor := "newest"

	var messages []Message
	for {
		params := url.Values{
			"anchor":         {anchor},
			"num_before":     {strconv.Itoa(pageSize)},
			"num_after":      {"0"},
			"narrow":         {string(narrow)},
			"apply_markdown": {"false"},
		}

		var resp messagesResponse
		if err := c.apiGet(ctx, "messages", params, &resp); err != nil {
			logger.Error("Failed to get messages", err, "stream", streamName)
			break
		}

		batch := resp.Messages
		if len(batch) == 0 {
			break
		}

		// The batch is scanned even when it reaches past the window:
		// in-window messages are kept, then pagination halts since earlier
		// pages are necessarily older.
		reachedPastWindow := false
		oldest := batch[0]
		for _, msg := range batch {
			if msg.Timestamp < oldest.Timestamp {
				oldest = msg
			}
			if msg.Timestamp >= sinceTS {
				messages = append(messages, msg)
			} else {
				reachedPastWindow = true
			}
		}
		if reachedPastWindow {
			break
		}

		newAnchor := strconv.FormatInt(oldest.ID, 10)
		if newAnchor == anchor {
			break
		}
		anchor = newAnchor

		if len(messages) >= maxMessages {
			logger.Warn("Hit message safety cap", "stream", streamName, "cap", maxMessages)
			break
		}
	}

	logger.Debug("Fetched messages in window", "stream", streamName, "count", len(messages))
	return messages
}
