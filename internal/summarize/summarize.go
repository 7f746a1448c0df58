// Package summarize provides the pluggable LLM summarization capability.
// The Gemini-backed Client is one implementation of Summarizer; each
// extraction pipeline carries its own deterministic fallback implementation
// for when no API key is configured or the call fails.
package summarize

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model to use for summarization.
	DefaultModel = "gemini-2.0-flash"

	// maxPromptChars bounds how much source text is folded into a prompt.
	maxPromptChars = 10000

	// MeetingPromptTemplate summarizes one meeting-notes page for the digest.
	// The first verb slot is the meeting title, the second the page text.
	MeetingPromptTemplate = `Summarize these meeting notes in 2-3 concise sentences for a daily digest email. Focus on:
- Key decisions made (especially tickets marked "ready for vote")
- Important announcements
- Major discussion topics

IMPORTANT: Start your summary with a bracketed tag listing which topical guides were discussed (e.g. [PAS, DTR] or [All guides]). Then provide the summary.

Meeting: %s

Content:
%s

Provide a brief, informative summary (max 150 words). Start directly with the content, no preamble.`

	// TopicPromptTemplate summarizes one chat topic's transcript.
	// The first verb slot is the "channel > topic" label, the second the
	// chronological transcript.
	TopicPromptTemplate = `Summarize this chat discussion thread for a daily digest email.
Focus on: key questions asked, answers/solutions provided, decisions made, and action items.

Thread: %s

Messages:
%s

Provide a brief summary (2-3 sentences, max 100 words). Start directly with the content.`
)

// Summarizer produces a short digest summary of text. contextLabel names
// what the text is (a meeting title, a "channel > topic" pair) and is folded
// into the prompt. Implementations must not panic; callers treat any error
// as "use the fallback".
type Summarizer interface {
	Summarize(ctx context.Context, text string, contextLabel string) (string, error)
}

// Client is the Gemini-backed Summarizer. A single Client is shared per
// pipeline, parameterized with that pipeline's prompt template.
type Client struct {
	modelName      string
	promptTemplate string
	gClient        *genai.Client
}

// NewClient creates a Gemini summarizer. The promptTemplate must contain two
// %s verbs: context label first, text second.
func NewClient(apiKey, modelName, promptTemplate string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	gClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{
		modelName:      modelName,
		promptTemplate: promptTemplate,
		gClient:        gClient,
	}, nil
}

// Summarize sends the text to the model and returns its summary.
func (c *Client) Summarize(ctx context.Context, text string, contextLabel string) (string, error) {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}
	prompt := fmt.Sprintf(c.promptTemplate, contextLabel, text)

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, c.modelName, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	out := resp.Text()
	if out == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return out, nil
}
