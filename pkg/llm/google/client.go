// Package google provides the Google Gemini implementation of llm.Client.
package google

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"refinery/pkg/llm"
)

// Client wraps the Google GenAI client. The underlying client is created on
// first use because its constructor requires a context; concurrent completions
// share one initialization.
type Client struct {
	initOnce sync.Once
	client   *genai.Client
	initErr  error
	apiKey   string
	model    string
}

// NewClient creates a Gemini-backed llm.Client for the given model.
func NewClient(apiKey, model string) llm.Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
	}
}

// getClient initializes the underlying client exactly once.
func (c *Client) getClient(ctx context.Context) (*genai.Client, error) {
	c.initOnce.Do(func() {
		c.client, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if c.initErr != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", c.initErr)
	}
	return c.client, nil
}

// Complete implements llm.Client.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return llm.Response{}, err
	}

	contents, systemInstruction, err := convertMessages(in.Messages)
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini message conversion: %w", err)
	}

	maxTokens := int32(in.MaxTokens) //nolint:gosec // MaxTokens validated at config layer
	config := &genai.GenerateContentConfig{
		Temperature:     &in.Temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	result, err := client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini API call failed: %w", err)
	}
	if result == nil {
		return llm.Response{}, fmt.Errorf("empty response from Gemini API")
	}

	return llm.Response{Content: result.Text()}, nil
}

// convertMessages maps llm messages onto Gemini contents, extracting system
// messages into the system instruction. Gemini names the assistant role
// "model".
func convertMessages(messages []llm.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	var systemInstruction string
	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem {
			if systemInstruction != "" {
				systemInstruction += "\n\n"
			}
			systemInstruction += msg.Content
			continue
		}

		role := "user"
		if msg.Role == llm.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}
	return contents, systemInstruction, nil
}

// GetModelName returns the configured model name.
func (c *Client) GetModelName() string {
	return c.model
}
