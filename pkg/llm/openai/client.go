// Package openai provides the OpenAI implementation of llm.Client using the
// official Go package's Responses API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"refinery/pkg/llm"
)

// Client wraps the official OpenAI Go client.
type Client struct {
	client openai.Client
	model  string
}

// NewClient creates an OpenAI-backed llm.Client for the given model.
func NewClient(apiKey, model string) llm.Client {
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete implements llm.Client. The Responses API takes a single input
// string, so the conversation is flattened with role prefixes.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	var inputText string
	for _, msg := range in.Messages {
		switch msg.Role {
		case llm.RoleSystem:
			inputText += fmt.Sprintf("System: %s\n\n", msg.Content)
		case llm.RoleAssistant:
			inputText += fmt.Sprintf("Assistant: %s\n\n", msg.Content)
		default:
			inputText += msg.Content + "\n\n"
		}
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(int64(in.MaxTokens)),
		Input:           responses.ResponseNewParamsInputUnion{OfString: openai.String(inputText)},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai responses API failed: %w", err)
	}
	if resp == nil {
		return llm.Response{}, fmt.Errorf("empty response from OpenAI API")
	}

	return llm.Response{Content: resp.OutputText()}, nil
}

// GetModelName returns the configured model name.
func (c *Client) GetModelName() string {
	return c.model
}
