// Package llm provides the client interface and shared types for language
// model backends. Providers live in subpackages; resilience and metrics are
// applied by the capability layer, not here.
package llm

import (
	"context"
)

// Role identifies who authored a message.
type Role string

const (
	// RoleSystem carries instructions or context.
	RoleSystem Role = "system"
	// RoleUser carries the request content.
	RoleUser Role = "user"
	// RoleAssistant carries a prior model response.
	RoleAssistant Role = "assistant"
)

const (
	// TemperatureReview is used for critique and validation calls: some
	// exploration, but focused.
	TemperatureReview float32 = 0.3
	// TemperatureDraft is used for drafting and synthesis.
	TemperatureDraft float32 = 0.2

	// DefaultMaxTokens bounds a single completion.
	DefaultMaxTokens = 4096
)

// Message is one turn of a completion conversation.
type Message struct {
	Role    Role
	Content string
}

// Request is a completion request.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// Response is a completion response.
type Response struct {
	Content    string
	StopReason string // "end_turn", "max_tokens", etc.
}

// Client is the interface every provider implements.
type Client interface {
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in Request) (Response, error)

	// GetModelName returns the backing model's name.
	GetModelName() string
}

// NewRequest builds a request with default limits.
func NewRequest(messages []Message) Request {
	return Request{
		Messages:    messages,
		MaxTokens:   DefaultMaxTokens,
		Temperature: TemperatureReview,
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}
