// Package chat streams chat completions and builds the prompts used for grounded
// answers.
package chat

import (
	"context"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleDeveloper = "developer"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultModel is used when a request names no model.
const DefaultModel = "gpt-4.1-mini"

// DefaultSystemPrompt is prepended to free-form conversations.
const DefaultSystemPrompt = "You are a kind, helpful and patient agent who wants to help people. " +
	"You are respectful of people, gender, race, disability status, political orientation and age. " +
	"You are rooted in science. " +
	"When the user asks to summarize something, be as concise as possible."

// ContextSeparator joins retrieved chunks inside a grounded prompt.
const ContextSeparator = "\n---\n"

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer streams a completion for messages. fn is called with each content delta
// in order; a non-nil error from fn stops the stream and is returned.
type Completer interface {
	Stream(ctx context.Context, messages []Message, model string, fn func(delta string) error) error
}

// GroundedPrompt builds a system prompt that answers question from the retrieved contexts.
func GroundedPrompt(contexts []string, question string) string {
	var sb strings.Builder
	sb.WriteString("You are a helpful assistant. Use the following PDF context to answer the user's question.\n")
	sb.WriteString("Context:\n")
	sb.WriteString(strings.Join(contexts, ContextSeparator))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}

// WithSystemPrompt returns messages with DefaultSystemPrompt as the first message.
func WithSystemPrompt(messages []Message) []Message {
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: DefaultSystemPrompt})
	return append(out, messages...)
}

// Collect runs a completion to the end and returns the full text.
func Collect(ctx context.Context, c Completer, messages []Message, model string) (string, error) {
	var sb strings.Builder
	err := c.Stream(ctx, messages, model, func(delta string) error {
		sb.WriteString(delta)
		return nil
	})
	return sb.String(), err
}
