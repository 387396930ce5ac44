package grazie

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
)

const (
	DefaultChatModel      = "anthropic/claude-3-5-sonnet-20241022"
	defaultAnthropicModel = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens      = 4096
)

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("empty response from model")

// MessageRequest is a single-turn Anthropic messages call
type MessageRequest struct {
	Model     string
	System    string
	Prompt    string
	MaxTokens int64
}

type MessageResponse struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Message sends one user turn through the gateway's Anthropic endpoint
func (c *Client) Message(ctx context.Context, req MessageRequest) (MessageResponse, error) {
	model := strings.TrimPrefix(strings.TrimSpace(req.Model), "anthropic/")
	if model == "" {
		model = defaultAnthropicModel
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.anthropic.Messages.New(ctx, params)
	if err != nil {
		return MessageResponse{}, translateError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	c.log.WithFields(logrus.Fields{
		"model":         model,
		"input_tokens":  msg.Usage.InputTokens,
		"output_tokens": msg.Usage.OutputTokens,
	}).Debug("Anthropic message completed")

	return MessageResponse{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

// Chat routes a prompt by model prefix: anthropic/ and unknown prefixes go
// to the Anthropic endpoint, openai/ to chat completions.
func (c *Client) Chat(ctx context.Context, model, message string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultChatModel
	}

	switch {
	case strings.HasPrefix(model, "openai/"):
		return c.openaiChat(ctx, strings.TrimPrefix(model, "openai/"), message)
	case strings.HasPrefix(model, "anthropic/"):
		resp, err := c.Message(ctx, MessageRequest{Model: model, Prompt: message})
		return resp.Text, err
	default:
		resp, err := c.Message(ctx, MessageRequest{Model: defaultAnthropicModel, Prompt: message})
		return resp.Text, err
	}
}

func (c *Client) openaiChat(ctx context.Context, model, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	resp, err := c.openai.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(message),
		},
	})
	if err != nil {
		return "", translateError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}
