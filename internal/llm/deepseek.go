package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/codecritics/codecritic/internal/config"
)

const deepSeekBaseURL = "https://api.deepseek.com/v1"

// deepSeekProvider sends completions to DeepSeek's OpenAI-compatible chat
// completions endpoint.
type deepSeekProvider struct {
	client openai.Client
	model  string
}

func newDeepSeekProvider(cfg *config.Config) (Provider, error) {
	if cfg.AI.DeepSeekAPIKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY is not set")
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.AI.DeepSeekAPIKey),
		option.WithBaseURL(deepSeekBaseURL),
	)
	model := cfg.AI.DeepSeekModel
	if model == "" {
		model = "deepseek-chat"
	}
	return &deepSeekProvider{client: client, model: model}, nil
}

func (p *deepSeekProvider) Name() string { return "deepseek:" + p.model }

func (p *deepSeekProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Messages:    convertMessages(messages),
		Temperature: openai.Float(0.1),
		MaxTokens:   openai.Int(4096),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIErr(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("deepseek returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func classifyOpenAIErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return &RateLimitError{Err: err}
		case apiErr.StatusCode >= 500:
			return &TransientError{Err: err}
		}
		return err
	}
	return &TransientError{Err: err}
}
