package llm

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/codecritics/codecritic/internal/config"
)

// geminiProvider sends completions through Google's Gemini API.
type geminiProvider struct {
	client *genai.Client
	model  string
}

func newGeminiProvider(cfg *config.Config) (Provider, error) {
	if cfg.AI.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.AI.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("construct gemini client: %w", err)
	}
	model := cfg.AI.GeminiModel
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &geminiProvider{client: client, model: model}, nil
}

func (p *geminiProvider) Name() string { return "gemini:" + p.model }

func (p *geminiProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	var systemPrompt string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case "system":
			systemPrompt += m.Content
		case "assistant":
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	temperature := float32(0.1)
	maxTokens := int32(4096)
	genConfig := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: maxTokens,
	}
	if systemPrompt != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, genConfig)
	if err != nil {
		return "", classifyGeminiErr(err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty response")
	}
	return text, nil
}

func classifyGeminiErr(err error) error {
	var apiErr *genai.APIError
	if ok := asGenaiAPIError(err, &apiErr); ok {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return &RateLimitError{Err: err}
		case apiErr.Code >= 500:
			return &TransientError{Err: err}
		}
		return err
	}
	return &TransientError{Err: err}
}

func asGenaiAPIError(err error, target **genai.APIError) bool {
	if apiErr, ok := err.(*genai.APIError); ok {
		*target = apiErr
		return true
	}
	return false
}
