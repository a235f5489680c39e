package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"opportunity-radar/internal/infra/metrics"
)

const defaultModel = "gemini-2.5-flash"

// Client выполняет запросы к Gemini API.
type Client struct {
	models  *genai.Models
	timeout time.Duration
}

// Request описывает один вызов модели.
type Request struct {
	Model       string
	System      string
	Prompt      string
	JSON        bool
	Temperature float32
	MaxTokens   int32
}

// NewClient создаёт клиента Gemini.
func NewClient(ctx context.Context, apiKey string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: api key is empty")
	}
	return newClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, timeout)
}

func newClient(ctx context.Context, cfg *genai.ClientConfig, timeout time.Duration) (*Client, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{models: client.Models, timeout: timeout}, nil
}

// Generate возвращает текст ответа модели.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		cfg.Temperature = &temp
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = req.MaxTokens
	}
	contents := []*genai.Content{{
		Role:  string(genai.RoleUser),
		Parts: []*genai.Part{{Text: req.Prompt}},
	}}

	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, model, contents, cfg)
	metrics.ObserveNetworkRequest("gemini", "generate_content", model, start, err)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if usage := resp.UsageMetadata; usage != nil {
		metrics.ObserveLLMGeneration(model, time.Since(start), int(usage.PromptTokenCount), int(usage.CandidatesTokenCount), int(usage.TotalTokenCount))
	}
	return strings.TrimSpace(resp.Text()), nil
}
