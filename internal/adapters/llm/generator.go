package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"opportunity-radar/internal/infra/gemini"
	openai "opportunity-radar/internal/infra/openai"
)

// ErrEmptyResponse возвращается, если модель ответила пустым текстом.
var ErrEmptyResponse = errors.New("пустой ответ модели")

// Prompt: один запрос к модели.
type Prompt struct {
	System    string
	User      string
	JSON      bool
	MaxTokens int
}

// Generator возвращает текст ответа модели.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI реализует Generator через Chat Completions.
type OpenAI struct {
	client  chatClient
	model   string
	timeout time.Duration
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI создаёт генератор на OpenAI.
func NewOpenAI(client chatClient, model string, timeout time.Duration) *OpenAI {
	if model == "" {
		model = "gpt-4.1-mini"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAI{client: client, model: model, timeout: timeout}
}

// Generate отправляет запрос в Chat Completions.
func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		MaxTokens:   p.MaxTokens,
	}
	if p.System != "" {
		req.Messages = append(req.Messages, openai.ChatMessage{Role: openai.RoleSystem, Content: p.System})
	}
	req.Messages = append(req.Messages, openai.ChatMessage{Role: openai.RoleUser, Content: p.User})
	if p.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

type geminiClient interface {
	Generate(ctx context.Context, req gemini.Request) (string, error)
}

// Gemini реализует Generator через Gemini API.
type Gemini struct {
	client geminiClient
	model  string
}

var _ Generator = (*Gemini)(nil)

// NewGemini создаёт генератор на Gemini.
func NewGemini(client geminiClient, model string) *Gemini {
	return &Gemini{client: client, model: model}
}

// Generate отправляет запрос в Gemini.
func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	text, err := g.client.Generate(ctx, gemini.Request{
		Model:       g.model,
		System:      p.System,
		Prompt:      p.User,
		JSON:        p.JSON,
		Temperature: 0.1,
		MaxTokens:   int32(p.MaxTokens),
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Paced ограничивает частоту обращений к модели.
type Paced struct {
	next    Generator
	limiter *rate.Limiter
}

var _ Generator = (*Paced)(nil)

// NewPaced создаёт обёртку с минимальным интервалом между запросами; 0: без ограничения.
func NewPaced(next Generator, interval time.Duration) *Paced {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Paced{next: next, limiter: rate.NewLimiter(limit, 1)}
}

// Generate ждёт своей очереди и делегирует запрос.
func (p *Paced) Generate(ctx context.Context, prompt Prompt) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("ожидание лимита: %w", err)
	}
	return p.next.Generate(ctx, prompt)
}
