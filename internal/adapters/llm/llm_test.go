package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/gemini"
	openai "opportunity-radar/internal/infra/openai"
)

type fakeGenerator struct {
	answer  string
	err     error
	prompts []Prompt
}

func (f *fakeGenerator) Generate(_ context.Context, p Prompt) (string, error) {
	f.prompts = append(f.prompts, p)
	return f.answer, f.err
}

type fakeChatClient struct {
	resp     openai.ChatCompletionResponse
	err      error
	captured openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.captured = req
	return f.resp, f.err
}

type fakeGeminiClient struct {
	text     string
	captured gemini.Request
}

func (f *fakeGeminiClient) Generate(_ context.Context, req gemini.Request) (string, error) {
	f.captured = req
	return f.text, nil
}

func TestParseScore(t *testing.T) {
	cases := []struct {
		in   any
		want int
	}{
		{float64(7), 7},
		{"7", 7},
		{"7/10", 7},
		{" 7.6 ", 8},
		{float64(0), 1},
		{"15", 10},
		{"high", defaultScore},
		{nil, defaultScore},
		{[]any{"7"}, defaultScore},
	}
	for _, tc := range cases {
		if got := parseScore(tc.in); got != tc.want {
			t.Fatalf("%v: ожидали %d, получили %d", tc.in, tc.want, got)
		}
	}
}

func TestParseObject(t *testing.T) {
	obj, err := parseObject("```json\n{\"Role Title\": \"Intern\", \"n\": 2}\n```")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if obj["Role Title"] != "Intern" {
		t.Fatalf("неверный разбор: %v", obj)
	}
	for _, bad := range []string{"", "no json here", "{broken", "} {"} {
		if _, err := parseObject(bad); !errors.Is(err, domain.ErrMalformedAIOutput) {
			t.Fatalf("%q: ожидали ErrMalformedAIOutput, получили %v", bad, err)
		}
	}
}

func TestClassifier(t *testing.T) {
	cases := []struct {
		answer  string
		want    bool
		wantErr bool
	}{
		{"YES", true, false},
		{" yes.", true, false},
		{"**Yes**", true, false},
		{"NO", false, false},
		{"Maybe", false, false},
		{"Answer: NO", false, false},
		{"Answer: YES", true, false},
		{"", false, false},
		{"nothing to add", false, false},
	}
	for _, tc := range cases {
		gen := &fakeGenerator{answer: tc.answer}
		got, err := NewClassifier(gen).Classify(context.Background(), "Internship", "body")
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Fatalf("%q: ожидали %v/%v, получили %v/%v", tc.answer, tc.want, tc.wantErr, got, err)
		}
		if !strings.Contains(gen.prompts[0].User, "SUBJECT: Internship") {
			t.Fatalf("тема должна попасть в запрос")
		}
	}

	gen := &fakeGenerator{err: errors.New("503")}
	if _, err := NewClassifier(gen).Classify(context.Background(), "", ""); err == nil {
		t.Fatalf("ожидали ошибку сервиса")
	}
}

func TestExtractorPrompts(t *testing.T) {
	gen := &fakeGenerator{answer: `{"Role Title": "Intern", "Institution/Company": "Acme"}`}
	ex := NewExtractor(gen)

	out, err := ex.Extract(context.Background(), domain.ExtractRequest{Subject: "Internship", BodyText: "apply", AttachmentText: "pdf text"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if out["Institution/Company"] != "Acme" {
		t.Fatalf("неверный разбор: %v", out)
	}
	first := gen.prompts[0]
	if !first.JSON || !strings.Contains(first.User, `"Stipend Details"`) || !strings.Contains(first.User, "pdf text") {
		t.Fatalf("первичный запрос должен перечислять поля и вложение: %q", first.User)
	}

	if _, err := ex.Extract(context.Background(), domain.ExtractRequest{Subject: "Re: Internship", FollowUp: true}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !strings.Contains(gen.prompts[1].User, "ONLY the fields explicitly mentioned") {
		t.Fatalf("для продолжения треда нужен отдельный запрос")
	}

	gen.answer = "I cannot help"
	if _, err := ex.Extract(context.Background(), domain.ExtractRequest{}); !errors.Is(err, domain.ErrMalformedAIOutput) {
		t.Fatalf("ожидали ErrMalformedAIOutput, получили %v", err)
	}
}

func TestScorer(t *testing.T) {
	fields := map[domain.Field]string{domain.FieldRole: "Data Intern", domain.FieldOrganization: "Acme"}
	cases := map[string]int{
		`{"score": 8}`:                  8,
		`{"score": "7/10"}`:             7,
		`{"Relevance Score (1-10)": 2}`: 2,
		`{"other": 1}`:                  defaultScore,
		`9`:                             9,
		`garbage`:                       defaultScore,
	}
	for answer, want := range cases {
		gen := &fakeGenerator{answer: answer}
		got, err := NewScorer(gen).Score(context.Background(), fields, "python, ml")
		if err != nil {
			t.Fatalf("%q: не ожидали ошибку: %v", answer, err)
		}
		if got != want {
			t.Fatalf("%q: ожидали %d, получили %d", answer, want, got)
		}
		if !strings.Contains(gen.prompts[0].User, "Role Title: Data Intern") || !strings.Contains(gen.prompts[0].User, "python, ml") {
			t.Fatalf("запрос должен содержать запись и резюме")
		}
	}
}

func TestOpenAIGenerator(t *testing.T) {
	client := &fakeChatClient{resp: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{Message: openai.ChatMessage{Content: " {\"a\":1} "}}}}}
	gen := NewOpenAI(client, "", time.Second)
	text, err := gen.Generate(context.Background(), Prompt{System: "sys", User: "hi", JSON: true})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if text != `{"a":1}` {
		t.Fatalf("неверный текст: %q", text)
	}
	if client.captured.Model != "gpt-4.1-mini" || len(client.captured.Messages) != 2 || client.captured.ResponseFormat == nil {
		t.Fatalf("неверный запрос: %+v", client.captured)
	}

	client.resp = openai.ChatCompletionResponse{}
	if _, err := gen.Generate(context.Background(), Prompt{User: "hi"}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("ожидали ErrEmptyResponse, получили %v", err)
	}
}

func TestGeminiGenerator(t *testing.T) {
	client := &fakeGeminiClient{text: "YES"}
	text, err := NewGemini(client, "gemini-2.5-flash").Generate(context.Background(), Prompt{System: "sys", User: "hi", MaxTokens: 5})
	if err != nil || text != "YES" {
		t.Fatalf("ожидали YES, получили %q %v", text, err)
	}
	if client.captured.Model != "gemini-2.5-flash" || client.captured.System != "sys" || client.captured.MaxTokens != 5 {
		t.Fatalf("неверный запрос: %+v", client.captured)
	}

	client.text = "  "
	if _, err := NewGemini(client, "").Generate(context.Background(), Prompt{}); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("ожидали ErrEmptyResponse, получили %v", err)
	}
}

func TestPacedRespectsContext(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	paced := NewPaced(gen, time.Hour)
	if _, err := paced.Generate(context.Background(), Prompt{}); err != nil {
		t.Fatalf("первый запрос проходит сразу: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := paced.Generate(ctx, Prompt{}); err == nil {
		t.Fatalf("второй запрос должен упереться в лимит")
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("запрос сверх лимита не должен доходить до модели")
	}

	unlimited := NewPaced(gen, 0)
	for i := 0; i < 3; i++ {
		if _, err := unlimited.Generate(context.Background(), Prompt{}); err != nil {
			t.Fatalf("без интервала лимита нет: %v", err)
		}
	}
}
