package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "", time.Second); err == nil {
		t.Fatalf("ожидали ошибку без ключа")
	}
}

func TestGenerate(t *testing.T) {
	var (
		gotPath string
		gotBody map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "  YES \n"}]}}],
			"usageMetadata": {"promptTokenCount": 10, "candidatesTokenCount": 1, "totalTokenCount": 11}
		}`))
	}))
	defer srv.Close()

	client, err := newClient(context.Background(), &genai.ClientConfig{
		APIKey:      "key",
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  srv.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL + "/"},
	}, time.Second)
	if err != nil {
		t.Fatalf("создание клиента: %v", err)
	}
	text, err := client.Generate(context.Background(), Request{System: "screen", Prompt: "Is it?", MaxTokens: 5})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if text != "YES" {
		t.Fatalf("ответ должен обрезаться: %q", text)
	}
	if !strings.Contains(gotPath, defaultModel+":generateContent") {
		t.Fatalf("без модели используется модель по умолчанию: %s", gotPath)
	}
	if _, ok := gotBody["systemInstruction"]; !ok {
		t.Fatalf("системная инструкция не передана: %v", gotBody)
	}
}
