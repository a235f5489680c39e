package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestCreateChatCompletionRetriesOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("нет заголовка авторизации")
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"YES"}}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`))
	}))
	defer srv.Close()

	client := NewClient("key", srv.URL, time.Second)
	client.backoff = time.Millisecond
	resp, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if resp.Choices[0].Message.Content != "YES" {
		t.Fatalf("неверный ответ: %+v", resp)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("ожидали повтор после 503, вызовов: %d", calls)
	}
}

func TestCreateChatCompletionDoesNotRetryClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	client := NewClient("key", srv.URL, time.Second)
	client.backoff = time.Millisecond
	_, err := client.CreateChatCompletion(context.Background(), ChatCompletionRequest{Model: "m"})
	statusErr, ok := err.(*StatusError)
	if !ok || statusErr.StatusCode != http.StatusUnauthorized || statusErr.Message != "bad key" {
		t.Fatalf("ожидали StatusError 401, получили %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("401 не повторяется")
	}
}

func TestCreateChatCompletionRequiresKey(t *testing.T) {
	if _, err := NewClient("", "", 0).CreateChatCompletion(context.Background(), ChatCompletionRequest{}); err == nil {
		t.Fatalf("ожидали ошибку без ключа")
	}
}
