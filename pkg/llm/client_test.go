package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mindpal-go/internal/config"
	"mindpal-go/pkg/llm"

	"github.com/stretchr/testify/require"
)

func newClient(baseURL string) llm.Client {
	return llm.NewClient(config.LLMConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
	})
}

func TestChatMessagesSuccess(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello back"}}]}`))
	}))
	defer srv.Close()

	reply, err := newClient(srv.URL).ChatMessages(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "directive"},
		{Role: llm.RoleUser, Content: "hello"},
	})
	require.NoError(t, err)
	require.Equal(t, "hello back", reply)
	require.Equal(t, "Bearer test-key", gotAuth)
	require.Equal(t, "test-model", gotBody["model"])
	require.Len(t, gotBody["messages"], 2)
}

func TestChatMessagesNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).ChatMessages(context.Background(), nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "non-200")
}

func TestChatMessagesEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).ChatMessages(context.Background(), nil)
	require.Error(t, err)
}

func TestChatMessagesContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(srv.URL).ChatMessages(ctx, nil)
	require.Error(t, err)
}
