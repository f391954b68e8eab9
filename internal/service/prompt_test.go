package service_test

import (
	"strings"
	"testing"
	"time"

	"mindpal-go/internal/model"
	"mindpal-go/internal/service"
	"mindpal-go/pkg/llm"

	"github.com/stretchr/testify/require"
)

func TestPromptStartsWithDirective(t *testing.T) {
	b := service.NewPromptBuilder("")

	prompt := b.Build(nil)
	require.Len(t, prompt, 1)
	require.Equal(t, llm.RoleSystem, prompt[0].Role)
	require.Equal(t, b.Directive(), prompt[0].Content)
	require.True(t, strings.Contains(prompt[0].Content, "emergency services"))
}

func TestPromptCustomDirective(t *testing.T) {
	b := service.NewPromptBuilder("custom directive")

	prompt := b.Build(nil)
	require.Equal(t, "custom directive", prompt[0].Content)
}

func TestPromptMapsHistoryOneToOneInOrder(t *testing.T) {
	b := service.NewPromptBuilder("")
	now := time.Now()
	history := []model.Message{
		{Sender: model.SenderUser, Text: "Hello", CreatedAt: now},
		{Sender: model.SenderAI, Text: "Hi there", CreatedAt: now.Add(time.Millisecond)},
		{Sender: model.SenderUser, Text: "And again?", CreatedAt: now.Add(2 * time.Millisecond)},
	}

	prompt := b.Build(history)
	require.Len(t, prompt, len(history)+1)

	require.Equal(t, llm.RoleUser, prompt[1].Role)
	require.Equal(t, "Hello", prompt[1].Content)
	require.Equal(t, llm.RoleAssistant, prompt[2].Role)
	require.Equal(t, "Hi there", prompt[2].Content)
	require.Equal(t, llm.RoleUser, prompt[3].Role)
	require.Equal(t, "And again?", prompt[3].Content)
}
