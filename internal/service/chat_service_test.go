package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"mindpal-go/internal/model"
	"mindpal-go/internal/repository"
	"mindpal-go/internal/service"
	"mindpal-go/pkg/llm"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.User{}, &model.ChatSession{}, &model.Message{}))
	return db
}

func newChatService(t *testing.T, client llm.Client) (service.ChatService, repository.ChatRepository, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	repo := repository.NewChatRepository(db)
	svc := service.NewChatService(
		repo,
		service.NewPromptBuilder(""),
		service.NewResponseGenerator(client, "", 5),
	)
	return svc, repo, db
}

func sessionCount(t *testing.T, db *gorm.DB, userID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&model.ChatSession{}).Where("user_id = ?", userID).Count(&count).Error)
	return count
}

func TestSendMessageCreatesSessionForFirstTurn(t *testing.T) {
	client := &fakeLLM{reply: "Hi, how are you feeling today?"}
	svc, repo, db := newChatService(t, client)
	user := &model.User{ID: 1, Username: "alice"}

	result, err := svc.SendMessage(context.Background(), user, 0, "Hello")
	require.NoError(t, err)
	require.NotZero(t, result.SessionID)
	require.Equal(t, "Hi, how are you feeling today?", result.Reply)

	// 恰好新建了一个会话，转录为 USER 在前、AI 在后的两条消息
	require.EqualValues(t, 1, sessionCount(t, db, user.ID))
	messages, err := repo.ListMessages(result.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, model.SenderUser, messages[0].Sender)
	require.Equal(t, "Hello", messages[0].Text)
	require.Equal(t, model.SenderAI, messages[1].Sender)
	require.Equal(t, result.Reply, messages[1].Text)
}

func TestSendMessageReusesLatestSession(t *testing.T) {
	client := &fakeLLM{reply: "ok"}
	svc, repo, db := newChatService(t, client)
	user := &model.User{ID: 1, Username: "alice"}

	older, err := repo.CreateSession(user.ID)
	require.NoError(t, err)
	newer, err := repo.CreateSession(user.ID)
	require.NoError(t, err)

	result, err := svc.SendMessage(context.Background(), user, 0, "continue please")
	require.NoError(t, err)
	require.Equal(t, newer.ID, result.SessionID)
	require.NotEqual(t, older.ID, result.SessionID)
	require.EqualValues(t, 2, sessionCount(t, db, user.ID), "no new session expected")
}

func TestSendMessageExplicitSessionAndPromptShape(t *testing.T) {
	client := &fakeLLM{reply: "reply"}
	svc, repo, _ := newChatService(t, client)
	user := &model.User{ID: 1, Username: "alice"}

	first, err := svc.SendMessage(context.Background(), user, 0, "Hello")
	require.NoError(t, err)

	second, err := svc.SendMessage(context.Background(), user, first.SessionID, "And again?")
	require.NoError(t, err)
	require.Equal(t, first.SessionID, second.SessionID)

	messages, err := repo.ListMessages(first.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 4)
	require.Equal(t, []string{model.SenderUser, model.SenderAI, model.SenderUser, model.SenderAI},
		[]string{messages[0].Sender, messages[1].Sender, messages[2].Sender, messages[3].Sender})

	// 第二轮的提示：指令 + 前 3 条转录 + 新的用户消息，共 4 条
	prompt := client.lastPrompt()
	require.Len(t, prompt, 4)
	require.Equal(t, llm.RoleSystem, prompt[0].Role)
	require.Equal(t, llm.RoleUser, prompt[1].Role)
	require.Equal(t, "Hello", prompt[1].Content)
	require.Equal(t, llm.RoleAssistant, prompt[2].Role)
	require.Equal(t, llm.RoleUser, prompt[3].Role)
	require.Equal(t, "And again?", prompt[3].Content)
}

func TestSendMessageRejectsForeignSession(t *testing.T) {
	client := &fakeLLM{reply: "ok"}
	svc, repo, db := newChatService(t, client)

	other, err := repo.CreateSession(2)
	require.NoError(t, err)

	user := &model.User{ID: 1, Username: "alice"}
	_, err = svc.SendMessage(context.Background(), user, other.ID, "hi")
	require.ErrorIs(t, err, service.ErrSessionNotOwned)

	// 指定会话的分支不会兜底新建会话，也不会写入任何消息
	require.EqualValues(t, 0, sessionCount(t, db, user.ID))
	messages, err := repo.ListMessages(other.ID)
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	client := &fakeLLM{reply: "ok"}
	svc, _, db := newChatService(t, client)
	user := &model.User{ID: 1, Username: "alice"}

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := svc.SendMessage(context.Background(), user, 0, text)
		require.ErrorIs(t, err, service.ErrEmptyMessage)
	}

	// 校验失败发生在任何副作用之前
	require.EqualValues(t, 0, sessionCount(t, db, user.ID))
	require.Empty(t, client.prompts)
}

func TestSendMessageFallbackReplyIsPersisted(t *testing.T) {
	client := &fakeLLM{err: errors.New("provider outage")}
	svc, repo, _ := newChatService(t, client)
	user := &model.User{ID: 1, Username: "alice"}

	// 模型故障不会让这一轮失败
	result, err := svc.SendMessage(context.Background(), user, 0, "Hello")
	require.NoError(t, err)
	require.NotEmpty(t, result.Reply)

	messages, err := repo.ListMessages(result.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	require.Equal(t, model.SenderAI, messages[1].Sender)
	require.Equal(t, result.Reply, messages[1].Text)
}

func TestConcurrentFirstTurnsShareOneSession(t *testing.T) {
	client := &fakeLLM{reply: "ok"}
	svc, _, db := newChatService(t, client)
	user := &model.User{ID: 1, Username: "alice"}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.SendMessage(context.Background(), user, 0, "hello")
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	// find-latest-or-create 按用户串行化，不会分叉出多个会话
	require.EqualValues(t, 1, sessionCount(t, db, user.ID))
}

func TestGetSessionMessagesOwnership(t *testing.T) {
	client := &fakeLLM{reply: "ok"}
	svc, _, _ := newChatService(t, client)
	alice := &model.User{ID: 1, Username: "alice"}
	bob := &model.User{ID: 2, Username: "bob"}

	result, err := svc.SendMessage(context.Background(), alice, 0, "Hello")
	require.NoError(t, err)

	messages, err := svc.GetSessionMessages(alice, result.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	_, err = svc.GetSessionMessages(bob, result.SessionID)
	require.ErrorIs(t, err, service.ErrSessionNotOwned)
}
