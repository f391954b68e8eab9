// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"mindpal-go/internal/model"
	"mindpal-go/internal/repository"
	"mindpal-go/pkg/log"

	"gorm.io/gorm"
)

var (
	// ErrEmptyMessage 表示请求缺少消息正文。
	ErrEmptyMessage = errors.New("message text is required")
	// ErrSessionNotOwned 表示指定的会话不存在，或不属于当前用户。
	// 两种情况对调用方不可区分，统一按“未找到”处理。
	ErrSessionNotOwned = errors.New("session not found or not owned by user")
)

// SendMessageResult 是一轮对话的处理结果。
type SendMessageResult struct {
	SessionID uint
	Reply     string
}

// ChatService 定义了对话相关的业务操作。
type ChatService interface {
	// SendMessage 处理一轮完整对话：解析会话、落库用户消息、组装上下文、
	// 生成并落库回复。sessionID 为 0 表示未指定会话。
	SendMessage(ctx context.Context, user *model.User, sessionID uint, text string) (*SendMessageResult, error)
	// GetSessionMessages 按时间升序返回指定会话的完整转录，仅限会话归属用户。
	GetSessionMessages(user *model.User, sessionID uint) ([]model.Message, error)
}

// chatService 是 ChatService 接口的实现。
type chatService struct {
	chatRepo  repository.ChatRepository
	prompts   *PromptBuilder
	generator *ResponseGenerator
	// userLocks 按用户 ID 串行化“取最新会话或新建”的解析过程，
	// 避免同一用户的并发首轮请求各自建出一个会话
	userLocks sync.Map // key: userID(uint), value: *sync.Mutex
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(chatRepo repository.ChatRepository, prompts *PromptBuilder, generator *ResponseGenerator) ChatService {
	return &chatService{
		chatRepo:  chatRepo,
		prompts:   prompts,
		generator: generator,
	}
}

// SendMessage 协调一轮对话。
// 用户消息在调用模型前已持久化：即便生成失败，消息也不会丢失，
// 且模型往返期间不持有任何存储层的锁。
func (s *chatService) SendMessage(ctx context.Context, user *model.User, sessionID uint, text string) (*SendMessageResult, error) {
	// 1. 入参校验，未产生任何副作用前拒绝空消息
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	// 2. 解析会话
	session, err := s.resolveSession(user, sessionID)
	if err != nil {
		return nil, err
	}

	// 3. 先落库用户消息，保证在模型调用前已持久化
	if _, err := s.chatRepo.AppendMessage(session, user.ID, model.SenderUser, text); err != nil {
		return nil, fmt.Errorf("failed to append user message: %w", err)
	}

	// 4. 全量读出转录（含刚写入的这条）组装提示并调用模型
	history, err := s.chatRepo.ListMessages(session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}
	prompt := s.prompts.Build(history)
	reply := s.generator.Generate(ctx, prompt)

	// 5. 落库 AI 回复
	if _, err := s.chatRepo.AppendMessage(session, user.ID, model.SenderAI, reply); err != nil {
		// 步骤 3 与 5 之间没有事务边界，此处失败会留下一条未应答的用户消息
		return nil, fmt.Errorf("failed to append ai message: %w", err)
	}

	log.Infow("chat turn completed",
		"userId", user.ID,
		"sessionId", session.ID,
		"historyLen", len(history),
	)

	return &SendMessageResult{
		SessionID: session.ID,
		Reply:     reply,
	}, nil
}

// resolveSession 决定新消息归属的会话。
// 指定了 sessionID 时只做查找，不存在或不属于该用户即报错，不会新建；
// 未指定时复用最近创建的会话，没有则新建一个。后者在按用户的互斥锁内
// 完成，使 find-latest-or-create 成为原子操作。
func (s *chatService) resolveSession(user *model.User, sessionID uint) (*model.ChatSession, error) {
	if sessionID != 0 {
		session, err := s.chatRepo.FindSession(sessionID, user.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSessionNotOwned
			}
			return nil, fmt.Errorf("failed to find session: %w", err)
		}
		return session, nil
	}

	lockValue, _ := s.userLocks.LoadOrStore(user.ID, &sync.Mutex{})
	lock := lockValue.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.chatRepo.LatestSession(user.ID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find latest session: %w", err)
	}

	session, err = s.chatRepo.CreateSession(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	log.Infof("created new chat session %d for user %d", session.ID, user.ID)
	return session, nil
}

// GetSessionMessages 返回指定会话的完整转录。
func (s *chatService) GetSessionMessages(user *model.User, sessionID uint) ([]model.Message, error) {
	// 归属校验与查找合一，不泄露他人会话的存在性
	session, err := s.chatRepo.FindSession(sessionID, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotOwned
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return s.chatRepo.ListMessages(session.ID)
}
