// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"errors"
	"sync"
	"time"

	"mindpal-go/internal/model"

	"gorm.io/gorm"
)

// ErrSessionOwnerMismatch 表示尝试向不属于该用户的会话追加消息。
// 这是仓储层的兜底校验，正常流程在会话解析阶段就应拦截。
var ErrSessionOwnerMismatch = errors.New("session does not belong to user")

// ChatRepository 接口定义了会话与消息转录的持久化操作。
type ChatRepository interface {
	// CreateSession 为用户分配一个新会话。
	CreateSession(userID uint) (*model.ChatSession, error)
	// FindSession 按 ID 查找属于该用户的会话。
	// 会话不存在与不属于该用户均返回 gorm.ErrRecordNotFound，不泄露他人会话的存在性。
	FindSession(sessionID, userID uint) (*model.ChatSession, error)
	// LatestSession 返回该用户创建时间最晚的会话；没有任何会话时返回 gorm.ErrRecordNotFound。
	LatestSession(userID uint) (*model.ChatSession, error)
	// AppendMessage 向会话转录追加一条消息，时间戳严格晚于该会话内所有已有消息。
	AppendMessage(session *model.ChatSession, userID uint, sender, text string) (*model.Message, error)
	// ListMessages 按创建时间升序返回会话的全部消息，空会话返回空切片而非错误。
	ListMessages(sessionID uint) ([]model.Message, error)
}

// chatRepository 是 ChatRepository 接口的 GORM 实现。
type chatRepository struct {
	db *gorm.DB
	// sessionLocks 按会话 ID 串行化追加写，保证同一会话内时间戳严格递增
	sessionLocks sync.Map // key: sessionID(uint), value: *sync.Mutex
}

// NewChatRepository 创建一个新的 ChatRepository 实例。
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// CreateSession 在数据库中创建一个新的会话记录。
func (r *chatRepository) CreateSession(userID uint) (*model.ChatSession, error) {
	session := &model.ChatSession{
		UserID:    userID,
		CreatedAt: time.Now(),
	}
	if err := r.db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// FindSession 按 (ID, 用户) 查找会话，归属校验折叠在查询条件里。
func (r *chatRepository) FindSession(sessionID, userID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// LatestSession 返回该用户最近创建的会话。
func (r *chatRepository) LatestSession(userID uint) (*model.ChatSession, error) {
	var session model.ChatSession
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		First(&session).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// AppendMessage 追加一条消息到会话转录。
// 同一会话的并发追加在此处串行化，新消息的时间戳取
// max(当前时间, 上一条时间戳+1ms)，保证严格递增且不重复。
func (r *chatRepository) AppendMessage(session *model.ChatSession, userID uint, sender, text string) (*model.Message, error) {
	if session.UserID != userID {
		return nil, ErrSessionOwnerMismatch
	}

	lockValue, _ := r.sessionLocks.LoadOrStore(session.ID, &sync.Mutex{})
	lock := lockValue.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	var last model.Message
	ts := time.Now()
	err := r.db.Where("session_id = ?", session.ID).
		Order("created_at DESC, id DESC").
		First(&last).Error
	if err == nil && !ts.After(last.CreatedAt) {
		ts = last.CreatedAt.Add(time.Millisecond)
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	message := &model.Message{
		UserID:    userID,
		SessionID: session.ID,
		Sender:    sender,
		Text:      text,
		CreatedAt: ts,
	}
	if err := r.db.Create(message).Error; err != nil {
		return nil, err
	}
	return message, nil
}

// ListMessages 按创建时间升序返回会话的全部消息。
func (r *chatRepository) ListMessages(sessionID uint) ([]model.Message, error) {
	messages := make([]model.Message, 0)
	err := r.db.Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
