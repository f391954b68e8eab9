// Package model 包含了应用的数据模型定义。
package model

import "time"

// 消息发送方，二选一。
const (
	SenderUser = "USER"
	SenderAI   = "AI"
)

// ChatSession 代表一个连续的对话会话。
// 会话头在创建后不可变：归属用户与创建时间均不会再被修改。
type ChatSession struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// Message 代表会话转录中的一条消息。
// 同一会话内的消息按 CreatedAt 严格递增，只追加、不修改。
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	SessionID uint      `gorm:"index:idx_session_created;not null" json:"sessionId"`
	Sender    string    `gorm:"size:4;not null" json:"sender"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CreatedAt time.Time `gorm:"index:idx_session_created;not null" json:"createdAt"`
}

func (Message) TableName() string {
	return "messages"
}
