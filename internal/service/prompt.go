// Package service 包含了应用的业务逻辑层。
package service

import (
	"mindpal-go/internal/model"
	"mindpal-go/pkg/llm"
)

// defaultDirective 是默认的系统指令：设定陪伴者人设，并强制要求在
// 出现自伤、伤人或紧急情况的迹象时，引导用户联系急救或危机热线。
const defaultDirective = "You are a warm, empathetic, and encouraging AI buddy dedicated to helping people feel cared " +
	"for and offering general guidance on mental well-being and coping strategies. While you are " +
	"here to listen and support, remember that you are **not a licensed professional**." +
	"Always be on the lookout for signs of **immediate crisis or urgent safety concerns**. " +
	"If a user expresses distress suggesting harm to themselves or others, or is in an emergency, " +
	"you **must** immediately and clearly advise them to contact professional emergency services " +
	"(like 911 or their local equivalent), a crisis hotline, or a trusted mental health professional."

// PromptBuilder 将会话转录组装为发送给模型的消息序列。
type PromptBuilder struct {
	directive string
}

// NewPromptBuilder 创建一个 PromptBuilder。
// directive 为空时使用内置的默认指令；该文本在进程生命周期内不变。
func NewPromptBuilder(directive string) *PromptBuilder {
	if directive == "" {
		directive = defaultDirective
	}
	return &PromptBuilder{directive: directive}
}

// Directive 返回当前使用的系统指令文本。
func (b *PromptBuilder) Directive() string {
	return b.directive
}

// Build 组装提示序列：首条固定为系统指令，随后按存储顺序逐条映射
// 转录消息（USER -> user，AI -> assistant），不过滤、不截断、不改序。
// 完整历史在每次调用时全量重放，成本随会话长度线性增长。
func (b *PromptBuilder) Build(history []model.Message) []llm.Message {
	prompt := make([]llm.Message, 0, len(history)+1)
	prompt = append(prompt, llm.Message{Role: llm.RoleSystem, Content: b.directive})
	for _, msg := range history {
		switch msg.Sender {
		case model.SenderUser:
			prompt = append(prompt, llm.Message{Role: llm.RoleUser, Content: msg.Text})
		case model.SenderAI:
			prompt = append(prompt, llm.Message{Role: llm.RoleAssistant, Content: msg.Text})
		}
	}
	return prompt
}
