// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"time"

	"mindpal-go/pkg/llm"
	"mindpal-go/pkg/log"
)

// defaultFallback 是模型调用失败时返回给用户的固定降级文案。
const defaultFallback = "I'm sorry, I'm having trouble connecting to my systems right now."

// defaultGenerateTimeout 在配置未指定超时时生效。
const defaultGenerateTimeout = 60 * time.Second

// ResponseGenerator 封装对模型能力的单次调用，是故障隔离边界：
// 任何调用失败（网络、超时、响应异常）都被吸收为降级文案，不向上抛错。
type ResponseGenerator struct {
	client   llm.Client
	fallback string
	timeout  time.Duration
}

// NewResponseGenerator 创建一个 ResponseGenerator。
// fallback 为空时使用内置默认文案；timeoutSeconds <= 0 时使用默认超时。
func NewResponseGenerator(client llm.Client, fallback string, timeoutSeconds int) *ResponseGenerator {
	if fallback == "" {
		fallback = defaultFallback
	}
	timeout := defaultGenerateTimeout
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &ResponseGenerator{
		client:   client,
		fallback: fallback,
		timeout:  timeout,
	}
}

// Fallback 返回降级回复文案。
func (g *ResponseGenerator) Fallback() string {
	return g.fallback
}

// Generate 以组装好的提示序列调用模型并返回回复文本。
// 单次调用、限时等待，失败只记日志并返回降级文案。
func (g *ResponseGenerator) Generate(ctx context.Context, prompt []llm.Message) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	reply, err := g.client.ChatMessages(ctx, prompt)
	if err != nil {
		log.Errorf("LLM API error, falling back to canned reply: %v", err)
		return g.fallback
	}
	return reply
}
