// internal/models/message.go
package models

import "time"

// 消息角色
const (
	MessageRoleUser   = "user"
	MessageRoleAgent  = "agent"
	MessageRoleSystem = "system"
)

// Message 表示会话中的一条消息
type Message struct {
	ID               string                 `json:"id"`
	ConversationID   string                 `json:"conversation_id"`
	Role             string                 `json:"role"`
	AgentType        string                 `json:"agent_type,omitempty"` // role=agent 时的角色ID
	Content          string                 `json:"content"`
	RoundNumber      int                    `json:"round_number"`
	StructuredOutput *StructuredOutput      `json:"structured_output,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
}

// StructuredOutput 保存角色回应除正文外的结构化部分
type StructuredOutput struct {
	Reasoning   string   `json:"reasoning,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// AgentReply 是角色生成器返回的完整回应
// Silence 为 true 表示角色本轮选择不发言
type AgentReply struct {
	Content     string   `json:"content"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Confidence  float64  `json:"confidence,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Silence     bool     `json:"silence,omitempty"`
}

// TokenUsage 记录一次生成调用的token消耗
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
