// internal/models/analytics.go
package models

import "time"

// SessionAnalytics 记录单个会话的用量统计
type SessionAnalytics struct {
	ConversationID     string         `json:"conversation_id"`
	PromptTokens       int            `json:"prompt_tokens"`
	CompletionTokens   int            `json:"completion_tokens"`
	TotalTokens        int            `json:"total_tokens"`
	EstimatedCost      float64        `json:"estimated_cost"` // 美元
	AgentParticipation map[string]int `json:"agent_participation"`
	LastUpdated        time.Time      `json:"last_updated"`
}
