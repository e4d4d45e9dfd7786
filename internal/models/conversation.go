// internal/models/conversation.go
package models

import "time"

// 会话状态
const (
	ConversationStatusActive    = "active"
	ConversationStatusCompleted = "completed"
	ConversationStatusArchived  = "archived"
)

// Conversation 表示一次多角色讨论会话
type Conversation struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title"`
	Context        string                 `json:"context,omitempty"` // 议题背景
	Status         string                 `json:"status"`
	MaxRounds      int                    `json:"max_rounds"`
	CurrentRound   int                    `json:"current_round"`
	ActivePersonas []string               `json:"active_personas"` // 参与讨论的角色ID，按座次顺序
	CurrentSpeaker string                 `json:"current_speaker,omitempty"`
	TurnIndex      int                    `json:"turn_index"` // 累计成功发言次数
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// TurnPatch 描述一次发言周期结束后需要落盘的会话变更
// 只携带变化的计数字段，由会话服务在会话锁内原子应用
type TurnPatch struct {
	TurnIndex      *int    `json:"turn_index,omitempty"`
	CurrentRound   *int    `json:"current_round,omitempty"`
	Status         *string `json:"status,omitempty"`
	CurrentSpeaker *string `json:"current_speaker,omitempty"`
}

// IsCompleted 检查会话是否已达到讨论轮次上限
func (c *Conversation) IsCompleted() bool {
	return c.CurrentRound >= c.MaxRounds
}

// HasPersona 检查角色是否在本会话的参与名单中
func (c *Conversation) HasPersona(personaID string) bool {
	for _, id := range c.ActivePersonas {
		if id == personaID {
			return true
		}
	}
	return false
}
