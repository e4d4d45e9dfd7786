// internal/api/board_notifier.go
package api

import (
	"time"

	"github.com/Corphon/BoardroomMCP/internal/models"
)

// BoardNotifier 将讨论进展事件广播给订阅了对应会话的 WebSocket 客户端
// 实现 services.EventNotifier
type BoardNotifier struct{}

// NewBoardNotifier 创建讨论事件通知器
func NewBoardNotifier() *BoardNotifier {
	return &BoardNotifier{}
}

// TypingStart 广播角色开始输入事件
func (n *BoardNotifier) TypingStart(conversationID, personaID, personaName string) {
	wsManager.BroadcastToConversation(conversationID, map[string]interface{}{
		"type":       "agent_typing_start",
		"agent_id":   personaID,
		"agent_name": personaName,
		"timestamp":  time.Now().Format(time.RFC3339),
	})
}

// TypingStop 广播角色停止输入事件
func (n *BoardNotifier) TypingStop(conversationID, personaID string) {
	wsManager.BroadcastToConversation(conversationID, map[string]interface{}{
		"type":      "agent_typing_stop",
		"agent_id":  personaID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// AgentMessage 广播一条新的角色发言
func (n *BoardNotifier) AgentMessage(conversationID string, msg *models.Message) {
	wsManager.BroadcastToConversation(conversationID, map[string]interface{}{
		"type":      "agent_message_received",
		"message":   msg,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// RoundCompleted 广播回合结束事件
func (n *BoardNotifier) RoundCompleted(conversationID string, roundNumber int) {
	wsManager.BroadcastToConversation(conversationID, map[string]interface{}{
		"type":         "round_completed",
		"round_number": roundNumber,
		"timestamp":    time.Now().Format(time.RFC3339),
	})
}

// StatusChange 广播会话状态变更事件
func (n *BoardNotifier) StatusChange(conversationID, status string) {
	wsManager.BroadcastToConversation(conversationID, map[string]interface{}{
		"type":      "status_change",
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
