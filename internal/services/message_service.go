// internal/services/message_service.go
package services

import (
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/storage"
	"github.com/Corphon/BoardroomMCP/internal/utils"
)

// MessageService 管理会话内消息的持久化与读取
type MessageService struct {
	storage *storage.FileStorage
}

// NewMessageService 创建消息服务
func NewMessageService(fileStorage *storage.FileStorage) *MessageService {
	return &MessageService{storage: fileStorage}
}

func messagesDir(conversationID string) string {
	return conversationsDir + "/" + conversationID + "/messages"
}

// AppendMessage 持久化一条消息；ID和时间戳为空时自动填充
func (s *MessageService) AppendMessage(msg *models.Message) (*models.Message, error) {
	if msg == nil {
		return nil, apperrors.NewValidationError("消息不能为空", nil)
	}
	if msg.ConversationID == "" {
		return nil, apperrors.NewValidationError("消息必须属于一个会话", nil)
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := s.storage.SaveJSONFile(messagesDir(msg.ConversationID), msg.ID+".json", msg); err != nil {
		return nil, apperrors.NewProcessingError("保存消息失败", err)
	}
	return msg, nil
}

// GetMessages 返回会话的全部消息，按创建时间升序
func (s *MessageService) GetMessages(conversationID string) ([]*models.Message, error) {
	files, err := s.storage.ListFiles(messagesDir(conversationID))
	if err != nil {
		return nil, apperrors.NewProcessingError("读取消息列表失败", err)
	}

	messages := make([]*models.Message, 0, len(files))
	for _, f := range files {
		var msg models.Message
		if err := s.storage.LoadJSONFile(messagesDir(conversationID), f, &msg); err != nil {
			utils.GetLogger().Warn("Skipping unreadable message file", map[string]interface{}{"file": f, "err": err.Error()})
			continue
		}
		messages = append(messages, &msg)
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

// GetAgentMessages 返回会话中角色发出的消息，按创建时间升序
func (s *MessageService) GetAgentMessages(conversationID string) ([]*models.Message, error) {
	all, err := s.GetMessages(conversationID)
	if err != nil {
		return nil, err
	}

	agentMessages := make([]*models.Message, 0, len(all))
	for _, msg := range all {
		if msg.Role == models.MessageRoleAgent {
			agentMessages = append(agentMessages, msg)
		}
	}
	return agentMessages, nil
}
