// internal/services/conversation_service.go
package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/storage"
	"github.com/Corphon/BoardroomMCP/internal/utils"
)

const conversationsDir = "conversations"

// ConversationService 管理讨论会话的生命周期与回合状态
type ConversationService struct {
	storage *storage.FileStorage
	locks   *LockManager
}

// NewConversationService 创建会话服务
func NewConversationService(fileStorage *storage.FileStorage, locks *LockManager) *ConversationService {
	return &ConversationService{
		storage: fileStorage,
		locks:   locks,
	}
}

func conversationDir(id string) string {
	return conversationsDir + "/" + id
}

// CreateConversation 创建一个新的讨论会话
func (s *ConversationService) CreateConversation(title, context string, personaIDs []string, maxRounds int) (*models.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		return nil, apperrors.NewValidationError("会话标题不能为空", nil)
	}
	if len(personaIDs) == 0 {
		return nil, apperrors.NewValidationError("会话至少需要一个参与角色", nil)
	}
	if maxRounds <= 0 {
		maxRounds = 3
	}

	now := time.Now()
	conversation := &models.Conversation{
		ID:             uuid.New().String(),
		Title:          title,
		Context:        context,
		Status:         models.ConversationStatusActive,
		MaxRounds:      maxRounds,
		CurrentRound:   0,
		TurnIndex:      0,
		ActivePersonas: personaIDs,
		Metadata:       make(map[string]interface{}),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.storage.SaveJSONFile(conversationDir(conversation.ID), "conversation.json", conversation); err != nil {
		return nil, apperrors.NewProcessingError("保存会话失败", err)
	}

	utils.GetLogger().Info("Conversation created", map[string]interface{}{
		"conversation_id": conversation.ID,
		"personas":        len(personaIDs),
		"max_rounds":      maxRounds,
	})
	return conversation, nil
}

// GetConversation 按ID加载会话
func (s *ConversationService) GetConversation(id string) (*models.Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("会话ID不能为空", nil)
	}

	var conversation models.Conversation
	if err := s.storage.LoadJSONFile(conversationDir(id), "conversation.json", &conversation); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("会话不存在: %s", id), err)
	}
	return &conversation, nil
}

// ListConversations 返回全部会话，按更新时间降序
func (s *ConversationService) ListConversations() ([]*models.Conversation, error) {
	dirs, err := s.storage.ListDirs(conversationsDir)
	if err != nil {
		return nil, apperrors.NewProcessingError("读取会话列表失败", err)
	}

	conversations := make([]*models.Conversation, 0, len(dirs))
	for _, dir := range dirs {
		var conversation models.Conversation
		if err := s.storage.LoadJSONFile(conversationDir(dir), "conversation.json", &conversation); err != nil {
			utils.GetLogger().Warn("Skipping unreadable conversation", map[string]interface{}{"dir": dir, "err": err.Error()})
			continue
		}
		conversations = append(conversations, &conversation)
	}

	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	return conversations, nil
}

// UpdateConversation 更新会话的标题、背景或角色名单
func (s *ConversationService) UpdateConversation(id string, title, context string, personaIDs []string, maxRounds int) (*models.Conversation, error) {
	var updated *models.Conversation
	err := s.locks.ExecuteWithConversationLock(id, func() error {
		conversation, err := s.GetConversation(id)
		if err != nil {
			return err
		}

		if title != "" {
			conversation.Title = title
		}
		if context != "" {
			conversation.Context = context
		}
		if personaIDs != nil {
			conversation.ActivePersonas = personaIDs
		}
		if maxRounds > 0 {
			conversation.MaxRounds = maxRounds
		}
		conversation.UpdatedAt = time.Now()

		if err := s.storage.SaveJSONFile(conversationDir(id), "conversation.json", conversation); err != nil {
			return apperrors.NewProcessingError("保存会话失败", err)
		}
		updated = conversation
		return nil
	})
	return updated, err
}

// ApplyTurnPatch 在会话锁内原子地应用一次回合状态变更
// 状态只能前进：已完成的会话不会被补丁退回活跃状态
func (s *ConversationService) ApplyTurnPatch(id string, patch *models.TurnPatch) (*models.Conversation, error) {
	var updated *models.Conversation
	err := s.locks.ExecuteWithConversationLock(id, func() error {
		conversation, err := s.GetConversation(id)
		if err != nil {
			return err
		}

		if patch.TurnIndex != nil {
			conversation.TurnIndex = *patch.TurnIndex
		}
		if patch.CurrentRound != nil {
			conversation.CurrentRound = *patch.CurrentRound
		}
		if patch.CurrentSpeaker != nil {
			conversation.CurrentSpeaker = *patch.CurrentSpeaker
		}
		if patch.Status != nil && conversation.Status != models.ConversationStatusCompleted {
			conversation.Status = *patch.Status
		}
		conversation.UpdatedAt = time.Now()

		if err := s.storage.SaveJSONFile(conversationDir(id), "conversation.json", conversation); err != nil {
			return apperrors.NewProcessingError("保存会话状态失败", err)
		}
		updated = conversation
		return nil
	})
	return updated, err
}

// ArchiveConversation 将会话标记为已归档
func (s *ConversationService) ArchiveConversation(id string) (*models.Conversation, error) {
	var updated *models.Conversation
	err := s.locks.ExecuteWithConversationLock(id, func() error {
		conversation, err := s.GetConversation(id)
		if err != nil {
			return err
		}
		conversation.Status = models.ConversationStatusArchived
		conversation.UpdatedAt = time.Now()

		if err := s.storage.SaveJSONFile(conversationDir(id), "conversation.json", conversation); err != nil {
			return apperrors.NewProcessingError("保存会话状态失败", err)
		}
		updated = conversation
		return nil
	})
	return updated, err
}

// DeleteConversation 删除会话及其全部消息
func (s *ConversationService) DeleteConversation(id string) error {
	if _, err := s.GetConversation(id); err != nil {
		return err
	}
	return s.locks.ExecuteWithConversationLock(id, func() error {
		if err := s.storage.DeleteDir(conversationDir(id)); err != nil {
			return apperrors.NewProcessingError("删除会话失败", err)
		}
		return nil
	})
}
