// internal/services/analytics_service.go
package services

import (
	"sync"
	"time"

	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/storage"
	"github.com/Corphon/BoardroomMCP/internal/utils"
)

const analyticsDir = "analytics"

// 每百万token的估算单价（美元）
const (
	promptTokenCostPerMillion     = 2.50
	completionTokenCostPerMillion = 10.00
)

// AnalyticsService 累计每个会话的token消耗与角色参与度
// 写入采用脏标记+定时批量落盘，避免每次发言都触发磁盘IO
type AnalyticsService struct {
	storage *storage.FileStorage

	mu       sync.RWMutex
	sessions map[string]*models.SessionAnalytics
	dirty    map[string]bool

	stopCh chan struct{}
	once   sync.Once
}

// NewAnalyticsService 创建分析服务并启动后台落盘协程
func NewAnalyticsService(fileStorage *storage.FileStorage) *AnalyticsService {
	s := &AnalyticsService{
		storage:  fileStorage,
		sessions: make(map[string]*models.SessionAnalytics),
		dirty:    make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
	go s.flushLoop()
	return s
}

// RecordTurn 记录一次角色发言的token消耗
func (s *AnalyticsService) RecordTurn(conversationID, personaID string, usage *models.TokenUsage) {
	if usage == nil {
		usage = &models.TokenUsage{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.loadOrCreateLocked(conversationID)
	session.PromptTokens += usage.PromptTokens
	session.CompletionTokens += usage.CompletionTokens
	session.TotalTokens += usage.TotalTokens
	session.EstimatedCost = estimateCost(session.PromptTokens, session.CompletionTokens)
	if personaID != "" {
		session.AgentParticipation[personaID]++
	}
	session.LastUpdated = time.Now()
	s.dirty[conversationID] = true
}

// GetAnalytics 返回会话的统计快照；不存在时返回零值统计
func (s *AnalyticsService) GetAnalytics(conversationID string) (*models.SessionAnalytics, error) {
	if conversationID == "" {
		return nil, apperrors.NewValidationError("会话ID不能为空", nil)
	}

	s.mu.RLock()
	if session, ok := s.sessions[conversationID]; ok {
		snapshot := copySession(session)
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return copySession(s.loadOrCreateLocked(conversationID)), nil
}

// Flush 立即落盘所有脏数据
func (s *AnalyticsService) Flush() {
	s.mu.Lock()
	pending := make(map[string]*models.SessionAnalytics, len(s.dirty))
	for id := range s.dirty {
		if session, ok := s.sessions[id]; ok {
			pending[id] = copySession(session)
		}
	}
	s.dirty = make(map[string]bool)
	s.mu.Unlock()

	for id, session := range pending {
		if err := s.storage.SaveJSONFile(analyticsDir, id+".json", session); err != nil {
			utils.GetLogger().Error("Failed to persist analytics", map[string]interface{}{
				"conversation_id": id,
				"err":             err.Error(),
			})
			// 落盘失败时保留脏标记等待下次重试
			s.mu.Lock()
			s.dirty[id] = true
			s.mu.Unlock()
		}
	}
}

// Stop 停止后台落盘协程并做最后一次落盘
func (s *AnalyticsService) Stop() {
	s.once.Do(func() {
		close(s.stopCh)
	})
	s.Flush()
}

// loadOrCreateLocked 从内存或磁盘加载统计，必须在持有写锁时调用
func (s *AnalyticsService) loadOrCreateLocked(conversationID string) *models.SessionAnalytics {
	if session, ok := s.sessions[conversationID]; ok {
		return session
	}

	session := &models.SessionAnalytics{
		ConversationID:     conversationID,
		AgentParticipation: make(map[string]int),
		LastUpdated:        time.Now(),
	}
	if s.storage.FileExists(analyticsDir, conversationID+".json") {
		if err := s.storage.LoadJSONFile(analyticsDir, conversationID+".json", session); err != nil {
			utils.GetLogger().Warn("Failed to load persisted analytics, starting fresh", map[string]interface{}{
				"conversation_id": conversationID,
				"err":             err.Error(),
			})
		}
		if session.AgentParticipation == nil {
			session.AgentParticipation = make(map[string]int)
		}
	}

	s.sessions[conversationID] = session
	return session
}

func (s *AnalyticsService) flushLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush()
		case <-s.stopCh:
			return
		}
	}
}

func estimateCost(promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1_000_000*promptTokenCostPerMillion +
		float64(completionTokens)/1_000_000*completionTokenCostPerMillion
}

func copySession(session *models.SessionAnalytics) *models.SessionAnalytics {
	snapshot := *session
	snapshot.AgentParticipation = make(map[string]int, len(session.AgentParticipation))
	for k, v := range session.AgentParticipation {
		snapshot.AgentParticipation[k] = v
	}
	return &snapshot
}
