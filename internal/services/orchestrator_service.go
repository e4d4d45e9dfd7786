// internal/services/orchestrator_service.go
package services

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/utils"
)

// NoDiscussionSummary 没有任何角色发言时返回的固定总结文本
const NoDiscussionSummary = "No discussion to summarize yet."

// ConversationStore 编排器需要的会话存取能力
type ConversationStore interface {
	GetConversation(id string) (*models.Conversation, error)
	ApplyTurnPatch(id string, patch *models.TurnPatch) (*models.Conversation, error)
}

// PersonaStore 编排器需要的角色查询能力
type PersonaStore interface {
	FindByIDs(ids []string) ([]*models.Persona, error)
}

// MessageStore 编排器需要的消息存取能力
type MessageStore interface {
	AppendMessage(msg *models.Message) (*models.Message, error)
	GetMessages(conversationID string) ([]*models.Message, error)
	GetAgentMessages(conversationID string) ([]*models.Message, error)
}

// AnalyticsRecorder 编排器需要的统计记录能力
type AnalyticsRecorder interface {
	RecordTurn(conversationID, personaID string, usage *models.TokenUsage)
}

// EventNotifier 编排器向外部推送讨论进展的通知通道
type EventNotifier interface {
	TypingStart(conversationID, personaID, personaName string)
	TypingStop(conversationID, personaID string)
	AgentMessage(conversationID string, msg *models.Message)
	RoundCompleted(conversationID string, roundNumber int)
	StatusChange(conversationID, status string)
}

// ReplyGenerator 外部生成能力的抽象
type ReplyGenerator interface {
	GenerateAgentReply(ctx context.Context, persona *models.Persona, userMessage string, history []*models.Message) (*models.AgentReply, *models.TokenUsage, error)
}

// Summarizer 外部总结能力的抽象
type Summarizer interface {
	Summarize(ctx context.Context, lines []string) (string, error)
}

// Pacer 发言节奏控制的抽象；测试中可注入零延迟实现
type Pacer interface {
	Pace(ctx context.Context)
}

// JitterPacer 在给定区间内随机等待，避免角色回复过于密集
type JitterPacer struct {
	minDelay time.Duration
	maxDelay time.Duration
}

// NewJitterPacer 创建抖动节奏器；区间非法时退化为固定的最小延迟
func NewJitterPacer(minDelay, maxDelay time.Duration) *JitterPacer {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &JitterPacer{minDelay: minDelay, maxDelay: maxDelay}
}

// Pace 随机等待一段时间；上下文取消时立即返回
func (p *JitterPacer) Pace(ctx context.Context) {
	delay := p.minDelay
	if span := p.maxDelay - p.minDelay; span > 0 {
		delay += time.Duration(rand.Int63n(int64(span)))
	}
	if delay <= 0 {
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// NoopPacer 零延迟实现
type NoopPacer struct{}

func (NoopPacer) Pace(ctx context.Context) {}

// ProcessResult 一次消息处理周期的结果
type ProcessResult struct {
	Messages     []*models.Message    `json:"messages"`
	Count        int                  `json:"count"`
	Conversation *models.Conversation `json:"conversation"`
}

// OrchestratorService 驱动单条用户消息的完整讨论周期：
// 路由出回应者集合，逐个顺序生成发言并持久化，最后结算回合状态
type OrchestratorService struct {
	conversations ConversationStore
	personas      PersonaStore
	messages      MessageStore
	analytics     AnalyticsRecorder
	notifier      EventNotifier
	generator     ReplyGenerator
	summarizer    Summarizer
	router        *PersonaRouterService
	pacer         Pacer

	followupPersona string

	// 同一会话的处理周期必须串行执行
	cycleLocks sync.Map
}

// NewOrchestratorService 创建讨论编排服务
func NewOrchestratorService(
	conversations ConversationStore,
	personas PersonaStore,
	messages MessageStore,
	analytics AnalyticsRecorder,
	notifier EventNotifier,
	generator ReplyGenerator,
	summarizer Summarizer,
	router *PersonaRouterService,
	pacer Pacer,
	followupPersona string,
) *OrchestratorService {
	if pacer == nil {
		pacer = NoopPacer{}
	}
	return &OrchestratorService{
		conversations:   conversations,
		personas:        personas,
		messages:        messages,
		analytics:       analytics,
		notifier:        notifier,
		generator:       generator,
		summarizer:      summarizer,
		router:          router,
		pacer:           pacer,
		followupPersona: followupPersona,
	}
}

// ProcessUserMessage 处理一条用户消息并驱动完整的发言周期
// 单个角色的生成失败不会中断周期；只有前置条件失败（会话不存在）才整体报错
func (s *OrchestratorService) ProcessUserMessage(ctx context.Context, conversationID, text string) (*ProcessResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewValidationError("消息内容不能为空", nil)
	}

	lock := s.cycleLock(conversationID)
	lock.Lock()
	defer lock.Unlock()

	// 前置检查：会话必须存在，且在出现任何副作用之前完成
	conversation, err := s.conversations.GetConversation(conversationID)
	if err != nil {
		return nil, err
	}

	activePersonas, err := s.personas.FindByIDs(conversation.ActivePersonas)
	if err != nil {
		return nil, err
	}

	// 没有可用角色时整个周期为空操作
	if len(activePersonas) == 0 {
		utils.GetLogger().Warn("Conversation has no active personas, skipping cycle", map[string]interface{}{
			"conversation_id": conversationID,
		})
		return &ProcessResult{Messages: []*models.Message{}, Count: 0, Conversation: conversation}, nil
	}

	// 先持久化用户消息
	userMessage := &models.Message{
		ConversationID: conversationID,
		Role:           models.MessageRoleUser,
		Content:        text,
		RoundNumber:    conversation.CurrentRound + 1,
	}
	if _, err := s.messages.AppendMessage(userMessage); err != nil {
		return nil, apperrors.NewProcessingError("保存用户消息失败", err)
	}

	// 解析回应者集合
	route := s.router.Resolve(ctx, activePersonas, text)
	responders := route.Responders

	// 非点名路由时，主持人角色在末尾补充发言（除非它已是主回应者）
	if route.Mode == RouteModeRouted && s.followupPersona != "" {
		if !containsPersona(responders, s.followupPersona) {
			if chair := findPersona(activePersonas, s.followupPersona); chair != nil {
				responders = append(responders, chair)
			}
		}
	}

	utils.GetLogger().Info("🎯 Responders resolved", map[string]interface{}{
		"conversation_id": conversationID,
		"mode":            route.Mode,
		"responders":      personaIDs(responders),
	})

	history, err := s.messages.GetMessages(conversationID)
	if err != nil {
		utils.GetLogger().Warn("Failed to load history, generating without it", map[string]interface{}{
			"conversation_id": conversationID,
			"err":             err.Error(),
		})
		history = nil
	}

	// 逐个角色顺序发言
	produced := make([]*models.Message, 0, len(responders))
	for _, persona := range responders {
		msg := s.runPersonaTurn(ctx, conversation, persona, text, history)
		if msg == nil {
			continue
		}
		produced = append(produced, msg)
		history = append(history, msg)
	}

	// 回合结算：只有成功发言才推进计数
	updated, err := s.settleRound(conversation, len(activePersonas), len(produced))
	if err != nil {
		return nil, err
	}

	return &ProcessResult{
		Messages:     produced,
		Count:        len(produced),
		Conversation: updated,
	}, nil
}

// runPersonaTurn 执行单个角色的一次发言；失败或沉默时返回 nil
func (s *OrchestratorService) runPersonaTurn(ctx context.Context, conversation *models.Conversation, persona *models.Persona, text string, history []*models.Message) *models.Message {
	start := time.Now()

	s.notifier.TypingStart(conversation.ID, persona.ID, persona.Name)
	defer s.notifier.TypingStop(conversation.ID, persona.ID)

	s.pacer.Pace(ctx)

	reply, usage, err := s.generator.GenerateAgentReply(ctx, persona, text, history)
	if err != nil {
		utils.GetLogger().Error("💥 Agent generation failed, skipping persona", map[string]interface{}{
			"conversation_id": conversation.ID,
			"persona_id":      persona.ID,
			"err":             err.Error(),
		})
		return nil
	}

	if reply.Silence || strings.TrimSpace(reply.Content) == "" {
		utils.GetLogger().Info("Persona chose to stay silent", map[string]interface{}{
			"conversation_id": conversation.ID,
			"persona_id":      persona.ID,
		})
		return nil
	}

	msg := &models.Message{
		ConversationID: conversation.ID,
		Role:           models.MessageRoleAgent,
		AgentType:      persona.ID,
		Content:        reply.Content,
		RoundNumber:    conversation.CurrentRound + 1,
		StructuredOutput: &models.StructuredOutput{
			Reasoning:   reply.Reasoning,
			Confidence:  reply.Confidence,
			Suggestions: reply.Suggestions,
		},
	}

	persisted, err := s.messages.AppendMessage(msg)
	if err != nil {
		utils.GetLogger().Error("💥 Failed to persist agent message, skipping persona", map[string]interface{}{
			"conversation_id": conversation.ID,
			"persona_id":      persona.ID,
			"err":             err.Error(),
		})
		return nil
	}

	if s.analytics != nil {
		s.analytics.RecordTurn(conversation.ID, persona.ID, usage)
	}
	s.notifier.AgentMessage(conversation.ID, persisted)
	utils.RecordAgentTurn(conversation.ID, persona.ID, time.Since(start))

	return persisted
}

// settleRound 根据本周期的成功发言数推进回合计数并落盘
func (s *OrchestratorService) settleRound(conversation *models.Conversation, activeCount, successCount int) (*models.Conversation, error) {
	newTurnIndex := conversation.TurnIndex + successCount
	divisor := activeCount
	if divisor < 1 {
		divisor = 1
	}
	newRound := newTurnIndex / divisor

	// 回合数单调不减
	if newRound < conversation.CurrentRound {
		newRound = conversation.CurrentRound
	}

	status := conversation.Status
	if newRound >= conversation.MaxRounds {
		status = models.ConversationStatusCompleted
	}

	speaker := ""
	patch := &models.TurnPatch{
		TurnIndex:      &newTurnIndex,
		CurrentRound:   &newRound,
		Status:         &status,
		CurrentSpeaker: &speaker,
	}

	updated, err := s.conversations.ApplyTurnPatch(conversation.ID, patch)
	if err != nil {
		return nil, apperrors.NewProcessingError("保存回合状态失败", err)
	}

	s.notifier.RoundCompleted(conversation.ID, updated.CurrentRound)
	if updated.Status != conversation.Status {
		s.notifier.StatusChange(conversation.ID, updated.Status)
		utils.GetLogger().Info("✅ Conversation completed", map[string]interface{}{
			"conversation_id": conversation.ID,
			"rounds":          updated.CurrentRound,
		})
	}

	return updated, nil
}

// SummarizeDiscussion 将会话中所有角色发言折叠为一段总结
func (s *OrchestratorService) SummarizeDiscussion(ctx context.Context, conversationID string) (string, error) {
	if _, err := s.conversations.GetConversation(conversationID); err != nil {
		return "", err
	}

	agentMessages, err := s.messages.GetAgentMessages(conversationID)
	if err != nil {
		return "", err
	}
	if len(agentMessages) == 0 {
		return NoDiscussionSummary, nil
	}

	lines := make([]string, 0, len(agentMessages))
	for _, msg := range agentMessages {
		lines = append(lines, fmt.Sprintf("%s: %s", msg.AgentType, msg.Content))
	}

	summary, err := s.summarizer.Summarize(ctx, lines)
	if err != nil {
		return "", apperrors.NewGenerationError("生成讨论总结失败", err)
	}
	return summary, nil
}

func (s *OrchestratorService) cycleLock(conversationID string) *sync.Mutex {
	actual, _ := s.cycleLocks.LoadOrStore(conversationID, &sync.Mutex{})
	return actual.(*sync.Mutex)
}

func containsPersona(personas []*models.Persona, id string) bool {
	for _, p := range personas {
		if p.ID == id {
			return true
		}
	}
	return false
}

func personaIDs(personas []*models.Persona) []string {
	ids := make([]string, 0, len(personas))
	for _, p := range personas {
		ids = append(ids, p.ID)
	}
	return ids
}
