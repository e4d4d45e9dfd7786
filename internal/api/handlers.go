// internal/api/handlers.go
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/BoardroomMCP/internal/config"
	"github.com/Corphon/BoardroomMCP/internal/di"
	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/services"
)

// Handler 处理API请求
type Handler struct {
	// 核心服务
	PersonaService      *services.PersonaService      // 角色服务
	ConversationService *services.ConversationService // 会话服务
	MessageService      *services.MessageService      // 消息服务
	AnalyticsService    *services.AnalyticsService    // 统计服务
	Orchestrator        *services.OrchestratorService // 讨论编排服务
	WebSocketHandler    *WebSocketHandler             // WebSocket 处理器
	Response            *ResponseHelper               // 响应助手
}

// CreateConversationRequest 创建会话的请求结构
type CreateConversationRequest struct {
	Title      string   `json:"title"`       // 会话标题
	Context    string   `json:"context"`     // 议题背景
	PersonaIDs []string `json:"persona_ids"` // 参与讨论的角色ID列表
	MaxRounds  int      `json:"max_rounds"`  // 最大讨论轮数
}

// UpdateConversationRequest 更新会话的请求结构
type UpdateConversationRequest struct {
	Title      string   `json:"title"`
	Context    string   `json:"context"`
	PersonaIDs []string `json:"persona_ids"`
	MaxRounds  int      `json:"max_rounds"`
}

// ProcessMessageRequest 处理用户消息的请求结构
type ProcessMessageRequest struct {
	Message string `json:"message" binding:"required"` // 用户消息内容
}

// APIResponse 标准API响应格式
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *APIError   `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"` // 用于调试和追踪
}

// APIError 标准错误格式
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// PaginationMeta 分页元数据
type PaginationMeta struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// PaginatedResponse 带分页的响应
type PaginatedResponse struct {
	*APIResponse
	Meta *PaginationMeta `json:"meta,omitempty"`
}

// ------------------------------------------------
// ConversationWebSocket 处理会话 WebSocket 连接
func (h *Handler) ConversationWebSocket(c *gin.Context) {
	h.WebSocketHandler.ConversationWebSocket(c)
}

// GetWebSocketStatus 获取 WebSocket 连接状态（调试用）
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	status := wsManager.GetStatus()
	status["ping_timeout_seconds"] = int(wsManager.pingTimeout.Seconds())
	status["timestamp"] = time.Now().Format(time.RFC3339)

	c.JSON(http.StatusOK, status)
}

// CleanupWebSocketConnections 手动触发连接清理
func (h *Handler) CleanupWebSocketConnections(c *gin.Context) {
	wsManager.cleanupExpiredConnections()
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "连接清理已执行",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// ========================================
// 角色处理器
// ========================================

// GetPersonas 获取全部角色
func (h *Handler) GetPersonas(c *gin.Context) {
	personas, err := h.PersonaService.ListPersonas()
	if err != nil {
		h.Response.InternalError(c, "获取角色列表失败", err.Error())
		return
	}

	h.Response.Success(c, personas)
}

// GetPersona 获取单个角色
func (h *Handler) GetPersona(c *gin.Context) {
	personaID := c.Param("id")

	persona, err := h.PersonaService.GetPersona(personaID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "角色", err.Error())
			return
		}
		h.Response.InternalError(c, "获取角色失败", err.Error())
		return
	}

	h.Response.Success(c, persona)
}

// CreatePersona 创建新角色
func (h *Handler) CreatePersona(c *gin.Context) {
	var persona models.Persona
	if err := c.ShouldBindJSON(&persona); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	created, err := h.PersonaService.CreatePersona(&persona)
	if err != nil {
		if apperrors.IsValidationError(err) {
			h.Response.BadRequest(c, "角色数据无效", err.Error())
			return
		}
		if apperrors.IsConflictError(err) {
			h.Response.Conflict(c, "角色已存在", err.Error())
			return
		}
		h.Response.InternalError(c, "创建角色失败", err.Error())
		return
	}

	h.Response.Created(c, created, "角色创建成功")
}

// UpdatePersona 更新角色
func (h *Handler) UpdatePersona(c *gin.Context) {
	personaID := c.Param("id")

	var update models.Persona
	if err := c.ShouldBindJSON(&update); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	persona, err := h.PersonaService.UpdatePersona(personaID, &update)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "角色", err.Error())
			return
		}
		h.Response.InternalError(c, "更新角色失败", err.Error())
		return
	}

	h.Response.Success(c, persona, "角色更新成功")
}

// DeletePersona 删除角色
func (h *Handler) DeletePersona(c *gin.Context) {
	personaID := c.Param("id")

	if err := h.PersonaService.DeletePersona(personaID); err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "角色", err.Error())
			return
		}
		h.Response.InternalError(c, "删除角色失败", err.Error())
		return
	}

	h.Response.Success(c, nil, "角色删除成功")
}

// ========================================
// 会话处理器
// ========================================

// CreateConversation 创建讨论会话
func (h *Handler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	if req.MaxRounds <= 0 {
		if cfg := config.GetCurrentConfig(); cfg != nil {
			req.MaxRounds = cfg.DefaultMaxRounds
		}
	}

	// 角色名单校验：引用的角色必须存在
	for _, id := range req.PersonaIDs {
		if _, err := h.PersonaService.GetPersona(id); err != nil {
			h.Response.Error(c, http.StatusBadRequest, ErrorPersonaNotFound,
				"参与角色不存在", id)
			return
		}
	}

	conversation, err := h.ConversationService.CreateConversation(req.Title, req.Context, req.PersonaIDs, req.MaxRounds)
	if err != nil {
		if apperrors.IsValidationError(err) {
			h.Response.BadRequest(c, "会话数据无效", err.Error())
			return
		}
		h.Response.Error(c, http.StatusInternalServerError, ErrorConversationCreateFailed,
			"创建会话失败", err.Error())
		return
	}

	h.Response.Created(c, conversation, "会话创建成功")
}

// GetConversations 获取全部会话
func (h *Handler) GetConversations(c *gin.Context) {
	conversations, err := h.ConversationService.ListConversations()
	if err != nil {
		h.Response.InternalError(c, "获取会话列表失败", err.Error())
		return
	}

	h.Response.Success(c, conversations)
}

// GetConversation 获取单个会话
func (h *Handler) GetConversation(c *gin.Context) {
	conversationID := c.Param("id")

	conversation, err := h.ConversationService.GetConversation(conversationID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "会话", err.Error())
			return
		}
		h.Response.InternalError(c, "获取会话失败", err.Error())
		return
	}

	h.Response.Success(c, conversation)
}

// UpdateConversation 更新会话
func (h *Handler) UpdateConversation(c *gin.Context) {
	conversationID := c.Param("id")

	var req UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "无效的请求格式", err.Error())
		return
	}

	conversation, err := h.ConversationService.UpdateConversation(conversationID, req.Title, req.Context, req.PersonaIDs, req.MaxRounds)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "会话", err.Error())
			return
		}
		h.Response.InternalError(c, "更新会话失败", err.Error())
		return
	}

	h.Response.Success(c, conversation, "会话更新成功")
}

// ArchiveConversation 归档会话
func (h *Handler) ArchiveConversation(c *gin.Context) {
	conversationID := c.Param("id")

	conversation, err := h.ConversationService.ArchiveConversation(conversationID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "会话", err.Error())
			return
		}
		h.Response.InternalError(c, "归档会话失败", err.Error())
		return
	}

	h.Response.Success(c, conversation, "会话已归档")
}

// DeleteConversation 删除会话
func (h *Handler) DeleteConversation(c *gin.Context) {
	conversationID := c.Param("id")

	if err := h.ConversationService.DeleteConversation(conversationID); err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "会话", err.Error())
			return
		}
		h.Response.InternalError(c, "删除会话失败", err.Error())
		return
	}

	h.Response.Success(c, nil, "会话删除成功")
}

// GetMessages 获取会话的消息历史
func (h *Handler) GetMessages(c *gin.Context) {
	conversationID := c.Param("id")

	if _, err := h.ConversationService.GetConversation(conversationID); err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "会话", err.Error())
			return
		}
		h.Response.InternalError(c, "获取会话失败", err.Error())
		return
	}

	messages, err := h.MessageService.GetMessages(conversationID)
	if err != nil {
		h.Response.InternalError(c, "获取消息列表失败", err.Error())
		return
	}

	h.Response.Success(c, messages)
}

// GetAnalytics 获取会话的统计数据
func (h *Handler) GetAnalytics(c *gin.Context) {
	conversationID := c.Param("id")

	if _, err := h.ConversationService.GetConversation(conversationID); err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "会话", err.Error())
			return
		}
		h.Response.InternalError(c, "获取会话失败", err.Error())
		return
	}

	analytics, err := h.AnalyticsService.GetAnalytics(conversationID)
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorAnalyticsFailed,
			"获取统计数据失败", err.Error())
		return
	}

	h.Response.Success(c, analytics)
}

// ========================================
// 讨论编排处理器
// ========================================

// ProcessMessage 处理一条用户消息并驱动完整的发言周期
func (h *Handler) ProcessMessage(c *gin.Context) {
	conversationID := c.Param("id")

	var req ProcessMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorMessageInvalid,
			"无效的请求格式", err.Error())
		return
	}

	result, err := h.Orchestrator.ProcessUserMessage(c.Request.Context(), conversationID, req.Message)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "会话", err.Error())
			return
		}
		if apperrors.IsValidationError(err) {
			h.Response.BadRequest(c, "消息内容无效", err.Error())
			return
		}
		h.Response.Error(c, http.StatusInternalServerError, ErrorProcessFailed,
			"处理消息失败", err.Error())
		return
	}

	h.Response.Success(c, result)
}

// GetSummary 获取讨论总结
func (h *Handler) GetSummary(c *gin.Context) {
	conversationID := c.Param("id")

	summary, err := h.Orchestrator.SummarizeDiscussion(c.Request.Context(), conversationID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			h.Response.NotFound(c, "会话", err.Error())
			return
		}
		h.Response.Error(c, http.StatusInternalServerError, ErrorSummaryFailed,
			"生成讨论总结失败", err.Error())
		return
	}

	h.Response.Success(c, gin.H{
		"conversation_id": conversationID,
		"summary":         summary,
	})
}

// ========================================
// LLM配置处理器
// ========================================

// GetLLMStatus 获取LLM服务状态
func (h *Handler) GetLLMStatus(c *gin.Context) {
	// 获取LLM服务实例
	container := di.GetContainer()
	llmService, ok := container.Get("llm").(*services.LLMService)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "无法获取LLM服务实例",
		})
		return
	}

	// 获取当前配置
	cfg := config.GetCurrentConfig()

	// 获取更详细的状态信息
	status := map[string]interface{}{
		"ready":    llmService.IsReady(),
		"status":   llmService.GetReadyState(),
		"provider": llmService.GetProviderName(),
		"config": map[string]interface{}{
			"provider":    cfg.LLMProvider,
			"has_api_key": cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] != "",
		},
	}

	// 添加模型信息
	if cfg.LLMConfig != nil {
		if model, ok := cfg.LLMConfig["default_model"]; ok {
			status["config"].(map[string]interface{})["model"] = model
		}
	}

	c.JSON(http.StatusOK, status)
}

// UpdateLLMConfig 更新LLM配置
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req struct {
		Provider string            `json:"provider" binding:"required"`
		Config   map[string]string `json:"config" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorLLMConfigInvalid,
			"无效的请求格式", err.Error())
		return
	}

	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		h.Response.InternalError(c, "保存LLM配置失败", err.Error())
		return
	}

	// 更新 LLMService
	container := di.GetContainer()
	if llmService, ok := container.Get("llm").(*services.LLMService); ok {
		if err := llmService.UpdateProvider(req.Provider, req.Config); err != nil {
			// 配置已保存，但 LLM 服务更新失败
			h.Response.Error(c, http.StatusPartialContent, "CONFIG_UPDATED_LLM_FAILED",
				"配置已保存，但LLM服务更新失败", err.Error())
			return
		}
	} else {
		h.Response.Error(c, http.StatusPartialContent, "CONFIG_UPDATED_LLM_UNAVAILABLE",
			"配置已保存，但无法获取LLM服务", "请重启应用以使配置生效")
		return
	}

	h.Response.Success(c, nil, "LLM配置更新成功")
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	container := di.GetContainer()

	checks := gin.H{
		"persona":      container.Has("persona"),
		"conversation": container.Has("conversation"),
		"orchestrator": container.Has("orchestrator"),
	}

	llmReady := false
	if llmService, ok := container.Get("llm").(*services.LLMService); ok {
		llmReady = llmService.IsReady()
	}
	checks["llm_ready"] = llmReady

	// LLM 未就绪不算整体不健康，服务可以待机运行
	healthy := true
	for name, v := range checks {
		if name == "llm_ready" {
			continue
		}
		if ready, ok := v.(bool); ok && !ready {
			healthy = false
		}
	}

	statusCode := http.StatusOK
	status := "healthy"
	if !healthy {
		statusCode = http.StatusServiceUnavailable
		status = "unhealthy"
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
