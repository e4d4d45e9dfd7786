// internal/api/router.go
package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/BoardroomMCP/internal/config"
	"github.com/Corphon/BoardroomMCP/internal/di"
	"github.com/Corphon/BoardroomMCP/internal/services"
)

// SetupRouter 配置HTTP路由
func SetupRouter() (*gin.Engine, error) {
	// 获取配置
	cfg := config.GetCurrentConfig()

	// 获取依赖注入容器
	container := di.GetContainer()

	// ✅ 只从容器获取服务，不再创建新实例
	personaService, ok := container.Get("persona").(*services.PersonaService)
	if !ok {
		return nil, fmt.Errorf("角色服务未正确初始化")
	}

	conversationService, ok := container.Get("conversation").(*services.ConversationService)
	if !ok {
		return nil, fmt.Errorf("会话服务未正确初始化")
	}

	messageService, ok := container.Get("message").(*services.MessageService)
	if !ok {
		return nil, fmt.Errorf("消息服务未正确初始化")
	}

	analyticsService, ok := container.Get("analytics").(*services.AnalyticsService)
	if !ok {
		return nil, fmt.Errorf("统计服务未正确初始化")
	}

	orchestrator, ok := container.Get("orchestrator").(*services.OrchestratorService)
	if !ok {
		return nil, fmt.Errorf("编排服务未正确初始化")
	}

	// ✅ 创建API处理器 - 只传递从容器获取的服务
	handler := &Handler{
		PersonaService:      personaService,
		ConversationService: conversationService,
		MessageService:      messageService,
		AnalyticsService:    analyticsService,
		Orchestrator:        orchestrator,
		WebSocketHandler:    NewWebSocketHandler(),
		Response:            NewResponseHelper(),
	}

	// 创建路由
	r := gin.Default()

	// 启用CORS
	r.Use(corsMiddleware())

	// HTTPS重定向（生产环境）
	if !cfg.DebugMode {
		r.Use(func(c *gin.Context) {
			if c.Request.Header.Get("X-Forwarded-Proto") != "https" {
				c.Redirect(http.StatusPermanentRedirect,
					"https://"+c.Request.Host+c.Request.URL.Path)
				return
			}
			c.Next()
		})
	}

	// WebSocket 支持
	r.GET("/ws/conversations/:id", handler.ConversationWebSocket)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api")
	api.Use(DefaultRateLimit())
	{
		// 健康检查
		api.GET("/health", handler.HealthCheck)

		// ===============================
		// LLM配置相关路由
		// ===============================
		llmGroup := api.Group("/llm")
		{
			llmGroup.GET("/status", handler.GetLLMStatus)
			llmGroup.PUT("/config", handler.UpdateLLMConfig)
		}

		// ===============================
		// 角色相关路由
		// ===============================
		personasGroup := api.Group("/personas")
		{
			personasGroup.GET("", handler.GetPersonas)
			personasGroup.POST("", handler.CreatePersona)
			personasGroup.GET("/:id", handler.GetPersona)
			personasGroup.PUT("/:id", handler.UpdatePersona)
			personasGroup.DELETE("/:id", handler.DeletePersona)
		}

		// ===============================
		// 会话相关路由
		// ===============================
		conversationsGroup := api.Group("/conversations")
		{
			conversationsGroup.GET("", handler.GetConversations)
			conversationsGroup.POST("", handler.CreateConversation)
			conversationsGroup.GET("/:id", handler.GetConversation)
			conversationsGroup.PUT("/:id", handler.UpdateConversation)
			conversationsGroup.DELETE("/:id", handler.DeleteConversation)
			conversationsGroup.POST("/:id/archive", handler.ArchiveConversation)
			conversationsGroup.GET("/:id/messages", handler.GetMessages)
			conversationsGroup.GET("/:id/analytics", handler.GetAnalytics)

			// 讨论编排路由：发言周期涉及多次生成调用，单独限流
			conversationsGroup.POST("/:id/process", ProcessRateLimit(), handler.ProcessMessage)
			conversationsGroup.GET("/:id/summary", SummaryRateLimit(), handler.GetSummary)
		}

		// ===============================
		// WebSocket 管理路由
		// ===============================
		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/status", handler.GetWebSocketStatus)
			wsGroup.POST("/cleanup", handler.CleanupWebSocketConnections)
		}
	}

	return r, nil
}

// corsMiddleware 实现跨域资源共享
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
