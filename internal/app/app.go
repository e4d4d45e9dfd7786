// internal/app/app.go
package app

import (
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/Corphon/BoardroomMCP/internal/api"
	"github.com/Corphon/BoardroomMCP/internal/config"
	"github.com/Corphon/BoardroomMCP/internal/di"
	"github.com/Corphon/BoardroomMCP/internal/services"
	"github.com/Corphon/BoardroomMCP/internal/storage"
	"github.com/Corphon/BoardroomMCP/internal/utils"

	// 注册LLM提供商
	_ "github.com/Corphon/BoardroomMCP/internal/llm/providers/anthropic"
	_ "github.com/Corphon/BoardroomMCP/internal/llm/providers/openai"
)

// InitServices 按依赖顺序初始化所有服务并注册到依赖注入容器
func InitServices() error {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return fmt.Errorf("配置系统未初始化")
	}

	container := di.GetContainer()

	// 1. 日志
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "server.log")); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	logger := utils.GetLogger()
	if cfg.DebugMode {
		logger.SetLogLevel(utils.DEBUG)
	}
	logger.Info("📋 Initializing services", map[string]interface{}{"data_dir": cfg.DataDir})

	// 2. 存储层
	fileStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("初始化文件存储失败: %w", err)
	}
	fileStorage.StartCacheCleanup()
	container.Register("storage", fileStorage)

	// 3. 锁管理器
	lockManager := services.NewLockManager()
	container.Register("locks", lockManager)

	// 4. LLM服务（API密钥未配置时降级为待机模式）
	llmService, err := services.NewLLMService()
	if err != nil || llmService == nil {
		log.Printf("⚠️ LLM服务初始化失败，使用待机模式: %v", err)
		llmService = services.NewEmptyLLMService()
	}
	container.Register("llm", llmService)

	// 5. 领域服务
	personaService := services.NewPersonaService(fileStorage)
	if err := personaService.EnsureDefaults(); err != nil {
		return fmt.Errorf("初始化内置角色失败: %w", err)
	}
	container.Register("persona", personaService)

	conversationService := services.NewConversationService(fileStorage, lockManager)
	container.Register("conversation", conversationService)

	messageService := services.NewMessageService(fileStorage)
	container.Register("message", messageService)

	analyticsService := services.NewAnalyticsService(fileStorage)
	container.Register("analytics", analyticsService)

	// 6. 路由链：点名提取 → 意图分类 → 角色路由
	tagExtractor := services.NewTagExtractorService()
	container.Register("tags", tagExtractor)

	intentClassifier := services.NewIntentClassifierService(llmService)
	container.Register("intent", intentClassifier)

	personaRouter := services.NewPersonaRouterService(tagExtractor, intentClassifier, llmService)
	container.Register("router", personaRouter)

	// 7. 讨论编排
	var pacer services.Pacer = services.NoopPacer{}
	if cfg.PacingEnabled {
		pacer = services.NewJitterPacer(
			time.Duration(cfg.PacingMinMs)*time.Millisecond,
			time.Duration(cfg.PacingMaxMs)*time.Millisecond,
		)
	}

	orchestrator := services.NewOrchestratorService(
		conversationService,
		personaService,
		messageService,
		analyticsService,
		api.NewBoardNotifier(),
		llmService,
		llmService,
		personaRouter,
		pacer,
		cfg.FollowupPersona,
	)
	container.Register("orchestrator", orchestrator)

	logger.Info("✅ All services registered", map[string]interface{}{
		"count": len(container.GetNames()),
	})
	return nil
}

// Shutdown 释放服务持有的资源
func Shutdown() {
	container := di.GetContainer()

	if analyticsService, ok := container.Get("analytics").(*services.AnalyticsService); ok {
		analyticsService.Stop()
	}

	utils.GetLogger().Info("🛑 Services shut down", nil)
}
