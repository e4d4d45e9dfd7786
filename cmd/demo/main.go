// cmd/demo/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Corphon/BoardroomMCP/internal/app"
	"github.com/Corphon/BoardroomMCP/internal/config"
	"github.com/Corphon/BoardroomMCP/internal/di"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/services"
	"github.com/Corphon/BoardroomMCP/internal/utils"
)

func main() {
	fmt.Println("🚀 BoardroomMCP Console App")
	fmt.Println("=================================")

	// 初始化配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Printf("❌ 加载基础配置失败: %v", err)
		return
	}

	// 初始化日志系统
	logFile := fmt.Sprintf("logs/console_%s.log", time.Now().Format("2006-01-02"))
	if err := utils.InitLogger(logFile); err != nil {
		log.Printf("⚠️ 无法初始化结构化日志: %v", err)
		log.Println("继续运行...")
	} else {
		utils.GetLogger().Info("Console app starting", nil)
	}

	// 初始化环境
	if err := config.InitConfig(baseConfig.DataDir); err != nil {
		log.Printf("❌ 初始化配置系统失败: %v", err)
		return
	}
	if err := app.InitServices(); err != nil {
		log.Printf("❌ 初始化服务失败: %v", err)
		return
	}
	defer app.Shutdown()

	for {
		showMenu()
		choice := getUserInput("> ")

		switch choice {
		case "1", "llm", "ai":
			configureLLM()
		case "2", "personas":
			listPersonas()
		case "3", "new":
			createConversation()
		case "4", "list":
			listConversations()
		case "5", "talk":
			runDiscussion()
		case "6", "summary":
			showSummary()
		case "7", "analytics":
			showAnalytics()
		case "0", "quit", "exit":
			fmt.Println("👋 再见！")
			return
		default:
			fmt.Println("无效的选择，请重试")
		}
		fmt.Println()
	}
}

// 显示菜单
func showMenu() {
	fmt.Println(`==============================
  BoardroomMCP 控制台
  1) 配置 LLM 提供商
  2) 查看讨论角色
  3) 创建讨论会话
  4) 查看会话列表
  5) 进入讨论
  6) 生成讨论总结
  7) 查看会话统计
  0) 退出
==============================`)
}

// 获取用户输入
func getUserInput(prompt string) string {
	fmt.Print(prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return strings.TrimSpace(scanner.Text())
}

// configureLLM 配置LLM提供商与API密钥
func configureLLM() {
	cfg := config.GetCurrentConfig()
	fmt.Printf("当前提供商: %s\n", cfg.LLMProvider)

	provider := getUserInput("提供商 (openai/anthropic，回车保持不变): ")
	if provider == "" {
		provider = cfg.LLMProvider
	}

	apiKey := getUserInput("API密钥 (回车保持不变): ")
	llmConfig := cfg.LLMConfig
	if llmConfig == nil {
		llmConfig = make(map[string]string)
	}
	if apiKey != "" {
		llmConfig["api_key"] = apiKey
	}

	model := getUserInput("默认模型 (回车使用提供商默认值): ")
	if model != "" {
		llmConfig["default_model"] = model
	}

	if err := config.UpdateLLMConfig(provider, llmConfig); err != nil {
		fmt.Printf("❌ 保存配置失败: %v\n", err)
		return
	}

	container := di.GetContainer()
	if llmService, ok := container.Get("llm").(*services.LLMService); ok {
		if err := llmService.UpdateProvider(provider, llmConfig); err != nil {
			fmt.Printf("⚠️ 配置已保存，但LLM服务更新失败: %v\n", err)
			return
		}
	}

	fmt.Println("✅ LLM配置更新成功")
}

// listPersonas 展示全部讨论角色
func listPersonas() {
	container := di.GetContainer()
	personaService := container.Get("persona").(*services.PersonaService)

	personas, err := personaService.ListPersonas()
	if err != nil {
		fmt.Printf("❌ 获取角色列表失败: %v\n", err)
		return
	}

	fmt.Printf("\n当前共有 %d 个角色:\n", len(personas))
	for _, p := range personas {
		state := "启用"
		if !p.IsActive {
			state = "停用"
		}
		fmt.Printf("  [%s] %s - %s (%s)\n", p.ID, p.Name, p.Description, state)
	}
}

// createConversation 创建一个新的讨论会话
func createConversation() {
	container := di.GetContainer()
	conversationService := container.Get("conversation").(*services.ConversationService)

	title := getUserInput("会话标题: ")
	if title == "" {
		fmt.Println("❌ 标题不能为空")
		return
	}

	topic := getUserInput("议题背景 (可选): ")

	idsInput := getUserInput("参与角色ID，逗号分隔 [默认: pm,developer,marketing]: ")
	if idsInput == "" {
		idsInput = "pm,developer,marketing"
	}
	personaIDs := make([]string, 0)
	for _, id := range strings.Split(idsInput, ",") {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			personaIDs = append(personaIDs, trimmed)
		}
	}

	maxRounds := 0
	if roundsInput := getUserInput("最大讨论轮数 [默认: 3]: "); roundsInput != "" {
		if parsed, err := strconv.Atoi(roundsInput); err == nil {
			maxRounds = parsed
		}
	}
	if maxRounds <= 0 {
		maxRounds = config.GetCurrentConfig().DefaultMaxRounds
	}

	conversation, err := conversationService.CreateConversation(title, topic, personaIDs, maxRounds)
	if err != nil {
		fmt.Printf("❌ 创建会话失败: %v\n", err)
		return
	}

	fmt.Printf("✅ 会话创建成功！ID: %s\n", conversation.ID)
}

// listConversations 展示全部会话
func listConversations() {
	container := di.GetContainer()
	conversationService := container.Get("conversation").(*services.ConversationService)

	conversations, err := conversationService.ListConversations()
	if err != nil {
		fmt.Printf("❌ 获取会话列表失败: %v\n", err)
		return
	}

	fmt.Printf("\n当前共有 %d 个会话:\n", len(conversations))
	for i, conv := range conversations {
		fmt.Printf("  %d) %s [%s] 轮次 %d/%d (ID: %s)\n",
			i+1, conv.Title, conv.Status, conv.CurrentRound, conv.MaxRounds, conv.ID)
	}
}

// runDiscussion 进入一个会话并持续对话
func runDiscussion() {
	container := di.GetContainer()
	orchestrator := container.Get("orchestrator").(*services.OrchestratorService)

	conversationID := getUserInput("会话ID: ")
	if conversationID == "" {
		fmt.Println("❌ 会话ID不能为空")
		return
	}

	fmt.Println("进入讨论，输入 /quit 返回主菜单，/summary 生成总结")
	for {
		text := getUserInput("你: ")
		switch text {
		case "":
			continue
		case "/quit":
			return
		case "/summary":
			printSummary(orchestrator, conversationID)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		result, err := orchestrator.ProcessUserMessage(ctx, conversationID, text)
		cancel()
		if err != nil {
			fmt.Printf("❌ 处理消息失败: %v\n", err)
			continue
		}

		for _, msg := range result.Messages {
			printAgentMessage(msg)
		}

		if result.Conversation != nil {
			fmt.Printf("—— 轮次 %d/%d，状态 %s ——\n",
				result.Conversation.CurrentRound,
				result.Conversation.MaxRounds,
				result.Conversation.Status)
			if result.Conversation.Status == models.ConversationStatusCompleted {
				fmt.Println("🏁 讨论已达到轮次上限")
			}
		}
	}
}

// printAgentMessage 格式化输出一条角色发言
func printAgentMessage(msg *models.Message) {
	fmt.Printf("\n🗣 [%s] %s\n", msg.AgentType, msg.Content)
	if msg.StructuredOutput == nil {
		return
	}
	if msg.StructuredOutput.Reasoning != "" {
		fmt.Printf("   依据: %s\n", msg.StructuredOutput.Reasoning)
	}
	for _, s := range msg.StructuredOutput.Suggestions {
		fmt.Printf("   💡 %s\n", s)
	}
}

// showSummary 生成并打印讨论总结
func showSummary() {
	container := di.GetContainer()
	orchestrator := container.Get("orchestrator").(*services.OrchestratorService)

	conversationID := getUserInput("会话ID: ")
	if conversationID == "" {
		fmt.Println("❌ 会话ID不能为空")
		return
	}
	printSummary(orchestrator, conversationID)
}

func printSummary(orchestrator *services.OrchestratorService, conversationID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	summary, err := orchestrator.SummarizeDiscussion(ctx, conversationID)
	if err != nil {
		fmt.Printf("❌ 生成总结失败: %v\n", err)
		return
	}
	fmt.Printf("\n📝 讨论总结:\n%s\n", summary)
}

// showAnalytics 展示会话统计
func showAnalytics() {
	container := di.GetContainer()
	analyticsService := container.Get("analytics").(*services.AnalyticsService)

	conversationID := getUserInput("会话ID: ")
	if conversationID == "" {
		fmt.Println("❌ 会话ID不能为空")
		return
	}

	analytics, err := analyticsService.GetAnalytics(conversationID)
	if err != nil {
		fmt.Printf("❌ 获取统计失败: %v\n", err)
		return
	}

	fmt.Printf("\n📊 会话统计 (%s):\n", conversationID)
	fmt.Printf("  提示token: %d\n", analytics.PromptTokens)
	fmt.Printf("  生成token: %d\n", analytics.CompletionTokens)
	fmt.Printf("  总token: %d\n", analytics.TotalTokens)
	fmt.Printf("  估算费用: $%.4f\n", analytics.EstimatedCost)
	fmt.Println("  角色参与度:")
	for personaID, count := range analytics.AgentParticipation {
		fmt.Printf("    %s: %d 次发言\n", personaID, count)
	}
}
