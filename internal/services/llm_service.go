// internal/services/llm_service.go
package services

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/Corphon/BoardroomMCP/internal/config"
	"github.com/Corphon/BoardroomMCP/internal/llm"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/utils"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrLLMNotReady = errors.New("llm service not ready")

var providerDefaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"anthropic": "claude-3-5-haiku-latest",
}

// LLMService 提供统一的大语言模型调用接口
type LLMService struct {
	providerMutex      sync.RWMutex
	provider           llm.Provider
	providerName       string
	cache              *LLMCache
	isReady            bool
	readyState         string
	activeDefaultModel string
}
type LLMCache struct {
	cache      map[string]*CacheEntry
	mutex      sync.RWMutex
	expiration time.Duration
}

type CacheEntry struct {
	Response  interface{}
	CreatedAt time.Time
}

// ChatCompletionRequest 兼容OpenAI风格的请求格式
type ChatCompletionRequest struct {
	Model       string                  `json:"model"`
	Messages    []ChatCompletionMessage `json:"messages"`
	Temperature float64                 `json:"temperature"`
	MaxTokens   int                     `json:"max_tokens"`
	ExtraParams map[string]interface{}  `json:"extra_params,omitempty"`
}

// ChatCompletionMessage 兼容OpenAI风格的消息格式
type ChatCompletionMessage struct {
	Role    string
	Content string
}

// ChatCompletionResponse 兼容OpenAI风格的响应格式
type ChatCompletionResponse struct {
	ID      string
	Choices []ChatCompletionChoice
	Usage   Usage
}

// ChatCompletionChoice 兼容OpenAI风格的选择格式
type ChatCompletionChoice struct {
	Message      ChatCompletionMessage
	FinishReason string
}

// Usage 兼容OpenAI风格的用量统计
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// 以下是为各种服务定义的结构化输出类型-------------------
// agentReplyOutput 角色回应的结构化输出
type agentReplyOutput struct {
	Content     string   `json:"content"`
	Reasoning   string   `json:"reasoning"`
	Confidence  float64  `json:"confidence"`
	Suggestions []string `json:"suggestions"`
	Silence     bool     `json:"silence"`
}

// intentOutput 意图分类的结构化输出
type intentOutput struct {
	Intent string `json:"intent"`
}

// responderOutput 回应角色选择的结构化输出
type responderOutput struct {
	PersonaID string `json:"persona_id"`
}

// -----------------------------------------
// NewLLMService 创建一个新的LLM服务
func NewLLMService() (*LLMService, error) {
	service := createBaseLLMService()

	// 尝试从配置初始化
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		service.readyState = "Failed to retrieve configuration"
		return service, nil
	}

	if cfg.LLMProvider == "" || (cfg.LLMConfig != nil && cfg.LLMConfig["api_key"] == "") {
		service.readyState = "API key not configured"
		return service, nil
	}

	// 尝试初始化提供商
	provider, err := llm.GetProvider(cfg.LLMProvider, cfg.LLMConfig)
	if err != nil {
		service.readyState = fmt.Sprintf("Initialization failed: %v", err)
		return service, nil // 返回未就绪服务而不是错误
	}

	// 初始化成功
	service.provider = provider
	service.providerName = cfg.LLMProvider
	service.activeDefaultModel = extractDefaultModel(cfg.LLMConfig)
	service.isReady = true
	service.readyState = "Ready"

	return service, nil
}

// NewEmptyLLMService 创建一个空的LLM服务实例作为后备方案
func NewEmptyLLMService() *LLMService {
	service := createBaseLLMService()
	service.providerName = "empty"
	service.readyState = "Standby Service Mode – Please configure the API key via /api/llm/config"
	return service
}

// createBaseLLMService 创建基础LLM服务实例
func createBaseLLMService() *LLMService {
	return &LLMService{
		provider:           nil,
		providerName:       "",
		isReady:            false,
		readyState:         "Uninitialized",
		activeDefaultModel: "",
		cache: &LLMCache{
			cache:      make(map[string]*CacheEntry),
			mutex:      sync.RWMutex{},
			expiration: 30 * time.Minute,
		},
	}
}

// IsReady 返回服务是否已就绪
func (s *LLMService) IsReady() bool {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	if s.provider != nil && s.isReady {
		return true
	}

	// 检查当前配置判断服务是否应当就绪
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return false
	}

	if cfg.LLMProvider == "" {
		return false
	}

	if cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		return false
	}

	return true
}

// GetReadyState 返回服务就绪状态描述
func (s *LLMService) GetReadyState() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()

	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return "Cannot get configuration"
	}

	if cfg.LLMProvider == "" {
		return "LLM provider not configured"
	}

	if cfg.LLMConfig == nil || cfg.LLMConfig["api_key"] == "" {
		return "API key not configured"
	}

	if s.provider != nil && s.isReady {
		return "Ready"
	}

	return "Waiting for initialization"
}

// GetProviderStatus 返回服务是否就绪以及可读描述
func (s *LLMService) GetProviderStatus() (bool, string) {
	if s == nil {
		return false, "LLM服务实例未初始化"
	}
	if s.IsReady() {
		return true, "Ready"
	}
	return false, s.GetReadyState()
}

// UpdateProvider 更新LLM服务的提供商
func (s *LLMService) UpdateProvider(providerName string, config map[string]string) error {
	provider, err := llm.GetProvider(providerName, config)
	if err != nil {
		s.providerMutex.Lock()
		s.isReady = false
		s.readyState = fmt.Sprintf("Configuration failed: %v", err)
		s.providerMutex.Unlock()
		return err
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()

	s.provider = provider
	s.providerName = providerName
	s.activeDefaultModel = extractDefaultModel(config)
	s.isReady = true
	s.readyState = "Ready"

	// 清理缓存
	s.cache = &LLMCache{
		cache:      make(map[string]*CacheEntry),
		mutex:      sync.RWMutex{},
		expiration: 30 * time.Minute,
	}

	return nil
}

// generateCacheKey 生成缓存键
func (s *LLMService) generateCacheKey(prompt, systemPrompt, model string) string {
	s.providerMutex.RLock()
	providerName := s.providerName
	s.providerMutex.RUnlock()

	hashInput := fmt.Sprintf("%s:::%s:::%s:::%s",
		prompt, systemPrompt, model, providerName)
	h := md5.New()
	h.Write([]byte(hashInput))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// getFromCache 从缓存中获取结果
func (c *LLMCache) getFromCache(key string) (interface{}, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[key]
	if !exists {
		return nil, false
	}

	// 检查是否过期
	if time.Since(entry.CreatedAt) > c.expiration {
		return nil, false
	}

	return entry.Response, true
}

// saveToCache 保存结果到缓存
func (c *LLMCache) saveToCache(key string, response interface{}) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[key] = &CacheEntry{
		Response:  response,
		CreatedAt: time.Now(),
	}

	// 如果缓存太大，清理最旧的条目
	if len(c.cache) > 1000 {
		c.cleanupOldest(100)
	}
}

// cleanupOldest 清理最旧的缓存条目
func (c *LLMCache) cleanupOldest(count int) {
	type keyAge struct {
		key string
		age time.Time
	}

	entries := make([]keyAge, 0, len(c.cache))
	for k, v := range c.cache {
		entries = append(entries, keyAge{k, v.CreatedAt})
	}

	// 按创建时间排序
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].age.Before(entries[j].age)
	})

	// 删除最旧的条目
	maxToDelete := min(count, len(entries))
	for i := 0; i < maxToDelete; i++ {
		delete(c.cache, entries[i].key)
	}
}

// CreateChatCompletion 通用的对话补全入口
func (s *LLMService) CreateChatCompletion(ctx context.Context, request ChatCompletionRequest) (ChatCompletionResponse, error) {
	// 构建系统和用户提示
	var systemContent, userContent string
	var assistantMessages []string
	for _, msg := range request.Messages {
		switch msg.Role {
		case RoleSystem:
			systemContent = msg.Content
		case RoleUser:
			userContent = msg.Content
		case RoleAssistant:
			assistantMessages = append(assistantMessages, msg.Content)
		default:
			utils.GetLogger().Warn("Unknown message role type", map[string]interface{}{"role": msg.Role})
		}
	}

	// 助手消息历史，将其整合到用户提示中
	if len(assistantMessages) > 0 {
		conversationHistory := strings.Join(assistantMessages, "\n\n")
		userContent = fmt.Sprintf("Conversation history:\n%s\n\nCurrent user input: %s",
			conversationHistory, userContent)
	}

	// 解析需要使用的模型
	resolvedModel := s.resolveModel(request.Model)

	// 生成缓存键
	cacheKey := s.generateCacheKey(userContent, systemContent, resolvedModel)

	// 检查缓存
	if s.cache != nil {
		var cachedResult ChatCompletionResponse
		if s.checkAndUseCache(cacheKey, &cachedResult) {
			utils.GetLogger().Info("DEBUG:LLM Chat cache hit", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
			return cachedResult, nil
		}
	}

	s.providerMutex.RLock()
	provider := s.provider
	s.providerMutex.RUnlock()

	if provider == nil {
		return ChatCompletionResponse{}, ErrLLMNotReady
	}

	// 转换请求格式
	req := llm.CompletionRequest{
		Model:       resolvedModel,
		Temperature: float32(request.Temperature),
		MaxTokens:   request.MaxTokens,
		ExtraParams: request.ExtraParams,
	}

	req.SystemPrompt = systemContent
	req.Prompt = userContent

	// 调用实际Provider
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		return ChatCompletionResponse{}, err
	}

	// 转换为统一格式的响应
	result := ChatCompletionResponse{
		ID: resp.ModelName + "-" + s.providerName,
		Choices: []ChatCompletionChoice{
			{
				Message: ChatCompletionMessage{
					Role:    "assistant",
					Content: resp.Text,
				},
				FinishReason: resp.FinishReason,
			},
		},
		Usage: Usage{
			PromptTokens:     resp.PromptTokens,
			CompletionTokens: resp.OutputTokens,
			TotalTokens:      resp.TokensUsed,
		},
	}

	// 保存到缓存
	if s.cache != nil {
		s.saveToCache(cacheKey, result)
	}

	return result, nil
}

// CreateStructuredCompletion 结构化输出补全
func (s *LLMService) CreateStructuredCompletion(ctx context.Context, prompt string, systemPrompt string, outputSchema interface{}) error {
	// 获取默认模型（线程安全）
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		s.providerMutex.RUnlock()
		return fmt.Errorf("LLM service not ready: %s", s.readyState)
	}
	provider := s.provider
	s.providerMutex.RUnlock()

	model := s.resolveModel("")

	// 生成缓存键
	cacheKey := s.generateCacheKey(prompt, systemPrompt, model)

	// 检查缓存
	if s.checkAndUseCache(cacheKey, outputSchema) {
		return nil
	}

	// 修改系统提示以请求特定格式
	structuredSystemPrompt := systemPrompt
	if systemPrompt != "" {
		structuredSystemPrompt += "\n\n"
	}
	structuredSystemPrompt += "Return your response in valid JSON format, following the provided output schema, without adding explanations or preambles."

	req := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: structuredSystemPrompt,
		Temperature:  0.3,
		Model:        model,
	}

	// 调用实际Provider
	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		return err
	}

	// 尝试解析结构化输出
	text := cleanJSONString(resp.Text)

	// 解析JSON到提供的结构中
	err = json.Unmarshal([]byte(text), outputSchema)
	if err != nil {
		return fmt.Errorf("failed to parse AI response into structured data: %w\nAI return: %s", err, text)
	}

	// 保存到缓存
	s.saveStructuredToCache(cacheKey, outputSchema)

	return nil
}

// ================================
// 讨论编排相关的领域方法
// ================================

// GenerateAgentReply 以指定角色的口吻生成一条讨论发言
// history 按时间顺序排列，最近的消息在最后
func (s *LLMService) GenerateAgentReply(ctx context.Context, persona *models.Persona, userMessage string, history []*models.Message) (*models.AgentReply, *models.TokenUsage, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		s.providerMutex.RUnlock()
		return nil, nil, ErrLLMNotReady
	}
	provider := s.provider
	s.providerMutex.RUnlock()

	// 构建讨论历史
	var historyBuilder strings.Builder
	for _, msg := range history {
		speaker := msg.Role
		if msg.Role == models.MessageRoleAgent && msg.AgentType != "" {
			speaker = msg.AgentType
		}
		historyBuilder.WriteString(fmt.Sprintf("[%s] %s\n", speaker, msg.Content))
	}

	systemPrompt := persona.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = fmt.Sprintf("You are %s, a member of a product boardroom discussion.", persona.Name)
	}

	var prompt string
	if isEnglishText(userMessage) {
		prompt = fmt.Sprintf(`You are participating in a boardroom discussion as "%s".

Discussion so far:
%s
Latest user message: %s

Respond in character with your professional perspective. Keep the response focused and concise.
If you genuinely have nothing to add this turn, set "silence" to true and leave the other fields empty.

Respond with JSON only, using this schema:
{
  "content": "your spoken contribution",
  "reasoning": "one sentence on why you take this position",
  "confidence": 0.0,
  "suggestions": ["short actionable suggestion"],
  "silence": false
}`, persona.Name, historyBuilder.String(), userMessage)
	} else {
		prompt = fmt.Sprintf(`你正在以"%s"的身份参加一场产品董事会讨论。

目前的讨论记录:
%s
用户最新发言: %s

请以该角色的专业视角发言，内容保持聚焦、简洁。
如果本轮确实没有需要补充的内容，将 "silence" 设为 true 并将其余字段留空。

只输出JSON，结构如下:
{
  "content": "你的发言内容",
  "reasoning": "一句话说明你的立场依据",
  "confidence": 0.0,
  "suggestions": ["简短的可执行建议"],
  "silence": false
}`, persona.Name, historyBuilder.String(), userMessage)
	}

	req := llm.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  0.6,
		MaxTokens:    400,
		Model:        s.resolveModel(""),
	}

	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		return nil, nil, err
	}

	usage := &models.TokenUsage{
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.OutputTokens,
		TotalTokens:      resp.TokensUsed,
	}

	// 解析结构化输出；解析失败时降级为纯文本回应，而不是让整个回合失败
	var output agentReplyOutput
	cleaned := cleanJSONString(resp.Text)
	if err := json.Unmarshal([]byte(cleaned), &output); err != nil {
		utils.GetLogger().Warn("Agent reply is not valid JSON, falling back to plain content", map[string]interface{}{
			"persona_id": persona.ID,
			"err":        err.Error(),
			"raw":        truncateText(resp.Text, 200),
		})
		return &models.AgentReply{Content: strings.TrimSpace(resp.Text)}, usage, nil
	}

	return &models.AgentReply{
		Content:     strings.TrimSpace(output.Content),
		Reasoning:   output.Reasoning,
		Confidence:  output.Confidence,
		Suggestions: output.Suggestions,
		Silence:     output.Silence,
	}, usage, nil
}

// ClassifyIntent 使用LLM将消息归类到给定的意图类别之一
// 返回的标签不在类别列表中时视为失败，由调用方回退到启发式分类
func (s *LLMService) ClassifyIntent(ctx context.Context, message string, categories []string) (string, error) {
	var output intentOutput

	systemPrompt := "You are a message intent classifier for a boardroom discussion system. Respond with JSON only."
	prompt := fmt.Sprintf(`Classify the following message into exactly one of these intent categories: %s

Message: %s

Respond with JSON: {"intent": "<category>"}`, strings.Join(categories, ", "), message)

	if err := s.CreateStructuredCompletion(ctx, prompt, systemPrompt, &output); err != nil {
		return "", err
	}

	intent := strings.ToLower(strings.TrimSpace(output.Intent))
	for _, c := range categories {
		if intent == c {
			return intent, nil
		}
	}

	return "", fmt.Errorf("classifier returned unknown intent: %q", output.Intent)
}

// PickResponder 使用LLM从候选角色中选出最适合回应的一个
// 返回的ID必须在候选列表中，否则视为失败
func (s *LLMService) PickResponder(ctx context.Context, message string, personas []*models.Persona) (string, error) {
	var output responderOutput

	var candidates strings.Builder
	for _, p := range personas {
		candidates.WriteString(fmt.Sprintf("- %s: %s (%s)\n", p.ID, p.Name, p.Description))
	}

	systemPrompt := "You are a meeting chair deciding which board member should answer next. Respond with JSON only."
	prompt := fmt.Sprintf(`Given the following board members:
%s
Which single member is best suited to respond to this message?

Message: %s

Respond with JSON: {"persona_id": "<id>"}`, candidates.String(), message)

	if err := s.CreateStructuredCompletion(ctx, prompt, systemPrompt, &output); err != nil {
		return "", err
	}

	picked := strings.TrimSpace(output.PersonaID)
	for _, p := range personas {
		if picked == p.ID {
			return picked, nil
		}
	}

	return "", fmt.Errorf("router returned unknown persona: %q", output.PersonaID)
}

// Summarize 将讨论记录压缩为一段总结
func (s *LLMService) Summarize(ctx context.Context, lines []string) (string, error) {
	s.providerMutex.RLock()
	if !s.isReady || s.provider == nil {
		s.providerMutex.RUnlock()
		return "", ErrLLMNotReady
	}
	provider := s.provider
	s.providerMutex.RUnlock()

	req := llm.CompletionRequest{
		Prompt:       strings.Join(lines, "\n\n"),
		SystemPrompt: "Summarize the following agent discussion into a clear, concise summary highlighting key points and decisions.",
		Temperature:  0.5,
		MaxTokens:    300,
		Model:        s.resolveModel(""),
	}

	resp, err := provider.CompleteText(ctx, req)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Text), nil
}

// GetProvider 返回内部的Provider实例
func (s *LLMService) GetProvider() llm.Provider {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.provider
}

// GetProviderName 返回当前LLM提供商名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// isEnglishText 检测文本是否为英文
func isEnglishText(text string) bool {
	if len(text) == 0 {
		return false
	}

	// 计数
	letterCount := 0
	totalValidChars := 0

	for _, r := range text {
		// 英文字母
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			letterCount++
			totalValidChars++
		}
		// 中文字符
		if r >= 0x4E00 && r <= 0x9FFF {
			totalValidChars++
		}
		// 数字也算有效字符
		if r >= '0' && r <= '9' {
			totalValidChars++
		}
	}

	if totalValidChars == 0 {
		return false
	}

	// 英文字母比例超过50%认为是英文文本
	englishRatio := float64(letterCount) / float64(totalValidChars)
	return englishRatio > 0.5
}

// truncateText 截断过长的文本用于日志和错误信息
func truncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}

// GetDefaultModel 获取当前配置的默认模型
func (s *LLMService) GetDefaultModel() string {
	return s.resolveModel("")
}

// resolveModel 根据请求和配置确定应使用的模型
func (s *LLMService) resolveModel(requestedModel string) string {
	if trimmed := strings.TrimSpace(requestedModel); trimmed != "" {
		return trimmed
	}

	s.providerMutex.RLock()
	provider := s.provider
	providerName := s.providerName
	activeDefault := s.activeDefaultModel
	s.providerMutex.RUnlock()

	if activeDefault != "" {
		return activeDefault
	}

	if provider != nil {
		if models := provider.GetSupportedModels(); len(models) > 0 {
			if model := strings.TrimSpace(models[0]); model != "" {
				return model
			}
		}
	}

	if cfg := config.GetCurrentConfig(); cfg != nil && cfg.LLMProvider == providerName {
		if cfg.LLMConfig != nil {
			if model := strings.TrimSpace(cfg.LLMConfig["default_model"]); model != "" {
				return model
			}
			if model := strings.TrimSpace(cfg.LLMConfig["model"]); model != "" {
				return model
			}
		}
	}

	if model, exists := providerDefaultModels[providerName]; exists {
		if trimmed := strings.TrimSpace(model); trimmed != "" {
			return trimmed
		}
	}

	return "gpt-4o-mini"
}

func extractDefaultModel(cfg map[string]string) string {
	if cfg == nil {
		return ""
	}
	if model := strings.TrimSpace(cfg["default_model"]); model != "" {
		return model
	}
	if model := strings.TrimSpace(cfg["model"]); model != "" {
		return model
	}
	return ""
}

// 统一的缓存操作方法
func (s *LLMService) checkAndUseCache(cacheKey string, outputSchema interface{}) bool {
	if s.cache == nil {
		return false
	}

	if cachedResponse, found := s.cache.getFromCache(cacheKey); found {
		// 缓存统一保存为JSON字节
		if responseBytes, ok := cachedResponse.([]byte); ok {
			if outputSchema != nil {
				err := json.Unmarshal(responseBytes, outputSchema)
				if err == nil {
					utils.GetLogger().Info("DEBUG:LLM cache hit", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
					return true
				}
			}
		}

		// 向后兼容：缓存项是完整响应结构
		if resp, ok := cachedResponse.(ChatCompletionResponse); ok {
			if chatResp, ok := outputSchema.(*ChatCompletionResponse); ok {
				*chatResp = resp
				utils.GetLogger().Info("DEBUG:LLM cache hit", map[string]interface{}{"cache_key_prefix": cacheKey[:8]})
				return true
			}
		}
	}

	return false
}

// 统一的缓存保存方法
func (s *LLMService) saveToCache(cacheKey string, response interface{}) {
	if s.cache != nil {
		// 总是将响应序列化为JSON字节存储，以确保一致的类型处理
		responseBytes, err := json.Marshal(response)
		if err != nil {
			utils.GetLogger().Error("Failed to serialize cached response", map[string]interface{}{"err": err})
			s.cache.saveToCache(cacheKey, response)
		} else {
			s.cache.saveToCache(cacheKey, responseBytes)
		}
	}
}

// saveStructuredToCache 保存结构化结果到缓存
func (s *LLMService) saveStructuredToCache(cacheKey string, outputSchema interface{}) {
	s.saveToCache(cacheKey, outputSchema)
}

// 清理JSON字符串，去除前后非JSON内容
var jsonNoiseReplacer = strings.NewReplacer(
	"```json", "",
	"```", "",
	"\ufeff", "",
	"\u00a0", " ",
	"\u2028", "\n",
	"\u2029", "\n",
)

var structuralPunctuationMap = map[rune]rune{
	'：': ':',
	'﹕': ':',
	'，': ',',
	'﹐': ',',
	'；': ';',
	'﹔': ';',
	'【': '[',
	'】': ']',
	'［': '[',
	'］': ']',
	'｛': '{',
	'｝': '}',
	'（': '(',
	'）': ')',
}

var quotePairs = map[rune]rune{
	'"': '"',
	'“': '”',
	'”': '”',
	'„': '”',
	'‟': '”',
	'「': '」',
	'」': '」',
	'『': '』',
	'﹁': '﹂',
	'﹂': '﹂',
}

func normalizeJSONStructure(s string) string {
	if s == "" {
		return s
	}

	var builder strings.Builder
	builder.Grow(len(s))
	inString := false
	escaped := false
	currentClosing := '"'

	for _, r := range s {
		if inString {
			if !escaped && r == '\\' {
				escaped = true
				builder.WriteRune(r)
				continue
			}

			if escaped {
				escaped = false
				builder.WriteRune(r)
				continue
			}

			if r == currentClosing || r == '"' {
				inString = false
				currentClosing = '"'
				builder.WriteRune('"')
				continue
			}

			builder.WriteRune(r)
			continue
		}

		if replacement, ok := structuralPunctuationMap[r]; ok {
			r = replacement
		} else if closing, ok := quotePairs[r]; ok {
			inString = true
			currentClosing = closing
			builder.WriteRune('"')
			continue
		} else if r == '"' {
			inString = true
			currentClosing = '"'
			builder.WriteRune(r)
			continue
		} else if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			// 丢弃出现在字符串外的异常Unicode字符（例如 æ、• 等）
			continue
		}

		builder.WriteRune(r)
	}

	return builder.String()
}

func cleanJSONString(s string) string {
	if s == "" {
		return s
	}

	// 统一替换常见的噪声、全角符号以及Markdown标记
	s = jsonNoiseReplacer.Replace(s)
	s = strings.TrimSpace(s)

	// 移除零宽字符及除换行/制表符外的控制字符
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u2060', '\ufeff':
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	// 查找第一个 { 或 [，将其之前的内容全部丢弃
	start := strings.IndexAny(s, "[{")
	if start == -1 {
		return s
	}

	s = strings.TrimSpace(s[start:])
	if s == "" {
		return s
	}

	// 规范化JSON结构所需的标点符号，移除字符串外的异常字符
	s = normalizeJSONStructure(s)

	isArray := len(s) > 0 && s[0] == '['

	// 简单的括号计数匹配
	balance := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		char := s[i]

		if escaped {
			escaped = false
			continue
		}

		if char == '\\' {
			escaped = true
			continue
		}

		if char == '"' {
			inString = !inString
			continue
		}

		if !inString {
			if isArray {
				if char == '[' {
					balance++
				} else if char == ']' {
					balance--
				}
			} else {
				if char == '{' {
					balance++
				} else if char == '}' {
					balance--
				}
			}

			if balance == 0 {
				// 找到了匹配的结束符
				return strings.TrimSpace(s[:i+1])
			}
		}
	}

	// 如果没找到匹配的结束符，尝试回退到旧逻辑（找最后一个）
	end := -1
	if isArray {
		end = strings.LastIndex(s, "]")
	} else {
		end = strings.LastIndex(s, "}")
	}

	if end != -1 && end >= 0 {
		return strings.TrimSpace(s[:end+1])
	}

	return strings.TrimSpace(s)
}

// CleanLLMJSONResponse 提供给外部调用的JSON清洗助手
func CleanLLMJSONResponse(raw string) string {
	return cleanJSONString(raw)
}
