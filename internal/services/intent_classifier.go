// internal/services/intent_classifier.go
package services

import (
	"context"
	"regexp"

	"github.com/Corphon/BoardroomMCP/internal/utils"
)

// 意图类别
const (
	IntentGreeting    = "greeting"
	IntentMarket      = "market"
	IntentFeasibility = "feasibility"
	IntentUX          = "ux"
	IntentRisk        = "risk"
	IntentBudget      = "budget"
	IntentGeneral     = "general"
)

// IntentCategories 所有可识别的意图类别，按启发式匹配优先级排列
var IntentCategories = []string{
	IntentGreeting,
	IntentMarket,
	IntentFeasibility,
	IntentUX,
	IntentRisk,
	IntentBudget,
	IntentGeneral,
}

// intentRule 一条意图匹配规则，顺序匹配，首个命中即返回
type intentRule struct {
	intent  string
	pattern *regexp.Regexp
}

// 固定优先级的意图规则表；不会在运行时修改
var intentRules = []intentRule{
	{IntentGreeting, regexp.MustCompile(`(?i)^\s*(?:(hi|hello|hey)\b|你好|您好|大家好)`)},
	{IntentMarket, regexp.MustCompile(`(?i)\b(market|competitor|customer|user growth|acquisition|cac|ltv|pricing|segment|brand)\b|市场|竞品|获客|定价`)},
	{IntentFeasibility, regexp.MustCompile(`(?i)\b(feasib|implement|architecture|api|code|technical|scal(e|ing|ability)|build|integrat)\w*\b|可行性|架构|技术|实现`)},
	{IntentUX, regexp.MustCompile(`(?i)\b(ux|ui|usability|user experience|design|interface|interaction|accessib)\w*\b|体验|交互|界面`)},
	{IntentRisk, regexp.MustCompile(`(?i)\b(risk|security|compliance|legal|privacy|vulnerab|audit)\w*\b|风险|合规|安全|隐私`)},
	{IntentBudget, regexp.MustCompile(`(?i)\b(budget|cost|spend|funding|roi|invest|expense|financ)\w*\b|预算|成本|投入|费用`)},
}

// LLMClassifier 委托式分类能力的抽象，便于测试替换
type LLMClassifier interface {
	ClassifyIntent(ctx context.Context, message string, categories []string) (string, error)
}

// IntentClassifierService 将用户消息归类到粗粒度意图类别
// 优先走委托分类（如可用），任何失败都回退到本地启发式规则
type IntentClassifierService struct {
	llm LLMClassifier
}

// NewIntentClassifierService 创建意图分类服务；llm 可以为 nil（纯启发式模式）
func NewIntentClassifierService(llm LLMClassifier) *IntentClassifierService {
	return &IntentClassifierService{llm: llm}
}

// Classify 返回消息的意图类别，保证总能返回一个有效类别
func (s *IntentClassifierService) Classify(ctx context.Context, message string) string {
	// 过短的输入不值得一次远程调用
	if s.llm != nil && len([]rune(message)) >= 3 {
		intent, err := s.llm.ClassifyIntent(ctx, message, IntentCategories)
		if err == nil {
			return intent
		}
		utils.GetLogger().Debug("Delegated intent classification failed, using heuristic", map[string]interface{}{
			"err": err.Error(),
		})
	}

	return s.classifyHeuristic(message)
}

// classifyHeuristic 按固定优先级顺序匹配规则表，首个命中即返回
func (s *IntentClassifierService) classifyHeuristic(message string) string {
	for _, rule := range intentRules {
		if rule.pattern.MatchString(message) {
			return rule.intent
		}
	}
	return IntentGeneral
}
