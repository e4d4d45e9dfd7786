// internal/services/persona_router.go
package services

import (
	"context"
	"strings"

	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/utils"
)

// 路由模式
const (
	RouteModeTagged = "TAGGED" // 用户显式点名，名单即为最终回应者集合
	RouteModeRouted = "ROUTED" // 系统选出主回应者，可附加主持人补充发言
)

// RouteResult 一次路由决策的结果
type RouteResult struct {
	Responders []*models.Persona
	Mode       string
}

// scoringCategory 启发式打分的一个类别：关键词命中加分，
// 角色身份或能力标签匹配类别时进一步放大
type scoringCategory struct {
	identity      string
	keywordWeight int
	identityBonus int
	keywords      []string
}

// 静态打分规则表；只读，不在运行时修改
var scoringCategories = []scoringCategory{
	{
		identity:      models.AgentTypeDeveloper,
		keywordWeight: 2,
		identityBonus: 3,
		keywords:      []string{"code", "api", "architecture", "database", "testing", "deploy", "scale", "technical", "bug", "performance", "架构", "代码", "技术"},
	},
	{
		identity:      models.AgentTypePM,
		keywordWeight: 2,
		identityBonus: 3,
		keywords:      []string{"roadmap", "scope", "milestone", "priority", "timeline", "requirement", "stakeholder", "deadline", "规划", "需求", "里程碑"},
	},
	{
		identity:      models.AgentTypeMarketing,
		keywordWeight: 2,
		identityBonus: 3,
		keywords:      []string{"market", "cac", "ltv", "pricing", "customer", "brand", "growth", "acquisition", "campaign", "roi", "市场", "获客", "定价"},
	},
	{
		identity:      models.AgentTypeDesigner,
		keywordWeight: 2,
		identityBonus: 3,
		keywords:      []string{"design", "ui", "visual", "layout", "prototype", "mockup", "设计", "视觉", "原型"},
	},
	{
		identity:      models.AgentTypeLegal,
		keywordWeight: 2,
		identityBonus: 3,
		keywords:      []string{"legal", "compliance", "contract", "privacy", "gdpr", "license", "regulation", "合规", "法务", "隐私"},
	},
	{
		identity:      models.AgentTypeFinance,
		keywordWeight: 2,
		identityBonus: 3,
		keywords:      []string{"budget", "cost", "funding", "revenue", "expense", "forecast", "cash", "预算", "成本", "营收"},
	},
}

// 静态意图兜底映射；greeting 和 budget 交给主持人处理
var intentFallbackMap = map[string]string{
	IntentGreeting:    models.AgentTypePM,
	IntentBudget:      models.AgentTypePM,
	IntentMarket:      models.AgentTypeMarketing,
	IntentGeneral:     models.AgentTypeMarketing,
	IntentFeasibility: models.AgentTypeDeveloper,
	IntentUX:          models.AgentTypeUX,
	IntentRisk:        models.AgentTypeQA,
}

// LLMResponderPicker 委托式路由能力的抽象，便于测试替换
type LLMResponderPicker interface {
	PickResponder(ctx context.Context, message string, personas []*models.Persona) (string, error)
}

// PersonaRouterService 为每条用户消息解析回应者集合
// 解析链按顺序尝试：显式点名 → 委托路由 → 关键词打分 → 静态意图映射
type PersonaRouterService struct {
	tagExtractor *TagExtractorService
	classifier   *IntentClassifierService
	llm          LLMResponderPicker
}

// NewPersonaRouterService 创建角色路由服务；llm 可以为 nil
func NewPersonaRouterService(tagExtractor *TagExtractorService, classifier *IntentClassifierService, llm LLMResponderPicker) *PersonaRouterService {
	return &PersonaRouterService{
		tagExtractor: tagExtractor,
		classifier:   classifier,
		llm:          llm,
	}
}

// Resolve 解析消息的回应者集合
// 只要 personas 非空，结果的 Responders 就保证非空
func (s *PersonaRouterService) Resolve(ctx context.Context, personas []*models.Persona, message string) *RouteResult {
	if len(personas) == 0 {
		return &RouteResult{Responders: nil, Mode: RouteModeRouted}
	}

	// 1. 显式点名：点到谁就是谁，其他角色本轮保持沉默
	if tagged := s.resolveTagged(personas, message); len(tagged) > 0 {
		utils.RecordRouteDecision("tagged")
		return &RouteResult{Responders: tagged, Mode: RouteModeTagged}
	}

	// 2. 委托路由：让外部模型从花名册里挑一个
	if s.llm != nil {
		if personaID, err := s.llm.PickResponder(ctx, message, personas); err == nil {
			if p := findPersona(personas, personaID); p != nil {
				utils.RecordRouteDecision("delegated")
				return &RouteResult{Responders: []*models.Persona{p}, Mode: RouteModeRouted}
			}
		} else {
			utils.GetLogger().Debug("Delegated routing failed, using heuristic scoring", map[string]interface{}{
				"err": err.Error(),
			})
		}
	}

	// 3. 关键词打分
	if p := s.resolveByScore(personas, message); p != nil {
		utils.RecordRouteDecision("scored")
		return &RouteResult{Responders: []*models.Persona{p}, Mode: RouteModeRouted}
	}

	// 4. 静态意图映射兜底
	intent := IntentGeneral
	if s.classifier != nil {
		intent = s.classifier.Classify(ctx, message)
	}
	utils.RecordRouteDecision("intent_map")
	return &RouteResult{Responders: []*models.Persona{s.resolveByIntent(personas, intent)}, Mode: RouteModeRouted}
}

// resolveTagged 查找消息中显式点名的角色
func (s *PersonaRouterService) resolveTagged(personas []*models.Persona, message string) []*models.Persona {
	if s.tagExtractor == nil {
		return nil
	}
	ids := s.tagExtractor.ExtractMentions(message, personas)
	if len(ids) == 0 {
		return nil
	}
	result := make([]*models.Persona, 0, len(ids))
	for _, id := range ids {
		if p := findPersona(personas, id); p != nil {
			result = append(result, p)
		}
	}
	return result
}

// resolveByScore 按关键词打分选出最高分角色
// 所有角色都是零分时返回 nil，由意图映射兜底
func (s *PersonaRouterService) resolveByScore(personas []*models.Persona, message string) *models.Persona {
	lowerMessage := strings.ToLower(message)

	var best *models.Persona
	bestScore := 0

	for _, p := range personas {
		score := scorePersona(p, lowerMessage)
		// 平分时保持列表顺序中靠前的角色
		if score > bestScore {
			bestScore = score
			best = p
		}
	}

	return best
}

// scorePersona 计算单个角色对消息的匹配分
func scorePersona(p *models.Persona, lowerMessage string) int {
	total := 0
	for _, cat := range scoringCategories {
		hits := 0
		for _, kw := range cat.keywords {
			if strings.Contains(lowerMessage, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}

		score := hits * cat.keywordWeight

		// 类别与角色自身身份或能力标签匹配时放大得分
		if p.ID == cat.identity {
			score += cat.identityBonus
		}
		if p.HasCapability(cat.identity) {
			score += cat.identityBonus
		}

		// 身份不匹配的角色只拿基础关键词分的一半
		if p.ID != cat.identity && !p.HasCapability(cat.identity) {
			score = hits
		}

		total += score
	}
	return total
}

// resolveByIntent 按静态意图映射选择角色；映射目标不在名单上时退回首个角色
func (s *PersonaRouterService) resolveByIntent(personas []*models.Persona, intent string) *models.Persona {
	if target, ok := intentFallbackMap[intent]; ok {
		if p := findPersona(personas, target); p != nil {
			return p
		}
	}
	return personas[0]
}

func findPersona(personas []*models.Persona, id string) *models.Persona {
	for _, p := range personas {
		if p.ID == id {
			return p
		}
	}
	return nil
}
