// internal/models/persona.go
package models

import "time"

// 议事角色类型
const (
	AgentTypeMarketing = "marketing"
	AgentTypeDeveloper = "developer"
	AgentTypeDesigner  = "designer"
	AgentTypeLegal     = "legal"
	AgentTypeFinance   = "finance"
	AgentTypePM        = "pm"
	AgentTypeUX        = "ux"
	AgentTypeQA        = "qa"
)

// Persona 表示一个虚拟董事会成员
type Persona struct {
	ID           string    `json:"id"`            // 短标识，如 "developer"
	Name         string    `json:"name"`          // 显示名称
	Description  string    `json:"description"`   // 角色简介
	SystemPrompt string    `json:"system_prompt"` // 生成回应时使用的系统提示
	Color        string    `json:"color"`         // 前端展示颜色
	Icon         string    `json:"icon"`          // 前端展示图标
	Capabilities []string  `json:"capabilities"`  // 能力标签，用于路由评分
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCapability 检查角色是否带有指定能力标签
func (p *Persona) HasCapability(tag string) bool {
	for _, c := range p.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}
