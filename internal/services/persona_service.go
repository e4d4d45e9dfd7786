// internal/services/persona_service.go
package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/storage"
	"github.com/Corphon/BoardroomMCP/internal/utils"
)

const personasDir = "personas"

// PersonaService 管理讨论角色的加载、创建与更新
type PersonaService struct {
	storage *storage.FileStorage
}

// NewPersonaService 创建角色服务
func NewPersonaService(fileStorage *storage.FileStorage) *PersonaService {
	return &PersonaService{storage: fileStorage}
}

// defaultPersonas 内置的董事会角色；首次启动时写入存储
func defaultPersonas() []*models.Persona {
	now := time.Now()
	build := func(id, name, description, systemPrompt, color, icon string, capabilities []string) *models.Persona {
		return &models.Persona{
			ID:           id,
			Name:         name,
			Description:  description,
			SystemPrompt: systemPrompt,
			Color:        color,
			Icon:         icon,
			Capabilities: capabilities,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	return []*models.Persona{
		build(models.AgentTypePM, "Product Manager", "Chairs the discussion, balances scope, priorities and stakeholder needs",
			"You are a seasoned product manager chairing a boardroom discussion. You balance scope, priorities and timelines, and you close each topic with a clear next step.",
			"#2563EB", "clipboard", []string{"pm", "roadmap", "priority", "scope"}),
		build(models.AgentTypeDeveloper, "Lead Developer", "Evaluates technical feasibility, architecture and effort",
			"You are a pragmatic lead developer. You assess technical feasibility, call out architectural risks, and estimate effort honestly.",
			"#16A34A", "terminal", []string{"developer", "architecture", "api", "testing"}),
		build(models.AgentTypeMarketing, "Marketing Lead", "Speaks for the market, customers and growth metrics",
			"You are a data-driven marketing lead. You reason about positioning, CAC, LTV, pricing and growth channels.",
			"#D97706", "megaphone", []string{"marketing", "growth", "pricing", "brand"}),
		build(models.AgentTypeDesigner, "Product Designer", "Owns visual direction and design consistency",
			"You are a product designer. You care about visual consistency, clarity and design-system discipline.",
			"#DB2777", "palette", []string{"designer", "design", "visual"}),
		build(models.AgentTypeUX, "UX Researcher", "Advocates for usability and the end-user experience",
			"You are a UX researcher. You advocate for the end user, question assumptions with evidence, and flag usability problems early.",
			"#9333EA", "users", []string{"ux", "usability", "research"}),
		build(models.AgentTypeQA, "QA Lead", "Surfaces risks, edge cases and quality concerns",
			"You are a QA lead. You surface risks, edge cases, failure modes and quality gaps before they ship.",
			"#DC2626", "shield", []string{"qa", "risk", "quality", "testing"}),
		build(models.AgentTypeLegal, "Legal Counsel", "Reviews compliance, privacy and contractual exposure",
			"You are in-house legal counsel. You review compliance, privacy and contractual exposure, and you keep advice practical.",
			"#475569", "scale", []string{"legal", "compliance", "privacy"}),
		build(models.AgentTypeFinance, "Finance Lead", "Guards budget, unit economics and financial forecasts",
			"You are the finance lead. You guard the budget, model unit economics, and demand numbers behind every proposal.",
			"#0D9488", "calculator", []string{"finance", "budget", "forecast"}),
	}
}

// EnsureDefaults 确保内置角色存在；已存在的角色不会被覆盖
func (s *PersonaService) EnsureDefaults() error {
	for _, p := range defaultPersonas() {
		filename := p.ID + ".json"
		if s.storage.FileExists(personasDir, filename) {
			continue
		}
		if err := s.storage.SaveJSONFile(personasDir, filename, p); err != nil {
			return fmt.Errorf("保存内置角色失败 %s: %w", p.ID, err)
		}
	}
	utils.GetLogger().Info("Default personas ready", map[string]interface{}{"count": len(defaultPersonas())})
	return nil
}

// GetPersona 按ID加载单个角色
func (s *PersonaService) GetPersona(id string) (*models.Persona, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.NewValidationError("角色ID不能为空", nil)
	}

	var persona models.Persona
	if err := s.storage.LoadJSONFile(personasDir, id+".json", &persona); err != nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("角色不存在: %s", id), err)
	}
	return &persona, nil
}

// ListPersonas 返回全部角色，按ID排序
func (s *PersonaService) ListPersonas() ([]*models.Persona, error) {
	files, err := s.storage.ListFiles(personasDir)
	if err != nil {
		return nil, apperrors.NewProcessingError("读取角色列表失败", err)
	}

	personas := make([]*models.Persona, 0, len(files))
	for _, f := range files {
		if !strings.HasSuffix(f, ".json") {
			continue
		}
		var persona models.Persona
		if err := s.storage.LoadJSONFile(personasDir, f, &persona); err != nil {
			utils.GetLogger().Warn("Skipping unreadable persona file", map[string]interface{}{"file": f, "err": err.Error()})
			continue
		}
		personas = append(personas, &persona)
	}

	sort.Slice(personas, func(i, j int) bool {
		return personas[i].ID < personas[j].ID
	})
	return personas, nil
}

// FindByIDs 按给定顺序加载角色，跳过缺失或停用的角色
func (s *PersonaService) FindByIDs(ids []string) ([]*models.Persona, error) {
	result := make([]*models.Persona, 0, len(ids))
	for _, id := range ids {
		persona, err := s.GetPersona(id)
		if err != nil {
			if apperrors.IsNotFoundError(err) {
				utils.GetLogger().Warn("Conversation references unknown persona", map[string]interface{}{"persona_id": id})
				continue
			}
			return nil, err
		}
		if !persona.IsActive {
			continue
		}
		result = append(result, persona)
	}
	return result, nil
}

// CreatePersona 创建一个新角色；未提供ID时生成UUID
func (s *PersonaService) CreatePersona(persona *models.Persona) (*models.Persona, error) {
	if persona == nil {
		return nil, apperrors.NewValidationError("角色数据不能为空", nil)
	}
	if strings.TrimSpace(persona.Name) == "" {
		return nil, apperrors.NewValidationError("角色名称不能为空", nil)
	}

	if persona.ID == "" {
		persona.ID = uuid.New().String()
	}
	if s.storage.FileExists(personasDir, persona.ID+".json") {
		return nil, apperrors.NewConflictError(fmt.Sprintf("角色已存在: %s", persona.ID), nil)
	}

	now := time.Now()
	persona.CreatedAt = now
	persona.UpdatedAt = now
	persona.IsActive = true

	if err := s.storage.SaveJSONFile(personasDir, persona.ID+".json", persona); err != nil {
		return nil, apperrors.NewProcessingError("保存角色失败", err)
	}

	utils.GetLogger().Info("Persona created", map[string]interface{}{"persona_id": persona.ID, "name": persona.Name})
	return persona, nil
}

// UpdatePersona 更新已有角色的可变字段
func (s *PersonaService) UpdatePersona(id string, update *models.Persona) (*models.Persona, error) {
	persona, err := s.GetPersona(id)
	if err != nil {
		return nil, err
	}

	if update.Name != "" {
		persona.Name = update.Name
	}
	if update.Description != "" {
		persona.Description = update.Description
	}
	if update.SystemPrompt != "" {
		persona.SystemPrompt = update.SystemPrompt
	}
	if update.Color != "" {
		persona.Color = update.Color
	}
	if update.Icon != "" {
		persona.Icon = update.Icon
	}
	if update.Capabilities != nil {
		persona.Capabilities = update.Capabilities
	}
	persona.IsActive = update.IsActive
	persona.UpdatedAt = time.Now()

	if err := s.storage.SaveJSONFile(personasDir, persona.ID+".json", persona); err != nil {
		return nil, apperrors.NewProcessingError("保存角色失败", err)
	}
	return persona, nil
}

// DeletePersona 删除角色
func (s *PersonaService) DeletePersona(id string) error {
	if !s.storage.FileExists(personasDir, id+".json") {
		return apperrors.NewNotFoundError(fmt.Sprintf("角色不存在: %s", id), nil)
	}
	if err := s.storage.DeleteFile(personasDir, id+".json"); err != nil {
		return apperrors.NewProcessingError("删除角色失败", err)
	}
	return nil
}
