// internal/services/persona_service_test.go
package services

import (
	"testing"

	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/storage"
)

func newTestPersonaService(t *testing.T) *PersonaService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	return NewPersonaService(fs)
}

func TestEnsureDefaultsSeedsBoard(t *testing.T) {
	service := newTestPersonaService(t)

	if err := service.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}

	personas, err := service.ListPersonas()
	if err != nil {
		t.Fatalf("ListPersonas() error = %v", err)
	}
	if len(personas) != 8 {
		t.Fatalf("ListPersonas() = %d personas, want 8", len(personas))
	}

	for _, id := range []string{models.AgentTypePM, models.AgentTypeDeveloper, models.AgentTypeMarketing, models.AgentTypeQA} {
		if _, err := service.GetPersona(id); err != nil {
			t.Errorf("GetPersona(%q) error = %v", id, err)
		}
	}
}

func TestEnsureDefaultsKeepsExisting(t *testing.T) {
	service := newTestPersonaService(t)

	if err := service.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}
	if _, err := service.UpdatePersona(models.AgentTypePM, &models.Persona{Name: "Custom Chair", IsActive: true}); err != nil {
		t.Fatalf("UpdatePersona() error = %v", err)
	}

	// 二次调用不会覆盖已有角色
	if err := service.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}
	persona, err := service.GetPersona(models.AgentTypePM)
	if err != nil {
		t.Fatalf("GetPersona() error = %v", err)
	}
	if persona.Name != "Custom Chair" {
		t.Errorf("Name = %q, customization must survive reseeding", persona.Name)
	}
}

func TestFindByIDsPreservesOrderAndSkips(t *testing.T) {
	service := newTestPersonaService(t)
	if err := service.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}

	// 停用一个角色
	disabled, err := service.GetPersona(models.AgentTypeLegal)
	if err != nil {
		t.Fatalf("GetPersona() error = %v", err)
	}
	disabled.IsActive = false
	if _, err := service.UpdatePersona(disabled.ID, disabled); err != nil {
		t.Fatalf("UpdatePersona() error = %v", err)
	}

	got, err := service.FindByIDs([]string{models.AgentTypeMarketing, "ghost", models.AgentTypeLegal, models.AgentTypePM})
	if err != nil {
		t.Fatalf("FindByIDs() error = %v", err)
	}

	// 缺失和停用的角色被跳过，其余按给定顺序返回
	if len(got) != 2 {
		t.Fatalf("FindByIDs() = %d personas, want 2", len(got))
	}
	if got[0].ID != models.AgentTypeMarketing || got[1].ID != models.AgentTypePM {
		t.Errorf("FindByIDs() order = [%s %s], want [marketing pm]", got[0].ID, got[1].ID)
	}
}

func TestCreatePersona(t *testing.T) {
	service := newTestPersonaService(t)

	created, err := service.CreatePersona(&models.Persona{Name: "Data Scientist"})
	if err != nil {
		t.Fatalf("CreatePersona() error = %v", err)
	}
	if created.ID == "" {
		t.Error("expected generated persona ID")
	}
	if !created.IsActive {
		t.Error("new persona should be active")
	}

	if _, err := service.CreatePersona(&models.Persona{ID: created.ID, Name: "Clone"}); !apperrors.IsConflictError(err) {
		t.Errorf("CreatePersona(duplicate) error = %v, want conflict error", err)
	}
	if _, err := service.CreatePersona(&models.Persona{}); !apperrors.IsValidationError(err) {
		t.Errorf("CreatePersona(no name) error = %v, want validation error", err)
	}
}

func TestDeletePersona(t *testing.T) {
	service := newTestPersonaService(t)

	created, err := service.CreatePersona(&models.Persona{Name: "Data Scientist"})
	if err != nil {
		t.Fatalf("CreatePersona() error = %v", err)
	}

	if err := service.DeletePersona(created.ID); err != nil {
		t.Fatalf("DeletePersona() error = %v", err)
	}
	if _, err := service.GetPersona(created.ID); !apperrors.IsNotFoundError(err) {
		t.Errorf("GetPersona(deleted) error = %v, want not-found error", err)
	}
	if err := service.DeletePersona("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("DeletePersona(missing) error = %v, want not-found error", err)
	}
}
