// internal/services/conversation_service_test.go
package services

import (
	"testing"

	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/storage"
)

func newTestConversationService(t *testing.T) *ConversationService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	return NewConversationService(fs, NewLockManager())
}

func TestCreateConversationDefaults(t *testing.T) {
	service := newTestConversationService(t)

	conversation, err := service.CreateConversation("Launch review", "Q3 launch", []string{"pm", "developer"}, 0)
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	if conversation.ID == "" {
		t.Error("expected generated conversation ID")
	}
	if conversation.Status != models.ConversationStatusActive {
		t.Errorf("Status = %q, want active", conversation.Status)
	}
	if conversation.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want default 3", conversation.MaxRounds)
	}
	if conversation.CurrentRound != 0 || conversation.TurnIndex != 0 {
		t.Errorf("counters = (%d, %d), want (0, 0)", conversation.CurrentRound, conversation.TurnIndex)
	}
}

func TestCreateConversationValidation(t *testing.T) {
	service := newTestConversationService(t)

	if _, err := service.CreateConversation("  ", "", []string{"pm"}, 3); !apperrors.IsValidationError(err) {
		t.Errorf("CreateConversation(blank title) error = %v, want validation error", err)
	}
	if _, err := service.CreateConversation("Launch review", "", nil, 3); !apperrors.IsValidationError(err) {
		t.Errorf("CreateConversation(no personas) error = %v, want validation error", err)
	}
}

func TestGetConversationRoundTrip(t *testing.T) {
	service := newTestConversationService(t)

	created, err := service.CreateConversation("Launch review", "Q3 launch", []string{"pm"}, 5)
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	loaded, err := service.GetConversation(created.ID)
	if err != nil {
		t.Fatalf("GetConversation() error = %v", err)
	}
	if loaded.Title != "Launch review" || loaded.MaxRounds != 5 {
		t.Errorf("loaded = {%q, %d}, want {Launch review, 5}", loaded.Title, loaded.MaxRounds)
	}
}

func TestGetConversationNotFound(t *testing.T) {
	service := newTestConversationService(t)

	if _, err := service.GetConversation("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("GetConversation(missing) error = %v, want not-found error", err)
	}
}

func TestApplyTurnPatchPartialFields(t *testing.T) {
	service := newTestConversationService(t)

	created, err := service.CreateConversation("Launch review", "", []string{"pm", "developer"}, 3)
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	turnIndex := 2
	updated, err := service.ApplyTurnPatch(created.ID, &models.TurnPatch{TurnIndex: &turnIndex})
	if err != nil {
		t.Fatalf("ApplyTurnPatch() error = %v", err)
	}

	// 未携带的字段保持原值
	if updated.TurnIndex != 2 {
		t.Errorf("TurnIndex = %d, want 2", updated.TurnIndex)
	}
	if updated.CurrentRound != 0 {
		t.Errorf("CurrentRound = %d, want unchanged 0", updated.CurrentRound)
	}
	if updated.Status != models.ConversationStatusActive {
		t.Errorf("Status = %q, want unchanged active", updated.Status)
	}
}

func TestApplyTurnPatchCompletedSticks(t *testing.T) {
	service := newTestConversationService(t)

	created, err := service.CreateConversation("Launch review", "", []string{"pm"}, 1)
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	completed := models.ConversationStatusCompleted
	if _, err := service.ApplyTurnPatch(created.ID, &models.TurnPatch{Status: &completed}); err != nil {
		t.Fatalf("ApplyTurnPatch() error = %v", err)
	}

	// 已完成的会话不会被后续补丁退回活跃状态
	active := models.ConversationStatusActive
	updated, err := service.ApplyTurnPatch(created.ID, &models.TurnPatch{Status: &active})
	if err != nil {
		t.Fatalf("ApplyTurnPatch() error = %v", err)
	}
	if updated.Status != models.ConversationStatusCompleted {
		t.Errorf("Status = %q, want completed to stick", updated.Status)
	}
}

func TestUpdateConversationMergesFields(t *testing.T) {
	service := newTestConversationService(t)

	created, err := service.CreateConversation("Launch review", "Q3 launch", []string{"pm"}, 3)
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	updated, err := service.UpdateConversation(created.ID, "Pricing review", "", []string{"pm", "marketing"}, 0)
	if err != nil {
		t.Fatalf("UpdateConversation() error = %v", err)
	}

	if updated.Title != "Pricing review" {
		t.Errorf("Title = %q, want Pricing review", updated.Title)
	}
	if updated.Context != "Q3 launch" {
		t.Errorf("Context = %q, want unchanged", updated.Context)
	}
	if len(updated.ActivePersonas) != 2 {
		t.Errorf("ActivePersonas = %v, want 2 entries", updated.ActivePersonas)
	}
	if updated.MaxRounds != 3 {
		t.Errorf("MaxRounds = %d, want unchanged 3", updated.MaxRounds)
	}
}

func TestArchiveConversation(t *testing.T) {
	service := newTestConversationService(t)

	created, err := service.CreateConversation("Launch review", "", []string{"pm"}, 3)
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	archived, err := service.ArchiveConversation(created.ID)
	if err != nil {
		t.Fatalf("ArchiveConversation() error = %v", err)
	}
	if archived.Status != models.ConversationStatusArchived {
		t.Errorf("Status = %q, want archived", archived.Status)
	}
}

func TestDeleteConversation(t *testing.T) {
	service := newTestConversationService(t)

	created, err := service.CreateConversation("Launch review", "", []string{"pm"}, 3)
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	if err := service.DeleteConversation(created.ID); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if _, err := service.GetConversation(created.ID); !apperrors.IsNotFoundError(err) {
		t.Errorf("GetConversation(deleted) error = %v, want not-found error", err)
	}

	if err := service.DeleteConversation("missing"); !apperrors.IsNotFoundError(err) {
		t.Errorf("DeleteConversation(missing) error = %v, want not-found error", err)
	}
}
