// internal/services/message_service_test.go
package services

import (
	"testing"
	"time"

	apperrors "github.com/Corphon/BoardroomMCP/internal/errors"
	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/storage"
)

func newTestMessageService(t *testing.T) *MessageService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	return NewMessageService(fs)
}

func TestAppendMessageFillsIDAndTimestamp(t *testing.T) {
	service := newTestMessageService(t)

	msg, err := service.AppendMessage(&models.Message{
		ConversationID: "conv-1",
		Role:           models.MessageRoleUser,
		Content:        "hi",
	})
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if msg.ID == "" {
		t.Error("expected generated message ID")
	}
	if msg.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be filled")
	}
}

func TestAppendMessageValidation(t *testing.T) {
	service := newTestMessageService(t)

	if _, err := service.AppendMessage(nil); !apperrors.IsValidationError(err) {
		t.Errorf("AppendMessage(nil) error = %v, want validation error", err)
	}
	if _, err := service.AppendMessage(&models.Message{Content: "orphan"}); !apperrors.IsValidationError(err) {
		t.Errorf("AppendMessage(no conversation) error = %v, want validation error", err)
	}
}

func TestGetMessagesChronologicalOrder(t *testing.T) {
	service := newTestMessageService(t)

	base := time.Now().Add(-time.Hour)
	for i, content := range []string{"first", "second", "third"} {
		_, err := service.AppendMessage(&models.Message{
			ConversationID: "conv-1",
			Role:           models.MessageRoleUser,
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	messages, err := service.GetMessages("conv-1")
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("GetMessages() = %d messages, want 3", len(messages))
	}
	for i, want := range []string{"first", "second", "third"} {
		if messages[i].Content != want {
			t.Errorf("messages[%d].Content = %q, want %q", i, messages[i].Content, want)
		}
	}
}

func TestGetMessagesEmptyConversation(t *testing.T) {
	service := newTestMessageService(t)

	messages, err := service.GetMessages("no-such-conversation")
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("GetMessages() = %d messages, want 0", len(messages))
	}
}

func TestGetAgentMessagesFiltersByRole(t *testing.T) {
	service := newTestMessageService(t)

	base := time.Now().Add(-time.Hour)
	appendAt := func(role, agentType, content string, offset time.Duration) {
		t.Helper()
		_, err := service.AppendMessage(&models.Message{
			ConversationID: "conv-1",
			Role:           role,
			AgentType:      agentType,
			Content:        content,
			CreatedAt:      base.Add(offset),
		})
		if err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	appendAt(models.MessageRoleUser, "", "hi", 0)
	appendAt(models.MessageRoleAgent, "pm", "welcome", time.Minute)
	appendAt(models.MessageRoleAgent, "developer", "looks feasible", 2*time.Minute)

	agents, err := service.GetAgentMessages("conv-1")
	if err != nil {
		t.Fatalf("GetAgentMessages() error = %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("GetAgentMessages() = %d messages, want 2", len(agents))
	}
	if agents[0].AgentType != "pm" || agents[1].AgentType != "developer" {
		t.Errorf("agent order = [%s %s], want [pm developer]", agents[0].AgentType, agents[1].AgentType)
	}
}
