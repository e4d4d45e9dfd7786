// internal/services/analytics_service_test.go
package services

import (
	"math"
	"testing"

	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/storage"
)

func newTestAnalyticsService(t *testing.T) *AnalyticsService {
	t.Helper()
	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}
	service := NewAnalyticsService(fs)
	t.Cleanup(service.Stop)
	return service
}

func TestRecordTurnAccumulates(t *testing.T) {
	service := newTestAnalyticsService(t)

	service.RecordTurn("conv-1", "pm", &models.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150})
	service.RecordTurn("conv-1", "developer", &models.TokenUsage{PromptTokens: 200, CompletionTokens: 100, TotalTokens: 300})
	service.RecordTurn("conv-1", "pm", &models.TokenUsage{PromptTokens: 50, CompletionTokens: 25, TotalTokens: 75})

	analytics, err := service.GetAnalytics("conv-1")
	if err != nil {
		t.Fatalf("GetAnalytics() error = %v", err)
	}

	if analytics.PromptTokens != 350 || analytics.CompletionTokens != 175 || analytics.TotalTokens != 525 {
		t.Errorf("tokens = (%d, %d, %d), want (350, 175, 525)",
			analytics.PromptTokens, analytics.CompletionTokens, analytics.TotalTokens)
	}
	if analytics.AgentParticipation["pm"] != 2 || analytics.AgentParticipation["developer"] != 1 {
		t.Errorf("participation = %v, want pm:2 developer:1", analytics.AgentParticipation)
	}
}

func TestRecordTurnCostEstimate(t *testing.T) {
	service := newTestAnalyticsService(t)

	service.RecordTurn("conv-1", "pm", &models.TokenUsage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000, TotalTokens: 2_000_000})

	analytics, err := service.GetAnalytics("conv-1")
	if err != nil {
		t.Fatalf("GetAnalytics() error = %v", err)
	}

	// 每百万 prompt token 2.50 美元，每百万 completion token 10 美元
	if math.Abs(analytics.EstimatedCost-12.50) > 1e-9 {
		t.Errorf("EstimatedCost = %v, want 12.50", analytics.EstimatedCost)
	}
}

func TestRecordTurnNilUsage(t *testing.T) {
	service := newTestAnalyticsService(t)

	service.RecordTurn("conv-1", "pm", nil)

	analytics, err := service.GetAnalytics("conv-1")
	if err != nil {
		t.Fatalf("GetAnalytics() error = %v", err)
	}
	if analytics.TotalTokens != 0 {
		t.Errorf("TotalTokens = %d, want 0", analytics.TotalTokens)
	}
	if analytics.AgentParticipation["pm"] != 1 {
		t.Errorf("participation = %v, want pm:1", analytics.AgentParticipation)
	}
}

func TestGetAnalyticsUnknownConversation(t *testing.T) {
	service := newTestAnalyticsService(t)

	analytics, err := service.GetAnalytics("never-seen")
	if err != nil {
		t.Fatalf("GetAnalytics() error = %v", err)
	}
	if analytics.TotalTokens != 0 || len(analytics.AgentParticipation) != 0 {
		t.Errorf("expected zero-value analytics, got %+v", analytics)
	}

	if _, err := service.GetAnalytics(""); err == nil {
		t.Error("GetAnalytics(\"\") expected validation error")
	}
}

func TestFlushSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	fs, err := storage.NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}

	service := NewAnalyticsService(fs)
	service.RecordTurn("conv-1", "pm", &models.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150})
	service.Stop()

	// 重启后从磁盘恢复
	reloaded := NewAnalyticsService(fs)
	t.Cleanup(reloaded.Stop)

	analytics, err := reloaded.GetAnalytics("conv-1")
	if err != nil {
		t.Fatalf("GetAnalytics() error = %v", err)
	}
	if analytics.TotalTokens != 150 {
		t.Errorf("TotalTokens after reload = %d, want 150", analytics.TotalTokens)
	}
	if analytics.AgentParticipation["pm"] != 1 {
		t.Errorf("participation after reload = %v, want pm:1", analytics.AgentParticipation)
	}
}

func TestGetAnalyticsReturnsSnapshot(t *testing.T) {
	service := newTestAnalyticsService(t)

	service.RecordTurn("conv-1", "pm", &models.TokenUsage{TotalTokens: 10})

	snapshot, err := service.GetAnalytics("conv-1")
	if err != nil {
		t.Fatalf("GetAnalytics() error = %v", err)
	}
	snapshot.AgentParticipation["pm"] = 99

	fresh, err := service.GetAnalytics("conv-1")
	if err != nil {
		t.Fatalf("GetAnalytics() error = %v", err)
	}
	if fresh.AgentParticipation["pm"] != 1 {
		t.Errorf("internal state mutated through snapshot: %v", fresh.AgentParticipation)
	}
}
