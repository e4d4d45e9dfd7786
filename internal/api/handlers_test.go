// internal/api/handlers_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/BoardroomMCP/internal/models"
	"github.com/Corphon/BoardroomMCP/internal/services"
	"github.com/Corphon/BoardroomMCP/internal/storage"
)

type stubGenerator struct{}

func (stubGenerator) GenerateAgentReply(ctx context.Context, persona *models.Persona, userMessage string, history []*models.Message) (*models.AgentReply, *models.TokenUsage, error) {
	return &models.AgentReply{Content: persona.Name + " weighs in"},
		&models.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, lines []string) (string, error) {
	return "board summary", nil
}

type stubNotifier struct{}

func (stubNotifier) TypingStart(conversationID, personaID, personaName string) {}
func (stubNotifier) TypingStop(conversationID, personaID string) {}
func (stubNotifier) AgentMessage(conversationID string, msg *models.Message) {}
func (stubNotifier) RoundCompleted(conversationID string, roundNumber int) {}
func (stubNotifier) StatusChange(conversationID, status string) {}

type handlerFixture struct {
	router       *gin.Engine
	conversation *models.Conversation
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fs, err := storage.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStorage() error = %v", err)
	}

	personaService := services.NewPersonaService(fs)
	if err := personaService.EnsureDefaults(); err != nil {
		t.Fatalf("EnsureDefaults() error = %v", err)
	}
	conversationService := services.NewConversationService(fs, services.NewLockManager())
	messageService := services.NewMessageService(fs)
	analyticsService := services.NewAnalyticsService(fs)
	t.Cleanup(analyticsService.Stop)

	personaRouter := services.NewPersonaRouterService(
		services.NewTagExtractorService(),
		services.NewIntentClassifierService(nil),
		nil,
	)
	orchestrator := services.NewOrchestratorService(
		conversationService,
		personaService,
		messageService,
		analyticsService,
		stubNotifier{},
		stubGenerator{},
		stubSummarizer{},
		personaRouter,
		services.NoopPacer{},
		models.AgentTypePM,
	)

	handler := &Handler{
		PersonaService:      personaService,
		ConversationService: conversationService,
		MessageService:      messageService,
		AnalyticsService:    analyticsService,
		Orchestrator:        orchestrator,
		Response:            NewResponseHelper(),
	}

	conversation, err := conversationService.CreateConversation(
		"Launch review", "Q3 launch", []string{"pm", "developer", "marketing"}, 3)
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	router := gin.New()
	router.POST("/api/conversations/:id/process", handler.ProcessMessage)
	router.GET("/api/conversations/:id/summary", handler.GetSummary)
	router.GET("/api/conversations/:id/messages", handler.GetMessages)
	router.GET("/api/conversations/:id/analytics", handler.GetAnalytics)

	return &handlerFixture{router: router, conversation: conversation}
}

func (f *handlerFixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, *APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	f.router.ServeHTTP(recorder, req)

	var response APIResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &response); err != nil {
		t.Fatalf("unmarshal response: %v\nbody: %s", err, recorder.Body.String())
	}
	return recorder, &response
}

func TestProcessMessageEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder, response := fixture.do(t, http.MethodPost,
		"/api/conversations/"+fixture.conversation.ID+"/process",
		ProcessMessageRequest{Message: "hi"})

	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", recorder.Code, recorder.Body.String())
	}
	if !response.Success {
		t.Fatalf("response.Success = false: %+v", response.Error)
	}

	data, ok := response.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("response.Data has unexpected shape: %T", response.Data)
	}
	if count, _ := data["count"].(float64); count != 1 {
		t.Errorf("count = %v, want 1 (greeting goes to the chair only)", data["count"])
	}

	// 用户消息和角色发言都已落盘
	recorder, response = fixture.do(t, http.MethodGet,
		"/api/conversations/"+fixture.conversation.ID+"/messages", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("messages status = %d, want 200", recorder.Code)
	}
	messages, ok := response.Data.([]interface{})
	if !ok {
		t.Fatalf("messages data has unexpected shape: %T", response.Data)
	}
	if len(messages) != 2 {
		t.Errorf("persisted %d messages, want 2 (user + agent)", len(messages))
	}
}

func TestProcessMessageEndpointUnknownConversation(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder, response := fixture.do(t, http.MethodPost,
		"/api/conversations/missing/process",
		ProcessMessageRequest{Message: "hi"})

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", recorder.Code)
	}
	if response.Error == nil || response.Error.Code != ErrorConversationNotFound {
		t.Errorf("error = %+v, want code %s", response.Error, ErrorConversationNotFound)
	}
}

func TestProcessMessageEndpointInvalidBody(t *testing.T) {
	fixture := newHandlerFixture(t)

	recorder, _ := fixture.do(t, http.MethodPost,
		"/api/conversations/"+fixture.conversation.ID+"/process",
		map[string]string{})

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", recorder.Code)
	}
}

func TestGetSummaryEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)

	// 讨论尚未开始时返回固定文本
	recorder, response := fixture.do(t, http.MethodGet,
		"/api/conversations/"+fixture.conversation.ID+"/summary", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}
	data, _ := response.Data.(map[string]interface{})
	if data["summary"] != services.NoDiscussionSummary {
		t.Errorf("summary = %v, want sentinel", data["summary"])
	}

	// 有发言之后走总结器
	if _, resp := fixture.do(t, http.MethodPost,
		"/api/conversations/"+fixture.conversation.ID+"/process",
		ProcessMessageRequest{Message: "hi"}); !resp.Success {
		t.Fatalf("process failed: %+v", resp.Error)
	}

	_, response = fixture.do(t, http.MethodGet,
		"/api/conversations/"+fixture.conversation.ID+"/summary", nil)
	data, _ = response.Data.(map[string]interface{})
	if data["summary"] != "board summary" {
		t.Errorf("summary = %v, want board summary", data["summary"])
	}
}

func TestGetAnalyticsEndpoint(t *testing.T) {
	fixture := newHandlerFixture(t)

	if _, resp := fixture.do(t, http.MethodPost,
		"/api/conversations/"+fixture.conversation.ID+"/process",
		ProcessMessageRequest{Message: "hi"}); !resp.Success {
		t.Fatalf("process failed: %+v", resp.Error)
	}

	recorder, response := fixture.do(t, http.MethodGet,
		"/api/conversations/"+fixture.conversation.ID+"/analytics", nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	data, _ := response.Data.(map[string]interface{})
	if tokens, _ := data["total_tokens"].(float64); tokens != 15 {
		t.Errorf("total_tokens = %v, want 15", data["total_tokens"])
	}
}
