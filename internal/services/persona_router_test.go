// internal/services/persona_router_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Corphon/BoardroomMCP/internal/models"
)

type fakeResponderPicker struct {
	personaID string
	err       error
	called    bool
}

func (f *fakeResponderPicker) PickResponder(ctx context.Context, message string, personas []*models.Persona) (string, error) {
	f.called = true
	return f.personaID, f.err
}

func newHeuristicRouter() *PersonaRouterService {
	return NewPersonaRouterService(NewTagExtractorService(), NewIntentClassifierService(nil), nil)
}

func responderIDs(result *RouteResult) []string {
	ids := make([]string, 0, len(result.Responders))
	for _, p := range result.Responders {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestResolveTaggedIsExclusive(t *testing.T) {
	router := newHeuristicRouter()

	// 点名优先于关键词：消息里的 "scale" 不会再触发打分路由
	result := router.Resolve(context.Background(), boardPersonas(), "@developer can this scale?")
	if result.Mode != RouteModeTagged {
		t.Fatalf("Resolve() mode = %q, want %q", result.Mode, RouteModeTagged)
	}
	if got := responderIDs(result); len(got) != 1 || got[0] != "developer" {
		t.Errorf("Resolve() responders = %v, want [developer]", got)
	}
}

func TestResolveIncidentalSubstringIsNotTagged(t *testing.T) {
	router := newHeuristicRouter()

	// "3pm" 含有角色ID "pm" 的子串，但没有 @标记 就不构成点名独占
	result := router.Resolve(context.Background(), boardPersonas(), "the shipment of new equipment arrives at 3pm")
	if result.Mode == RouteModeTagged {
		t.Fatalf("Resolve() mode = %q, incidental substring must not trigger tag override", result.Mode)
	}
	if len(result.Responders) == 0 {
		t.Fatal("Resolve() returned no responders")
	}
}

func TestResolveTaggedMultiple(t *testing.T) {
	router := newHeuristicRouter()

	result := router.Resolve(context.Background(), boardPersonas(), "@marketing and @pm, thoughts?")
	got := responderIDs(result)
	if len(got) != 2 || got[0] != "marketing" || got[1] != "pm" {
		t.Errorf("Resolve() responders = %v, want [marketing pm]", got)
	}
}

func TestResolveDelegated(t *testing.T) {
	picker := &fakeResponderPicker{personaID: "developer"}
	router := NewPersonaRouterService(NewTagExtractorService(), NewIntentClassifierService(nil), picker)

	result := router.Resolve(context.Background(), boardPersonas(), "should we rebuild the backend?")
	if result.Mode != RouteModeRouted {
		t.Fatalf("Resolve() mode = %q, want %q", result.Mode, RouteModeRouted)
	}
	if got := responderIDs(result); len(got) != 1 || got[0] != "developer" {
		t.Errorf("Resolve() responders = %v, want [developer]", got)
	}
	if !picker.called {
		t.Error("expected delegated picker to be called")
	}
}

func TestResolveDelegatedUnknownIDFallsThrough(t *testing.T) {
	picker := &fakeResponderPicker{personaID: "cfo"}
	router := NewPersonaRouterService(NewTagExtractorService(), NewIntentClassifierService(nil), picker)

	result := router.Resolve(context.Background(), boardPersonas(), "our cac is too high relative to ltv, revisit pricing?")
	if got := responderIDs(result); len(got) != 1 || got[0] != "marketing" {
		t.Errorf("Resolve() responders = %v, want [marketing] via scoring fallback", got)
	}
}

func TestResolveDelegatedErrorFallsThrough(t *testing.T) {
	picker := &fakeResponderPicker{err: errors.New("provider down")}
	router := NewPersonaRouterService(NewTagExtractorService(), NewIntentClassifierService(nil), picker)

	result := router.Resolve(context.Background(), boardPersonas(), "hi")
	if got := responderIDs(result); len(got) != 1 || got[0] != "pm" {
		t.Errorf("Resolve() responders = %v, want [pm]", got)
	}
}

func TestResolveByScoring(t *testing.T) {
	router := newHeuristicRouter()

	// 多个市场类关键词命中且身份匹配，marketing 得分最高
	result := router.Resolve(context.Background(), boardPersonas(), "Our CAC is climbing and LTV is flat, should we change pricing?")
	if result.Mode != RouteModeRouted {
		t.Fatalf("Resolve() mode = %q, want %q", result.Mode, RouteModeRouted)
	}
	if got := responderIDs(result); len(got) != 1 || got[0] != "marketing" {
		t.Errorf("Resolve() responders = %v, want [marketing]", got)
	}
}

func TestResolveScoringPrefersIdentityMatch(t *testing.T) {
	router := newHeuristicRouter()

	// 技术类关键词，即使 developer 排在后面也应胜出
	result := router.Resolve(context.Background(), boardPersonas(), "the api architecture needs a rewrite before we deploy")
	if got := responderIDs(result); len(got) != 1 || got[0] != "developer" {
		t.Errorf("Resolve() responders = %v, want [developer]", got)
	}
}

func TestResolveZeroScoreUsesIntentMap(t *testing.T) {
	router := newHeuristicRouter()

	// "hi" 不含任何打分关键词，按意图映射落到主持人
	result := router.Resolve(context.Background(), boardPersonas(), "hi")
	if got := responderIDs(result); len(got) != 1 || got[0] != "pm" {
		t.Errorf("Resolve(\"hi\") responders = %v, want [pm]", got)
	}

	result = router.Resolve(context.Background(), boardPersonas(), "tell me a story")
	if got := responderIDs(result); len(got) != 1 || got[0] != "marketing" {
		t.Errorf("Resolve(general) responders = %v, want [marketing]", got)
	}
}

func TestResolveIntentTargetAbsentFallsToFirstPersona(t *testing.T) {
	router := newHeuristicRouter()

	// 体验类意图映射到 ux，但名单里没有 ux，退回首个角色
	roster := []*models.Persona{
		{ID: "developer", Name: "Lead Developer", IsActive: true},
		{ID: "marketing", Name: "Marketing Lead", IsActive: true},
	}
	result := router.Resolve(context.Background(), roster, "how accessible will this be?")
	if got := responderIDs(result); len(got) != 1 || got[0] != "developer" {
		t.Errorf("Resolve() responders = %v, want [developer]", got)
	}
}

func TestResolveNeverEmptyForNonEmptyRoster(t *testing.T) {
	router := newHeuristicRouter()

	messages := []string{"", "hi", "???", "随便聊聊", "@nobody are you there?"}
	for _, msg := range messages {
		result := router.Resolve(context.Background(), boardPersonas(), msg)
		if len(result.Responders) == 0 {
			t.Errorf("Resolve(%q) returned no responders", msg)
		}
	}
}

func TestResolveEmptyRoster(t *testing.T) {
	router := newHeuristicRouter()

	result := router.Resolve(context.Background(), nil, "hello")
	if len(result.Responders) != 0 {
		t.Errorf("Resolve(empty roster) responders = %v, want none", responderIDs(result))
	}
}
