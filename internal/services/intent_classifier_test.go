// internal/services/intent_classifier_test.go
package services

import (
	"context"
	"errors"
	"testing"
)

type fakeLLMClassifier struct {
	intent     string
	err        error
	called     bool
	lastInput  string
	categories []string
}

func (f *fakeLLMClassifier) ClassifyIntent(ctx context.Context, message string, categories []string) (string, error) {
	f.called = true
	f.lastInput = message
	f.categories = categories
	return f.intent, f.err
}

func TestClassifyHeuristic(t *testing.T) {
	classifier := NewIntentClassifierService(nil)

	cases := []struct {
		message string
		want    string
	}{
		{"hi", IntentGreeting},
		{"hello everyone", IntentGreeting},
		{"你好，各位", IntentGreeting},
		{"what is our market position vs competitors?", IntentMarket},
		{"is this architecture feasible at scale?", IntentFeasibility},
		{"the ui interaction feels clunky", IntentUX},
		{"any compliance risk with storing this data?", IntentRisk},
		{"what will this cost us next quarter?", IntentBudget},
		{"let's talk about something else", IntentGeneral},
		{"", IntentGeneral},
	}

	for _, tc := range cases {
		if got := classifier.Classify(context.Background(), tc.message); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}

func TestClassifyRulePriority(t *testing.T) {
	classifier := NewIntentClassifierService(nil)

	// 同时命中 market 和 budget 关键词时，规则表顺序决定结果
	got := classifier.Classify(context.Background(), "market pricing versus budget cost")
	if got != IntentMarket {
		t.Errorf("Classify() = %q, want %q (first matching rule wins)", got, IntentMarket)
	}
}

func TestClassifyDelegated(t *testing.T) {
	llm := &fakeLLMClassifier{intent: IntentRisk}
	classifier := NewIntentClassifierService(llm)

	got := classifier.Classify(context.Background(), "should we ship this?")
	if got != IntentRisk {
		t.Errorf("Classify() = %q, want delegated result %q", got, IntentRisk)
	}
	if !llm.called {
		t.Error("expected delegated classifier to be called")
	}
}

func TestClassifyDelegatedFailureFallsBack(t *testing.T) {
	llm := &fakeLLMClassifier{err: errors.New("provider down")}
	classifier := NewIntentClassifierService(llm)

	got := classifier.Classify(context.Background(), "what is our market position?")
	if got != IntentMarket {
		t.Errorf("Classify() = %q, want heuristic fallback %q", got, IntentMarket)
	}
}

func TestClassifyShortMessageSkipsDelegation(t *testing.T) {
	llm := &fakeLLMClassifier{intent: IntentBudget}
	classifier := NewIntentClassifierService(llm)

	got := classifier.Classify(context.Background(), "hi")
	if llm.called {
		t.Error("delegated classifier should not be called for very short messages")
	}
	if got != IntentGreeting {
		t.Errorf("Classify(\"hi\") = %q, want %q", got, IntentGreeting)
	}
}
