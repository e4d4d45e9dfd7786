// internal/services/llm_service_test.go
package services

import (
	"encoding/json"
	"testing"
)

func TestCleanJSONStringMarkdownFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"intent\": \"greeting\"}\n```\nHope that helps!"

	got := cleanJSONString(raw)
	want := `{"intent": "greeting"}`
	if got != want {
		t.Errorf("cleanJSONString() = %q, want %q", got, want)
	}
}

func TestCleanJSONStringLeadingProse(t *testing.T) {
	raw := `Sure! {"persona_id": "developer"} Let me know if you need more.`

	got := cleanJSONString(raw)
	want := `{"persona_id": "developer"}`
	if got != want {
		t.Errorf("cleanJSONString() = %q, want %q", got, want)
	}
}

func TestCleanJSONStringFullWidthPunctuation(t *testing.T) {
	// 全角引号和逗号规范化为标准JSON标点
	raw := "{“content”：“好的”，“silence”：false}"

	got := cleanJSONString(raw)
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("cleaned output is not valid JSON: %v\ninput: %q\noutput: %q", err, raw, got)
	}
	if parsed["content"] != "好的" {
		t.Errorf("content = %v, want 好的", parsed["content"])
	}
}

func TestCleanJSONStringArray(t *testing.T) {
	raw := "```\n[\"a\", \"b\"]\n``` trailing text"

	got := cleanJSONString(raw)
	want := `["a", "b"]`
	if got != want {
		t.Errorf("cleanJSONString() = %q, want %q", got, want)
	}
}

func TestCleanJSONStringNestedBraces(t *testing.T) {
	raw := `{"outer": {"inner": "value with } in string"}} extra`

	got := cleanJSONString(raw)
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(got), &parsed); err != nil {
		t.Fatalf("cleaned output is not valid JSON: %v\noutput: %q", err, got)
	}
}

func TestCleanJSONStringStripsInvisibleRunes(t *testing.T) {
	// BOM 和零宽字符不应留在清洗结果里
	raw := "\ufeff{\"intent\": \"gre\u200beting\"}"

	got := cleanJSONString(raw)
	want := `{"intent": "greeting"}`
	if got != want {
		t.Errorf("cleanJSONString() = %q, want %q", got, want)
	}
}

func TestCleanJSONStringNoJSON(t *testing.T) {
	raw := "I could not produce a structured answer."
	if got := cleanJSONString(raw); got != raw {
		t.Errorf("cleanJSONString() = %q, want input unchanged", got)
	}
}

func TestCleanLLMJSONResponseExported(t *testing.T) {
	got := CleanLLMJSONResponse("```json\n{\"a\":1}\n```")
	if got != `{"a":1}` {
		t.Errorf("CleanLLMJSONResponse() = %q", got)
	}
}

func TestIsEnglishText(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Should we revisit pricing?", true},
		{"我们是否需要重新定价？", false},
		{"预算 budget 怎么分配比较合理一些", false},
		{"", false},
		{"！？。", false},
	}

	for _, tc := range cases {
		if got := isEnglishText(tc.text); got != tc.want {
			t.Errorf("isEnglishText(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestTruncateText(t *testing.T) {
	if got := truncateText("short", 10); got != "short" {
		t.Errorf("truncateText() = %q, want unchanged", got)
	}
	if got := truncateText("0123456789abcdef", 10); got != "0123456789..." {
		t.Errorf("truncateText() = %q", got)
	}
}

func TestGenerateCacheKeyStable(t *testing.T) {
	service := &LLMService{}

	key1 := service.generateCacheKey("prompt", "system", "gpt-4o-mini")
	key2 := service.generateCacheKey("prompt", "system", "gpt-4o-mini")
	if key1 != key2 {
		t.Error("identical inputs must produce the same cache key")
	}

	key3 := service.generateCacheKey("prompt", "system", "claude-3-5-haiku-latest")
	if key1 == key3 {
		t.Error("different models must produce different cache keys")
	}
}

func TestExtractDefaultModel(t *testing.T) {
	if got := extractDefaultModel(nil); got != "" {
		t.Errorf("extractDefaultModel(nil) = %q, want empty", got)
	}
	if got := extractDefaultModel(map[string]string{"model": "gpt-4o"}); got != "gpt-4o" {
		t.Errorf("extractDefaultModel() = %q, want gpt-4o", got)
	}
	// default_model 优先于 model
	if got := extractDefaultModel(map[string]string{"model": "gpt-4o", "default_model": "gpt-4o-mini"}); got != "gpt-4o-mini" {
		t.Errorf("extractDefaultModel() = %q, want gpt-4o-mini", got)
	}
}
