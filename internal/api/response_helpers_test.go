// internal/api/response_helpers_test.go
package api

import "testing"

func TestSanitizeErrorMessage(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"会话不存在: conv-1", "会话不存在: conv-1"},
		{"invalid api_key provided", "An internal error occurred"},
		{"SECRET leaked in config", "An internal error occurred"},
		{"bad auth Token", "An internal error occurred"},
		{"provider timeout", "provider timeout"},
	}

	for _, tc := range cases {
		if got := sanitizeErrorMessage(tc.message); got != tc.want {
			t.Errorf("sanitizeErrorMessage(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}

func TestGetResourceNotFoundCode(t *testing.T) {
	rh := NewResponseHelper()

	cases := []struct {
		resource string
		want     string
	}{
		{"会话", "CONVERSATION_NOT_FOUND"},
		{"conversation", "CONVERSATION_NOT_FOUND"},
		{"角色", "PERSONA_NOT_FOUND"},
		{"消息", "MESSAGE_NOT_FOUND"},
		{"widget", "RESOURCE_NOT_FOUND"},
	}

	for _, tc := range cases {
		if got := rh.getResourceNotFoundCode(tc.resource); got != tc.want {
			t.Errorf("getResourceNotFoundCode(%q) = %q, want %q", tc.resource, got, tc.want)
		}
	}
}
