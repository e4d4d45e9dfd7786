// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"

	// 会话相关错误
	ErrorConversationNotFound     = "CONVERSATION_NOT_FOUND"
	ErrorConversationCreateFailed = "CONVERSATION_CREATE_FAILED"
	ErrorConversationInvalid      = "CONVERSATION_INVALID"
	ErrorConversationCompleted    = "CONVERSATION_COMPLETED"

	// 角色相关错误
	ErrorPersonaNotFound = "PERSONA_NOT_FOUND"
	ErrorPersonaInvalid  = "PERSONA_INVALID"

	// 讨论编排相关错误
	ErrorProcessFailed   = "PROCESS_FAILED"
	ErrorSummaryFailed   = "SUMMARY_FAILED"
	ErrorMessageInvalid  = "MESSAGE_INVALID"
	ErrorAnalyticsFailed = "ANALYTICS_FAILED"

	// LLM服务相关错误
	ErrorLLMServiceUnavailable = "LLM_SERVICE_UNAVAILABLE"
	ErrorLLMConfigInvalid      = "LLM_CONFIG_INVALID"
	ErrorConnectionFailed      = "CONNECTION_FAILED"

	// 配置健康相关
	ErrorConfigUnhealthy    = "CONFIG_UNHEALTHY"
	ErrorConfigNotLoaded    = "CONFIG_NOT_LOADED"
	ErrorLLMProviderMissing = "LLM_PROVIDER_MISSING"
	ErrorAPIKeyMissing      = "API_KEY_MISSING"
)
