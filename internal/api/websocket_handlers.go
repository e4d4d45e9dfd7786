// internal/api/websocket_handlers.go
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Corphon/BoardroomMCP/internal/di"
	"github.com/Corphon/BoardroomMCP/internal/services"
)

// WebSocketHandler 处理 WebSocket 相关的 HTTP 请求
type WebSocketHandler struct {
	conversationService *services.ConversationService
	orchestrator        *services.OrchestratorService
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler() *WebSocketHandler {
	container := di.GetContainer()

	return &WebSocketHandler{
		conversationService: container.Get("conversation").(*services.ConversationService),
		orchestrator:        container.Get("orchestrator").(*services.OrchestratorService),
	}
}

// ConversationWebSocket 处理会话 WebSocket 连接
func (wh *WebSocketHandler) ConversationWebSocket(c *gin.Context) {
	conversationID := c.Param("id")
	if conversationID == "" {
		log.Printf("❌ WebSocket 连接失败：会话ID缺失")
		http.Error(c.Writer, "会话ID缺失", http.StatusBadRequest)
		return
	}

	// 会话必须存在才允许订阅
	if _, err := wh.conversationService.GetConversation(conversationID); err != nil {
		log.Printf("❌ WebSocket 连接失败：会话不存在 %s", conversationID)
		http.Error(c.Writer, "会话不存在", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ 会话 WebSocket 升级失败: %v", err)
		return
	}
	defer conn.Close()

	// 获取参数
	userID := c.DefaultQuery("user_id", "anonymous")

	// 创建客户端
	client := &WebSocketClient{
		conn:           &WebSocketConnWrapper{conn},
		conversationID: conversationID,
		userID:         userID,
		send:           make(chan []byte, 256),
		closed:         0,
		lastPing:       time.Now(),
		createdAt:      time.Now(),
	}

	// 注册客户端
	select {
	case wsManager.register <- client:
		// Success
	default:
		log.Printf("❌ 无法注册 WebSocket 客户端，注册通道已满")
		return
	}

	defer func() {
		// Unregister with timeout to prevent blocking
		done := make(chan bool, 1)
		go func() {
			wsManager.unregister <- client
			done <- true
		}()

		select {
		case <-done:
			// Successfully unregistered
		case <-time.After(5 * time.Second):
			// Timeout - client might not be properly unregistered
			log.Printf("⚠️ WebSocket 客户端注销超时")
		}
	}()

	// 启动读写协程
	go wh.handleWebSocketWrites(client)
	go wh.handleWebSocketReads(client)

	// 发送连接确认消息
	wh.sendWelcomeMessage(client, conversationID, userID)

	// 等待连接关闭
	<-c.Request.Context().Done()
	log.Printf("📱 会话 %s 的 WebSocket 连接已关闭 (用户: %s)", conversationID, userID)
}

// handleWebSocketReads 处理 WebSocket 读取
func (wh *WebSocketHandler) handleWebSocketReads(client *WebSocketClient) {
	defer func() {
		if !client.IsClosed() {
			select {
			case wsManager.unregister <- client:
			case <-time.After(1 * time.Second):
				log.Printf("⚠️ 读取协程关闭时注销超时")
			}
		}
	}()

	// 设置读取超时和ping处理
	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.UpdatePing()
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if client.IsClosed() {
			break
		}

		// 设置当前读取超时
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		_, messageBytes, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket 读取错误: %v", err)
			}
			break
		}

		// 解析JSON消息
		var message map[string]interface{}
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			log.Printf("⚠️ JSON解析失败: %v", err)
			continue
		}

		// 更新活跃时间
		client.UpdatePing()

		// 处理收到的消息
		wh.handleMessage(client, message)
	}
}

// handleWebSocketWrites 处理 WebSocket 写入
func (wh *WebSocketHandler) handleWebSocketWrites(client *WebSocketClient) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		// Close send channel gracefully if not already closed
		if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
			// Close send channel safely with panic recovery
			func() {
				defer func() {
					if recover() != nil {
						// Channel was already closed, which is fine
					}
				}()
				close(client.send)
			}()
			// Close the connection after closing the channel
			client.conn.Close()
		} else {
			// Channel might already be marked as closed, but try to close it safely anyway
			func() {
				defer func() {
					if recover() != nil {
						// Channel was already closed, which is fine
					}
				}()
				close(client.send)
			}()
			// Close the connection
			client.conn.Close()
		}
	}()

	for {
		select {
		case message, ok := <-client.send:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// Channel closed, send close message
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("❌ WebSocket 写入失败: %v", err)
				return
			}

		case <-ticker.C:
			if client.IsClosed() {
				return
			}

			client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("❌ WebSocket ping 失败: %v", err)
				return
			}
			client.UpdatePing()

		case <-time.After(60 * time.Second):
			// Emergency timeout check - if nothing received in 60 seconds, close connection
			if client.IsClosed() {
				return
			}
		}
	}
}

// handleMessage 处理收到的 WebSocket 消息
func (wh *WebSocketHandler) handleMessage(client *WebSocketClient, message map[string]interface{}) {
	msgType, ok := message["type"].(string)
	if !ok {
		log.Printf("⚠️ 收到无效的消息类型")
		return
	}

	switch msgType {
	case "user_message":
		wh.handleUserMessage(client, message)
	case "request_summary":
		wh.handleSummaryRequest(client)
	case "ping":
		wh.handlePing(client)
	default:
		log.Printf("⚠️ 未知的消息类型: %s", msgType)
	}
}

// handleUserMessage 处理用户通过 WebSocket 发来的讨论消息
// 各角色的回应通过房间广播推送，这里只确认接收
func (wh *WebSocketHandler) handleUserMessage(client *WebSocketClient, message map[string]interface{}) {
	text, ok := message["message"].(string)
	if !ok || text == "" {
		wh.sendError(client, "缺少消息内容")
		return
	}

	if wh.orchestrator == nil {
		wh.sendError(client, "编排服务不可用")
		return
	}

	client.SendMessage(map[string]interface{}{
		"type":            "message_accepted",
		"conversation_id": client.conversationID,
		"timestamp":       time.Now().Format(time.RFC3339),
	})

	// 发言周期可能持续数秒（每个角色都有节奏延迟），异步执行
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		result, err := wh.orchestrator.ProcessUserMessage(ctx, client.conversationID, text)
		if err != nil {
			wh.sendError(client, "处理消息失败: "+err.Error())
			return
		}

		client.SendMessage(map[string]interface{}{
			"type":            "cycle_completed",
			"conversation_id": client.conversationID,
			"count":           result.Count,
			"timestamp":       time.Now().Format(time.RFC3339),
		})
	}()
}

// handleSummaryRequest 处理总结请求
func (wh *WebSocketHandler) handleSummaryRequest(client *WebSocketClient) {
	if wh.orchestrator == nil {
		wh.sendError(client, "编排服务不可用")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	summary, err := wh.orchestrator.SummarizeDiscussion(ctx, client.conversationID)
	if err != nil {
		wh.sendError(client, "生成总结失败: "+err.Error())
		return
	}

	client.SendMessage(map[string]interface{}{
		"type":            "summary",
		"conversation_id": client.conversationID,
		"summary":         summary,
		"timestamp":       time.Now().Format(time.RFC3339),
	})
}

// handlePing 处理ping消息
func (wh *WebSocketHandler) handlePing(client *WebSocketClient) {
	pong := map[string]interface{}{
		"type":      "pong",
		"timestamp": time.Now().Unix(),
	}

	client.SendMessage(pong)
}

// sendWelcomeMessage 发送欢迎消息
func (wh *WebSocketHandler) sendWelcomeMessage(client *WebSocketClient, conversationID, userID string) {
	welcomeMsg := map[string]interface{}{
		"type":            "connected",
		"conversation_id": conversationID,
		"user_id":         userID,
		"timestamp":       time.Now().Format(time.RFC3339),
		"message":         "WebSocket 连接已建立",
	}

	client.SendMessage(welcomeMsg)
}

// sendError 发送错误消息
func (wh *WebSocketHandler) sendError(client *WebSocketClient, errorMsg string) {
	errorResponse := map[string]interface{}{
		"type":      "error",
		"error":     errorMsg,
		"timestamp": time.Now().Format(time.RFC3339),
	}

	if msgBytes, err := json.Marshal(errorResponse); err == nil {
		select {
		case client.send <- msgBytes:
		default:
			log.Printf("⚠️ 无法发送错误消息到客户端，队列已满")
		}
	}
}
