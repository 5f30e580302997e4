package live

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	assessmentService "github.com/bizbothq/bizbot/backend/internal/service/assessment"
	"github.com/bizbothq/bizbot/backend/pkg/utils"
)

// WebSocketHandler WebSocket实时对话处理器
type WebSocketHandler struct {
	svc      *assessmentService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(svc *assessmentService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		svc: svc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{sessionID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// AnswerMessage 客户端提交的回答
type AnswerMessage struct {
	Answer string `json:"answer"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理一条WebSocket连接的完整生命周期
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	ch, cancel, err := h.svc.Watch(sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, "session not found")
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for session=%s: %v", sessionID, err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] connection opened for session=%s", sessionID)
	defer log.Printf("[ws] connection closed for session=%s", sessionID)

	var writeMu sync.Mutex
	send := func(msgType string, data interface{}) {
		writeMu.Lock()
		defer writeMu.Unlock()
		out := outgoingMessage{
			Type:      msgType,
			SessionID: sessionID,
			Data:      data,
			Timestamp: time.Now().UnixMilli(),
		}
		if err := conn.WriteJSON(out); err != nil {
			log.Printf("[ws] write failed for session=%s: %v", sessionID, err)
		}
	}

	// Replay the transcript before forwarding live appends; entries seen in
	// the replay are deduplicated against the watch channel by message ID.
	backlog, err := h.svc.Transcript(r.Context(), sessionID)
	if err != nil {
		send("error", map[string]string{"error": "failed to load transcript"})
		return
	}
	replayed := make(map[string]struct{}, len(backlog))
	for _, msg := range backlog {
		replayed[msg.ID] = struct{}{}
		send("message", msg)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ch {
			if _, seen := replayed[msg.ID]; seen {
				continue
			}
			send("message", msg)
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] read failed for session=%s: %v", sessionID, err)
			}
			break
		}

		var inbound inboundMessage
		if err := json.Unmarshal(raw, &inbound); err != nil {
			send("error", map[string]string{"error": "invalid message envelope"})
			continue
		}

		switch inbound.Type {
		case "answer":
			var payload AnswerMessage
			if err := json.Unmarshal(inbound.Data, &payload); err != nil {
				send("error", map[string]string{"error": "invalid answer payload"})
				continue
			}
			if _, err := h.svc.SubmitAnswer(r.Context(), sessionID, payload.Answer); err != nil {
				send("error", map[string]string{"error": submitErrorText(err)})
			}
		case "ping":
			send("pong", nil)
		default:
			send("error", map[string]string{"error": "unknown message type"})
		}
	}

	cancel()
	<-done
}

// submitErrorText 将服务层错误转换为客户端可读文案
func submitErrorText(err error) string {
	switch {
	case errors.Is(err, assessmentService.ErrSessionBusy):
		return "another exchange is still in progress"
	case errors.Is(err, assessmentService.ErrAssessmentCompleted):
		return "assessment already completed"
	case errors.Is(err, assessmentService.ErrSessionNotReady):
		return "assessment questions are unavailable"
	default:
		return "failed to process answer"
	}
}
