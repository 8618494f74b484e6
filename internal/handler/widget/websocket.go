package widget

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/chat-widget/backend/internal/model/chat"
	chatService "github.com/zhouzirui/chat-widget/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingInterval = 54 * time.Second
)

// WebSocketHandler 小组件的WebSocket通道：推送快照，接收输入与提交指令
type WebSocketHandler struct {
	ctrl     *chatService.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(ctrl *chatService.Service) *WebSocketHandler {
	return &WebSocketHandler{
		ctrl: ctrl,
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
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type inputAck struct {
	Version uint64 `json:"version"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	connID := uuid.NewString()
	log.Printf("[websocket] new widget connection: %s", connID)
	defer log.Printf("[websocket] widget connection closed: %s", connID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	updates, unsubscribe := h.ctrl.Subscribe()
	defer unsubscribe()

	replies := make(chan outgoingMessage, 8)
	go h.writeLoop(ctx, cancel, conn, updates, replies)

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(readTimeout))
		h.handleMessage(ctx, &msg, replies)
	}
}

func (h *WebSocketHandler) handleMessage(ctx context.Context, msg *inboundMessage, replies chan<- outgoingMessage) {
	switch msg.Type {
	case "input":
		var payload inputPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			reportError(ctx, replies, "invalid input payload")
			return
		}
		// 回传版本号，客户端据此忽略早于本次编辑的快照
		version := h.ctrl.SetInput(payload.Text)
		reply(ctx, replies, outgoingMessage{Type: "input_ack", Data: inputAck{Version: version}})
	case "send":
		h.ctrl.SendAsync(ctx)
	case "key":
		var payload keyPayload
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			reportError(ctx, replies, "invalid key payload")
			return
		}
		h.ctrl.OnKeyCommit(ctx, payload.Key)
	default:
		reportError(ctx, replies, "unsupported message type: "+msg.Type)
	}
}

// writeLoop 是连接上唯一的写入者，负责快照推送、应答与心跳
func (h *WebSocketHandler) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, updates <-chan chat.Snapshot, replies <-chan outgoingMessage) {
	defer cancel()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			err = writeJSON(conn, outgoingMessage{Type: "snapshot", Data: snap, Timestamp: time.Now().Unix()})
		case msg := <-replies:
			msg.Timestamp = time.Now().Unix()
			err = writeJSON(conn, msg)
		case <-ticker.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
		}
		if err != nil {
			log.Printf("[websocket] write failed: %v", err)
			// 关闭连接以唤醒阻塞中的读取
			conn.Close()
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, msg outgoingMessage) error {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(msg)
}

func reportError(ctx context.Context, replies chan<- outgoingMessage, message string) {
	reply(ctx, replies, outgoingMessage{Type: "error", Data: map[string]string{"message": message}})
}

// reply 交给写循环发送；连接关闭后直接丢弃
func reply(ctx context.Context, replies chan<- outgoingMessage, msg outgoingMessage) {
	select {
	case replies <- msg:
	case <-ctx.Done():
		log.Printf("[websocket] dropping %s notification, connection closed", msg.Type)
	}
}
