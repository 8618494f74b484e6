package widget

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/chat-widget/backend/internal/service/chat"
	"github.com/zhouzirui/chat-widget/backend/pkg/utils"
)

// Handler 聊天小组件的HTTP处理器，所有状态变更都经由控制器完成
type Handler struct {
	ctrl *chatService.Service
}

// New 创建小组件处理器
func New(ctrl *chatService.Service) *Handler {
	return &Handler{ctrl: ctrl}
}

// RegisterRoutes 注册小组件相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/state", h.handleState)
	r.Put("/input", h.handleSetInput)
	r.Post("/send", h.handleSend)
	r.Post("/key", h.handleKey)
}

type inputPayload struct {
	Text string `json:"text"`
}

type keyPayload struct {
	Key string `json:"key"`
}

// handleState 返回当前会话快照
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// handleSetInput 覆盖输入缓冲区，不做校验
func (h *Handler) handleSetInput(w http.ResponseWriter, r *http.Request) {
	var payload inputPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.ctrl.SetInput(payload.Text)
	utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
}

// handleSend 提交输入缓冲区；wait=true 时等待回复写入后返回快照
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	task := h.ctrl.SendAsync(r.Context())
	h.respondTask(w, r, task)
}

// handleKey 处理按键提交，只有回车键会触发发送
func (h *Handler) handleKey(w http.ResponseWriter, r *http.Request) {
	var payload keyPayload
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	task := h.ctrl.OnKeyCommit(r.Context(), payload.Key)
	h.respondTask(w, r, task)
}

func (h *Handler) respondTask(w http.ResponseWriter, r *http.Request, task *chatService.Task) {
	if r.URL.Query().Get("wait") != "true" {
		utils.RespondJSON(w, http.StatusAccepted, map[string]any{
			"dispatched": task.Dispatched(),
			"taskId":     task.ID,
		})
		return
	}

	select {
	case <-task.Done():
		utils.RespondJSON(w, http.StatusOK, h.ctrl.Snapshot())
	case <-r.Context().Done():
		// 客户端已断开，发送仍会在后台完成
	}
}
