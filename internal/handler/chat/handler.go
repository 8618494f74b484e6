package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	travelModel "github.com/zhouzirui/chat-widget/backend/internal/model/travel"
	"github.com/zhouzirui/chat-widget/backend/internal/service/travel"
	"github.com/zhouzirui/chat-widget/backend/pkg/utils"
)

// Planner 根据用户问题生成旅行规划
type Planner interface {
	Plan(ctx context.Context, utterance string) (travelModel.Plan, error)
}

// Composer 将规划结果润色为自然语言回复
type Composer interface {
	Compose(ctx context.Context, utterance string, plan travelModel.Plan) (string, error)
}

// Handler 对话端点的HTTP处理器
type Handler struct {
	planner  Planner
	composer Composer
}

// New 创建对话处理器，composer 可以为 nil
func New(planner Planner, composer Composer) *Handler {
	return &Handler{planner: planner, composer: composer}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Post("/plan", h.handlePlan)
	r.Get("/health", h.handleHealth)
}

type chatRequest struct {
	Text string `json:"text"`
}

// UnmarshalJSON 同时接受 {"text": "..."} 与裸字符串两种请求体
func (c *chatRequest) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		c.Text = text
		return nil
	}

	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	c.Text = obj.Text
	return nil
}

type chatResponse struct {
	Response string `json:"response"`
}

// handleChat 回答一条消息，返回 {"response": "..."}
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	text, ok := readText(w, r)
	if !ok {
		return
	}

	plan, err := h.planner.Plan(r.Context(), text)
	if err != nil {
		respondPlanError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, chatResponse{Response: h.reply(r.Context(), text, plan)})
}

// handlePlan 返回完整的规划结果
func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	text, ok := readText(w, r)
	if !ok {
		return
	}

	plan, err := h.planner.Plan(r.Context(), text)
	if err != nil {
		respondPlanError(w, r, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, plan)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// reply 优先使用大模型润色，失败时退回模板回复
func (h *Handler) reply(ctx context.Context, text string, plan travelModel.Plan) string {
	if h.composer == nil || plan.Error {
		return travel.Reply(plan)
	}

	composed, err := h.composer.Compose(ctx, text, plan)
	if err != nil {
		log.Printf("[chat] composer failed, using template reply: %v", err)
		return travel.Reply(plan)
	}
	return composed
}

func readText(w http.ResponseWriter, r *http.Request) (string, bool) {
	var payload chatRequest
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return "", false
	}
	return text, true
}

func respondPlanError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("[chat] planning failed: %v", err)
	if errors.Is(err, travel.ErrUpstream) {
		utils.RespondError(w, http.StatusBadGateway, "travel services unavailable")
		return
	}
	if r.Context().Err() != nil {
		utils.RespondError(w, http.StatusGatewayTimeout, "request cancelled")
		return
	}
	utils.RespondError(w, http.StatusBadGateway, "failed to answer the question")
}
