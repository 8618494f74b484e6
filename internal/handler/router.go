package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/chat-widget/backend/internal/handler/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/handler/stream"
	"github.com/zhouzirui/chat-widget/backend/internal/handler/widget"
	middlewarePkg "github.com/zhouzirui/chat-widget/backend/internal/middleware"
	chatService "github.com/zhouzirui/chat-widget/backend/internal/service/chat"
)

func newBaseRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	return r
}

// NewRouter wires the conversational endpoint. composer may be nil.
func NewRouter(planner chat.Planner, composer chat.Composer) http.Handler {
	r := newBaseRouter()

	chat.New(planner, composer).RegisterRoutes(r)

	return r
}

// NewWidgetRouter serves the widget page and exposes the controller over REST, WebSocket and SSE.
func NewWidgetRouter(ctrl *chatService.Service) http.Handler {
	r := newBaseRouter()

	r.Get("/", widget.ServePage)

	r.Route("/api/widget", func(api chi.Router) {
		widget.New(ctrl).RegisterRoutes(api)
		widget.NewWebSocketHandler(ctrl).RegisterWebSocketRoutes(api)
		stream.New(ctrl).RegisterRoutes(api)
	})

	return r
}
