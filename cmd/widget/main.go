package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/chat-widget/backend/internal/config"
	"github.com/zhouzirui/chat-widget/backend/internal/handler"
	"github.com/zhouzirui/chat-widget/backend/internal/service/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/service/remote"
	"github.com/zhouzirui/chat-widget/backend/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	policy, err := chat.ParsePolicy(cfg.Widget.Policy)
	if err != nil {
		log.Fatalf("invalid CHAT_SEND_POLICY: %v", err)
	}

	client := remote.NewClient(cfg.Widget.EndpointURL, nil)
	ctrl := chat.NewService(client, chat.Options{
		Policy:  policy,
		Timeout: cfg.Widget.Timeout,
	})
	log.Printf("chat endpoint: %s (policy=%s, timeout=%s)", client.Endpoint(), ctrl.Policy(), cfg.Widget.Timeout)

	srv := utils.NewServer(cfg.Widget.Server.Addr, handler.NewWidgetRouter(ctrl))

	log.Printf("chat widget listening on %s", srv.Addr)
	if err := utils.RunServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
