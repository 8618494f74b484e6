package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/components/model"
	"github.com/joho/godotenv"

	"github.com/zhouzirui/chat-widget/backend/internal/config"
	"github.com/zhouzirui/chat-widget/backend/internal/handler"
	"github.com/zhouzirui/chat-widget/backend/internal/handler/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/service/ai"
	intentService "github.com/zhouzirui/chat-widget/backend/internal/service/intent"
	"github.com/zhouzirui/chat-widget/backend/internal/service/travel"
	"github.com/zhouzirui/chat-widget/backend/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Initialize chat model shared by the classifier and the composer
	var chatModel model.ChatModel
	if cfg.AI.Enabled() {
		chatModel, err = cfg.AI.NewChatModel(ctx)
		if err != nil {
			log.Printf("warning: failed to initialize chat model: %v", err)
			log.Println("continuing without AI functionality - 请检查 Ark 模型相关环境变量")
			chatModel = nil
		} else {
			log.Println("chat model initialized successfully")
		}
	} else {
		log.Println("Ark 凭证未配置，跳过 AI 功能初始化")
	}

	// Initialize intent service (LLM-based guidance with fallback)
	intentCfg := intentService.Config{Enabled: cfg.AI.IntentLLMEnabled}
	var intents travel.IntentAnalyzer
	intentSvc, err := intentService.NewService(ctx, chatModel, intentCfg)
	if err != nil {
		log.Printf("warning: failed to initialize intent service: %v", err)
	} else {
		intents = intentSvc
		if intentSvc.Enabled() {
			log.Println("intent classifier service enabled")
		} else if intentCfg.Enabled {
			log.Println("intent classifier requested but chat model unavailable, falling back to heuristics")
		} else {
			log.Println("intent classifier disabled by configuration")
		}
	}

	// Initialize reply composer
	var composer chat.Composer
	if chatModel != nil && cfg.AI.ComposeLLMEnabled {
		composerSvc, err := ai.NewService(ctx, chatModel)
		if err != nil {
			log.Printf("warning: failed to initialize reply composer: %v", err)
		} else {
			composer = composerSvc
			log.Println("reply composer enabled")
		}
	} else {
		log.Println("reply composer disabled, using template replies")
	}

	agent := travel.NewAgent(travel.NewClient(cfg.Travel, nil), intents, cfg.Travel)
	router := handler.NewRouter(agent, composer)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := utils.NewServer(serverCfg.Addr, router)

	log.Printf("travel chat endpoint listening on %s", srv.Addr)
	if err := utils.RunServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
