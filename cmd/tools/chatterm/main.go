package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/chat-widget/backend/internal/config"
	"github.com/zhouzirui/chat-widget/backend/internal/service/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/service/remote"
	"github.com/zhouzirui/chat-widget/backend/internal/ui/term"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	endpoint := flag.String("endpoint", cfg.Widget.EndpointURL, "对话端点地址")
	timeout := flag.Duration("timeout", cfg.Widget.Timeout, "单次请求超时时间")
	policy := flag.String("policy", cfg.Widget.Policy, "并发发送策略: serial 或 concurrent")
	logPath := flag.String("log", "", "日志输出文件，留空则丢弃日志")
	flag.Parse()

	sendPolicy, err := chat.ParsePolicy(*policy)
	if err != nil {
		log.Fatalf("参数错误: %v", err)
	}

	// 终端界面占用标准输出，日志只能写入文件
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("无法打开日志文件: %v", err)
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(io.Discard)
	}
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl := chat.NewService(remote.NewClient(*endpoint, nil), chat.Options{
		Policy:  sendPolicy,
		Timeout: *timeout,
	})

	started := time.Now()
	if err := term.Run(ctx, ctrl); err != nil {
		log.SetOutput(os.Stderr)
		log.Fatalf("终端界面异常退出: %v", err)
	}
	log.Printf("[chatterm] session ended after %s with %d messages", time.Since(started).Round(time.Second), len(ctrl.View()))
}
