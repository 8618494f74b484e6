package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/chat-widget/backend/internal/analysis/intent"
)

// Config 控制意图识别服务的行为。
type Config struct {
	Enabled bool
}

// Guidance 表示意图识别的结果：要查询的地点以及需要的信息类别。
type Guidance struct {
	Place    string
	Decision analysis.Decision
	Source   string
}

const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
)

// Service 使用大模型识别旅行问题中的地点与意图，并在必要时回退到启发式规则。
type Service struct {
	enabled    bool
	classifier compose.Runnable[map[string]any, *schema.Message]
}

// NewService 创建意图识别服务。chatModel 为 nil 时只使用启发式规则。
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	svc := &Service{enabled: cfg.Enabled && chatModel != nil}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(intentSystemPrompt),
		schema.UserMessage(intentUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile intent classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回大模型识别是否启用。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Analyze 识别用户话语中的地点与意图。
func (s *Service) Analyze(ctx context.Context, utterance string) Guidance {
	if !s.Enabled() {
		return fallbackGuidance(utterance)
	}

	msg, err := s.classifier.Invoke(ctx, map[string]any{
		"utterance": strings.TrimSpace(utterance),
	})
	if err != nil {
		log.Printf("[intent] classifier invoke failed, use fallback: %v", err)
		return fallbackGuidance(utterance)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return fallbackGuidance(utterance)
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		log.Printf("[intent] classifier output parse failed, use fallback: %v", err)
		return fallbackGuidance(utterance)
	}

	return guidanceFromPayload(result, utterance)
}

func guidanceFromPayload(result *classifierPayload, utterance string) Guidance {
	place := strings.TrimSpace(result.Place)
	if place == "" {
		place = analysis.ExtractPlace(utterance)
	}

	decision := analysis.Decision{Weather: result.Weather, Places: result.Places}
	if !decision.Weather && !decision.Places {
		decision = analysis.Decision{Weather: true, Places: true}
	}

	return Guidance{Place: place, Decision: decision, Source: SourceLLM}
}

func fallbackGuidance(utterance string) Guidance {
	return Guidance{
		Place:    analysis.ExtractPlace(utterance),
		Decision: analysis.Analyze(utterance),
		Source:   SourceHeuristic,
	}
}

// parseClassifierOutput 解析大模型返回的 JSON。
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

type classifierPayload struct {
	Place   string `json:"place"`
	Weather bool   `json:"weather"`
	Places  bool   `json:"places"`
}

const intentSystemPrompt = "You analyse travel questions. Identify the single city or region the user asks about and whether they want the weather, places to visit, or both.\nOutput requirements: return exactly one JSON object with the fields place (string, the place name only, keep any country the user wrote after a comma), weather (boolean) and places (boolean). If the user asks for neither explicitly, set both to true. Do not output any other text."

const intentUserPrompt = "User message:\n{utterance}\n\nReturn the JSON object."
