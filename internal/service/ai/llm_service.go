package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	travelModel "github.com/zhouzirui/chat-widget/backend/internal/model/travel"
)

// ErrEmptyCompletion is returned when the model produced no usable text.
var ErrEmptyCompletion = errors.New("model returned an empty reply")

// Service phrases travel plans as natural chat replies.
type Service struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates a composer on top of chatModel.
func NewService(ctx context.Context, chatModel model.BaseChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(composerSystemPrompt),
		schema.UserMessage(composerUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile composer chain: %w", err)
	}

	return &Service{chain: runnable}, nil
}

// Compose 根据规划结果生成回复。只使用 plan 中已有的事实。
func (s *Service) Compose(ctx context.Context, utterance string, plan travelModel.Plan) (string, error) {
	response, err := s.chain.Invoke(ctx, map[string]any{
		"utterance": utterance,
		"facts":     RenderFacts(plan),
	})
	if err != nil {
		return "", fmt.Errorf("failed to run composer chain: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", ErrEmptyCompletion
	}

	log.Printf("[ai] composed reply for place=%q, length=%d", plan.PlaceQueried, len(reply))
	return reply, nil
}
