package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/chat-widget/backend/internal/analysis/intent"
	travelModel "github.com/zhouzirui/chat-widget/backend/internal/model/travel"
)

type stubModel struct {
	reply string
	err   error
	seen  []*schema.Message
}

func (m *stubModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.seen = input
	if m.err != nil {
		return nil, m.err
	}
	return schema.AssistantMessage(m.reply, nil), nil
}

func (m *stubModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func floatPtr(v float64) *float64 { return &v }

func samplePlan() travelModel.Plan {
	return travelModel.Plan{
		PlaceQueried: "Bengaluru, Karnataka, India",
		Intent:       intent.Decision{Weather: true, Places: true},
		Weather:      &travelModel.Weather{TemperatureC: floatPtr(24.5)},
		Places:       []string{"Lalbagh", "Cubbon Park"},
	}
}

func TestComposeUsesFactsAndUtterance(t *testing.T) {
	stub := &stubModel{reply: "  It's 24.5°C in Bengaluru.  "}
	svc, err := NewService(context.Background(), stub)
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	got, err := svc.Compose(context.Background(), "Bangalore trip?", samplePlan())
	if err != nil {
		t.Fatalf("Compose err: %v", err)
	}
	if got != "It's 24.5°C in Bengaluru." {
		t.Fatalf("unexpected reply %q", got)
	}

	if len(stub.seen) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(stub.seen))
	}
	user := stub.seen[1].Content
	if !strings.Contains(user, "Bangalore trip?") || !strings.Contains(user, "  - Cubbon Park") {
		t.Fatalf("user prompt missing facts:\n%s", user)
	}
}

func TestComposeRejectsEmptyCompletion(t *testing.T) {
	svc, err := NewService(context.Background(), &stubModel{reply: "   "})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	if _, err := svc.Compose(context.Background(), "hi", samplePlan()); !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestComposePropagatesModelError(t *testing.T) {
	svc, err := NewService(context.Background(), &stubModel{err: errors.New("quota")})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	if _, err := svc.Compose(context.Background(), "hi", samplePlan()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewServiceRequiresModel(t *testing.T) {
	if _, err := NewService(context.Background(), nil); err == nil {
		t.Fatal("expected error without model")
	}
}

func TestRenderFacts(t *testing.T) {
	plan := samplePlan()
	plan.Places = nil
	got := RenderFacts(plan)

	for _, want := range []string{"- temperature_celsius: 24.5", "- chance_of_rain_percent: unknown", "- places: none found"} {
		if !strings.Contains(got, want) {
			t.Fatalf("facts missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "wind_speed") {
		t.Fatalf("wind speed should be omitted when unknown:\n%s", got)
	}

	if RenderFacts(travelModel.Plan{}) != "- nothing found" {
		t.Fatal("expected placeholder for empty plan")
	}
}
