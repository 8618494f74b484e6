package chat_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	model "github.com/zhouzirui/chat-widget/backend/internal/model/chat"
	chat "github.com/zhouzirui/chat-widget/backend/internal/service/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/service/remote"
)

// gatedReplier blocks each call until a result is released for its text.
type gatedReplier struct {
	mu      sync.Mutex
	calls   []string
	gates   map[string]chan remote.Result
	onCall  func(text string)
	started chan string
}

func newGatedReplier(texts ...string) *gatedReplier {
	r := &gatedReplier{
		gates:   make(map[string]chan remote.Result),
		started: make(chan string, 16),
	}
	for _, text := range texts {
		r.gates[text] = make(chan remote.Result, 1)
	}
	return r
}

func (r *gatedReplier) Reply(ctx context.Context, text string) remote.Result {
	r.mu.Lock()
	r.calls = append(r.calls, text)
	gate := r.gates[text]
	onCall := r.onCall
	r.mu.Unlock()

	if onCall != nil {
		onCall(text)
	}
	r.started <- text
	if gate == nil {
		return remote.Failure(fmt.Errorf("%w: unexpected text %q", remote.ErrEndpointUnreachableOrInvalid, text))
	}
	return <-gate
}

func (r *gatedReplier) release(text string, result remote.Result) {
	r.gates[text] <- result
}

func (r *gatedReplier) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type funcReplier func(ctx context.Context, text string) remote.Result

func (f funcReplier) Reply(ctx context.Context, text string) remote.Result {
	return f(ctx, text)
}

func waitStarted(t *testing.T, r *gatedReplier, want string) {
	t.Helper()
	select {
	case got := <-r.started:
		if got != want {
			t.Fatalf("expected request for %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for request %q", want)
	}
}

func TestSendSuccessAppendsUserThenBot(t *testing.T) {
	replier := funcReplier(func(_ context.Context, text string) remote.Result {
		if text != "Hello" {
			t.Errorf("unexpected text %q", text)
		}
		return remote.Success("Hi there!")
	})
	svc := chat.NewService(replier, chat.Options{})
	svc.SetInput("Hello")

	outcome := svc.Send(context.Background())
	if !outcome.Dispatched || !outcome.Result.OK() {
		t.Fatalf("unexpected outcome %+v", outcome)
	}

	want := []model.Message{
		{Role: model.RoleUser, Text: "Hello"},
		{Role: model.RoleBot, Text: "Hi there!"},
	}
	if got := svc.View(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if svc.Input() != "" {
		t.Fatalf("expected cleared input, got %q", svc.Input())
	}
}

func TestSendBlankInputIsNoop(t *testing.T) {
	for _, input := range []string{"", "  ", "\t\n "} {
		calls := 0
		replier := funcReplier(func(context.Context, string) remote.Result {
			calls++
			return remote.Success("unexpected")
		})
		svc := chat.NewService(replier, chat.Options{})
		svc.SetInput(input)
		before := svc.Snapshot().Version

		outcome := svc.Send(context.Background())
		if outcome.Dispatched {
			t.Fatalf("input %q: expected guard to reject", input)
		}
		if calls != 0 {
			t.Fatalf("input %q: expected no network call, got %d", input, calls)
		}
		if len(svc.View()) != 0 {
			t.Fatalf("input %q: transcript changed: %+v", input, svc.View())
		}
		if svc.Input() != input {
			t.Fatalf("input %q: buffer changed to %q", input, svc.Input())
		}
		if svc.Snapshot().Version != before {
			t.Fatalf("input %q: state version changed", input)
		}
	}
}

func TestSendFailureAppendsFallback(t *testing.T) {
	replier := funcReplier(func(context.Context, string) remote.Result {
		return remote.Failure(errors.New("connection refused"))
	})
	svc := chat.NewService(replier, chat.Options{})
	svc.SetInput("Book a flight")

	outcome := svc.Send(context.Background())
	if !outcome.Dispatched || outcome.Result.OK() {
		t.Fatalf("expected dispatched failure, got %+v", outcome)
	}

	want := []model.Message{
		{Role: model.RoleUser, Text: "Book a flight"},
		{Role: model.RoleBot, Text: chat.FallbackText},
	}
	if got := svc.View(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if svc.Input() != "" {
		t.Fatalf("expected cleared input after failure, got %q", svc.Input())
	}
}

func TestSendKeepsUntrimmedText(t *testing.T) {
	replier := funcReplier(func(_ context.Context, text string) remote.Result {
		return remote.Success("echo:" + text)
	})
	svc := chat.NewService(replier, chat.Options{})
	svc.SetInput("  padded  ")
	svc.Send(context.Background())

	view := svc.View()
	if view[0].Text != "  padded  " {
		t.Fatalf("expected untrimmed user text, got %q", view[0].Text)
	}
	if view[1].Text != "echo:  padded  " {
		t.Fatalf("expected untrimmed request text, got %q", view[1].Text)
	}
}

func TestUserMessageVisibleBeforeRequest(t *testing.T) {
	for _, policy := range []chat.Policy{chat.PolicySerial, chat.PolicyConcurrent} {
		t.Run(string(policy), func(t *testing.T) {
			var svc *chat.Service
			var seen []model.Message
			replier := funcReplier(func(context.Context, string) remote.Result {
				seen = svc.View()
				return remote.Success("ok")
			})
			svc = chat.NewService(replier, chat.Options{Policy: policy})
			svc.SetInput("Hello")
			svc.Send(context.Background())

			want := []model.Message{{Role: model.RoleUser, Text: "Hello"}}
			if !reflect.DeepEqual(seen, want) {
				t.Fatalf("expected user message before request, saw %+v", seen)
			}
		})
	}
}

func TestUserMessageAppendedWhenSendAsyncReturns(t *testing.T) {
	for _, policy := range []chat.Policy{chat.PolicySerial, chat.PolicyConcurrent} {
		t.Run(string(policy), func(t *testing.T) {
			replier := newGatedReplier("Hello")
			svc := chat.NewService(replier, chat.Options{Policy: policy})

			svc.SetInput("Hello")
			task := svc.SendAsync(context.Background())

			want := []model.Message{{Role: model.RoleUser, Text: "Hello"}}
			if got := svc.View(); !reflect.DeepEqual(got, want) {
				t.Fatalf("expected user message right after SendAsync, got %+v", got)
			}
			if snap := svc.Snapshot(); snap.Pending != 1 || len(snap.Messages) != 1 {
				t.Fatalf("unexpected snapshot %+v", snap)
			}

			replier.release("Hello", remote.Success("hi"))
			task.Wait()
		})
	}
}

func TestSerialPolicyAppendsImmediatelyOnceIdleAgain(t *testing.T) {
	replier := newGatedReplier("A", "B")
	svc := chat.NewService(replier, chat.Options{Policy: chat.PolicySerial})
	ctx := context.Background()

	svc.SetInput("A")
	replier.release("A", remote.Success("ra"))
	svc.Send(ctx)

	svc.SetInput("B")
	task := svc.SendAsync(ctx)

	want := []model.Message{
		{Role: model.RoleUser, Text: "A"},
		{Role: model.RoleBot, Text: "ra"},
		{Role: model.RoleUser, Text: "B"},
	}
	if got := svc.View(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transcript %+v", got)
	}

	replier.release("B", remote.Success("rb"))
	task.Wait()
}

func TestSerialPolicyKeepsCallOrder(t *testing.T) {
	replier := newGatedReplier("A", "B")
	svc := chat.NewService(replier, chat.Options{Policy: chat.PolicySerial})
	ctx := context.Background()

	svc.SetInput("A")
	first := svc.SendAsync(ctx)
	svc.SetInput("B")
	second := svc.SendAsync(ctx)

	// B queues behind A, so only A is in the transcript so far.
	queued := []model.Message{{Role: model.RoleUser, Text: "A"}}
	if got := svc.View(); !reflect.DeepEqual(got, queued) {
		t.Fatalf("unexpected transcript while B is queued %+v", got)
	}

	waitStarted(t, replier, "A")
	if got := svc.Snapshot().Pending; got != 2 {
		t.Fatalf("expected 2 pending sends, got %d", got)
	}

	// B resolves first on the wire but must not run before A completes.
	replier.release("B", remote.Success("rb"))
	replier.release("A", remote.Success("ra"))
	first.Wait()
	waitStarted(t, replier, "B")
	second.Wait()

	want := []model.Message{
		{Role: model.RoleUser, Text: "A"},
		{Role: model.RoleBot, Text: "ra"},
		{Role: model.RoleUser, Text: "B"},
		{Role: model.RoleBot, Text: "rb"},
	}
	if got := svc.View(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transcript %+v", got)
	}
	if replier.callCount() != 2 {
		t.Fatalf("expected 2 calls, got %d", replier.callCount())
	}
	if snap := svc.Snapshot(); snap.Pending != 0 || snap.Input != "" {
		t.Fatalf("unexpected final state %+v", snap)
	}
}

func TestConcurrentPolicyAppendsToLatestTranscript(t *testing.T) {
	replier := newGatedReplier("A", "B")
	svc := chat.NewService(replier, chat.Options{Policy: chat.PolicyConcurrent})
	ctx := context.Background()

	svc.SetInput("A")
	first := svc.SendAsync(ctx)
	svc.SetInput("B")
	second := svc.SendAsync(ctx)

	eager := []model.Message{
		{Role: model.RoleUser, Text: "A"},
		{Role: model.RoleUser, Text: "B"},
	}
	if got := svc.View(); !reflect.DeepEqual(got, eager) {
		t.Fatalf("expected both user messages appended eagerly, got %+v", got)
	}

	// A resolves last; its reply must not discard B's messages.
	replier.release("B", remote.Success("rb"))
	second.Wait()
	replier.release("A", remote.Success("ra"))
	first.Wait()

	want := []model.Message{
		{Role: model.RoleUser, Text: "A"},
		{Role: model.RoleUser, Text: "B"},
		{Role: model.RoleBot, Text: "rb"},
		{Role: model.RoleBot, Text: "ra"},
	}
	if got := svc.View(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected transcript %+v", got)
	}
}

func TestTimeoutFallsBack(t *testing.T) {
	replier := funcReplier(func(ctx context.Context, _ string) remote.Result {
		<-ctx.Done()
		return remote.Failure(fmt.Errorf("%w: %v", remote.ErrEndpointUnreachableOrInvalid, ctx.Err()))
	})
	svc := chat.NewService(replier, chat.Options{Timeout: 20 * time.Millisecond})
	svc.SetInput("slow")

	outcome := svc.Send(context.Background())
	if outcome.Result.OK() {
		t.Fatal("expected timeout failure")
	}
	if got := svc.View(); got[len(got)-1].Text != chat.FallbackText {
		t.Fatalf("expected fallback reply, got %+v", got)
	}
}

func TestCallerCancellationDoesNotAbortSend(t *testing.T) {
	replier := funcReplier(func(ctx context.Context, _ string) remote.Result {
		if ctx.Err() != nil {
			return remote.Failure(ctx.Err())
		}
		return remote.Success("still here")
	})
	svc := chat.NewService(replier, chat.Options{})
	svc.SetInput("hi")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := svc.Send(ctx)
	if !outcome.Result.OK() {
		t.Fatalf("expected reply despite cancelled caller, got %v", outcome.Result.Err)
	}
}

func TestNilReplierFallsBack(t *testing.T) {
	svc := chat.NewService(nil, chat.Options{})
	svc.SetInput("anyone?")

	outcome := svc.Send(context.Background())
	if !errors.Is(outcome.Result.Err, remote.ErrEndpointUnreachableOrInvalid) {
		t.Fatalf("unexpected error %v", outcome.Result.Err)
	}
}

func TestOnKeyCommit(t *testing.T) {
	calls := 0
	replier := funcReplier(func(context.Context, string) remote.Result {
		calls++
		return remote.Success("ok")
	})
	svc := chat.NewService(replier, chat.Options{})
	svc.SetInput("Hello")

	if task := svc.OnKeyCommit(context.Background(), "a"); task.Dispatched() {
		t.Fatal("non-commit key must not send")
	}
	if calls != 0 || len(svc.View()) != 0 {
		t.Fatal("non-commit key changed state")
	}

	svc.OnKeyCommit(context.Background(), "Enter").Wait()
	if calls != 1 || len(svc.View()) != 2 {
		t.Fatalf("expected one send, calls=%d transcript=%+v", calls, svc.View())
	}
}

func TestSubscribeReceivesLatestState(t *testing.T) {
	replier := funcReplier(func(context.Context, string) remote.Result {
		return remote.Success("Hi there!")
	})
	svc := chat.NewService(replier, chat.Options{})
	updates, cancel := svc.Subscribe()
	defer cancel()

	initial := <-updates
	if len(initial.Messages) != 0 || initial.Pending != 0 {
		t.Fatalf("unexpected initial snapshot %+v", initial)
	}

	svc.SetInput("Hello")
	svc.Send(context.Background())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-updates:
			if len(snap.Messages) == 2 && snap.Pending == 0 {
				if snap.Input != "" {
					t.Fatalf("expected cleared input, got %q", snap.Input)
				}
				return
			}
		case <-deadline:
			t.Fatal("never observed the completed snapshot")
		}
	}
}

func TestSetInputReturnsVersion(t *testing.T) {
	svc := chat.NewService(nil, chat.Options{})

	v1 := svc.SetInput("a")
	if v1 != svc.Snapshot().Version {
		t.Fatalf("expected version %d, snapshot has %d", v1, svc.Snapshot().Version)
	}
	if v2 := svc.SetInput("a"); v2 != v1 {
		t.Fatalf("unchanged input must not bump version, got %d want %d", v2, v1)
	}
	if v3 := svc.SetInput("ab"); v3 <= v1 {
		t.Fatalf("expected newer version, got %d after %d", v3, v1)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := chat.ParsePolicy(""); err != nil || p != chat.PolicySerial {
		t.Fatalf("expected serial default, got %q %v", p, err)
	}
	if p, err := chat.ParsePolicy(" Concurrent "); err != nil || p != chat.PolicyConcurrent {
		t.Fatalf("expected concurrent, got %q %v", p, err)
	}
	if _, err := chat.ParsePolicy("queue"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
