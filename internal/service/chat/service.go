package chat

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/chat-widget/backend/internal/model/chat"
	"github.com/zhouzirui/chat-widget/backend/internal/service/remote"
)

// FallbackText is shown as the bot reply whenever the endpoint round-trip fails.
const FallbackText = "Error connecting to server."

// CommitKey is the key that submits the input buffer.
const CommitKey = "enter"

// Policy decides how overlapping sends are ordered.
type Policy string

const (
	// PolicySerial runs sends one at a time in call order, so every user message is
	// directly followed by its reply.
	PolicySerial Policy = "serial"
	// PolicyConcurrent appends user messages immediately and lets replies land in the
	// order they resolve.
	PolicyConcurrent Policy = "concurrent"
)

// ParsePolicy validates a policy name. Empty selects PolicySerial.
func ParsePolicy(raw string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PolicySerial:
		return PolicySerial, nil
	case PolicyConcurrent:
		return PolicyConcurrent, nil
	default:
		return "", fmt.Errorf("unknown send policy %q", raw)
	}
}

// Replier is the conversational endpoint as seen by the controller.
type Replier interface {
	Reply(ctx context.Context, text string) remote.Result
}

// Options tunes a Service.
type Options struct {
	Policy Policy
	// Timeout bounds a single endpoint call. Zero disables the bound.
	Timeout time.Duration
}

// Service is the conversation controller. It exclusively owns the transcript and the
// input buffer; every mutation goes through its methods.
type Service struct {
	replier Replier
	policy  Policy
	timeout time.Duration

	mu         sync.Mutex
	transcript chat.Transcript
	input      string
	pending    int
	version    uint64

	// tail is closed when the most recently queued serial send finishes.
	tail chan struct{}
	// serialBusy counts serial sends that are queued or in flight.
	serialBusy int

	subscribers map[uint64]chan chat.Snapshot
	nextSubID   uint64
}

// NewService wires a controller around replier.
func NewService(replier Replier, opts Options) *Service {
	policy := opts.Policy
	if policy == "" {
		policy = PolicySerial
	}
	return &Service{
		replier:     replier,
		policy:      policy,
		timeout:     opts.Timeout,
		transcript:  chat.NewTranscript(),
		subscribers: make(map[uint64]chan chat.Snapshot),
	}
}

// Policy returns the configured ordering policy.
func (s *Service) Policy() Policy {
	return s.policy
}

// SetInput replaces the input buffer verbatim and returns the state version that holds it.
// Renderers compare it with Snapshot.Version to tell their own edits from later changes.
func (s *Service) SetInput(text string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input != text {
		s.input = text
		s.publishLocked()
	}
	return s.version
}

// Input returns the current input buffer.
func (s *Service) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// View returns the transcript in append order.
func (s *Service) View() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.View()
}

// Snapshot returns the full widget state.
func (s *Service) Snapshot() chat.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Send submits the input buffer and blocks until the reply, or the fallback, is appended.
func (s *Service) Send(ctx context.Context) Outcome {
	return s.SendAsync(ctx).Wait()
}

// SendAsync submits the input buffer and returns immediately. The guard, the capture of
// the input text and, unless the send queues behind another serial send, the user message
// append all happen before it returns, so rapid consecutive calls keep their order.
//
// Cancelling ctx does not abort the send; only the configured timeout bounds it.
func (s *Service) SendAsync(ctx context.Context) *Task {
	s.mu.Lock()
	text := s.input
	if strings.TrimSpace(text) == "" {
		s.mu.Unlock()
		return skippedTask()
	}

	task := newTask()
	var prev chan struct{}
	if s.policy == PolicySerial {
		// 只有排在其他发送之后时才延后追加用户消息
		if s.serialBusy > 0 {
			prev = s.tail
		}
		s.serialBusy++
		s.tail = task.turn
	}
	if prev == nil {
		s.transcript = s.transcript.Append(chat.UserMessage(text))
	}
	s.pending++
	s.publishLocked()
	s.mu.Unlock()

	go s.run(context.WithoutCancel(ctx), task, text, prev)
	return task
}

// OnKeyCommit sends when key is the commit key and ignores every other key.
func (s *Service) OnKeyCommit(ctx context.Context, key string) *Task {
	if !strings.EqualFold(strings.TrimSpace(key), CommitKey) {
		return skippedTask()
	}
	return s.SendAsync(ctx)
}

// Subscribe streams snapshots after every state change. The channel always holds the most
// recent state; intermediate states may be skipped for slow readers. The current state is
// delivered first.
func (s *Service) Subscribe() (<-chan chat.Snapshot, func()) {
	ch := make(chan chat.Snapshot, 1)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
	return ch, cancel
}

func (s *Service) run(ctx context.Context, task *Task, text string, prev chan struct{}) {
	defer close(task.turn)

	if prev != nil {
		<-prev

		s.mu.Lock()
		s.transcript = s.transcript.Append(chat.UserMessage(text))
		s.publishLocked()
		s.mu.Unlock()
	}

	started := time.Now()
	result := s.reply(ctx, text)

	reply := FallbackText
	if result.OK() {
		reply = result.Reply
		log.Printf("[chat] task=%s reply received in %s, length=%d", task.ID, time.Since(started).Round(time.Millisecond), len(reply))
	} else {
		log.Printf("[chat] task=%s endpoint failed after %s: %v", task.ID, time.Since(started).Round(time.Millisecond), result.Err)
	}

	s.mu.Lock()
	s.transcript = s.transcript.Append(chat.BotMessage(reply))
	s.input = ""
	s.pending--
	if s.policy == PolicySerial {
		s.serialBusy--
	}
	s.publishLocked()
	s.mu.Unlock()

	task.resolve(result)
}

func (s *Service) reply(ctx context.Context, text string) remote.Result {
	if s.replier == nil {
		return remote.Failure(fmt.Errorf("%w: no endpoint configured", remote.ErrEndpointUnreachableOrInvalid))
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.replier.Reply(ctx, text)
}

func (s *Service) snapshotLocked() chat.Snapshot {
	return chat.Snapshot{
		Messages: s.transcript.View(),
		Input:    s.input,
		Pending:  s.pending,
		Version:  s.version,
	}
}

// publishLocked bumps the version and hands the new state to subscribers without blocking.
func (s *Service) publishLocked() {
	s.version++
	if len(s.subscribers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Outcome reports what a send did.
type Outcome struct {
	// Dispatched is false when the guard rejected a blank input.
	Dispatched bool
	Result     remote.Result
}

// Task is a pending send. Wait blocks until its bot message has been appended.
type Task struct {
	ID   string
	turn chan struct{}
	done chan struct{}

	outcome Outcome
}

func newTask() *Task {
	return &Task{
		ID:   uuid.NewString(),
		turn: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func skippedTask() *Task {
	t := &Task{done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *Task) resolve(result remote.Result) {
	t.outcome = Outcome{Dispatched: true, Result: result}
	close(t.done)
}

// Done is closed once the send has completed.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Dispatched reports whether the task passed the blank-input guard.
func (t *Task) Dispatched() bool {
	return t.turn != nil
}

// Wait blocks until the send completes and returns its outcome.
func (t *Task) Wait() Outcome {
	<-t.done
	return t.outcome
}
