package chat

import "iter"

// Transcript is an append-only, ordered list of messages.
// Append returns a new value so earlier snapshots stay valid for renderers.
type Transcript struct {
	messages []Message
}

// NewTranscript returns a transcript holding a copy of the given messages.
func NewTranscript(messages ...Message) Transcript {
	return Transcript{messages: append([]Message(nil), messages...)}
}

// Append returns a transcript equal to t with message added at the end.
func (t Transcript) Append(message Message) Transcript {
	next := make([]Message, len(t.messages), len(t.messages)+1)
	copy(next, t.messages)
	return Transcript{messages: append(next, message)}
}

// View returns the messages in append order. The slice is a copy.
func (t Transcript) View() []Message {
	view := make([]Message, len(t.messages))
	copy(view, t.messages)
	return view
}

// All iterates the messages in append order. Each call starts from the beginning.
func (t Transcript) All() iter.Seq2[int, Message] {
	messages := t.messages
	return func(yield func(int, Message) bool) {
		for i, msg := range messages {
			if !yield(i, msg) {
				return
			}
		}
	}
}

// Len reports the number of messages.
func (t Transcript) Len() int {
	return len(t.messages)
}
