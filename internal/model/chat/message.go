package chat

import "errors"

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

var (
	ErrEmptyText   = errors.New("message text is required")
	ErrUnknownRole = errors.New("unknown message role")
)

// Message is a single transcript entry. It is passed by value and never edited after creation.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// NewMessage validates role and text before building a Message.
func NewMessage(role Role, text string) (Message, error) {
	switch role {
	case RoleUser, RoleBot:
	default:
		return Message{}, ErrUnknownRole
	}
	if text == "" {
		return Message{}, ErrEmptyText
	}
	return Message{Role: role, Text: text}, nil
}

// UserMessage builds a user entry. The text is kept untrimmed.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Text: text}
}

// BotMessage builds a bot entry.
func BotMessage(text string) Message {
	return Message{Role: RoleBot, Text: text}
}
