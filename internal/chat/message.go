// Package chat owns the conversation log: messages, the session controller and history persistence.
package chat

import (
	"time"

	"github.com/google/uuid"

	"github.com/spigell/prep-assistant/internal/experience"
)

type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one conversation turn.
type Message struct {
	ID        string             `json:"id"`
	Sender    Sender             `json:"sender"`
	Text      string             `json:"text"`
	Timestamp time.Time          `json:"timestamp"`
	Loading   bool               `json:"loading,omitempty"`
	Failed    bool               `json:"failed,omitempty"`
	Sources   []experience.Match `json:"sources,omitempty"`
}

func newMessage(sender Sender, text string, now time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Text:      text,
		Timestamp: now,
	}
}

func cloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m
		if m.Sources != nil {
			out[i].Sources = append([]experience.Match(nil), m.Sources...)
		}
	}
	return out
}
