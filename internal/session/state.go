package session

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/lojasmm/chatwidget/internal/reply"
)

// Sender identifies who a message is from.
type Sender string

const (
	User      Sender = "user"
	Assistant Sender = "assistant"
	// Indicator is the typing indicator. It is drawn but never persisted.
	Indicator Sender = "indicator"
)

func (s Sender) persistable() bool {
	return s == User || s == Assistant
}

// Message is one entry of the conversation history.
type Message struct {
	Sender Sender      `json:"sender"`
	Text   reply.Reply `json:"text"`
}

// State is everything the widget keeps for one browsing session.
type State struct {
	SessionID string    `json:"sessionId"`
	IsOpen    bool      `json:"isOpen"`
	History   []Message `json:"history"`
}

// NewState starts a conversation with the assistant's welcome message.
func NewState(welcome string) *State {
	return &State{
		SessionID: NewSessionID(),
		IsOpen:    false,
		History: []Message{{
			Sender: Assistant,
			Text:   reply.Plain(welcome),
		}},
	}
}

// NewSessionID returns a random version 4 UUID.
func NewSessionID() string {
	return uuid.NewString()
}

// Append adds a message to the history. The typing indicator is rejected.
func (s *State) Append(sender Sender, text reply.Reply) error {
	if !sender.persistable() {
		return errors.Errorf("session: sender %q is not persisted", sender)
	}
	s.History = append(s.History, Message{Sender: sender, Text: text})
	return nil
}

func (s *State) validate() error {
	if s.SessionID == "" {
		return errors.New("missing sessionId")
	}
	if len(s.History) == 0 {
		return errors.New("empty history")
	}
	for i, m := range s.History {
		if !m.Sender.persistable() {
			return errors.Errorf("history[%d]: unknown sender %q", i, m.Sender)
		}
	}
	return nil
}
