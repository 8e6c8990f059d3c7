package models

import (
	"slices"
	"time"
)

// State is a snapshot of the conversation together with the turn flags. Transitions are expressed as
// methods returning a new State; the receiver and its message slice are never modified, so a snapshot
// handed to a renderer stays valid while newer states are produced.
type State struct {
	Messages []Message

	// Loading is true from submission until the request settles.
	Loading bool
	// Thinking is true until the first response headers arrive.
	Thinking bool
	// Streaming selects streamed (true) or buffered (false) requests for the next turn.
	Streaming bool
}

// NewState returns an empty conversation with streaming enabled.
func NewState() State {
	return State{Streaming: true}
}

// AppendUser appends a user message.
func (s State) AppendUser(id, content string) State {
	return s.appendMessage(Message{ID: id, Role: RoleUser, Content: content})
}

// AppendAssistant appends an assistant message. Content may be empty for a message that is about to
// receive streamed deltas.
func (s State) AppendAssistant(id, content string) State {
	return s.appendMessage(Message{ID: id, Role: RoleAssistant, Content: content})
}

// Append appends msg as is. If a message with the same ID already exists the state is returned unchanged.
func (s State) Append(msg Message) State {
	return s.appendMessage(msg)
}

func (s State) appendMessage(msg Message) State {
	if s.Index(msg.ID) != -1 {
		return s
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	msgs := make([]Message, len(s.Messages), len(s.Messages)+1)
	copy(msgs, s.Messages)
	s.Messages = append(msgs, msg)
	return s
}

// AppendDelta appends delta to the content of the message referenced by ref. The delta is only applied
// when the referenced message is still the tail of the conversation and still carries ref.ID; any other
// state is returned unchanged, as is an empty delta.
func (s State) AppendDelta(ref MessageRef, delta string) State {
	if delta == "" {
		return s
	}
	if ref.Index < 0 || ref.Index != len(s.Messages)-1 {
		return s
	}
	if s.Messages[ref.Index].ID != ref.ID {
		return s
	}
	msgs := slices.Clone(s.Messages)
	msgs[ref.Index].Content += delta
	s.Messages = msgs
	return s
}

// Ref returns a reference to the message with the given ID, and false if there is none.
func (s State) Ref(id string) (MessageRef, bool) {
	idx := s.Index(id)
	if idx == -1 {
		return MessageRef{}, false
	}
	return MessageRef{ID: id, Index: idx}, true
}

// Index returns the position of the message with the given ID, or -1.
func (s State) Index(id string) int {
	return slices.IndexFunc(s.Messages, func(m Message) bool { return m.ID == id })
}

// Last returns the tail message, and false if the conversation is empty.
func (s State) Last() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// WithLoading returns the state with the loading flag set to v.
func (s State) WithLoading(v bool) State {
	s.Loading = v
	return s
}

// WithThinking returns the state with the thinking flag set to v.
func (s State) WithThinking(v bool) State {
	s.Thinking = v
	return s
}

// WithStreaming returns the state with the streaming flag set to v.
func (s State) WithStreaming(v bool) State {
	s.Streaming = v
	return s
}
