package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents an individual entry of the conversation. It carries a unique identifier, the
// participant's role, the text content and the time the message was created.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// MessageRef points at a message by both its position and its identity. A transition that receives a
// ref only applies when the message found at Index still carries ID.
type MessageRef struct {
	ID    string
	Index int
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message authored by the user.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the completion endpoint. Its content may be empty
	// while a streamed response is still in flight.
	RoleAssistant Role = "assistant"
)

const (
	reasoningOpen  = "<think>"
	reasoningClose = "</think>"
)

// NewMessageID returns a new message identifier. UUIDv7 identifiers sort by creation time.
func NewMessageID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewMessage creates a message with a fresh identifier.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// SplitReasoning reports whether content is a reasoning-only reply, that is, it starts with the
// opening <think> marker and ends with the closing </think> marker with something other than whitespace
// in between. When it is, the trimmed text between the markers is returned. Content with partial or
// interleaved markers is plain content.
func SplitReasoning(content string) (string, bool) {
	if len(content) < len(reasoningOpen)+len(reasoningClose) {
		return "", false
	}
	if !strings.HasPrefix(content, reasoningOpen) || !strings.HasSuffix(content, reasoningClose) {
		return "", false
	}
	body := content[len(reasoningOpen) : len(content)-len(reasoningClose)]
	body = strings.TrimSpace(body)
	return body, body != ""
}
