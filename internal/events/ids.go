package events

import "github.com/google/uuid"

func newID(prefix string) string {
	return prefix + uuid.Must(uuid.NewV7()).String()
}

// GenerateThreadID returns a new thread id
func GenerateThreadID() string { return newID("thread_") }

// GenerateRunID returns a new run id
func GenerateRunID() string { return newID("run_") }

// GenerateMessageID returns a new message id
func GenerateMessageID() string { return newID("msg_") }

// GenerateToolCallID returns a new tool call id
func GenerateToolCallID() string { return newID("tool_") }
