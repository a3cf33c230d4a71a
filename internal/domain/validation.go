package domain

import (
	"errors"
	"fmt"
)

// ValidateMessages validates that messages have the required structure
// This is shared across all transport handlers
func ValidateMessages(messages []Message) error {
	seen := make(map[string]int, len(messages))
	for i, msg := range messages {
		if msg.ID == "" {
			return fmt.Errorf("message at index %d missing required field 'id'", i)
		}
		if prev, dup := seen[msg.ID]; dup {
			return fmt.Errorf("message at index %d reuses id %q of message at index %d", i, msg.ID, prev)
		}
		seen[msg.ID] = i

		if msg.Role == "" {
			return fmt.Errorf("message at index %d missing required field 'role'", i)
		}
		if !msg.Role.Valid() {
			return fmt.Errorf("message at index %d has invalid 'role' value: %s", i, msg.Role)
		}

		switch msg.Role {
		case RoleUser:
			if msg.Content == "" {
				return fmt.Errorf("message at index %d missing required field 'content' for role '%s'", i, msg.Role)
			}
		case RoleAssistant:
			if msg.Content == "" && len(msg.ToolCalls) == 0 {
				return fmt.Errorf("message at index %d has neither 'content' nor 'toolCalls'", i)
			}
			for j, tc := range msg.ToolCalls {
				if tc.ID == "" || tc.Function.Name == "" {
					return fmt.Errorf("message at index %d has tool call %d without id or name", i, j)
				}
			}
		case RoleTool:
			if msg.ToolCallID == "" {
				return fmt.Errorf("message at index %d missing required field 'toolCallId' for role '%s'", i, msg.Role)
			}
		}
	}

	return nil
}

// Validate validates the run input before a run starts
func (in RunInput) Validate() error {
	if err := ValidateMessages(in.Messages); err != nil {
		return fmt.Errorf("invalid messages: %w", err)
	}
	names := make(map[string]struct{}, len(in.Tools))
	for i, tool := range in.Tools {
		if tool.Name == "" {
			return fmt.Errorf("tool at index %d missing required field 'name'", i)
		}
		if _, dup := names[tool.Name]; dup {
			return fmt.Errorf("tool %q declared twice", tool.Name)
		}
		names[tool.Name] = struct{}{}
	}
	if in.ParentRunID != "" && in.ParentRunID == in.RunID {
		return errors.New("parentRunId must differ from runId")
	}
	return nil
}
