package provider

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"strings"
	"time"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"gopkg.in/yaml.v3"
)

// Script replays a fixed response described in YAML:
//
//	steps:
//	  - text: "Looking that up. "
//	  - delay: 200ms
//	    toolCall: {name: search, args: '{"q":"weather"}'}
//	  - toolResult: {content: "sunny"}
//	  - text: "You said: {{input}}"
//
// A toolResult without a toolCallId answers the most recent tool call. The string
// {{input}} in text steps is replaced with the last user message.
type Script struct {
	Steps []ScriptStep `yaml:"steps"`
}

// ScriptStep is one entry of a script. Delay applies before the step's output.
type ScriptStep struct {
	Delay      time.Duration     `yaml:"delay,omitempty"`
	Text       string            `yaml:"text,omitempty"`
	ToolCall   *ScriptToolCall   `yaml:"toolCall,omitempty"`
	ToolResult *ScriptToolResult `yaml:"toolResult,omitempty"`
	Error      string            `yaml:"error,omitempty"`
}

type ScriptToolCall struct {
	ID   string `yaml:"id,omitempty"`
	Name string `yaml:"name"`
	Args string `yaml:"args,omitempty"`
}

type ScriptToolResult struct {
	ToolCallID string `yaml:"toolCallId,omitempty"`
	Content    string `yaml:"content"`
}

// ParseScript decodes and checks a YAML script
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads a script file
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load script: %w", err)
	}
	return ParseScript(data)
}

// Validate checks that every step produces exactly one kind of output
func (s *Script) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("script has no steps")
	}
	for i, st := range s.Steps {
		n := 0
		if st.Text != "" {
			n++
		}
		if st.ToolCall != nil {
			n++
			if st.ToolCall.Name == "" {
				return fmt.Errorf("step %d: tool call without a name", i)
			}
		}
		if st.ToolResult != nil {
			n++
		}
		if st.Error != "" {
			n++
		}
		if n != 1 {
			return fmt.Errorf("step %d: expected exactly one of text, toolCall, toolResult or error", i)
		}
	}
	return nil
}

func (s *Script) Stream(ctx context.Context, input domain.RunInput) iter.Seq2[Delta, error] {
	userText, _ := input.LastUserMessage()

	return func(yield func(Delta, error) bool) {
		var lastTool string
		for _, st := range s.Steps {
			if err := sleep(ctx, st.Delay); err != nil {
				yield(Delta{}, err)
				return
			}

			var d Delta
			switch {
			case st.Text != "":
				d = Text(strings.ReplaceAll(st.Text, "{{input}}", userText))
			case st.ToolCall != nil:
				id := st.ToolCall.ID
				if id == "" {
					id = events.GenerateToolCallID()
				}
				lastTool = id
				d.ToolCall = &ToolCallDelta{ID: id, Name: st.ToolCall.Name, Args: st.ToolCall.Args}
			case st.ToolResult != nil:
				id := st.ToolResult.ToolCallID
				if id == "" {
					id = lastTool
				}
				d.ToolResult = &ToolResultDelta{ToolCallID: id, Content: st.ToolResult.Content}
			default:
				yield(Delta{}, errors.New(st.Error))
				return
			}
			if !yield(d, nil) {
				return
			}
		}
	}
}
