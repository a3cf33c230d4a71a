// Package adk streams responses from a Google ADK agent
package adk

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"agui-stream/internal/logging"
	"agui-stream/internal/provider"
	"agui-stream/internal/session"
	json "github.com/goccy/go-json"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/genai"
)

// DefaultUserID is the ADK user runs are attributed to
const DefaultUserID = "agui_user"

// Source runs an ADK agent with one session per AG-UI thread
type Source struct {
	agent    agent.Agent
	sessions *session.Manager
	userID   string
	logger   *slog.Logger
}

type Option func(*Source)

func WithUserID(id string) Option {
	return func(s *Source) { s.userID = id }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// New creates a source for a
func New(a agent.Agent, sessions *session.Manager, opts ...Option) *Source {
	s := &Source{
		agent:    a,
		sessions: sessions,
		userID:   DefaultUserID,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(logging.Component("adk"))
	return s
}

func (s *Source) Stream(ctx context.Context, input domain.RunInput) iter.Seq2[provider.Delta, error] {
	text, ok := input.LastUserMessage()
	if !ok {
		return provider.Fail(provider.ErrNoUserMessage)
	}

	return func(yield func(provider.Delta, error) bool) {
		r, err := runner.New(runner.Config{
			AppName:        s.sessions.AppName(),
			Agent:          s.agent,
			SessionService: s.sessions.Service(),
		})
		if err != nil {
			yield(provider.Delta{}, fmt.Errorf("failed to create runner: %w", err))
			return
		}

		sess, err := s.sessions.ForThread(ctx, s.userID, input.ThreadID)
		if err != nil {
			yield(provider.Delta{}, fmt.Errorf("failed to get session: %w", err))
			return
		}

		s.logger.DebugContext(ctx, "running agent", slog.String("session", sess.ID()), slog.String("thread", input.ThreadID))
		calls := make(map[string]string)
		content := genai.NewContentFromText(text, genai.RoleUser)
		for ev, err := range r.Run(ctx, s.userID, sess.ID(), content, agent.RunConfig{}) {
			if err != nil {
				yield(provider.Delta{}, fmt.Errorf("agent execution error: %w", err))
				return
			}
			if ev == nil {
				break
			}
			for _, d := range contentDeltas(ev.Content, calls) {
				if !yield(d, nil) {
					return
				}
			}
			if ev.IsFinalResponse() {
				break
			}
		}
	}
}

// contentDeltas converts the parts of one ADK response. calls maps ADK function call
// ids to the tool call ids sent to the client.
func contentDeltas(c *genai.Content, calls map[string]string) []provider.Delta {
	if c == nil {
		return nil
	}
	var out []provider.Delta
	for _, part := range c.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" && !part.Thought {
			out = append(out, provider.Text(part.Text))
		}

		if fc := part.FunctionCall; fc != nil {
			id := fc.ID
			if id == "" {
				id = events.GenerateToolCallID()
			}
			calls[fc.ID] = id

			var args string
			if fc.Args != nil {
				if raw, err := json.Marshal(fc.Args); err == nil {
					args = string(raw)
				}
			}
			out = append(out, provider.Delta{ToolCall: &provider.ToolCallDelta{ID: id, Name: fc.Name, Args: args}})
		}

		if fr := part.FunctionResponse; fr != nil {
			id, ok := calls[fr.ID]
			if !ok {
				id = events.GenerateToolCallID()
			}
			var result string
			if fr.Response != nil {
				if raw, err := json.Marshal(fr.Response); err == nil {
					result = string(raw)
				} else {
					result = fmt.Sprintf("%v", fr.Response)
				}
			}
			out = append(out, provider.Delta{ToolResult: &provider.ToolResultDelta{ToolCallID: id, Content: result}})
		}
	}
	return out
}
