package agent

import (
	"context"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/model/gemini"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/geminitool"
	"google.golang.org/genai"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	DefaultInstruction = "You are a helpful assistant. Answer briefly and use search when the question needs current information."
)

// Options configures the ADK agent
type Options struct {
	APIKey      string
	Model       string
	Instruction string
}

// New creates and returns a configured ADK agent
func New(ctx context.Context, opts Options) (agent.Agent, error) {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.Instruction == "" {
		opts.Instruction = DefaultInstruction
	}

	model, err := gemini.NewModel(ctx, opts.Model, &genai.ClientConfig{
		APIKey: opts.APIKey,
	})
	if err != nil {
		return nil, err
	}

	return llmagent.New(llmagent.Config{
		Name:        "agui_assistant",
		Model:       model,
		Description: "Answers questions over the AG-UI protocol.",
		Instruction: opts.Instruction,
		Tools: []tool.Tool{
			geminitool.GoogleSearch{},
		},
	})
}
