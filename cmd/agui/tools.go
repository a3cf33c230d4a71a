package main

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"

	"agui-stream/internal/domain"
)

type weatherArgs struct {
	City  string `json:"city" jsonschema:"required,description=City to look up"`
	Units string `json:"units,omitempty" jsonschema:"enum=metric,enum=imperial"`
}

type confirmArgs struct {
	Question string `json:"question" jsonschema:"required,description=Question shown to the user"`
}

// demoTools declares frontend tools the agent may call. Their parameter schemas are
// reflected from the argument structs.
func demoTools() ([]domain.Tool, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	specs := []struct {
		name, description string
		args              any
	}{
		{"get_weather", "Current weather for a city", &weatherArgs{}},
		{"confirm", "Ask the user a yes or no question", &confirmArgs{}},
	}

	tools := make([]domain.Tool, 0, len(specs))
	for _, s := range specs {
		params, err := json.Marshal(r.Reflect(s.args))
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", s.name, err)
		}
		tools = append(tools, domain.Tool{Name: s.name, Description: s.description, Parameters: params})
	}
	return tools, nil
}
