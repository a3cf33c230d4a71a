package agui

import (
	"agui-stream/internal/domain"
	"agui-stream/internal/events"
	"agui-stream/internal/provider"
)

// FallbackText is sent when the provider finished without producing any text
const FallbackText = "I received your message, but couldn't generate a response."

const unnamedTool = "unknown_tool"

// Translator turns provider deltas into AG-UI events.
//
// At most one text message or tool call is open at a time. Text arriving while a tool
// call is open closes the tool call, and a new tool call closes the open text message.
type Translator struct {
	openMessage string
	openTool    string
	// last assistant message, used as the parent of tool calls
	lastMessage string
	wroteText   bool

	newMessageID func() string
}

// NewTranslator creates a translator generating message ids with events.GenerateMessageID
func NewTranslator() *Translator {
	return &Translator{newMessageID: events.GenerateMessageID}
}

// Delta returns the events for d
func (t *Translator) Delta(d provider.Delta) []events.Event {
	var out []events.Event
	switch {
	case d.ToolCall != nil:
		tc := d.ToolCall
		id := tc.ID
		if id == "" {
			id = t.openTool
		}
		if id == "" || id != t.openTool {
			if id == "" {
				id = events.GenerateToolCallID()
			}
			name := tc.Name
			if name == "" {
				name = unnamedTool
			}
			out = append(out, t.closeMessage()...)
			out = append(out, t.closeTool()...)
			var opts []events.Option
			if t.lastMessage != "" {
				opts = append(opts, events.WithParentMessageID(t.lastMessage))
			}
			out = append(out, events.Must(events.NewToolCallStartEvent(id, name, opts...)))
			t.openTool = id
		}
		if tc.Args != "" {
			out = append(out, events.Must(events.NewToolCallArgsEvent(id, tc.Args)))
		}

	case d.ToolResult != nil:
		r := d.ToolResult
		id := r.ToolCallID
		if id == "" {
			id = t.openTool
		}
		if id == "" {
			id = events.GenerateToolCallID()
		}
		if id == t.openTool {
			out = append(out, t.closeTool()...)
		}
		out = append(out, events.Must(events.NewToolCallResultEvent(t.newMessageID(), id, r.Content, events.WithRole(domain.RoleTool))))

	case d.Text != "":
		out = append(out, t.closeTool()...)
		if t.openMessage == "" {
			t.openMessage = t.newMessageID()
			t.lastMessage = t.openMessage
			out = append(out, events.Must(events.NewTextMessageStartEvent(t.openMessage, events.WithRole(domain.RoleAssistant))))
		}
		out = append(out, events.Must(events.NewTextMessageContentEvent(t.openMessage, d.Text)))
		t.wroteText = true
	}
	return out
}

// Finish closes whatever is open. A response without text gets FallbackText.
func (t *Translator) Finish() []events.Event {
	out := t.Close()
	if !t.wroteText {
		out = append(out, t.Delta(provider.Text(FallbackText))...)
		out = append(out, t.closeMessage()...)
	}
	return out
}

// Close ends the open text message and tool call
func (t *Translator) Close() []events.Event {
	return append(t.closeMessage(), t.closeTool()...)
}

func (t *Translator) closeMessage() []events.Event {
	if t.openMessage == "" {
		return nil
	}
	id := t.openMessage
	t.openMessage = ""
	return []events.Event{events.Must(events.NewTextMessageEndEvent(id))}
}

func (t *Translator) closeTool() []events.Event {
	if t.openTool == "" {
		return nil
	}
	id := t.openTool
	t.openTool = ""
	return []events.Event{events.Must(events.NewToolCallEndEvent(id))}
}
