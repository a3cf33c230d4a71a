package events

// RawEvent passes through an event from an external system
type RawEvent struct {
	BaseEvent
	Event  any    `json:"event"`
	Source string `json:"source,omitempty"`
}

// NewRawEvent creates a RAW event
func NewRawEvent(event any, opts ...Option) (*RawEvent, error) {
	o := buildOptions(opts)
	e := &RawEvent{BaseEvent: newBase(EventTypeRaw, o), Event: event, Source: o.source}
	return e, e.Validate()
}

func (e *RawEvent) Validate() error {
	if err := e.check(EventTypeRaw); err != nil {
		return err
	}
	if e.Event == nil {
		return &ValidationError{Type: EventTypeRaw, Field: "event", Reason: "is required"}
	}
	return nil
}

// CustomEvent carries an application defined payload
type CustomEvent struct {
	BaseEvent
	Name  string `json:"name"`
	Value any    `json:"value,omitempty"`
}

// NewCustomEvent creates a CUSTOM event
func NewCustomEvent(name string, opts ...Option) (*CustomEvent, error) {
	o := buildOptions(opts)
	e := &CustomEvent{BaseEvent: newBase(EventTypeCustom, o), Name: name, Value: o.value}
	return e, e.Validate()
}

func (e *CustomEvent) Validate() error {
	return firstErr(
		e.check(EventTypeCustom),
		required(EventTypeCustom, "name", e.Name),
	)
}
