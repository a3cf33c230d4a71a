package events

// RunStartedEvent opens a run
type RunStartedEvent struct {
	BaseEvent
	ThreadID    string `json:"threadId"`
	RunID       string `json:"runId"`
	ParentRunID string `json:"parentRunId,omitempty"`
}

// NewRunStartedEvent creates a RUN_STARTED event
func NewRunStartedEvent(threadID, runID string, opts ...Option) (*RunStartedEvent, error) {
	o := buildOptions(opts)
	e := &RunStartedEvent{
		BaseEvent:   newBase(EventTypeRunStarted, o),
		ThreadID:    threadID,
		RunID:       runID,
		ParentRunID: o.parentRunID,
	}
	return e, e.Validate()
}

func (e *RunStartedEvent) Validate() error {
	return firstErr(
		e.check(EventTypeRunStarted),
		required(EventTypeRunStarted, "threadId", e.ThreadID),
		required(EventTypeRunStarted, "runId", e.RunID),
	)
}

// RunFinishedEvent ends a run successfully
type RunFinishedEvent struct {
	BaseEvent
	ThreadID string `json:"threadId"`
	RunID    string `json:"runId"`
	Result   any    `json:"result,omitempty"`
}

// NewRunFinishedEvent creates a RUN_FINISHED event
func NewRunFinishedEvent(threadID, runID string, opts ...Option) (*RunFinishedEvent, error) {
	o := buildOptions(opts)
	e := &RunFinishedEvent{
		BaseEvent: newBase(EventTypeRunFinished, o),
		ThreadID:  threadID,
		RunID:     runID,
		Result:    o.result,
	}
	return e, e.Validate()
}

func (e *RunFinishedEvent) Validate() error {
	return firstErr(
		e.check(EventTypeRunFinished),
		required(EventTypeRunFinished, "threadId", e.ThreadID),
		required(EventTypeRunFinished, "runId", e.RunID),
	)
}

// RunErrorEvent ends a run with a failure
type RunErrorEvent struct {
	BaseEvent
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	RunID   string `json:"runId,omitempty"`
}

// NewRunErrorEvent creates a RUN_ERROR event
func NewRunErrorEvent(message string, opts ...Option) (*RunErrorEvent, error) {
	o := buildOptions(opts)
	e := &RunErrorEvent{
		BaseEvent: newBase(EventTypeRunError, o),
		Message:   message,
		Code:      o.code,
		RunID:     o.runID,
	}
	return e, e.Validate()
}

func (e *RunErrorEvent) Validate() error {
	return firstErr(
		e.check(EventTypeRunError),
		required(EventTypeRunError, "message", e.Message),
	)
}

// StepStartedEvent marks the beginning of a named step within a run
type StepStartedEvent struct {
	BaseEvent
	StepName string `json:"stepName"`
}

// NewStepStartedEvent creates a STEP_STARTED event
func NewStepStartedEvent(stepName string, opts ...Option) (*StepStartedEvent, error) {
	e := &StepStartedEvent{BaseEvent: newBase(EventTypeStepStarted, buildOptions(opts)), StepName: stepName}
	return e, e.Validate()
}

func (e *StepStartedEvent) Validate() error {
	return firstErr(
		e.check(EventTypeStepStarted),
		required(EventTypeStepStarted, "stepName", e.StepName),
	)
}

// StepFinishedEvent marks the end of a named step
type StepFinishedEvent struct {
	BaseEvent
	StepName string `json:"stepName"`
}

// NewStepFinishedEvent creates a STEP_FINISHED event
func NewStepFinishedEvent(stepName string, opts ...Option) (*StepFinishedEvent, error) {
	e := &StepFinishedEvent{BaseEvent: newBase(EventTypeStepFinished, buildOptions(opts)), StepName: stepName}
	return e, e.Validate()
}

func (e *StepFinishedEvent) Validate() error {
	return firstErr(
		e.check(EventTypeStepFinished),
		required(EventTypeStepFinished, "stepName", e.StepName),
	)
}
