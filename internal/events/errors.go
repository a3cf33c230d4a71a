package events

import "fmt"

// ValidationError reports a missing or invalid field for an event kind
type ValidationError struct {
	Type   EventType
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: field '%s' %s", e.Type, e.Field, e.Reason)
}

func required(t EventType, field, value string) error {
	if value == "" {
		return &ValidationError{Type: t, Field: field, Reason: "is required"}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// Must panics if err is non-nil and returns e otherwise. It is meant for events built
// from constant arguments.
func Must[T Event](e T, err error) T {
	if err != nil {
		panic(err)
	}
	return e
}
