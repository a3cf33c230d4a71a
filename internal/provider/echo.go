package provider

import (
	"context"
	"iter"
	"strings"
	"time"

	"agui-stream/internal/domain"
)

// Echo streams the last user message back one word at a time
type Echo struct {
	// Prefix is sent before the echoed text
	Prefix string
	// Delay is the pause between words
	Delay time.Duration
}

func (e Echo) Stream(ctx context.Context, input domain.RunInput) iter.Seq2[Delta, error] {
	text, ok := input.LastUserMessage()
	if !ok {
		return Fail(ErrNoUserMessage)
	}

	return func(yield func(Delta, error) bool) {
		if e.Prefix != "" && !yield(Text(e.Prefix), nil) {
			return
		}
		for _, word := range strings.SplitAfter(text, " ") {
			if word == "" {
				continue
			}
			if err := sleep(ctx, e.Delay); err != nil {
				yield(Delta{}, err)
				return
			}
			if !yield(Text(word), nil) {
				return
			}
		}
	}
}

// sleep waits for d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
