package texttool

import (
	"context"
	"time"

	"github.com/pcurtin/mcp-texttools/internal/errors"
)

// guardOutcome carries a completed execution out of the worker goroutine.
type guardOutcome struct {
	payload string
	err     error
}

// runGuarded executes fn under the given deadline. fn receives a context that
// is cancelled when the deadline expires, so context-aware work actually
// stops instead of running on unobserved. The outcome channel is buffered: a
// completion that loses the race is dropped without leaking the goroutine.
func runGuarded(ctx context.Context, tool string, timeout time.Duration, fn func(context.Context) (string, error)) (string, error) {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome := make(chan guardOutcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcome <- guardOutcome{err: errors.NewErrorf(errors.InternalFault, "tool %s panicked: %v", tool, r)}
			}
		}()

		payload, err := fn(execCtx)
		outcome <- guardOutcome{payload: payload, err: err}
	}()

	select {
	case res := <-outcome:
		if res.err != nil {
			return "", mapContextError(res.err, tool, timeout)
		}
		return res.payload, nil
	case <-execCtx.Done():
		return "", mapContextError(execCtx.Err(), tool, timeout)
	}
}

// mapContextError turns context termination into the coded tool errors;
// anything else passes through unchanged.
func mapContextError(err error, tool string, timeout time.Duration) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.NewErrorf(errors.ToolTimeout, "tool %s timed out after %s", tool, timeout)
	case errors.Is(err, context.Canceled):
		return errors.NewErrorf(errors.InternalFault, "tool %s execution cancelled", tool)
	default:
		return err
	}
}
