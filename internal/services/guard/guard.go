// Package guard runs pipeline operations inside a uniform failure envelope:
// panics become errors, failures are logged with their cause chain, and
// transient errors are retried with exponential backoff.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"scribe/internal/logging"
	"scribe/internal/services"
)

const defaultInitialInterval = 500 * time.Millisecond

// Operation describes how a guarded call should behave on failure.
type Operation struct {
	Name string
	// Continue logs the failure and returns nil instead of the error.
	Continue bool
	// Retries bounds additional attempts for transient errors.
	Retries         int
	InitialInterval time.Duration
}

// PanicError carries a recovered panic value and the stack it was raised on.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Message formats the operator-facing description of a failed operation.
func Message(name string, err error) string {
	return fmt.Sprintf("Operation: %s. Error: %v", name, err)
}

// Run executes fn under op. The returned error is nil on success or when
// op.Continue is set.
func Run(ctx context.Context, logger *slog.Logger, op Operation, fn func(context.Context) error) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := 0
	attempt := func() error {
		attempts++
		err := invoke(ctx, fn)
		if err == nil {
			return nil
		}
		if services.IsTransient(err) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = op.InitialInterval
	if policy.InitialInterval <= 0 {
		policy.InitialInterval = defaultInitialInterval
	}
	policy.MaxElapsedTime = 0
	retries := op.Retries
	if retries < 0 {
		retries = 0
	}
	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx)

	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying operation",
			logging.String("operation", op.Name),
			logging.Error(err),
			logging.Duration("wait", wait),
			logging.Int("attempt", attempts),
			logging.Event("operation_retry"),
		)
	}

	err := backoff.RetryNotify(attempt, bounded, notify)
	if err == nil {
		return nil
	}

	stack := string(debug.Stack())
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		stack = panicErr.Stack
	}
	logging.ErrorWithContext(logger, Message(op.Name, err), "operation_failed",
		logging.String("operation", op.Name),
		logging.Int("attempts", attempts),
		logging.Strings("cause_chain", CauseChain(err)),
		logging.String("stack", stack),
		logging.Error(err),
		logging.Bool("continue", op.Continue),
	)
	if op.Continue {
		return nil
	}
	return err
}

func invoke(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return fn(ctx)
}

// CauseChain lists err and every error it wraps, outermost first.
func CauseChain(err error) []string {
	var chain []string
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		chain = append(chain, strings.TrimSpace(e.Error()))
		switch wrapped := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range wrapped.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(wrapped.Unwrap())
		}
	}
	walk(err)
	return chain
}
