package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/platinummonkey/taskhub/pkg/observability"
)

// SafeGo runs fn in a goroutine with panic recovery and a timeout.
//
// The goroutine keeps the values of parentCtx (request id, user id, logger)
// but not its cancellation, so work started from a request handler survives
// the response being written. Errors and panics are logged, never returned.
//
// Example:
//
//	SafeGo(r.Context(), 5*time.Second, "broadcast taskUpdated", func(ctx context.Context) error {
//	    return sink.Publish(ctx, event)
//	})
func SafeGo(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	go run(parentCtx, timeout, taskName, fn)
}

func run(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parentCtx), timeout)
	defer cancel()

	logger := observability.FromContext(ctx).WithField("task", taskName)

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", fmt.Sprint(r)).
				WithField("stack", string(debug.Stack())).
				Error("PANIC recovered in background task")
		}
	}()

	if err := fn(ctx); err != nil {
		logger.WithError(err).Warn("Background task failed")
	}
}

// Group tracks SafeGo goroutines so shutdown can wait for in-flight work
type Group struct {
	wg sync.WaitGroup
}

// Go starts fn like SafeGo and tracks it until it returns
func (g *Group) Go(parentCtx context.Context, timeout time.Duration, taskName string, fn func(context.Context) error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		run(parentCtx, timeout, taskName, fn)
	}()
}

// Wait blocks until every tracked goroutine finished or ctx is done
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
