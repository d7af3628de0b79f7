// Package async runs fire-and-forget background work safely.
//
// SafeGo executes a function in its own goroutine with panic recovery and a
// timeout, detached from the caller's cancellation:
//
//	async.SafeGo(ctx, 5*time.Second, "webhook delivery", func(ctx context.Context) error {
//		return deliver(ctx, event)
//	})
//
// Group does the same but lets shutdown wait for in-flight goroutines:
//
//	var g async.Group
//	g.Go(ctx, timeout, "redis publish", fn)
//	_ = g.Wait(shutdownCtx)
//
// # Related Packages
//
//   - pkg/broadcast: Delivers change notifications through Group
package async
