// Package broadcast delivers change notifications for projects and tasks.
//
// # Overview
//
// Services receive a Broadcaster by injection and call Emit after a
// successful mutation:
//
//	broadcaster.Emit(ctx, broadcast.EventTaskUpdated, view)
//
// Emit returns immediately. A Dispatcher wraps the payload in an Event
// envelope and hands it to each configured Sink in a background goroutine
// (see pkg/async). Delivery is at-most-once and unordered; failures are
// logged and counted, never returned to the caller.
//
// # Sinks
//
//   - RedisSink: PUBLISH on a pub/sub channel (default "taskhub:events")
//   - NATSSink: core NATS publish on "<prefix>.<event>"
//   - WebhookSink: HTTP POST signed with HMAC-SHA256 in X-Taskhub-Signature
//
// Receivers verify webhook payloads with VerifySignature:
//
//	ok := broadcast.VerifySignature(body, r.Header.Get(broadcast.HeaderSignature), secret)
package broadcast
