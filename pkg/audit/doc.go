// Package audit records the append-only activity log.
//
// # Overview
//
// Every successful mutation on a user, project or task appends exactly one
// entry through Recorder.Record. Recording is best-effort: when the store
// rejects the write the error is logged and counted in
// taskhub_activity_write_failures_total, and the caller carries on. Entries
// are never updated or deleted.
//
//	recorder := audit.NewRecorder(store, metrics)
//	recorder.Record(ctx, audit.Entry{
//		UserID: identity.ID,
//		Action: audit.TaskStatusUpdated(task.Title, string(task.Status)),
//		TaskID: task.ID,
//	})
//
// # Reading
//
// Callers only ever see their own entries, newest first, in pages of at most
// 50:
//
//	entries, err := recorder.List(ctx, identity, 20)
package audit
